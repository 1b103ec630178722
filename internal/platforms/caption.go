package platforms

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Platform text limits, in runes.
const (
	YouTubeTitleMaxRunes       = 100
	YouTubeDescriptionMaxRunes = 5000
	InstagramCaptionMaxRunes   = 2200
	TikTokTitleMaxRunes        = 2200
	maxHashtags                = 30
)

const shortsTag = "#Shorts"

// FormatHashtags prefixes each tag with '#', strips inner whitespace and punctuation
// and drops duplicates case-insensitively, keeping first-seen order.
func FormatHashtags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		word := strings.Map(func(r rune) rune {
			if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
				return r
			}
			return -1
		}, tag)
		if word == "" {
			continue
		}
		key := strings.ToLower(word)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, "#"+word)
		if len(out) == maxHashtags {
			break
		}
	}
	return out
}

// Caption joins the description and formatted hashtags and truncates to maxRunes.
// Hashtags are dropped from the end first so the description survives.
func Caption(description string, hashtags []string, maxRunes int) string {
	description = strings.TrimSpace(description)
	tags := FormatHashtags(hashtags)
	for {
		text := description
		if len(tags) > 0 {
			if text != "" {
				text += "\n\n"
			}
			text += strings.Join(tags, " ")
		}
		if maxRunes <= 0 || utf8.RuneCountInString(text) <= maxRunes {
			return text
		}
		if len(tags) == 0 {
			return truncateRunes(text, maxRunes)
		}
		tags = tags[:len(tags)-1]
	}
}

// YouTubeTitle derives a Shorts title: the first line of text, with #Shorts appended
// and the whole truncated to the YouTube limit.
func YouTubeTitle(text string) string {
	title := strings.TrimSpace(firstLine(text))
	if strings.Contains(strings.ToLower(title), strings.ToLower(shortsTag)) {
		return truncateRunes(title, YouTubeTitleMaxRunes)
	}
	room := YouTubeTitleMaxRunes - utf8.RuneCountInString(shortsTag) - 1
	title = strings.TrimSpace(truncateRunes(title, room))
	if title == "" {
		return shortsTag
	}
	return title + " " + shortsTag
}

// YouTubeTags strips the '#' so hashtags can be sent as video tags.
func YouTubeTags(hashtags []string) []string {
	tags := FormatHashtags(hashtags)
	for i, t := range tags {
		tags[i] = strings.TrimPrefix(t, "#")
	}
	return tags
}

func firstLine(text string) string {
	text = strings.TrimSpace(text)
	if i := strings.IndexAny(text, "\r\n"); i >= 0 {
		return text[:i]
	}
	return text
}

func truncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
