package platforms

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestFormatHashtags(t *testing.T) {
	got := FormatHashtags([]string{"golang", "#GoLang", "deep dive", "  ", "#", "c++", "año"})
	assert.Equal(t, []string{"#golang", "#deepdive", "#c", "#año"}, got)
}

func TestCaption_DropsTagsBeforeDescription(t *testing.T) {
	assert.Equal(t, "Hello\n\n#a #b", Caption(" Hello ", []string{"a", "b"}, 0))
	assert.Equal(t, "Hello\n\n#a", Caption("Hello", []string{"a", "b"}, 10))
	assert.Equal(t, "Hell", Caption("Hello", []string{"a"}, 4))
	assert.Equal(t, "#x", Caption("", []string{"x"}, 100))
}

func TestYouTubeTitle(t *testing.T) {
	assert.Equal(t, "Three tips for focus #Shorts", YouTubeTitle("Three tips for focus\nmore text"))
	assert.Equal(t, "Already tagged #shorts", YouTubeTitle("Already tagged #shorts"))
	assert.Equal(t, "#Shorts", YouTubeTitle(""))

	long := YouTubeTitle(strings.Repeat("é", 300))
	assert.Equal(t, YouTubeTitleMaxRunes, utf8.RuneCountInString(long))
	assert.True(t, strings.HasSuffix(long, " #Shorts"))
}

func TestYouTubeTags(t *testing.T) {
	assert.Equal(t, []string{"fitness", "gym"}, YouTubeTags([]string{"#fitness", "gym", "Fitness"}))
}
