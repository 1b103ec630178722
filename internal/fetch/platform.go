// Package fetch - platform.go maps well-known headline sites to tuned selectors.
package fetch

import (
	"net/url"
	"strings"
)

// Site represents a known headline source.
type Site string

const (
	// SiteHackerNews is news.ycombinator.com
	SiteHackerNews Site = "hackernews"
	// SiteGoogleNews is news.google.com
	SiteGoogleNews Site = "googlenews"
	// SiteProductHunt is producthunt.com
	SiteProductHunt Site = "producthunt"
	// SiteUnknown is an unrecognized site
	SiteUnknown Site = "unknown"
)

// SiteProfile describes how to read headlines from a site.
type SiteProfile struct {
	Site      Site
	Selectors []string
	// AllowBrowser permits a headless render when plain HTTP finds too little.
	AllowBrowser bool
}

// DetectSite identifies the headline site from a URL.
func DetectSite(urlStr string) Site {
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return SiteUnknown
	}

	host := strings.ToLower(parsed.Host)
	switch {
	case strings.HasSuffix(host, "ycombinator.com"):
		return SiteHackerNews
	case strings.HasSuffix(host, "news.google.com"):
		return SiteGoogleNews
	case strings.HasSuffix(host, "producthunt.com"):
		return SiteProductHunt
	}
	return SiteUnknown
}

// ProfileFor returns the selectors and rendering policy for a URL.
func ProfileFor(urlStr string) SiteProfile {
	site := DetectSite(urlStr)
	switch site {
	case SiteHackerNews:
		// Server-rendered; a browser never helps
		return SiteProfile{Site: site, Selectors: []string{".titleline > a"}}
	case SiteGoogleNews:
		return SiteProfile{Site: site, Selectors: []string{"article a.gPFEn", "article h3 a", "article h4 a"}, AllowBrowser: true}
	case SiteProductHunt:
		return SiteProfile{Site: site, Selectors: []string{"[data-test^='post-name'] a", "h3 a"}, AllowBrowser: true}
	default:
		return SiteProfile{Site: SiteUnknown, Selectors: DefaultHeadlineSelectors(), AllowBrowser: true}
	}
}
