// Package fetch - browser.go renders JavaScript-heavy headline pages in a headless browser.
package fetch

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/chromedp/chromedp"
)

// MinHeadlines is the fewest headlines a plain HTTP fetch must yield before a browser render is skipped.
const MinHeadlines = 3

// DefaultBrowserTimeout bounds one headless render.
const DefaultBrowserTimeout = 30 * time.Second

// ShouldUseBrowser returns true when a plain fetch found too few headlines,
// which usually means the page builds its list client-side.
func ShouldUseBrowser(found []Headline) bool {
	return len(found) < MinHeadlines
}

// Renderer renders a URL to HTML.
type Renderer interface {
	Render(ctx context.Context, url string) (string, error)
}

// Browser renders pages with a local Chrome/Chromium through chromedp.
type Browser struct {
	Timeout time.Duration
	// WaitSelector is awaited before the HTML is captured; defaults to body.
	WaitSelector string
	Verbose      bool
}

// Render navigates to url and returns the rendered document HTML.
func (b *Browser) Render(ctx context.Context, url string) (string, error) {
	timeout := b.Timeout
	if timeout <= 0 {
		timeout = DefaultBrowserTimeout
	}
	wait := b.WaitSelector
	if wait == "" {
		wait = "body"
	}

	if b.Verbose {
		log.Printf("[browser] rendering %s", url)
	}

	allocCtx, cancel := chromedp.NewExecAllocator(ctx,
		append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", true),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
			chromedp.UserAgent(DefaultUserAgent),
		)...,
	)
	defer cancel()

	browserCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	browserCtx, cancel = context.WithTimeout(browserCtx, timeout)
	defer cancel()

	var html string
	err := chromedp.Run(browserCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady(wait),
		// Lazy lists usually finish rendering within a couple of seconds
		chromedp.Sleep(2*time.Second),
		chromedp.ActionFunc(func(ctx context.Context) error {
			_ = chromedp.Click(`button[id*="accept"], button[class*="accept"]`, chromedp.NodeVisible, chromedp.AtLeast(0)).Do(ctx)
			return nil
		}),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		return "", &Error{URL: url, Message: "browser rendering failed", Cause: err}
	}

	if b.Verbose {
		log.Printf("[browser] rendered %s: %d bytes", url, len(html))
	}
	return html, nil
}

// Headlines fetches a page over HTTP and, when too few headlines are found and a renderer
// is available, retries through the renderer.
func Headlines(ctx context.Context, pageURL string, selectors []string, opts *Options, renderer Renderer) ([]Headline, error) {
	var found []Headline
	result, err := URL(ctx, pageURL, opts)
	if err == nil {
		found, err = ExtractHeadlines(result.HTML, pageURL, selectors)
	}
	if renderer == nil || (err == nil && !ShouldUseBrowser(found)) {
		return found, err
	}

	html, rerr := renderer.Render(ctx, pageURL)
	if rerr != nil {
		if err != nil {
			return nil, fmt.Errorf("%v; %w", err, rerr)
		}
		return found, nil
	}
	rendered, perr := ExtractHeadlines(html, pageURL, selectors)
	if perr != nil {
		return found, nil
	}
	if len(rendered) > len(found) {
		return rendered, nil
	}
	return found, nil
}
