package fetch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/jonathan/job-intel/internal/logging"
)

// MinContentLength is the shortest main text accepted from a plain HTTP
// fetch before the browser fallback is tried.
const MinContentLength = 500

// renderSettle is how long scripts get to populate the page.
const renderSettle = 2 * time.Second

// Renderer returns the rendered HTML of a page.
type Renderer func(ctx context.Context, url string) (string, error)

// ShouldUseBrowser reports whether extracted text is too short to be the
// real page, which usually means client-side rendering.
func ShouldUseBrowser(extractedText string) bool {
	return len(strings.TrimSpace(extractedText)) < MinContentLength
}

func headlessOptions(userAgent string) []chromedp.ExecAllocatorOption {
	opts := make([]chromedp.ExecAllocatorOption, 0, len(chromedp.DefaultExecAllocatorOptions)+4)
	opts = append(opts, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	return append(opts, chromedp.UserAgent(userAgent))
}

// BrowserRenderer returns a Renderer that loads pages in headless Chrome
// with the given User-Agent, or DefaultUserAgent when empty. Chrome or
// Chromium must be installed.
func BrowserRenderer(userAgent string) Renderer {
	return func(ctx context.Context, url string) (string, error) {
		log := logging.C(ctx).With().Str("url", url).Logger()
		start := time.Now()

		allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, headlessOptions(userAgent)...)
		defer cancelAlloc()
		tabCtx, cancelTab := chromedp.NewContext(allocCtx)
		defer cancelTab()

		var html string
		if err := chromedp.Run(tabCtx,
			chromedp.Navigate(url),
			chromedp.WaitReady("body"),
			chromedp.Sleep(renderSettle),
			chromedp.OuterHTML("html", &html),
		); err != nil {
			return "", fmt.Errorf("render %s: %w", url, err)
		}

		log.Debug().Int("bytes", len(html)).Dur("elapsed", time.Since(start)).Msg("page rendered")
		return html, nil
	}
}
