package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"

	"jobfinder-engine/internal/domain"
)

type PlaywrightOptions struct {
	Headless          bool
	UserAgent         string
	NavigationTimeout time.Duration
}

// PlaywrightFetcher renders pages in headless Chromium. Each Fetch opens a
// fresh tab in a shared browser context so cookies persist across calls.
type PlaywrightFetcher struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	bctx    playwright.BrowserContext
	timeout time.Duration

	closeOnce sync.Once
}

func NewPlaywrightFetcher(opts PlaywrightOptions) (*PlaywrightFetcher, error) {
	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("could not start playwright: %w", err)
	}

	b, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(opts.Headless),
	})
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("could not launch chromium: %w", err)
	}

	ua := opts.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}
	bctx, err := b.NewContext(playwright.BrowserNewContextOptions{
		UserAgent: playwright.String(ua),
	})
	if err != nil {
		_ = b.Close()
		_ = pw.Stop()
		return nil, fmt.Errorf("could not create browser context: %w", err)
	}

	timeout := opts.NavigationTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &PlaywrightFetcher{pw: pw, browser: b, bctx: bctx, timeout: timeout}, nil
}

func (f *PlaywrightFetcher) Fetch(ctx context.Context, url string) (*Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	timeout := f.timeout
	if dl, ok := ctx.Deadline(); ok {
		if left := time.Until(dl); left < timeout {
			timeout = left
		}
	}
	if timeout <= 0 {
		return nil, context.DeadlineExceeded
	}

	page, err := f.bctx.NewPage()
	if err != nil {
		return nil, domain.NewTransientError("open tab", err)
	}
	defer page.Close()

	resp, err := page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(float64(timeout.Milliseconds())),
	})
	if err != nil {
		return nil, domain.NewTransientError("navigate", err)
	}

	html, err := page.Content()
	if err != nil {
		return nil, domain.NewTransientError("read content", err)
	}

	out := &Page{URL: page.URL(), HTML: html}
	if resp != nil {
		out.Status = resp.Status()
	}
	return out, StatusError(out)
}

func (f *PlaywrightFetcher) Close() error {
	var err error
	f.closeOnce.Do(func() {
		_ = f.bctx.Close()
		if cerr := f.browser.Close(); cerr != nil {
			err = cerr
		}
		if serr := f.pw.Stop(); serr != nil && err == nil {
			err = serr
		}
	})
	return err
}
