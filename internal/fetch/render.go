package fetch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// Renderer fetches pages through a real Chrome/Chromium browser (via the
// DevTools protocol) so that JS-heavy pages have a chance to fully render
// before the final HTML is captured. It satisfies Fetcher, so the sync
// engine can use it in place of the plain HTTP client.
type Renderer struct {
	// ChromePath optionally overrides the Chrome/Chromium executable path.
	// If empty, chromedp will try to find a browser on PATH / default locations.
	ChromePath string
	// Headless controls whether Chrome runs without a visible window.
	Headless bool
	// Timeout is the per-page deadline for navigation + rendering + capture.
	// If <= 0, DefaultTimeout is used.
	Timeout time.Duration
	// MaxBytes caps the captured HTML size. If <= 0, DefaultMaxBytes.
	MaxBytes int64
	// WaitSelector optionally waits for a CSS selector to become visible
	// before capturing. Useful for SPAs that render late.
	WaitSelector string
}

// Fetch navigates to url, waits for the network to go idle and <body> to be
// ready, and captures the final rendered document. Captures are always
// KindHTML.
func (r *Renderer) Fetch(ctx context.Context, url string) (Result, error) {
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	maxBytes := r.MaxBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}

	allocatorOpts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	allocatorOpts = append(allocatorOpts,
		chromedp.NoDefaultBrowserCheck,
		chromedp.NoFirstRun,
	)
	if r.ChromePath != "" {
		allocatorOpts = append(allocatorOpts, chromedp.ExecPath(r.ChromePath))
	}
	if r.Headless {
		allocatorOpts = append(allocatorOpts, chromedp.Headless)
	} else {
		allocatorOpts = append(allocatorOpts, chromedp.Flag("headless", false))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocatorOpts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	runCtx, cancelRun := context.WithTimeout(browserCtx, timeout)
	defer cancelRun()

	var html string
	var title string
	var finalURL string

	// Navigate and block until the page reports networkIdle, so late
	// resource loads land before the capture.
	waitForNetworkIdle := func(ctx context.Context) error {
		if err := page.SetLifecycleEventsEnabled(true).Do(ctx); err != nil {
			return err
		}

		ch := make(chan struct{})
		chromedp.ListenTarget(ctx, func(ev interface{}) {
			if e, ok := ev.(*page.EventLifecycleEvent); ok {
				if e.Name == "networkIdle" {
					select {
					case ch <- struct{}{}:
					default:
					}
				}
			}
		})

		if err := chromedp.Navigate(url).Do(ctx); err != nil {
			return err
		}

		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}

		return nil
	}

	actions := []chromedp.Action{
		chromedp.ActionFunc(waitForNetworkIdle),
		chromedp.WaitReady("body", chromedp.ByQuery),
	}
	if strings.TrimSpace(r.WaitSelector) != "" {
		actions = append(actions, chromedp.WaitVisible(r.WaitSelector, chromedp.ByQuery))
	}
	// Small delay to allow any final JS execution after network idle
	actions = append(actions,
		chromedp.Sleep(500*time.Millisecond),
		chromedp.Location(&finalURL),
		chromedp.Title(&title),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)

	if err := chromedp.Run(runCtx, actions...); err != nil {
		kind := Unreachable
		if errors.Is(err, context.DeadlineExceeded) {
			kind = Timeout
		}
		return Result{}, &Error{Kind: kind, URL: url, Err: err}
	}

	if int64(len(html)) > maxBytes {
		return Result{}, &Error{
			Kind: TooLarge,
			URL:  url,
			Err:  fmt.Errorf("rendered document exceeds %d byte cap", maxBytes),
		}
	}
	if strings.TrimSpace(html) == "" {
		return Result{}, &Error{Kind: ClientError, URL: url, Err: errors.New("empty rendered document")}
	}

	// Some pages leave document.title blank; fall back to parsing the HTML.
	if strings.TrimSpace(title) == "" {
		title = extractTitle([]byte(html))
	}

	return Result{
		Body:        []byte(html),
		FinalURL:    finalURL,
		ContentType: "text/html; charset=utf-8",
		Kind:        KindHTML,
		Title:       strings.TrimSpace(title),
	}, nil
}
