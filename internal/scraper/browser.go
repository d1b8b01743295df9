package scraper

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/jgoulah/watersync/internal/config"
)

// CaptureCookies opens a visible browser at the portal login page, waits
// for the user to complete the login manually, and returns the session
// cookies once the account landing page is reached. This is the fallback
// path for when the form login breaks (portal markup changes, new
// anti-bot checks) and covers until the protocol is fixed.
func (c *Client) CaptureCookies(ctx context.Context, timeout time.Duration) ([]config.Cookie, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", false),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
	)

	allocCtx, cancel := chromedp.NewExecAllocator(ctx, opts...)
	defer cancel()

	browserCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	browserCtx, cancel = context.WithTimeout(browserCtx, timeout)
	defer cancel()

	if err := chromedp.Run(browserCtx,
		network.Enable(),
		chromedp.Navigate(c.baseURL+loginPagePath),
	); err != nil {
		return nil, fmt.Errorf("opening login page: %w", err)
	}

	// Poll until the user lands on the account page
	for {
		select {
		case <-browserCtx.Done():
			return nil, fmt.Errorf("timed out waiting for manual login: %w", browserCtx.Err())
		case <-time.After(2 * time.Second):
		}

		var currentURL string
		if err := chromedp.Run(browserCtx,
			chromedp.Evaluate(`window.location.href`, &currentURL),
		); err != nil {
			return nil, fmt.Errorf("checking browser location: %w", err)
		}

		if strings.Contains(currentURL, landingPath) {
			break
		}
	}

	return extractPortalCookies(browserCtx)
}

// extractPortalCookies pulls all cookies from the browser context
func extractPortalCookies(ctx context.Context) ([]config.Cookie, error) {
	var cookies []*network.Cookie

	if err := chromedp.Run(ctx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			cookies, err = network.GetCookies().Do(ctx)
			return err
		}),
	); err != nil {
		return nil, fmt.Errorf("getting cookies: %w", err)
	}

	result := make([]config.Cookie, 0, len(cookies))
	for _, c := range cookies {
		result = append(result, config.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expires:  c.Expires,
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
			SameSite: c.SameSite.String(),
		})
	}

	return result, nil
}
