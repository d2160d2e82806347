// Package wait polls page state until a condition holds or a deadline passes.
package wait

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gobwas/glob"
	"github.com/rs/zerolog/log"
	"github.com/tomatool/basil/internal/browser"
)

const (
	DefaultTimeout            = 10 * time.Second
	DefaultInterval           = 100 * time.Millisecond
	DefaultNetworkIdleTimeout = 30 * time.Second
	DefaultPageLoadTimeout    = 30 * time.Second
)

// Page is the query surface the waits poll. browser.Page satisfies it.
type Page interface {
	URL() string
	Count(selector string) (int, error)
	IsVisible(selector string) (bool, error)
	IsEnabled(selector string) (bool, error)
	InnerText(selector string) (string, error)
	WaitForLoadState(state browser.LoadState, timeout time.Duration) error
}

// Condition reports whether the awaited state has been reached. An error
// means "not yet" and is kept for the timeout message.
type Condition func(ctx context.Context) (bool, error)

// Waiter runs waits against one page
type Waiter struct {
	page            Page
	timeout         time.Duration
	interval        time.Duration
	pageLoadTimeout time.Duration
}

// Option configures a Waiter
type Option func(*Waiter)

// WithTimeout sets the timeout used when a wait is called with zero
func WithTimeout(d time.Duration) Option {
	return func(w *Waiter) { w.timeout = d }
}

// WithInterval sets the polling interval
func WithInterval(d time.Duration) Option {
	return func(w *Waiter) { w.interval = d }
}

// WithPageLoadTimeout bounds each load state PageLoad waits for
func WithPageLoadTimeout(d time.Duration) Option {
	return func(w *Waiter) { w.pageLoadTimeout = d }
}

// New creates a Waiter for page
func New(page Page, opts ...Option) *Waiter {
	w := &Waiter{
		page:            page,
		timeout:         DefaultTimeout,
		interval:        DefaultInterval,
		pageLoadTimeout: DefaultPageLoadTimeout,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Until polls cond every interval until it holds. A zero timeout uses the
// waiter's default.
func (w *Waiter) Until(ctx context.Context, name string, timeout time.Duration, cond Condition) error {
	if timeout <= 0 {
		timeout = w.timeout
	}

	deadline, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	var lastErr error
	for {
		ok, err := cond(deadline)
		switch {
		case err != nil:
			lastErr = err
		case ok:
			return nil
		}

		select {
		case <-deadline.Done():
			if ctx.Err() != nil {
				return fmt.Errorf("waiting for %s: %w", name, ctx.Err())
			}
			log.Debug().Str("condition", name).Dur("timeout", timeout).Msg("wait timed out")
			return &TimeoutError{Condition: name, Timeout: timeout, Err: lastErr}
		case <-ticker.C:
		}
	}
}

// Visible waits until the first element matching selector is visible
func (w *Waiter) Visible(ctx context.Context, selector string, timeout time.Duration) error {
	log.Debug().Str("selector", selector).Msg("waiting for element to be visible")
	return w.Until(ctx, fmt.Sprintf("element %s to be visible", selector), timeout, func(context.Context) (bool, error) {
		return w.page.IsVisible(selector)
	})
}

// Clickable waits until the element is attached and visible, then requires
// it to be enabled. A disabled element fails with *NotClickableError.
func (w *Waiter) Clickable(ctx context.Context, selector string, timeout time.Duration) error {
	log.Debug().Str("selector", selector).Msg("waiting for element to be clickable")
	if err := w.Visible(ctx, selector, timeout); err != nil {
		return err
	}

	enabled, err := w.page.IsEnabled(selector)
	if err != nil {
		return fmt.Errorf("checking %s is enabled: %w", selector, err)
	}
	if !enabled {
		return &NotClickableError{Selector: selector}
	}
	return nil
}

// URLContains waits until the page URL matches **/*<text>*
func (w *Waiter) URLContains(ctx context.Context, text string, timeout time.Duration) error {
	pattern, err := glob.Compile("**/*"+glob.QuoteMeta(text)+"*", '/')
	if err != nil {
		return fmt.Errorf("compiling url pattern for %q: %w", text, err)
	}

	log.Debug().Str("text", text).Msg("waiting for url")
	return w.Until(ctx, fmt.Sprintf("url to contain %q", text), timeout, func(context.Context) (bool, error) {
		return pattern.Match(w.page.URL()), nil
	})
}

// NetworkIdle waits for the driver's network idle signal. A zero timeout
// uses DefaultNetworkIdleTimeout.
func (w *Waiter) NetworkIdle(ctx context.Context, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = DefaultNetworkIdleTimeout
	}
	return w.loadState(ctx, browser.LoadStateNetworkIdle, timeout)
}

// PageLoad waits for DOMContentLoaded and then the load event
func (w *Waiter) PageLoad(ctx context.Context) error {
	log.Debug().Msg("waiting for page load")
	if err := w.loadState(ctx, browser.LoadStateDOMContentLoaded, w.pageLoadTimeout); err != nil {
		return err
	}
	return w.loadState(ctx, browser.LoadStateLoad, w.pageLoadTimeout)
}

func (w *Waiter) loadState(ctx context.Context, state browser.LoadState, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("waiting for %s: %w", state, err)
	}
	if err := w.page.WaitForLoadState(state, timeout); err != nil {
		return &TimeoutError{Condition: string(state), Timeout: timeout, Err: err}
	}
	return nil
}

// ElementCount waits until exactly n elements match selector
func (w *Waiter) ElementCount(ctx context.Context, selector string, n int, timeout time.Duration) error {
	return w.Until(ctx, fmt.Sprintf("%d elements matching %s", n, selector), timeout, func(context.Context) (bool, error) {
		count, err := w.page.Count(selector)
		if err != nil {
			return false, err
		}
		return count == n, nil
	})
}

// TextPresent waits until text appears anywhere in the rendered body
func (w *Waiter) TextPresent(ctx context.Context, text string, timeout time.Duration) error {
	return w.Until(ctx, fmt.Sprintf("text %q", text), timeout, func(context.Context) (bool, error) {
		body, err := w.page.InnerText("body")
		if err != nil {
			return false, err
		}
		return strings.Contains(body, text), nil
	})
}

// Disappear waits until the element is hidden or detached
func (w *Waiter) Disappear(ctx context.Context, selector string, timeout time.Duration) error {
	return w.Until(ctx, fmt.Sprintf("element %s to disappear", selector), timeout, func(context.Context) (bool, error) {
		visible, err := w.page.IsVisible(selector)
		if err != nil {
			return false, err
		}
		return !visible, nil
	})
}
