// Package pages holds page objects: named actions and checks over a browser
// page, each waiting for its element before it acts.
package pages

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tomatool/basil/internal/browser"
	"github.com/tomatool/basil/internal/runlog"
	"github.com/tomatool/basil/internal/wait"
)

// visibilityProbe bounds IsVisible, which reports rather than fails
const visibilityProbe = 5 * time.Second

// Options configure page objects
type Options struct {
	// Timeout bounds element waits; zero uses wait.DefaultTimeout
	Timeout         time.Duration
	PageLoadTimeout time.Duration
	// Run receives named screenshots
	Run *runlog.Run
}

// BasePage implements the actions shared by every page
type BasePage struct {
	page    browser.Page
	wait    *wait.Waiter
	run     *runlog.Run
	timeout time.Duration
}

// NewBasePage wraps page
func NewBasePage(page browser.Page, opts Options) *BasePage {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = wait.DefaultTimeout
	}

	waitOpts := []wait.Option{wait.WithTimeout(timeout)}
	if opts.PageLoadTimeout > 0 {
		waitOpts = append(waitOpts, wait.WithPageLoadTimeout(opts.PageLoadTimeout))
	}

	return &BasePage{
		page:    page,
		wait:    wait.New(page, waitOpts...),
		run:     opts.Run,
		timeout: timeout,
	}
}

// Page returns the underlying browser page
func (b *BasePage) Page() browser.Page { return b.page }

// Wait returns the waiter bound to this page
func (b *BasePage) Wait() *wait.Waiter { return b.wait }

func (b *BasePage) Navigate(ctx context.Context, url string) error {
	log.Info().Str("url", url).Msg("Navigating")
	if err := b.page.Goto(url); err != nil {
		return fmt.Errorf("navigating to %s: %w", url, err)
	}
	return nil
}

func (b *BasePage) Click(ctx context.Context, selector string) error {
	log.Info().Str("selector", selector).Msg("Clicking element")
	if err := b.wait.Visible(ctx, selector, b.timeout); err != nil {
		return err
	}
	if err := b.page.Click(selector); err != nil {
		return fmt.Errorf("clicking %s: %w", selector, err)
	}
	return nil
}

// Fill replaces the value of an input
func (b *BasePage) Fill(ctx context.Context, selector, value string) error {
	log.Info().Str("selector", selector).Msg("Filling element")
	if err := b.wait.Visible(ctx, selector, b.timeout); err != nil {
		return err
	}
	if err := b.page.Clear(selector); err != nil {
		return fmt.Errorf("clearing %s: %w", selector, err)
	}
	if err := b.page.Fill(selector, value); err != nil {
		return fmt.Errorf("filling %s: %w", selector, err)
	}
	return nil
}

func (b *BasePage) Text(ctx context.Context, selector string) (string, error) {
	log.Debug().Str("selector", selector).Msg("Getting text")
	if err := b.wait.Visible(ctx, selector, b.timeout); err != nil {
		return "", err
	}
	text, err := b.page.TextContent(selector)
	if err != nil {
		return "", fmt.Errorf("reading text of %s: %w", selector, err)
	}
	return strings.TrimSpace(text), nil
}

// WaitForElement waits for selector to be visible. Zero timeout uses the page default.
func (b *BasePage) WaitForElement(ctx context.Context, selector string, timeout time.Duration) error {
	log.Debug().Str("selector", selector).Msg("Waiting for element")
	if timeout <= 0 {
		timeout = b.timeout
	}
	return b.wait.Visible(ctx, selector, timeout)
}

func (b *BasePage) WaitForElementToDisappear(ctx context.Context, selector string, timeout time.Duration) error {
	log.Debug().Str("selector", selector).Msg("Waiting for element to disappear")
	if timeout <= 0 {
		timeout = b.timeout
	}
	return b.wait.Disappear(ctx, selector, timeout)
}

// IsVisible reports whether selector becomes visible within five seconds, or
// the page timeout when that is shorter
func (b *BasePage) IsVisible(ctx context.Context, selector string) bool {
	err := b.wait.Visible(ctx, selector, min(visibilityProbe, b.timeout))
	log.Debug().Str("selector", selector).Bool("visible", err == nil).Msg("Visibility check")
	return err == nil
}

func (b *BasePage) IsEnabled(selector string) (bool, error) {
	return b.page.IsEnabled(selector)
}

func (b *BasePage) SelectOption(ctx context.Context, selector, value string) error {
	log.Info().Str("selector", selector).Str("value", value).Msg("Selecting option")
	if err := b.wait.Visible(ctx, selector, b.timeout); err != nil {
		return err
	}
	if err := b.page.SelectOption(selector, value); err != nil {
		return fmt.Errorf("selecting %q in %s: %w", value, selector, err)
	}
	return nil
}

func (b *BasePage) Title() (string, error) {
	return b.page.Title()
}

// Screenshot saves a full-page screenshot under the given name and returns its path
func (b *BasePage) Screenshot(name string) (string, error) {
	if b.run == nil {
		return "", fmt.Errorf("screenshot %s: no report directory", name)
	}
	path := b.run.NamedScreenshotPath(name)
	log.Info().Str("path", path).Msg("Taking screenshot")
	if err := b.page.Screenshot(path, true); err != nil {
		return "", fmt.Errorf("screenshot %s: %w", name, err)
	}
	return path, nil
}

func (b *BasePage) WaitForPageLoad(ctx context.Context) error {
	return b.wait.PageLoad(ctx)
}

func (b *BasePage) PressKey(key string) error {
	log.Info().Str("key", key).Msg("Pressing key")
	return b.page.Press(key)
}

// VerifyText checks that the element's text contains expected
func (b *BasePage) VerifyText(ctx context.Context, selector, expected string) error {
	text, err := b.Text(ctx, selector)
	if err != nil {
		return err
	}
	if !strings.Contains(text, expected) {
		return fmt.Errorf("expected %s to contain %q, got %q", selector, expected, text)
	}
	return nil
}

func (b *BasePage) VerifyVisible(ctx context.Context, selector string) error {
	return b.wait.Visible(ctx, selector, b.timeout)
}

func (b *BasePage) CurrentURL() string {
	return b.page.URL()
}

func (b *BasePage) Reload() error {
	log.Info().Msg("Reloading page")
	return b.page.Reload()
}

func (b *BasePage) GoBack() error {
	log.Info().Msg("Navigating back")
	return b.page.GoBack()
}

func (b *BasePage) Close() error {
	return b.page.Close()
}
