// Package browser owns the browser, context and page handles used by a scenario.
//
// The Manager keeps at most one browser and one context alive and moves through
// an explicit Unstarted -> Launched -> ContextOpen state. The driver-facing
// interfaces below are implemented over playwright-go in playwright.go and by
// fakes in tests.
package browser

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Kind is a supported browser engine
type Kind string

const (
	Chromium Kind = "chromium"
	Firefox  Kind = "firefox"
	WebKit   Kind = "webkit"
)

// ErrUnsupportedBrowser is matched by every *UnsupportedBrowserError
var ErrUnsupportedBrowser = errors.New("unsupported browser")

// UnsupportedBrowserError is returned for a browser name outside the known set
type UnsupportedBrowserError struct {
	Name string
}

func (e *UnsupportedBrowserError) Error() string {
	return fmt.Sprintf("unsupported browser: %s", e.Name)
}

func (e *UnsupportedBrowserError) Is(target error) bool {
	return target == ErrUnsupportedBrowser
}

// ParseKind maps a configured browser name (including the chrome and safari
// aliases) to a Kind.
func ParseKind(name string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "chromium", "chrome":
		return Chromium, nil
	case "firefox":
		return Firefox, nil
	case "webkit", "safari":
		return WebKit, nil
	default:
		return "", &UnsupportedBrowserError{Name: name}
	}
}

// launchArgs are the extra command line flags passed to each engine
func (k Kind) launchArgs() []string {
	switch k {
	case Chromium:
		return []string{"--start-maximized", "--disable-blink-features=AutomationControlled"}
	case Firefox:
		return []string{"--start-maximized"}
	default:
		return nil
	}
}

// LoadState is a document readiness milestone
type LoadState string

const (
	LoadStateLoad             LoadState = "load"
	LoadStateDOMContentLoaded LoadState = "domcontentloaded"
	LoadStateNetworkIdle      LoadState = "networkidle"
)

// Size is a width/height pair in CSS pixels
type Size struct {
	Width  int
	Height int
}

// LaunchOptions configure a browser launch
type LaunchOptions struct {
	Headless bool
	Args     []string
}

// ContextOptions configure a new browsing context
type ContextOptions struct {
	Viewport          Size
	IgnoreHTTPSErrors bool
	// VideoDir enables video recording when set
	VideoDir  string
	VideoSize Size
	// Default action and navigation timeouts for pages of this context
	Timeout           time.Duration
	NavigationTimeout time.Duration
}

// Launcher starts browsers
type Launcher interface {
	Launch(kind Kind, opts LaunchOptions) (Browser, error)
}

// Browser is a running browser process
type Browser interface {
	NewContext(opts ContextOptions) (Context, error)
	Close() error
}

// Context is an isolated browsing session (cookies, storage) within a browser
type Context interface {
	NewPage() (Page, error)
	Close() error
}

// Page is a single tab. Element methods take CSS or playwright selectors and
// act on the first match.
type Page interface {
	Goto(url string) error
	URL() string
	Title() (string, error)
	Reload() error
	GoBack() error
	Close() error

	Count(selector string) (int, error)
	IsVisible(selector string) (bool, error)
	IsEnabled(selector string) (bool, error)
	Click(selector string) error
	Fill(selector, value string) error
	Clear(selector string) error
	TextContent(selector string) (string, error)
	InnerText(selector string) (string, error)
	SelectOption(selector, value string) error
	Press(key string) error

	WaitForLoadState(state LoadState, timeout time.Duration) error
	Screenshot(path string, fullPage bool) error
	// VideoPath is empty when the context does not record video
	VideoPath() (string, error)
}
