package browser

import (
	"fmt"
	"io"
	"time"

	"github.com/playwright-community/playwright-go"
	"github.com/rs/zerolog/log"
)

// DriverOptions configure the playwright driver
type DriverOptions struct {
	// Endpoint connects to a running playwright server instead of launching
	// local browsers, e.g. ws://localhost:3000/
	Endpoint string
	Verbose  bool
}

// Driver is a running playwright driver process
type Driver struct {
	pw       *playwright.Playwright
	endpoint string
}

// StartDriver starts the playwright driver
func StartDriver(opts DriverOptions) (*Driver, error) {
	runOpts := &playwright.RunOptions{Verbose: opts.Verbose}
	if !opts.Verbose {
		runOpts.Stdout = io.Discard
		runOpts.Stderr = io.Discard
	}

	pw, err := playwright.Run(runOpts)
	if err != nil {
		return nil, fmt.Errorf("starting playwright: %w", err)
	}

	log.Debug().Str("endpoint", opts.Endpoint).Msg("playwright driver started")
	return &Driver{pw: pw, endpoint: opts.Endpoint}, nil
}

// Launcher returns a Launcher backed by this driver
func (d *Driver) Launcher() Launcher {
	return &playwrightLauncher{pw: d.pw, endpoint: d.endpoint}
}

// Stop shuts the driver down. Browsers should be closed first.
func (d *Driver) Stop() error {
	if d == nil || d.pw == nil {
		return nil
	}
	if err := d.pw.Stop(); err != nil {
		return fmt.Errorf("stopping playwright: %w", err)
	}
	d.pw = nil
	return nil
}

// Install downloads the driver and the browser for kind
func Install(kind Kind, verbose bool) error {
	opts := &playwright.RunOptions{
		Browsers: []string{string(kind)},
		Verbose:  verbose,
	}
	if err := playwright.Install(opts); err != nil {
		return fmt.Errorf("installing playwright %s: %w", kind, err)
	}
	return nil
}

type playwrightLauncher struct {
	pw       *playwright.Playwright
	endpoint string
}

func (l *playwrightLauncher) browserType(kind Kind) (playwright.BrowserType, error) {
	switch kind {
	case Chromium:
		return l.pw.Chromium, nil
	case Firefox:
		return l.pw.Firefox, nil
	case WebKit:
		return l.pw.WebKit, nil
	default:
		return nil, &UnsupportedBrowserError{Name: string(kind)}
	}
}

func (l *playwrightLauncher) Launch(kind Kind, opts LaunchOptions) (Browser, error) {
	bt, err := l.browserType(kind)
	if err != nil {
		return nil, err
	}

	var b playwright.Browser
	if l.endpoint != "" {
		b, err = bt.Connect(l.endpoint)
	} else {
		b, err = bt.Launch(playwright.BrowserTypeLaunchOptions{
			Headless: playwright.Bool(opts.Headless),
			Args:     opts.Args,
		})
	}
	if err != nil {
		return nil, err
	}
	return &pwBrowser{b: b}, nil
}

type pwBrowser struct {
	b playwright.Browser
}

func (b *pwBrowser) NewContext(opts ContextOptions) (Context, error) {
	ctxOpts := playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{
			Width:  opts.Viewport.Width,
			Height: opts.Viewport.Height,
		},
		IgnoreHttpsErrors: playwright.Bool(opts.IgnoreHTTPSErrors),
	}
	if opts.VideoDir != "" {
		ctxOpts.RecordVideo = &playwright.RecordVideo{
			Dir: opts.VideoDir,
			Size: &playwright.Size{
				Width:  opts.VideoSize.Width,
				Height: opts.VideoSize.Height,
			},
		}
	}

	c, err := b.b.NewContext(ctxOpts)
	if err != nil {
		return nil, err
	}
	if opts.Timeout > 0 {
		c.SetDefaultTimeout(millis(opts.Timeout))
	}
	if opts.NavigationTimeout > 0 {
		c.SetDefaultNavigationTimeout(millis(opts.NavigationTimeout))
	}
	return &pwContext{c: c}, nil
}

func (b *pwBrowser) Close() error { return b.b.Close() }

type pwContext struct {
	c playwright.BrowserContext
}

func (c *pwContext) NewPage() (Page, error) {
	p, err := c.c.NewPage()
	if err != nil {
		return nil, err
	}
	return &pwPage{p: p}, nil
}

func (c *pwContext) Close() error { return c.c.Close() }

type pwPage struct {
	p playwright.Page
}

func (p *pwPage) first(selector string) playwright.Locator {
	return p.p.Locator(selector).First()
}

func (p *pwPage) Goto(url string) error {
	_, err := p.p.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	})
	return err
}

func (p *pwPage) URL() string { return p.p.URL() }

func (p *pwPage) Title() (string, error) { return p.p.Title() }

func (p *pwPage) Reload() error {
	_, err := p.p.Reload()
	return err
}

func (p *pwPage) GoBack() error {
	_, err := p.p.GoBack()
	return err
}

func (p *pwPage) Close() error { return p.p.Close() }

func (p *pwPage) Count(selector string) (int, error) {
	return p.p.Locator(selector).Count()
}

func (p *pwPage) IsVisible(selector string) (bool, error) {
	return p.first(selector).IsVisible()
}

func (p *pwPage) IsEnabled(selector string) (bool, error) {
	return p.first(selector).IsEnabled()
}

func (p *pwPage) Click(selector string) error { return p.first(selector).Click() }

func (p *pwPage) Fill(selector, value string) error { return p.first(selector).Fill(value) }

func (p *pwPage) Clear(selector string) error { return p.first(selector).Clear() }

func (p *pwPage) TextContent(selector string) (string, error) {
	return p.first(selector).TextContent()
}

func (p *pwPage) InnerText(selector string) (string, error) {
	return p.first(selector).InnerText()
}

func (p *pwPage) SelectOption(selector, value string) error {
	_, err := p.first(selector).SelectOption(playwright.SelectOptionValues{
		Values: &[]string{value},
	})
	return err
}

func (p *pwPage) Press(key string) error { return p.p.Keyboard().Press(key) }

func (p *pwPage) WaitForLoadState(state LoadState, timeout time.Duration) error {
	opts := playwright.PageWaitForLoadStateOptions{}
	switch state {
	case LoadStateDOMContentLoaded:
		opts.State = playwright.LoadStateDomcontentloaded
	case LoadStateNetworkIdle:
		opts.State = playwright.LoadStateNetworkidle
	default:
		opts.State = playwright.LoadStateLoad
	}
	if timeout > 0 {
		opts.Timeout = playwright.Float(millis(timeout))
	}
	return p.p.WaitForLoadState(opts)
}

func (p *pwPage) Screenshot(path string, fullPage bool) error {
	_, err := p.p.Screenshot(playwright.PageScreenshotOptions{
		Path:     playwright.String(path),
		FullPage: playwright.Bool(fullPage),
	})
	return err
}

func (p *pwPage) VideoPath() (string, error) {
	v := p.p.Video()
	if v == nil {
		return "", nil
	}
	return v.Path()
}

func millis(d time.Duration) float64 {
	return float64(d.Milliseconds())
}

var (
	_ Launcher = (*playwrightLauncher)(nil)
	_ Browser  = (*pwBrowser)(nil)
	_ Context  = (*pwContext)(nil)
	_ Page     = (*pwPage)(nil)
)
