// Package browsertest provides in-memory implementations of the browser
// interfaces. Pages render their DOM through an App, so suites can run
// against a simulated application without a real browser.
package browsertest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/tomatool/basil/internal/browser"
)

// ErrTargetClosed is returned by pages whose context (or themselves) closed
var ErrTargetClosed = errors.New("target page, context or browser has been closed")

// Recorder keeps an ordered log of lifecycle calls across fakes
type Recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *Recorder) Record(event string) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *Recorder) Events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

// Count returns how many times event was recorded
func (r *Recorder) Count(event string) int {
	n := 0
	for _, e := range r.Events() {
		if e == event {
			n++
		}
	}
	return n
}

// Launcher is a fake browser.Launcher
type Launcher struct {
	// App renders every page; nil gives blank pages
	App      App
	Recorder *Recorder

	LaunchErr       error
	NewContextErr   error
	ContextCloseErr error
	BrowserCloseErr error

	mu       sync.Mutex
	browsers []*Browser
	kinds    []browser.Kind
	opts     []browser.LaunchOptions
}

func (l *Launcher) Launch(kind browser.Kind, opts browser.LaunchOptions) (browser.Browser, error) {
	l.Recorder.Record("browser.launch")
	if l.LaunchErr != nil {
		return nil, l.LaunchErr
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	b := &Browser{launcher: l}
	l.browsers = append(l.browsers, b)
	l.kinds = append(l.kinds, kind)
	l.opts = append(l.opts, opts)
	return b, nil
}

// Launches returns the number of browsers launched
func (l *Launcher) Launches() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.browsers)
}

// Browsers returns every launched browser
func (l *Launcher) Browsers() []*Browser {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*Browser(nil), l.browsers...)
}

// LastLaunch returns the kind and options of the most recent launch
func (l *Launcher) LastLaunch() (browser.Kind, browser.LaunchOptions) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.kinds) == 0 {
		return "", browser.LaunchOptions{}
	}
	return l.kinds[len(l.kinds)-1], l.opts[len(l.opts)-1]
}

// Browser is a fake browser.Browser
type Browser struct {
	launcher *Launcher

	mu       sync.Mutex
	contexts []*Context
	closed   bool
}

func (b *Browser) NewContext(opts browser.ContextOptions) (browser.Context, error) {
	b.launcher.Recorder.Record("context.new")
	if b.launcher.NewContextErr != nil {
		return nil, b.launcher.NewContextErr
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrTargetClosed
	}
	c := &Context{browser: b, Options: opts}
	b.contexts = append(b.contexts, c)
	return c, nil
}

func (b *Browser) Close() error {
	b.launcher.Recorder.Record("browser.close")
	b.mu.Lock()
	b.closed = true
	contexts := append([]*Context(nil), b.contexts...)
	b.mu.Unlock()

	for _, c := range contexts {
		c.markClosed()
	}
	return b.launcher.BrowserCloseErr
}

// Closed reports whether Close was called
func (b *Browser) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// Contexts returns every context opened in this browser
func (b *Browser) Contexts() []*Context {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*Context(nil), b.contexts...)
}

// Context is a fake browser.Context. Closing it writes one video file per
// page into Options.VideoDir, like playwright does.
type Context struct {
	browser *Browser
	Options browser.ContextOptions

	mu     sync.Mutex
	pages  []*Page
	closed bool
}

func (c *Context) NewPage() (browser.Page, error) {
	c.browser.launcher.Recorder.Record("page.new")

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrTargetClosed
	}

	p := NewPage(c.browser.launcher.App)
	if c.Options.VideoDir != "" {
		p.video = filepath.Join(c.Options.VideoDir, fmt.Sprintf("page-%d.webm", time.Now().UnixNano()))
	}
	c.pages = append(c.pages, p)
	return p, nil
}

func (c *Context) Close() error {
	c.browser.launcher.Recorder.Record("context.close")
	for _, p := range c.markClosed() {
		if p.video == "" {
			continue
		}
		if err := os.MkdirAll(filepath.Dir(p.video), 0755); err == nil {
			_ = os.WriteFile(p.video, []byte("webm"), 0644)
		}
	}
	return c.browser.launcher.ContextCloseErr
}

func (c *Context) markClosed() []*Page {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	for _, p := range c.pages {
		p.markClosed()
	}
	return append([]*Page(nil), c.pages...)
}

// Closed reports whether the context was closed
func (c *Context) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Pages returns the pages opened in this context
func (c *Context) Pages() []*Page {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*Page(nil), c.pages...)
}

// Element is one node of a fake page
type Element struct {
	Visible  bool
	Disabled bool
	Text     string
	Value    string
	Options  []string
}

// App renders fake pages
type App interface {
	// Navigate renders the document for url into p
	Navigate(p *Page, url string) error
	// Click reacts to a click on selector
	Click(p *Page, selector string) error
}

// Page is a fake browser.Page
type Page struct {
	app App

	mu       sync.Mutex
	url      string
	title    string
	elements map[string]*Element
	history  []string
	closed   bool
	video    string

	screenshots []string
	pressed     []string
	loadStates  []browser.LoadState

	// ScreenshotErr makes every Screenshot call fail
	ScreenshotErr error
}

// NewPage creates a blank page rendered by app
func NewPage(app App) *Page {
	return &Page{app: app, url: "about:blank", elements: map[string]*Element{}}
}

func (p *Page) markClosed() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
}

func (p *Page) check() error {
	if p.closed {
		return ErrTargetClosed
	}
	return nil
}

// Render replaces the document with elements
func (p *Page) Render(title string, elements map[string]*Element) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.title = title
	p.elements = elements
}

// Show adds or replaces a single element
func (p *Page) Show(selector string, el *Element) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.elements[selector] = el
}

// SetURL changes the address without rendering, as a client side redirect does
func (p *Page) SetURL(u string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.history = append(p.history, p.url)
	p.url = u
}

// Value returns the current value of an input
func (p *Page) Value(selector string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if el, ok := p.elements[selector]; ok {
		return el.Value
	}
	return ""
}

func (p *Page) element(selector string) (*Element, error) {
	if err := p.check(); err != nil {
		return nil, err
	}
	el, ok := p.elements[selector]
	if !ok {
		return nil, fmt.Errorf("no element matches selector %q", selector)
	}
	return el, nil
}

func (p *Page) Goto(u string) error {
	p.mu.Lock()
	if err := p.check(); err != nil {
		p.mu.Unlock()
		return err
	}
	if p.url != "about:blank" {
		p.history = append(p.history, p.url)
	}
	p.url = u
	p.elements = map[string]*Element{}
	p.mu.Unlock()

	if p.app == nil {
		return nil
	}
	return p.app.Navigate(p, u)
}

func (p *Page) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url
}

func (p *Page) Title() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.check(); err != nil {
		return "", err
	}
	return p.title, nil
}

func (p *Page) Reload() error {
	u := p.URL()
	p.mu.Lock()
	if err := p.check(); err != nil {
		p.mu.Unlock()
		return err
	}
	p.elements = map[string]*Element{}
	p.mu.Unlock()

	if p.app == nil {
		return nil
	}
	return p.app.Navigate(p, u)
}

func (p *Page) GoBack() error {
	p.mu.Lock()
	if err := p.check(); err != nil {
		p.mu.Unlock()
		return err
	}
	if len(p.history) == 0 {
		p.mu.Unlock()
		return nil
	}
	prev := p.history[len(p.history)-1]
	p.history = p.history[:len(p.history)-1]
	p.url = prev
	p.elements = map[string]*Element{}
	p.mu.Unlock()

	if p.app == nil {
		return nil
	}
	return p.app.Navigate(p, prev)
}

func (p *Page) Close() error {
	p.markClosed()
	return nil
}

func (p *Page) Count(selector string) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.check(); err != nil {
		return 0, err
	}
	if _, ok := p.elements[selector]; ok {
		return 1, nil
	}
	return 0, nil
}

func (p *Page) IsVisible(selector string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.check(); err != nil {
		return false, err
	}
	el, ok := p.elements[selector]
	return ok && el.Visible, nil
}

func (p *Page) IsEnabled(selector string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	el, err := p.element(selector)
	if err != nil {
		return false, err
	}
	return !el.Disabled, nil
}

func (p *Page) Click(selector string) error {
	p.mu.Lock()
	el, err := p.element(selector)
	if err == nil && (!el.Visible || el.Disabled) {
		err = fmt.Errorf("element %q is not actionable", selector)
	}
	p.mu.Unlock()
	if err != nil {
		return err
	}

	if p.app == nil {
		return nil
	}
	return p.app.Click(p, selector)
}

func (p *Page) Fill(selector, value string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	el, err := p.element(selector)
	if err != nil {
		return err
	}
	if el.Disabled {
		return fmt.Errorf("element %q is disabled", selector)
	}
	el.Value = value
	return nil
}

func (p *Page) Clear(selector string) error { return p.Fill(selector, "") }

func (p *Page) TextContent(selector string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	el, err := p.element(selector)
	if err != nil {
		return "", err
	}
	return el.Text, nil
}

// InnerText returns the text of visible elements; "body" joins every visible
// element in selector order.
func (p *Page) InnerText(selector string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.check(); err != nil {
		return "", err
	}

	if selector == "body" {
		keys := make([]string, 0, len(p.elements))
		for k := range p.elements {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		var parts []string
		for _, k := range keys {
			if el := p.elements[k]; el.Visible && el.Text != "" {
				parts = append(parts, el.Text)
			}
		}
		return strings.Join(parts, "\n"), nil
	}

	el, err := p.element(selector)
	if err != nil {
		return "", err
	}
	if !el.Visible {
		return "", nil
	}
	return el.Text, nil
}

func (p *Page) SelectOption(selector, value string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	el, err := p.element(selector)
	if err != nil {
		return err
	}
	for _, o := range el.Options {
		if o == value {
			el.Value = value
			return nil
		}
	}
	return fmt.Errorf("option %q not found in %q", value, selector)
}

func (p *Page) Press(key string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.check(); err != nil {
		return err
	}
	p.pressed = append(p.pressed, key)
	return nil
}

func (p *Page) WaitForLoadState(state browser.LoadState, timeout time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.check(); err != nil {
		return err
	}
	p.loadStates = append(p.loadStates, state)
	return nil
}

// Screenshot writes a placeholder file at path
func (p *Page) Screenshot(path string, fullPage bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ScreenshotErr != nil {
		return p.ScreenshotErr
	}
	if err := p.check(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte("png"), 0644); err != nil {
		return err
	}
	p.screenshots = append(p.screenshots, path)
	return nil
}

func (p *Page) VideoPath() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.video, nil
}

// Closed reports whether the page or its context was closed
func (p *Page) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Screenshots returns the paths captured so far
func (p *Page) Screenshots() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.screenshots...)
}

// Pressed returns the keys pressed so far
func (p *Page) Pressed() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.pressed...)
}

// LoadStates returns the load states waited for so far
func (p *Page) LoadStates() []browser.LoadState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]browser.LoadState(nil), p.loadStates...)
}

var (
	_ browser.Launcher = (*Launcher)(nil)
	_ browser.Browser  = (*Browser)(nil)
	_ browser.Context  = (*Context)(nil)
	_ browser.Page     = (*Page)(nil)
)
