package browser

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// ErrContextOpen is returned by CreateContext while a context is still open;
// the caller has to CloseContext first.
var ErrContextOpen = errors.New("browser context already open")

// State is the lifecycle position of a Manager
type State int

const (
	Unstarted State = iota
	Launched
	ContextOpen
)

func (s State) String() string {
	switch s {
	case Unstarted:
		return "unstarted"
	case Launched:
		return "launched"
	case ContextOpen:
		return "context-open"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Viewport used for every context and its video
var DefaultViewport = Size{Width: 1920, Height: 1080}

// Options configure a Manager
type Options struct {
	Kind              Kind
	Headless          bool
	VideoDir          string // empty disables recording
	Timeout           time.Duration
	NavigationTimeout time.Duration
}

// Manager owns at most one browser and one context. It is safe for use from
// multiple goroutines but is meant to be owned by a single worker at a time.
type Manager struct {
	launcher Launcher
	opts     Options
	name     string

	mu      sync.Mutex
	state   State
	browser Browser
	context Context
	pages   []Page
}

// NewManager creates a manager that launches browsers through l
func NewManager(name string, l Launcher, opts Options) *Manager {
	return &Manager{
		launcher: l,
		opts:     opts,
		name:     name,
	}
}

// Name identifies the manager in logs
func (m *Manager) Name() string { return m.name }

// State returns the current lifecycle state
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Browser returns the running browser, or nil before Launch
func (m *Manager) Browser() Browser {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.browser
}

// Context returns the open context, or nil when none is open
func (m *Manager) Context() Context {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.context
}

// Launch starts the configured browser. It returns the running browser when
// one is already up.
func (m *Manager) Launch() (Browser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.launch()
}

func (m *Manager) launch() (Browser, error) {
	if m.state != Unstarted {
		return m.browser, nil
	}

	kind, err := ParseKind(string(m.opts.Kind))
	if err != nil {
		return nil, err
	}

	mode := "headed"
	if m.opts.Headless {
		mode = "headless"
	}
	log.Info().Str("manager", m.name).Str("browser", string(kind)).Str("mode", mode).Msg("launching browser")

	b, err := m.launcher.Launch(kind, LaunchOptions{
		Headless: m.opts.Headless,
		Args:     kind.launchArgs(),
	})
	if err != nil {
		return nil, fmt.Errorf("launching %s: %w", kind, err)
	}

	m.browser = b
	m.state = Launched
	log.Info().Str("manager", m.name).Str("browser", string(kind)).Msg("browser launched")
	return b, nil
}

// CreateContext opens a fresh isolated context, launching the browser first
// if needed.
func (m *Manager) CreateContext() (Context, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createContext()
}

func (m *Manager) createContext() (Context, error) {
	if m.state == ContextOpen {
		return nil, ErrContextOpen
	}

	b, err := m.launch()
	if err != nil {
		return nil, err
	}

	opts := ContextOptions{
		Viewport:          DefaultViewport,
		IgnoreHTTPSErrors: true,
		Timeout:           m.opts.Timeout,
		NavigationTimeout: m.opts.NavigationTimeout,
	}
	if m.opts.VideoDir != "" {
		opts.VideoDir = m.opts.VideoDir
		opts.VideoSize = DefaultViewport
	}

	c, err := b.NewContext(opts)
	if err != nil {
		return nil, fmt.Errorf("creating browser context: %w", err)
	}

	m.context = c
	m.state = ContextOpen
	log.Info().Str("manager", m.name).Msg("browser context created")
	return c, nil
}

// CreatePage opens a page in the current context, creating the context (and
// the browser) first if needed.
func (m *Manager) CreatePage() (Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != ContextOpen {
		if _, err := m.createContext(); err != nil {
			return nil, err
		}
	}

	p, err := m.context.NewPage()
	if err != nil {
		return nil, fmt.Errorf("creating page: %w", err)
	}

	m.pages = append(m.pages, p)
	log.Info().Str("manager", m.name).Msg("new page created")
	return p, nil
}

// CloseContext closes the open context. It is a no-op without one. The
// context is forgotten even when closing it fails.
func (m *Manager) CloseContext() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closeContext()
}

func (m *Manager) closeContext() error {
	if m.state != ContextOpen {
		return nil
	}

	err := m.context.Close()
	m.context = nil
	m.pages = nil
	m.state = Launched

	if err != nil {
		log.Warn().Err(err).Str("manager", m.name).Msg("browser context closed with error")
		return fmt.Errorf("closing browser context: %w", err)
	}
	log.Info().Str("manager", m.name).Msg("browser context closed")
	return nil
}

// CloseBrowser closes the running browser. It is a no-op before Launch.
// An open context dies with its browser and is forgotten too.
func (m *Manager) CloseBrowser() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closeBrowser()
}

func (m *Manager) closeBrowser() error {
	if m.state == Unstarted {
		return nil
	}
	if m.state == ContextOpen {
		log.Warn().Str("manager", m.name).Msg("closing browser with an open context")
		m.context = nil
		m.pages = nil
	}

	err := m.browser.Close()
	m.browser = nil
	m.state = Unstarted

	if err != nil {
		log.Warn().Err(err).Str("manager", m.name).Msg("browser closed with error")
		return fmt.Errorf("closing browser: %w", err)
	}
	log.Info().Str("manager", m.name).Msg("browser closed")
	return nil
}

// Cleanup closes the context and then the browser. Both steps always run.
func (m *Manager) Cleanup() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	err := errors.Join(m.closeContext(), m.closeBrowser())
	log.Info().Str("manager", m.name).Msg("browser cleanup completed")
	return err
}
