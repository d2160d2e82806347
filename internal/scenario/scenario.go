// Package scenario holds the state shared between the steps of one scenario.
package scenario

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/tomatool/basil/internal/browser"
)

// ErrNotInitialized is returned when a handle is read before it was set
var ErrNotInitialized = errors.New("not initialized")

// Context is the per-scenario store for the page, its browser context and
// scratch values passed between steps. It never outlives its scenario.
type Context struct {
	name string

	mu      sync.RWMutex
	page    browser.Page
	browser browser.Context
	data    map[string]any
}

// New creates an empty context for the named scenario
func New(name string) *Context {
	return &Context{name: name, data: make(map[string]any)}
}

// Name returns the scenario name
func (c *Context) Name() string { return c.name }

func (c *Context) SetPage(p browser.Page) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.page = p
}

// Page returns the scenario's page or ErrNotInitialized
func (c *Context) Page() (browser.Page, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.page == nil {
		return nil, fmt.Errorf("page: %w", ErrNotInitialized)
	}
	return c.page, nil
}

func (c *Context) SetBrowserContext(bc browser.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.browser = bc
}

// BrowserContext returns the scenario's browser context or ErrNotInitialized
func (c *Context) BrowserContext() (browser.Context, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.browser == nil {
		return nil, fmt.Errorf("browser context: %w", ErrNotInitialized)
	}
	return c.browser, nil
}

// Set stores a scratch value
func (c *Context) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
}

// Get returns a scratch value. ok is false for an absent key.
func (c *Context) Get(key string) (value any, ok bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	value, ok = c.data[key]
	return value, ok
}

// String returns the value under key when it is a string
func (c *Context) String(key string) (string, bool) {
	v, ok := c.Get(key)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func (c *Context) Has(key string) bool {
	_, ok := c.Get(key)
	return ok
}

func (c *Context) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
}

// Clear drops all scratch values but keeps the handles
func (c *Context) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = make(map[string]any)
}

// Keys returns the scratch keys in sorted order
func (c *Context) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	keys := make([]string, 0, len(c.data))
	for k := range c.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Reset drops the handles and all scratch values
func (c *Context) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.page = nil
	c.browser = nil
	c.data = make(map[string]any)
}

type ctxKey struct{}

// With returns a copy of ctx carrying sc
func With(ctx context.Context, sc *Context) context.Context {
	return context.WithValue(ctx, ctxKey{}, sc)
}

// From returns the scenario context carried by ctx or ErrNotInitialized
func From(ctx context.Context) (*Context, error) {
	sc, ok := ctx.Value(ctxKey{}).(*Context)
	if !ok || sc == nil {
		return nil, fmt.Errorf("scenario context: %w", ErrNotInitialized)
	}
	return sc, nil
}
