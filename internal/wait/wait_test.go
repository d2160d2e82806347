package wait

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tomatool/basil/internal/browser"
)

// fakePage answers queries from per-selector scripts. Each poll consumes one
// value; the last value repeats.
type fakePage struct {
	mu       sync.Mutex
	urls     []string
	counts   map[string][]int
	visible  map[string][]bool
	enabled  map[string]bool
	body     []string
	queryErr error

	loadStates   []browser.LoadState
	loadTimeouts []time.Duration
	loadErr      error
}

func next[T any](vals []T) (T, []T) {
	var zero T
	if len(vals) == 0 {
		return zero, vals
	}
	v := vals[0]
	if len(vals) > 1 {
		vals = vals[1:]
	}
	return v, vals
}

func (p *fakePage) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var u string
	u, p.urls = next(p.urls)
	return u
}

func (p *fakePage) Count(selector string) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.queryErr != nil {
		return 0, p.queryErr
	}
	var n int
	n, p.counts[selector] = next(p.counts[selector])
	return n, nil
}

func (p *fakePage) IsVisible(selector string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.queryErr != nil {
		return false, p.queryErr
	}
	var v bool
	v, p.visible[selector] = next(p.visible[selector])
	return v, nil
}

func (p *fakePage) IsEnabled(selector string) (bool, error) {
	return p.enabled[selector], nil
}

func (p *fakePage) InnerText(selector string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var s string
	s, p.body = next(p.body)
	return s, nil
}

func (p *fakePage) WaitForLoadState(state browser.LoadState, timeout time.Duration) error {
	p.loadStates = append(p.loadStates, state)
	p.loadTimeouts = append(p.loadTimeouts, timeout)
	return p.loadErr
}

func newFakePage() *fakePage {
	return &fakePage{
		counts:  map[string][]int{},
		visible: map[string][]bool{},
		enabled: map[string]bool{},
	}
}

func fastWaiter(p Page) *Waiter {
	return New(p, WithTimeout(200*time.Millisecond), WithInterval(time.Millisecond))
}

func TestVisible(t *testing.T) {
	t.Run("becomes visible", func(t *testing.T) {
		p := newFakePage()
		p.visible["#username"] = []bool{false, false, true}

		require.NoError(t, fastWaiter(p).Visible(context.Background(), "#username", 0))
	})

	t.Run("times out", func(t *testing.T) {
		p := newFakePage()
		p.visible["#username"] = []bool{false}

		err := fastWaiter(p).Visible(context.Background(), "#username", 20*time.Millisecond)

		require.ErrorIs(t, err, ErrTimeout)
		var te *TimeoutError
		require.ErrorAs(t, err, &te)
		assert.Equal(t, 20*time.Millisecond, te.Timeout)
		assert.Contains(t, te.Condition, "#username")
	})

	t.Run("query errors are not fatal", func(t *testing.T) {
		p := newFakePage()
		p.queryErr = errors.New("element detached")

		err := fastWaiter(p).Visible(context.Background(), "#username", 20*time.Millisecond)

		require.ErrorIs(t, err, ErrTimeout)
		assert.Contains(t, err.Error(), "element detached")
	})

	t.Run("parent cancellation is not a timeout", func(t *testing.T) {
		p := newFakePage()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := fastWaiter(p).Visible(ctx, "#username", time.Second)

		require.ErrorIs(t, err, context.Canceled)
		assert.NotErrorIs(t, err, ErrTimeout)
	})
}

func TestClickable(t *testing.T) {
	tests := []struct {
		name    string
		visible []bool
		enabled bool
		wantErr error
	}{
		{name: "visible and enabled", visible: []bool{false, true}, enabled: true},
		{name: "visible but disabled", visible: []bool{true}, enabled: false, wantErr: ErrNotClickable},
		{name: "never visible", visible: []bool{false}, enabled: true, wantErr: ErrTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newFakePage()
			p.visible["button"] = tt.visible
			p.enabled["button"] = tt.enabled

			err := fastWaiter(p).Clickable(context.Background(), "button", 20*time.Millisecond)

			if tt.wantErr == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tt.wantErr)
		})
	}

	t.Run("disabled is distinct from timeout", func(t *testing.T) {
		p := newFakePage()
		p.visible["button"] = []bool{true}

		err := fastWaiter(p).Clickable(context.Background(), "button", 0)

		assert.NotErrorIs(t, err, ErrTimeout)
		var nc *NotClickableError
		require.ErrorAs(t, err, &nc)
		assert.Equal(t, "button", nc.Selector)
	})
}

func TestURLContains(t *testing.T) {
	tests := []struct {
		name    string
		urls    []string
		text    string
		wantErr bool
	}{
		{
			name: "redirect to dashboard",
			urls: []string{"https://qa.example.com/login", "https://qa.example.com/dashboard"},
			text: "dashboard",
		},
		{
			name: "path with slash",
			urls: []string{"https://qa.example.com/app/dashboard?tab=1"},
			text: "/dashboard",
		},
		{
			name: "glob metacharacters are literal",
			urls: []string{"https://qa.example.com/search?q=a*b"},
			text: "a*b",
		},
		{
			name:    "never matches",
			urls:    []string{"https://qa.example.com/login"},
			text:    "dashboard",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newFakePage()
			p.urls = tt.urls

			err := fastWaiter(p).URLContains(context.Background(), tt.text, 20*time.Millisecond)

			if tt.wantErr {
				require.ErrorIs(t, err, ErrTimeout)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestElementCount(t *testing.T) {
	tests := []struct {
		name    string
		counts  []int
		want    int
		wantErr bool
	}{
		{name: "reaches exact count", counts: []int{0, 1, 2}, want: 2},
		{name: "zero elements", counts: []int{0}, want: 0},
		{name: "more than expected never resolves", counts: []int{3}, want: 2, wantErr: true},
		{name: "fewer than expected never resolves", counts: []int{1}, want: 2, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newFakePage()
			p.counts[".row"] = tt.counts

			err := fastWaiter(p).ElementCount(context.Background(), ".row", tt.want, 20*time.Millisecond)

			if tt.wantErr {
				require.ErrorIs(t, err, ErrTimeout)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestTextPresent(t *testing.T) {
	p := newFakePage()
	p.body = []string{"Loading", "Welcome, testuser!"}

	require.NoError(t, fastWaiter(p).TextPresent(context.Background(), "Welcome", 0))

	p.body = []string{"Invalid credentials"}
	err := fastWaiter(p).TextPresent(context.Background(), "Welcome", 20*time.Millisecond)
	require.ErrorIs(t, err, ErrTimeout)
}

func TestDisappear(t *testing.T) {
	p := newFakePage()
	p.visible[".spinner"] = []bool{true, true, false}

	require.NoError(t, fastWaiter(p).Disappear(context.Background(), ".spinner", 0))

	p.visible[".spinner"] = []bool{true}
	err := fastWaiter(p).Disappear(context.Background(), ".spinner", 20*time.Millisecond)
	require.ErrorIs(t, err, ErrTimeout)
}

func TestNetworkIdle(t *testing.T) {
	t.Run("default timeout", func(t *testing.T) {
		p := newFakePage()

		require.NoError(t, New(p).NetworkIdle(context.Background(), 0))
		assert.Equal(t, []browser.LoadState{browser.LoadStateNetworkIdle}, p.loadStates)
		assert.Equal(t, []time.Duration{DefaultNetworkIdleTimeout}, p.loadTimeouts)
	})

	t.Run("driver error becomes timeout", func(t *testing.T) {
		p := newFakePage()
		p.loadErr = errors.New("Timeout 5000ms exceeded")

		err := New(p).NetworkIdle(context.Background(), 5*time.Second)

		require.ErrorIs(t, err, ErrTimeout)
		assert.Contains(t, err.Error(), "networkidle")
	})
}

func TestPageLoad(t *testing.T) {
	p := newFakePage()

	require.NoError(t, New(p, WithPageLoadTimeout(time.Minute)).PageLoad(context.Background()))
	assert.Equal(t, []browser.LoadState{browser.LoadStateDOMContentLoaded, browser.LoadStateLoad}, p.loadStates)
	assert.Equal(t, []time.Duration{time.Minute, time.Minute}, p.loadTimeouts)
}
