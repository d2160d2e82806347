package browser_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tomatool/basil/internal/browser"
	"github.com/tomatool/basil/internal/browser/browsertest"
)

func newManager(l *browsertest.Launcher, kind browser.Kind) *browser.Manager {
	return browser.NewManager("test", l, browser.Options{Kind: kind, Headless: true})
}

func TestParseKind(t *testing.T) {
	tests := []struct {
		name    string
		want    browser.Kind
		wantErr bool
	}{
		{name: "chromium", want: browser.Chromium},
		{name: "chrome", want: browser.Chromium},
		{name: " Chromium ", want: browser.Chromium},
		{name: "firefox", want: browser.Firefox},
		{name: "webkit", want: browser.WebKit},
		{name: "safari", want: browser.WebKit},
		{name: "opera", wantErr: true},
		{name: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := browser.ParseKind(tt.name)
			if tt.wantErr {
				require.ErrorIs(t, err, browser.ErrUnsupportedBrowser)
				var ube *browser.UnsupportedBrowserError
				require.ErrorAs(t, err, &ube)
				assert.Equal(t, tt.name, ube.Name)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLaunch(t *testing.T) {
	t.Run("idempotent", func(t *testing.T) {
		l := &browsertest.Launcher{}
		m := newManager(l, browser.Chromium)

		first, err := m.Launch()
		require.NoError(t, err)
		second, err := m.Launch()
		require.NoError(t, err)

		assert.Same(t, first, second)
		assert.Equal(t, 1, l.Launches())
		assert.Equal(t, browser.Launched, m.State())
	})

	t.Run("engine arguments", func(t *testing.T) {
		tests := []struct {
			kind browser.Kind
			args []string
		}{
			{browser.Chromium, []string{"--start-maximized", "--disable-blink-features=AutomationControlled"}},
			{browser.Firefox, []string{"--start-maximized"}},
			{browser.WebKit, nil},
		}
		for _, tt := range tests {
			l := &browsertest.Launcher{}
			_, err := newManager(l, tt.kind).Launch()
			require.NoError(t, err)

			kind, opts := l.LastLaunch()
			assert.Equal(t, tt.kind, kind)
			assert.Equal(t, tt.args, opts.Args)
			assert.True(t, opts.Headless)
		}
	})

	t.Run("alias resolves", func(t *testing.T) {
		l := &browsertest.Launcher{}
		_, err := newManager(l, "safari").Launch()
		require.NoError(t, err)

		kind, _ := l.LastLaunch()
		assert.Equal(t, browser.WebKit, kind)
	})

	t.Run("unsupported kind", func(t *testing.T) {
		l := &browsertest.Launcher{}
		m := newManager(l, "netscape")

		_, err := m.Launch()

		require.ErrorIs(t, err, browser.ErrUnsupportedBrowser)
		assert.Equal(t, 0, l.Launches())
		assert.Equal(t, browser.Unstarted, m.State())
	})

	t.Run("driver error", func(t *testing.T) {
		l := &browsertest.Launcher{LaunchErr: errors.New("executable doesn't exist")}
		m := newManager(l, browser.Chromium)

		_, err := m.Launch()

		require.Error(t, err)
		assert.Contains(t, err.Error(), "launching chromium")
		assert.Equal(t, browser.Unstarted, m.State())
	})
}

func TestCreateContext(t *testing.T) {
	t.Run("launches lazily with fixed options", func(t *testing.T) {
		l := &browsertest.Launcher{}
		m := browser.NewManager("test", l, browser.Options{
			Kind:              browser.Chromium,
			VideoDir:          t.TempDir(),
			Timeout:           30 * time.Second,
			NavigationTimeout: time.Minute,
		})

		c, err := m.CreateContext()
		require.NoError(t, err)

		assert.Equal(t, 1, l.Launches())
		assert.Equal(t, browser.ContextOpen, m.State())
		assert.Same(t, c, m.Context())

		opts := c.(*browsertest.Context).Options
		assert.Equal(t, browser.Size{Width: 1920, Height: 1080}, opts.Viewport)
		assert.Equal(t, browser.Size{Width: 1920, Height: 1080}, opts.VideoSize)
		assert.True(t, opts.IgnoreHTTPSErrors)
		assert.NotEmpty(t, opts.VideoDir)
		assert.Equal(t, 30*time.Second, opts.Timeout)
		assert.Equal(t, time.Minute, opts.NavigationTimeout)
	})

	t.Run("no video dir disables recording", func(t *testing.T) {
		m := newManager(&browsertest.Launcher{}, browser.Chromium)

		c, err := m.CreateContext()
		require.NoError(t, err)
		assert.Empty(t, c.(*browsertest.Context).Options.VideoDir)
	})

	t.Run("second context requires close", func(t *testing.T) {
		m := newManager(&browsertest.Launcher{}, browser.Chromium)

		_, err := m.CreateContext()
		require.NoError(t, err)
		_, err = m.CreateContext()
		require.ErrorIs(t, err, browser.ErrContextOpen)

		require.NoError(t, m.CloseContext())
		_, err = m.CreateContext()
		require.NoError(t, err)
	})

	t.Run("context error keeps browser", func(t *testing.T) {
		l := &browsertest.Launcher{NewContextErr: errors.New("boom")}
		m := newManager(l, browser.Chromium)

		_, err := m.CreateContext()

		require.Error(t, err)
		assert.Equal(t, browser.Launched, m.State())
		assert.Nil(t, m.Context())
	})
}

func TestCreatePage(t *testing.T) {
	l := &browsertest.Launcher{}
	m := newManager(l, browser.Chromium)

	for i := 0; i < 3; i++ {
		_, err := m.CreatePage()
		require.NoError(t, err)
	}

	assert.Equal(t, 1, l.Launches(), "one browser for all pages")
	require.Len(t, l.Browsers(), 1)
	assert.Len(t, l.Browsers()[0].Contexts(), 1, "one context for all pages")
	assert.Len(t, l.Browsers()[0].Contexts()[0].Pages(), 3)
}

func TestCloseContext(t *testing.T) {
	t.Run("no-op without context", func(t *testing.T) {
		m := newManager(&browsertest.Launcher{}, browser.Chromium)

		require.NoError(t, m.CloseContext())
		require.NoError(t, m.CloseContext())
		assert.Equal(t, browser.Unstarted, m.State())
	})

	t.Run("repeated close", func(t *testing.T) {
		rec := &browsertest.Recorder{}
		m := newManager(&browsertest.Launcher{Recorder: rec}, browser.Chromium)
		p, err := m.CreatePage()
		require.NoError(t, err)

		require.NoError(t, m.CloseContext())
		require.NoError(t, m.CloseContext())

		assert.Equal(t, 1, rec.Count("context.close"))
		assert.Equal(t, browser.Launched, m.State())
		assert.True(t, p.(*browsertest.Page).Closed(), "pages die with their context")

		_, err = p.Count("#username")
		assert.ErrorIs(t, err, browsertest.ErrTargetClosed)
	})

	t.Run("reference cleared on error", func(t *testing.T) {
		l := &browsertest.Launcher{ContextCloseErr: errors.New("already closed")}
		m := newManager(l, browser.Chromium)
		_, err := m.CreateContext()
		require.NoError(t, err)

		err = m.CloseContext()

		require.Error(t, err)
		assert.Nil(t, m.Context())
		assert.Equal(t, browser.Launched, m.State())
	})
}

func TestCloseBrowser(t *testing.T) {
	t.Run("no-op before launch", func(t *testing.T) {
		rec := &browsertest.Recorder{}
		m := newManager(&browsertest.Launcher{Recorder: rec}, browser.Chromium)

		require.NoError(t, m.CloseBrowser())
		assert.Empty(t, rec.Events())
	})

	t.Run("forgets open context", func(t *testing.T) {
		m := newManager(&browsertest.Launcher{}, browser.Chromium)
		_, err := m.CreatePage()
		require.NoError(t, err)

		require.NoError(t, m.CloseBrowser())

		assert.Equal(t, browser.Unstarted, m.State())
		assert.Nil(t, m.Context())
		assert.Nil(t, m.Browser())
	})

	t.Run("relaunch after close", func(t *testing.T) {
		l := &browsertest.Launcher{}
		m := newManager(l, browser.Chromium)
		_, err := m.Launch()
		require.NoError(t, err)
		require.NoError(t, m.CloseBrowser())

		_, err = m.Launch()
		require.NoError(t, err)
		assert.Equal(t, 2, l.Launches())
	})
}

func TestCleanup(t *testing.T) {
	t.Run("context before browser", func(t *testing.T) {
		rec := &browsertest.Recorder{}
		m := newManager(&browsertest.Launcher{Recorder: rec}, browser.Chromium)
		_, err := m.CreatePage()
		require.NoError(t, err)

		require.NoError(t, m.Cleanup())

		assert.Equal(t, []string{
			"browser.launch", "context.new", "page.new",
			"context.close", "browser.close",
		}, rec.Events())
		assert.Equal(t, browser.Unstarted, m.State())
	})

	t.Run("browser closed even when context close fails", func(t *testing.T) {
		rec := &browsertest.Recorder{}
		l := &browsertest.Launcher{Recorder: rec, ContextCloseErr: errors.New("context crashed")}
		m := newManager(l, browser.Chromium)
		_, err := m.CreatePage()
		require.NoError(t, err)

		err = m.Cleanup()

		require.Error(t, err)
		assert.Contains(t, err.Error(), "context crashed")
		events := rec.Events()
		assert.Equal(t, []string{"context.close", "browser.close"}, events[len(events)-2:])
		assert.True(t, l.Browsers()[0].Closed())
		assert.Equal(t, browser.Unstarted, m.State())
	})

	t.Run("both errors reported", func(t *testing.T) {
		l := &browsertest.Launcher{
			ContextCloseErr: errors.New("context crashed"),
			BrowserCloseErr: errors.New("browser crashed"),
		}
		m := newManager(l, browser.Chromium)
		_, err := m.CreatePage()
		require.NoError(t, err)

		err = m.Cleanup()

		require.Error(t, err)
		assert.Contains(t, err.Error(), "context crashed")
		assert.Contains(t, err.Error(), "browser crashed")
	})

	t.Run("idle manager", func(t *testing.T) {
		require.NoError(t, newManager(&browsertest.Launcher{}, browser.Chromium).Cleanup())
	})
}

func TestPool(t *testing.T) {
	t.Run("one manager per worker", func(t *testing.T) {
		l := &browsertest.Launcher{}
		pool := browser.NewPool(2, l, browser.Options{Kind: browser.Chromium})
		assert.Equal(t, 2, pool.Size())

		ctx := context.Background()
		a, err := pool.Acquire(ctx)
		require.NoError(t, err)
		b, err := pool.Acquire(ctx)
		require.NoError(t, err)
		assert.NotSame(t, a, b)
		assert.NotEqual(t, a.Name(), b.Name())

		_, err = a.CreatePage()
		require.NoError(t, err)
		_, err = b.CreatePage()
		require.NoError(t, err)
		assert.Equal(t, 2, l.Launches(), "workers never share a browser")

		pool.Release(a)
		pool.Release(b)
		require.NoError(t, pool.Cleanup())
		for _, br := range l.Browsers() {
			assert.True(t, br.Closed())
		}
	})

	t.Run("acquire blocks until release", func(t *testing.T) {
		pool := browser.NewPool(1, &browsertest.Launcher{}, browser.Options{Kind: browser.Chromium})

		m, err := pool.Acquire(context.Background())
		require.NoError(t, err)

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		_, err = pool.Acquire(ctx)
		require.ErrorIs(t, err, context.DeadlineExceeded)

		pool.Release(m)
		again, err := pool.Acquire(context.Background())
		require.NoError(t, err)
		assert.Same(t, m, again)
	})

	t.Run("minimum size", func(t *testing.T) {
		assert.Equal(t, 1, browser.NewPool(0, &browsertest.Launcher{}, browser.Options{}).Size())
	})

	t.Run("cleanup names failing worker", func(t *testing.T) {
		l := &browsertest.Launcher{BrowserCloseErr: errors.New("crashed")}
		pool := browser.NewPool(1, l, browser.Options{Kind: browser.Chromium})
		m, err := pool.Acquire(context.Background())
		require.NoError(t, err)
		_, err = m.Launch()
		require.NoError(t, err)

		err = pool.Cleanup()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "worker-1")
	})
}
