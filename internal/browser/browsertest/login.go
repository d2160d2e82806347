package browsertest

import (
	"fmt"
	"net/url"
	"sync"
)

// LoginApp simulates the demo login application on fake pages
type LoginApp struct {
	Username string
	Password string

	mu       sync.Mutex
	attempts int
}

// NewLoginApp accepts username/password as the only valid login
func NewLoginApp(username, password string) *LoginApp {
	return &LoginApp{Username: username, Password: password}
}

// Attempts returns the number of submitted logins
func (a *LoginApp) Attempts() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.attempts
}

func (a *LoginApp) Navigate(p *Page, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("parsing url %q: %w", raw, err)
	}

	switch u.Path {
	case "/forgot-password":
		p.Render("Forgot Password", map[string]*Element{
			"h1":     {Visible: true, Text: "Reset your password"},
			"#email": {Visible: true},
		})
	case "/dashboard":
		// Direct visits carry no session and land back on the form
		p.SetURL(resolve(u, "/login"))
		a.renderLogin(p)
	default:
		a.renderLogin(p)
	}
	return nil
}

func (a *LoginApp) renderLogin(p *Page) {
	p.Render("Login", map[string]*Element{
		"h1.login-title":             {Visible: true, Text: "Sign in"},
		"#username":                  {Visible: true},
		"#password":                  {Visible: true},
		`button[type="submit"]`:      {Visible: true, Text: "Login"},
		`a[href="/forgot-password"]`: {Visible: true, Text: "Forgot password?"},
	})
}

func (a *LoginApp) Click(p *Page, selector string) error {
	current, err := url.Parse(p.URL())
	if err != nil {
		return err
	}

	switch selector {
	case `button[type="submit"]`:
		a.mu.Lock()
		a.attempts++
		a.mu.Unlock()

		user := p.Value("#username")
		if user == a.Username && p.Value("#password") == a.Password {
			p.SetURL(resolve(current, "/dashboard"))
			p.Render("Dashboard", map[string]*Element{
				".welcome-message": {Visible: true, Text: fmt.Sprintf("Welcome, %s!", user)},
				"#logout":          {Visible: true, Text: "Logout"},
			})
			return nil
		}
		p.Show(".error-message", &Element{Visible: true, Text: "Invalid username or password"})
	case `a[href="/forgot-password"]`:
		return p.Goto(resolve(current, "/forgot-password"))
	}
	return nil
}

func resolve(base *url.URL, path string) string {
	ref := &url.URL{Path: path}
	return base.ResolveReference(ref).String()
}

var _ App = (*LoginApp)(nil)
