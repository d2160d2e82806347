// Package steps binds the Gherkin step language to page objects.
package steps

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tomatool/basil/internal/browser"
	"github.com/tomatool/basil/internal/config"
	"github.com/tomatool/basil/internal/pages"
	"github.com/tomatool/basil/internal/scenario"
	"github.com/tomatool/basil/internal/wait"
)

// loginPageKey stores the scenario's *pages.LoginPage in its scratch data.
// The NUL prefix keeps it apart from names a feature file can remember.
const loginPageKey = "\x00login_page"

// Options configure the login steps
type Options struct {
	BaseURL     string
	Credentials config.Credentials
	Pages       pages.Options
	// RetryAttempts bounds the post-login checks; zero uses wait.DefaultAttempts
	RetryAttempts int
	RetryDelay    time.Duration
}

// Login implements the login flow steps
type Login struct {
	opts Options
}

// NewLogin creates the login steps
func NewLogin(opts Options) *Login {
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 500 * time.Millisecond
	}
	return &Login{opts: opts}
}

func (l *Login) Steps() StepCategory {
	return StepCategory{
		Name:        "Login",
		Description: "Sign in to the application under test through its login form",
		Steps: []StepDef{
			// Navigation
			{
				Group:       "Navigation",
				Pattern:     `^I navigate to the application$`,
				Description: "Opens the configured base URL and waits for the page to load",
				Example:     "Given I navigate to the application",
				Handler:     l.navigate,
			},

			// Actions
			{
				Group:       "Actions",
				Pattern:     `^I enter username "([^"]*)"$`,
				Description: "Types into the username field",
				Example:     `When I enter username "testuser"`,
				Handler:     l.enterUsername,
			},
			{
				Group:       "Actions",
				Pattern:     `^I enter password "([^"]*)"$`,
				Description: "Types into the password field",
				Example:     `And I enter password "testpass123"`,
				Handler:     l.enterPassword,
			},
			{
				Group:       "Actions",
				Pattern:     `^I click the login button$`,
				Description: "Submits the login form once the button is clickable",
				Example:     "And I click the login button",
				Handler:     l.clickLogin,
			},
			{
				Group:       "Actions",
				Pattern:     `^I login with the configured credentials$`,
				Description: "Logs in with TEST_USERNAME and TEST_PASSWORD",
				Example:     "When I login with the configured credentials",
				Handler:     l.loginConfigured,
			},
			{
				Group:       "Actions",
				Pattern:     `^I click the forgot password link$`,
				Description: "Follows the forgot password link",
				Example:     "When I click the forgot password link",
				Handler:     l.forgotPassword,
			},
			{
				Group:       "Actions",
				Pattern:     `^I remember the current URL as "([^"]*)"$`,
				Description: "Stores the current URL in scenario data under a name",
				Example:     `And I remember the current URL as "dashboard"`,
				Handler:     l.rememberURL,
			},

			// Assertions
			{
				Group:       "Assertions",
				Pattern:     `^I should see the login page$`,
				Description: "Asserts the login title and both inputs are visible",
				Example:     "Then I should see the login page",
				Handler:     l.loginPageDisplayed,
			},
			{
				Group:       "Assertions",
				Pattern:     `^I should be logged in successfully$`,
				Description: "Asserts the browser left the login page and the welcome message is shown",
				Example:     "Then I should be logged in successfully",
				Handler:     l.loggedIn,
			},
			{
				Group:       "Assertions",
				Pattern:     `^I should see the dashboard$`,
				Description: "Waits for the dashboard, logs its title and captures a screenshot",
				Example:     "And I should see the dashboard",
				Handler:     l.dashboard,
			},
			{
				Group:       "Assertions",
				Pattern:     `^I should see a login error$`,
				Description: "Asserts the login error message is visible",
				Example:     "Then I should see a login error",
				Handler:     l.loginError,
			},
			{
				Group:       "Assertions",
				Pattern:     `^I should see the login error "([^"]*)"$`,
				Description: "Asserts the login error message contains the text",
				Example:     `Then I should see the login error "Invalid username or password"`,
				Handler:     l.loginErrorText,
			},
			{
				Group:       "Assertions",
				Pattern:     `^I should not see the welcome message$`,
				Description: "Asserts the welcome message is absent",
				Example:     "And I should not see the welcome message",
				Handler:     l.noWelcome,
			},
			{
				Group:       "Assertions",
				Pattern:     `^I should see the text "([^"]*)"$`,
				Description: "Waits for the text to appear anywhere on the page",
				Example:     `Then I should see the text "Welcome"`,
				Handler:     l.textPresent,
			},
			{
				Group:       "Assertions",
				Pattern:     `^the current URL should contain "([^"]*)"$`,
				Description: "Waits until the URL contains the text",
				Example:     `Then the current URL should contain "/dashboard"`,
				Handler:     l.urlContains,
			},
			{
				Group:       "Assertions",
				Pattern:     `^I should see (\d+) elements? matching "([^"]*)"$`,
				Description: "Waits until exactly that many elements match the selector",
				Example:     `Then I should see 1 element matching ".welcome-message"`,
				Handler:     l.elementCount,
			},
			{
				Group:       "Assertions",
				Pattern:     `^the current URL should be the one remembered as "([^"]*)"$`,
				Description: "Compares the current URL with one stored earlier in the scenario",
				Example:     `Then the current URL should be the one remembered as "dashboard"`,
				Handler:     l.rememberedURL,
			},
		},
	}
}

// page returns the scenario's login page, creating it on first use
func (l *Login) page(ctx context.Context) (*pages.LoginPage, error) {
	sc, err := scenario.From(ctx)
	if err != nil {
		return nil, err
	}

	if v, ok := sc.Get(loginPageKey); ok {
		if lp, ok := v.(*pages.LoginPage); ok {
			return lp, nil
		}
	}

	p, err := sc.Page()
	if err != nil {
		return nil, err
	}
	lp := pages.NewLoginPage(p, l.opts.BaseURL, l.opts.Pages)
	sc.Set(loginPageKey, lp)
	return lp, nil
}

func (l *Login) navigate(ctx context.Context) error {
	lp, err := l.page(ctx)
	if err != nil {
		return err
	}
	if err := lp.NavigateToLoginPage(ctx); err != nil {
		return err
	}
	log.Info().Str("url", l.opts.BaseURL).Msg("Navigated to application")
	return nil
}

func (l *Login) enterUsername(ctx context.Context, username string) error {
	lp, err := l.page(ctx)
	if err != nil {
		return err
	}
	return lp.EnterUsername(ctx, username)
}

func (l *Login) enterPassword(ctx context.Context, password string) error {
	lp, err := l.page(ctx)
	if err != nil {
		return err
	}
	return lp.EnterPassword(ctx, password)
}

func (l *Login) clickLogin(ctx context.Context) error {
	lp, err := l.page(ctx)
	if err != nil {
		return err
	}
	return lp.ClickLoginButton(ctx)
}

func (l *Login) loginConfigured(ctx context.Context) error {
	lp, err := l.page(ctx)
	if err != nil {
		return err
	}
	creds := l.opts.Credentials
	if err := lp.Login(ctx, creds.Username, creds.Password); err != nil {
		return err
	}
	log.Info().Str("username", creds.Username).Msg("Logged in with configured credentials")
	return nil
}

func (l *Login) forgotPassword(ctx context.Context) error {
	lp, err := l.page(ctx)
	if err != nil {
		return err
	}
	return lp.ClickForgotPassword(ctx)
}

func (l *Login) rememberURL(ctx context.Context, name string) error {
	sc, err := scenario.From(ctx)
	if err != nil {
		return err
	}
	lp, err := l.page(ctx)
	if err != nil {
		return err
	}
	sc.Set(name, lp.CurrentURL())
	return nil
}

func (l *Login) loginPageDisplayed(ctx context.Context) error {
	lp, err := l.page(ctx)
	if err != nil {
		return err
	}
	return lp.VerifyLoginPageDisplayed(ctx)
}

func (l *Login) loggedIn(ctx context.Context) error {
	lp, err := l.page(ctx)
	if err != nil {
		return err
	}

	if err := lp.Wait().NetworkIdle(ctx, 0); err != nil {
		return err
	}

	var current string
	err = wait.Retry(ctx, func(context.Context) (bool, error) {
		current = lp.CurrentURL()
		return !strings.Contains(current, "/login"), nil
	}, l.opts.RetryAttempts, l.opts.RetryDelay)
	if err != nil {
		return fmt.Errorf("still on the login page at %s: %w", current, err)
	}

	if err := lp.VerifyLoginSuccess(ctx); err != nil {
		return err
	}
	log.Info().Str("url", current).Msg("Login successful")
	return nil
}

func (l *Login) dashboard(ctx context.Context) error {
	lp, err := l.page(ctx)
	if err != nil {
		return err
	}

	if err := lp.Page().WaitForLoadState(browser.LoadStateDOMContentLoaded, l.opts.Pages.PageLoadTimeout); err != nil {
		return fmt.Errorf("waiting for dashboard: %w", err)
	}

	title, err := lp.Title()
	if err != nil {
		return fmt.Errorf("reading dashboard title: %w", err)
	}
	log.Info().Str("title", title).Msg("Dashboard loaded")

	path, err := lp.Screenshot("dashboard")
	if err != nil {
		return err
	}
	log.Info().Str("path", path).Msg("Dashboard screenshot captured")
	return nil
}

func (l *Login) loginError(ctx context.Context) error {
	lp, err := l.page(ctx)
	if err != nil {
		return err
	}
	return lp.VerifyLoginFailure(ctx)
}

func (l *Login) loginErrorText(ctx context.Context, expected string) error {
	lp, err := l.page(ctx)
	if err != nil {
		return err
	}
	msg, err := lp.ErrorMessage(ctx)
	if err != nil {
		return err
	}
	if !strings.Contains(msg, expected) {
		return fmt.Errorf("expected login error to contain %q, got %q", expected, msg)
	}
	return nil
}

func (l *Login) noWelcome(ctx context.Context) error {
	lp, err := l.page(ctx)
	if err != nil {
		return err
	}
	visible, err := lp.Page().IsVisible(pages.WelcomeMessage)
	if err != nil {
		return fmt.Errorf("checking welcome message: %w", err)
	}
	if visible {
		return fmt.Errorf("expected no welcome message, but %s is visible", pages.WelcomeMessage)
	}
	return nil
}

func (l *Login) textPresent(ctx context.Context, text string) error {
	lp, err := l.page(ctx)
	if err != nil {
		return err
	}
	return lp.Wait().TextPresent(ctx, text, 0)
}

func (l *Login) urlContains(ctx context.Context, text string) error {
	lp, err := l.page(ctx)
	if err != nil {
		return err
	}
	return lp.Wait().URLContains(ctx, text, 0)
}

func (l *Login) elementCount(ctx context.Context, n int, selector string) error {
	lp, err := l.page(ctx)
	if err != nil {
		return err
	}
	return lp.Wait().ElementCount(ctx, selector, n, 0)
}

func (l *Login) rememberedURL(ctx context.Context, name string) error {
	sc, err := scenario.From(ctx)
	if err != nil {
		return err
	}
	want, ok := sc.String(name)
	if !ok {
		return fmt.Errorf("no URL remembered as %q", name)
	}
	lp, err := l.page(ctx)
	if err != nil {
		return err
	}
	if got := lp.CurrentURL(); got != want {
		return fmt.Errorf("expected URL %s, got %s", want, got)
	}
	return nil
}
