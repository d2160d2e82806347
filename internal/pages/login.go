package pages

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/tomatool/basil/internal/browser"
)

// Login page selectors
const (
	UsernameInput      = "#username"
	PasswordInput      = "#password"
	LoginButton        = `button[type="submit"]`
	LoginError         = ".error-message"
	WelcomeMessage     = ".welcome-message"
	ForgotPasswordLink = `a[href="/forgot-password"]`
	LoginTitle         = "h1.login-title"
)

// LoginPage is the application's sign-in form
type LoginPage struct {
	*BasePage
	baseURL string
}

// NewLoginPage creates a login page served at baseURL
func NewLoginPage(page browser.Page, baseURL string, opts Options) *LoginPage {
	return &LoginPage{BasePage: NewBasePage(page, opts), baseURL: baseURL}
}

func (l *LoginPage) NavigateToLoginPage(ctx context.Context) error {
	log.Info().Str("url", l.baseURL).Msg("Navigating to login page")
	if err := l.Navigate(ctx, l.baseURL); err != nil {
		return err
	}
	return l.WaitForPageLoad(ctx)
}

func (l *LoginPage) EnterUsername(ctx context.Context, username string) error {
	log.Info().Str("username", username).Msg("Entering username")
	return l.Fill(ctx, UsernameInput, username)
}

func (l *LoginPage) EnterPassword(ctx context.Context, password string) error {
	log.Info().Msg("Entering password")
	return l.Fill(ctx, PasswordInput, password)
}

// ClickLoginButton submits the form once the button is clickable
func (l *LoginPage) ClickLoginButton(ctx context.Context) error {
	log.Info().Msg("Clicking login button")
	if err := l.wait.Clickable(ctx, LoginButton, l.timeout); err != nil {
		return err
	}
	return l.Click(ctx, LoginButton)
}

func (l *LoginPage) Login(ctx context.Context, username, password string) error {
	log.Info().Str("username", username).Msg("Logging in")
	if err := l.EnterUsername(ctx, username); err != nil {
		return err
	}
	if err := l.EnterPassword(ctx, password); err != nil {
		return err
	}
	return l.ClickLoginButton(ctx)
}

// ErrorMessage returns the text of the login error
func (l *LoginPage) ErrorMessage(ctx context.Context) (string, error) {
	return l.Text(ctx, LoginError)
}

// VerifyLoginSuccess checks the welcome message is shown
func (l *LoginPage) VerifyLoginSuccess(ctx context.Context) error {
	log.Info().Msg("Verifying login success")
	if err := l.VerifyVisible(ctx, WelcomeMessage); err != nil {
		return fmt.Errorf("login did not succeed: %w", err)
	}
	return nil
}

// VerifyLoginFailure checks the error message is shown
func (l *LoginPage) VerifyLoginFailure(ctx context.Context) error {
	log.Info().Msg("Verifying login failure")
	if err := l.VerifyVisible(ctx, LoginError); err != nil {
		return fmt.Errorf("no login error shown: %w", err)
	}
	return nil
}

func (l *LoginPage) ClickForgotPassword(ctx context.Context) error {
	log.Info().Msg("Clicking forgot password link")
	return l.Click(ctx, ForgotPasswordLink)
}

// VerifyLoginPageDisplayed checks the title and both inputs are visible
func (l *LoginPage) VerifyLoginPageDisplayed(ctx context.Context) error {
	for _, sel := range []string{LoginTitle, UsernameInput, PasswordInput} {
		if err := l.VerifyVisible(ctx, sel); err != nil {
			return fmt.Errorf("login page not displayed: %w", err)
		}
	}
	return nil
}
