// Package demoapp serves a small login application that the bundled
// features run against.
package demoapp

import (
	"html/template"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const sessionCookie = "basil_session"

// InvalidCredentials is the message shown for a rejected login
const InvalidCredentials = "Invalid username or password"

var pages = template.Must(template.New("login").Parse(`<!DOCTYPE html>
<html>
<head><title>Login</title></head>
<body>
  <h1 class="login-title">Sign in</h1>
  {{if .Error}}<div class="error-message" role="alert">{{.Error}}</div>{{end}}
  <form method="post" action="/login">
    <label for="username">Username</label>
    <input id="username" name="username" type="text" value="{{.Username}}">
    <label for="password">Password</label>
    <input id="password" name="password" type="password">
    <button type="submit">Login</button>
  </form>
  <a href="/forgot-password">Forgot password?</a>
</body>
</html>
`))

var dashboard = template.Must(template.New("dashboard").Parse(`<!DOCTYPE html>
<html>
<head><title>Dashboard</title></head>
<body>
  <div class="welcome-message">Welcome, {{.}}!</div>
  <a id="logout" href="/logout">Logout</a>
</body>
</html>
`))

var forgot = template.Must(template.New("forgot").Parse(`<!DOCTYPE html>
<html>
<head><title>Forgot Password</title></head>
<body>
  <h1>Reset your password</h1>
  <input id="email" name="email" type="email">
</body>
</html>
`))

type loginView struct {
	Username string
	Error    string
}

// App is the demo login application
type App struct {
	users map[string]string

	mu       sync.Mutex
	sessions map[string]string
}

// New creates an app that accepts the given username/password pairs
func New(users map[string]string) *App {
	return &App{users: users, sessions: make(map[string]string)}
}

// Handler returns the HTTP routes of the app
func (a *App) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	r.Get("/", a.showLogin)
	r.Get("/login", a.showLogin)
	r.Post("/login", a.login)
	r.Get("/dashboard", a.dashboard)
	r.Get("/forgot-password", a.forgotPassword)
	r.Get("/logout", a.logout)
	return r
}

// Sessions returns the number of signed in sessions
func (a *App) Sessions() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.sessions)
}

func (a *App) showLogin(w http.ResponseWriter, r *http.Request) {
	render(w, http.StatusOK, pages, loginView{})
}

func (a *App) login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	username := r.PostFormValue("username")
	password, ok := a.users[username]
	if !ok || password != r.PostFormValue("password") {
		log.Debug().Str("username", username).Msg("demo login rejected")
		render(w, http.StatusUnauthorized, pages, loginView{Username: username, Error: InvalidCredentials})
		return
	}

	token := uuid.NewString()
	a.mu.Lock()
	a.sessions[token] = username
	a.mu.Unlock()

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
	})
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

func (a *App) user(r *http.Request) (string, bool) {
	c, err := r.Cookie(sessionCookie)
	if err != nil {
		return "", false
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	user, ok := a.sessions[c.Value]
	return user, ok
}

func (a *App) dashboard(w http.ResponseWriter, r *http.Request) {
	user, ok := a.user(r)
	if !ok {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	render(w, http.StatusOK, dashboard, user)
}

func (a *App) forgotPassword(w http.ResponseWriter, r *http.Request) {
	render(w, http.StatusOK, forgot, nil)
}

func (a *App) logout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(sessionCookie); err == nil {
		a.mu.Lock()
		delete(a.sessions, c.Value)
		a.mu.Unlock()
	}
	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Path: "/", MaxAge: -1})
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func render(w http.ResponseWriter, status int, t *template.Template, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := t.Execute(w, data); err != nil {
		log.Warn().Err(err).Str("template", t.Name()).Msg("rendering demo page")
	}
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Str("request_id", middleware.GetReqID(r.Context())).
			Dur("duration", time.Since(start)).
			Msg("demo request")
	})
}
