package command

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/urfave/cli/v2"
)

var initCommand = &cli.Command{
	Name:  "init",
	Usage: "Initialize a new basil project",
	Description: `Create basil.yml, .env and a starter login feature interactively.

Guides you through picking a browser and the environment the suite
targets by default.`,
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:    "force",
			Aliases: []string{"f"},
			Usage:   "overwrite existing files",
		},
		&cli.BoolFlag{
			Name:  "defaults",
			Usage: "skip the questions and use chromium against qa",
		},
	},
	Action: runInit,
}

type choice struct {
	name        string
	description string
	key         string
}

var browserChoices = []choice{
	{"Chromium", "Chrome and Edge engine", "chromium"},
	{"Firefox", "Gecko engine", "firefox"},
	{"WebKit", "Safari engine", "webkit"},
}

var environmentChoices = []choice{
	{"dev", "Development environment (DEV_URL)", "dev"},
	{"qa", "QA environment (QA_URL)", "qa"},
	{"uat", "User acceptance environment (UAT_URL)", "uat"},
	{"prod", "Production (PROD_URL)", "prod"},
}

type initStep int

const (
	stepBrowser initStep = iota
	stepEnvironment
	stepBaseURL
	stepConfirm
)

// initAnswers is what the wizard collects
type initAnswers struct {
	Browser     string
	Environment string
	BaseURL     string
}

type initModel struct {
	step   initStep
	cursor int

	answers initAnswers

	// Text input state
	textInput string

	done      bool
	cancelled bool
}

func initialInitModel() initModel {
	return initModel{step: stepBrowser}
}

func (m initModel) Init() tea.Cmd {
	return nil
}

func (m initModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	// Handle text input mode
	if m.step == stepBaseURL {
		return m.handleTextInput(key)
	}

	switch key.String() {
	case "ctrl+c", "q":
		m.cancelled = true
		return m, tea.Quit

	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}

	case "down", "j":
		if m.cursor < m.getMaxCursor() {
			m.cursor++
		}

	case "enter":
		return m.handleEnter()
	}

	return m, nil
}

func (m initModel) handleTextInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		m.cancelled = true
		return m, tea.Quit
	case "enter":
		m.answers.BaseURL = strings.TrimSpace(m.textInput)
		m.step = stepConfirm
		m.cursor = 0
	case "backspace":
		if len(m.textInput) > 0 {
			m.textInput = m.textInput[:len(m.textInput)-1]
		}
	case "esc":
		m.step = stepEnvironment
		m.cursor = 0
		m.textInput = ""
	default:
		if len(msg.String()) == 1 {
			m.textInput += msg.String()
		}
	}
	return m, nil
}

func (m initModel) getMaxCursor() int {
	switch m.step {
	case stepBrowser:
		return len(browserChoices) - 1
	case stepEnvironment:
		return len(environmentChoices) - 1
	case stepConfirm:
		return 1 // Create, Cancel
	default:
		return 0
	}
}

func (m initModel) handleEnter() (tea.Model, tea.Cmd) {
	switch m.step {
	case stepBrowser:
		m.answers.Browser = browserChoices[m.cursor].key
		m.step = stepEnvironment
		m.cursor = 1 // qa

	case stepEnvironment:
		m.answers.Environment = environmentChoices[m.cursor].key
		m.step = stepBaseURL
		m.cursor = 0

	case stepConfirm:
		if m.cursor == 0 {
			m.done = true
		} else {
			m.cancelled = true
		}
		return m, tea.Quit
	}

	return m, nil
}

func renderChoices(s *strings.Builder, choices []choice, cursor int) {
	for i, c := range choices {
		prefix := "  "
		style := unselectedStyle
		if i == cursor {
			prefix = "> "
			style = selectedStyle
		}

		s.WriteString(prefix + style.Render(c.name))
		if i == cursor {
			s.WriteString(helpStyle.Render("  " + c.description))
		}
		s.WriteString("\n")
	}
}

func (m initModel) View() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render("🌿 Basil Init"))
	s.WriteString("\n")

	switch m.step {
	case stepBrowser:
		s.WriteString(subtitleStyle.Render("Which browser should run the suite?"))
		s.WriteString("\n\n")
		renderChoices(&s, browserChoices, m.cursor)
		s.WriteString("\n")
		s.WriteString(helpStyle.Render("↑/↓ move • ENTER select • q quit"))

	case stepEnvironment:
		s.WriteString(subtitleStyle.Render("Which environment is the default target?"))
		s.WriteString("\n\n")
		renderChoices(&s, environmentChoices, m.cursor)
		s.WriteString("\n")
		s.WriteString(helpStyle.Render("↑/↓ move • ENTER select • q quit"))

	case stepBaseURL:
		s.WriteString(subtitleStyle.Render("Base URL (leave empty to use the environment URL):"))
		s.WriteString("\n\n")
		s.WriteString("> " + m.textInput + "█\n\n")
		s.WriteString(helpStyle.Render("ENTER confirm • ESC back"))

	case stepConfirm:
		s.WriteString(subtitleStyle.Render("Create project files?"))
		s.WriteString("\n\n")
		s.WriteString(fmt.Sprintf("  Browser:     %s\n", m.answers.Browser))
		s.WriteString(fmt.Sprintf("  Environment: %s\n", m.answers.Environment))
		if m.answers.BaseURL != "" {
			s.WriteString(fmt.Sprintf("  Base URL:    %s\n", m.answers.BaseURL))
		}
		s.WriteString("\n")
		renderChoices(&s, []choice{
			{"Create", "basil.yml, .env, features/login.feature", "create"},
			{"Cancel", "", "cancel"},
		}, m.cursor)
	}

	return s.String()
}

func runInit(c *cli.Context) error {
	answers := initAnswers{Browser: "chromium", Environment: "qa"}

	if !c.Bool("defaults") {
		result, err := tea.NewProgram(initialInitModel()).Run()
		if err != nil {
			return fmt.Errorf("running init wizard: %w", err)
		}
		m := result.(initModel)
		if m.cancelled || !m.done {
			fmt.Fprintln(c.App.Writer, warnStyle.Render("Cancelled"))
			return nil
		}
		answers = m.answers
	}

	created, err := writeInitFiles(".", answers, c.Bool("force"))
	if err != nil {
		return err
	}

	for _, f := range created {
		fmt.Fprintf(c.App.Writer, "%s Created %s\n", successStyle.Render("✓"), f)
	}
	fmt.Fprintln(c.App.Writer)
	fmt.Fprintln(c.App.Writer, helpStyle.Render("Next: basil install && basil run"))
	return nil
}

// writeInitFiles creates the project files under dir. Existing files are an
// error unless force is set.
func writeInitFiles(dir string, a initAnswers, force bool) ([]string, error) {
	files := []struct {
		name    string
		content string
	}{
		{"basil.yml", suiteTemplate},
		{".env", envFile(a)},
		{filepath.Join("features", "login.feature"), loginFeatureTemplate},
	}

	if !force {
		var existing []string
		for _, f := range files {
			if _, err := os.Stat(filepath.Join(dir, f.name)); err == nil {
				existing = append(existing, f.name)
			}
		}
		if len(existing) > 0 {
			return nil, fmt.Errorf("%s already exist (use --force to overwrite)", strings.Join(existing, ", "))
		}
	}

	var created []string
	for _, f := range files {
		path := filepath.Join(dir, f.name)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return created, fmt.Errorf("creating %s: %w", filepath.Dir(f.name), err)
		}
		if err := os.WriteFile(path, []byte(f.content), 0644); err != nil {
			return created, errors.Join(fmt.Errorf("writing %s", f.name), err)
		}
		created = append(created, f.name)
	}
	return created, nil
}

func envFile(a initAnswers) string {
	var s strings.Builder
	s.WriteString("# Target\n")
	s.WriteString("ENV=" + a.Environment + "\n")
	if a.BaseURL != "" {
		s.WriteString("BASE_URL=" + a.BaseURL + "\n")
	}
	s.WriteString("\n# Browser\n")
	s.WriteString("BROWSER=" + a.Browser + "\n")
	s.WriteString("HEADLESS=true\n")
	s.WriteString("\n# Credentials used by \"I login with the configured credentials\"\n")
	s.WriteString("TEST_USERNAME=testuser\n")
	s.WriteString("TEST_PASSWORD=testpass123\n")
	s.WriteString("\n# Artifacts\n")
	s.WriteString("REPORT_PATH=reports\n")
	s.WriteString("LOG_LEVEL=info\n")
	return s.String()
}

const suiteTemplate = `version: 1

settings:
  output: pretty
  fail_fast: false
  # parallel: 2

features:
  paths:
    - ./features
  # tags: "@smoke"

# Start the application under test before the suite.
# app:
#   command: ./bin/server
#   port: 8080
#   ready:
#     path: /health
#     timeout: 30s
`

const loginFeatureTemplate = `Feature: Login
  As a registered user
  I want to sign in
  So that I can reach my dashboard

  Background:
    Given I navigate to the application

  @smoke
  Scenario: Successful login with valid credentials
    When I login with the configured credentials
    Then I should be logged in successfully
    And I should see the dashboard

  @regression
  Scenario: Login with invalid credentials
    When I enter username "testuser"
    And I enter password "wrong-password"
    And I click the login button
    Then I should see a login error
    And I should not see the welcome message
`
