package runlog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Run holds information about the current test run and where its artifacts go
type Run struct {
	ID        string    `json:"id"` // Short unique identifier (8 chars)
	Timestamp time.Time `json:"timestamp"`
	Dir       string    `json:"dir"` // Report root

	Environment string `json:"environment,omitempty"`
	Browser     string `json:"browser,omitempty"`
	BaseURL     string `json:"base_url,omitempty"`
}

// New creates a run rooted at reportDir and initializes the artifact directories
func New(reportDir string) (*Run, error) {
	r := &Run{
		ID:        uuid.New().String()[:8],
		Timestamp: time.Now(),
		Dir:       reportDir,
	}

	for _, dir := range []string{r.LogDir(), r.ScreenshotDir(), r.VideoDir(), filepath.Dir(r.CucumberReport())} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating run directory: %w", err)
		}
	}

	return r, nil
}

func (r *Run) LogDir() string        { return filepath.Join(r.Dir, "logs") }
func (r *Run) ScreenshotDir() string { return filepath.Join(r.Dir, "screenshots") }
func (r *Run) VideoDir() string      { return filepath.Join(r.Dir, "videos") }
func (r *Run) CucumberReport() string {
	return filepath.Join(r.Dir, "cucumber-report", "cucumber-report.json")
}
func (r *Run) JUnitReport() string  { return filepath.Join(r.Dir, "junit-results.xml") }
func (r *Run) EventsReport() string { return filepath.Join(r.Dir, "events.jsonl") }

// ScreenshotPath returns a unique path like failed-step-login-works-1700000000000.png
func (r *Run) ScreenshotPath(kind, scenario string) string {
	name := kind
	if slug := Slug(scenario); slug != "" {
		name += "-" + slug
	}
	name = fmt.Sprintf("%s-%d.png", name, time.Now().UnixMilli())
	return filepath.Join(r.ScreenshotDir(), name)
}

// NamedScreenshotPath returns the path for an explicitly named screenshot.
// A trailing .png on name is optional.
func (r *Run) NamedScreenshotPath(name string) string {
	name = strings.TrimSuffix(name, filepath.Ext(name))
	return filepath.Join(r.ScreenshotDir(), Slug(name)+".png")
}

// CreateLogFile creates logs/<name>.log and returns the open handle
func (r *Run) CreateLogFile(name string) (*os.File, error) {
	return os.Create(filepath.Join(r.LogDir(), name+".log"))
}

// WriteMetadata stores run.json next to the reports
func (r *Run) WriteMetadata() error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(r.Dir, "run.json"), data, 0644)
}

// ReadMetadata loads run.json from a report directory
func ReadMetadata(reportDir string) (*Run, error) {
	data, err := os.ReadFile(filepath.Join(reportDir, "run.json"))
	if err != nil {
		return nil, err
	}
	var r Run
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parsing run.json: %w", err)
	}
	return &r, nil
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// Slug lowercases s and collapses everything but letters and digits into dashes
func Slug(s string) string {
	return strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(s), "-"), "-")
}
