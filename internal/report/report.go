// Package report summarizes the cucumber JSON report of a run.
package report

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/tidwall/gjson"
)

// Scenario statuses
const (
	StatusPassed  = "passed"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)

// Scenario is the outcome of one scenario
type Scenario struct {
	Feature  string        `json:"feature"`
	Name     string        `json:"name"`
	Status   string        `json:"status"`
	Duration time.Duration `json:"duration"`
	// Step and Error describe the first failing step
	Step  string `json:"step,omitempty"`
	Error string `json:"error,omitempty"`
}

// Summary totals a run
type Summary struct {
	Features  int           `json:"features"`
	Scenarios []Scenario    `json:"scenarios"`
	Passed    int           `json:"passed"`
	Failed    int           `json:"failed"`
	Skipped   int           `json:"skipped"`
	Steps     int           `json:"steps"`
	Duration  time.Duration `json:"duration"`
}

// Failures returns the failed scenarios
func (s *Summary) Failures() []Scenario {
	var out []Scenario
	for _, sc := range s.Scenarios {
		if sc.Status == StatusFailed {
			out = append(out, sc)
		}
	}
	return out
}

// OK reports whether nothing failed
func (s *Summary) OK() bool { return s.Failed == 0 }

// Load reads and summarizes a cucumber JSON report
func Load(path string) (*Summary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading report: %w", err)
	}
	return Summarize(data)
}

// Summarize totals a cucumber JSON document
func Summarize(data []byte) (*Summary, error) {
	if !gjson.ValidBytes(data) {
		return nil, errors.New("report is not valid JSON")
	}
	doc := gjson.ParseBytes(data)
	if !doc.IsArray() {
		return nil, errors.New("report must be a JSON array of features")
	}

	s := &Summary{}
	for _, feature := range doc.Array() {
		s.Features++
		for _, el := range feature.Get("elements").Array() {
			if el.Get("type").String() == "background" {
				continue
			}
			sc := scenario(feature.Get("name").String(), el)
			s.Steps += int(el.Get("steps.#").Int())
			s.Duration += sc.Duration
			s.Scenarios = append(s.Scenarios, sc)

			switch sc.Status {
			case StatusFailed:
				s.Failed++
			case StatusSkipped:
				s.Skipped++
			default:
				s.Passed++
			}
		}
	}
	return s, nil
}

func scenario(feature string, el gjson.Result) Scenario {
	sc := Scenario{
		Feature: feature,
		Name:    el.Get("name").String(),
		Status:  StatusPassed,
	}

	for _, step := range el.Get("steps").Array() {
		// cucumber durations are nanoseconds
		sc.Duration += time.Duration(step.Get("result.duration").Int())

		switch step.Get("result.status").String() {
		case "failed", "undefined", "ambiguous":
			if sc.Status != StatusFailed {
				sc.Status = StatusFailed
				sc.Step = step.Get("keyword").String() + step.Get("name").String()
				sc.Error = step.Get("result.error_message").String()
			}
		case "skipped", "pending":
			if sc.Status == StatusPassed {
				sc.Status = StatusSkipped
			}
		}
	}
	return sc
}
