// Package formatter provides the "events" godog formatter: one JSON object
// per line for every feature, scenario and step outcome.
package formatter

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/cucumber/godog"
	"github.com/cucumber/godog/formatters"
	messages "github.com/cucumber/messages/go/v21"
)

// Name is the format name to pass to godog, e.g. "events:reports/events.jsonl"
const Name = "events"

// Event types for structured output
const (
	EventFeatureStart  = "feature_start"
	EventScenarioStart = "scenario_start"
	EventScenarioEnd   = "scenario_end"
	EventStepEnd       = "step_end"
	EventSummary       = "summary"
)

// Event represents a structured test event
type Event struct {
	Type     string    `json:"type"`
	Time     time.Time `json:"time"`
	Feature  string    `json:"feature,omitempty"`
	Scenario string    `json:"scenario,omitempty"`
	Tags     []string  `json:"tags,omitempty"`
	Step     string    `json:"step,omitempty"`
	Status   string    `json:"status,omitempty"`
	Error    string    `json:"error,omitempty"`
	File     string    `json:"file,omitempty"`

	// Summary fields
	Total   int `json:"total,omitempty"`
	Passed  int `json:"passed,omitempty"`
	Failed  int `json:"failed,omitempty"`
	Skipped int `json:"skipped,omitempty"`
}

func init() {
	godog.Format(Name, "Structured JSON lines, one event per outcome", EventFormatterFunc)
}

// scenarioState tracks one pickle. Scenarios run concurrently, so state is
// keyed by pickle id instead of "current scenario".
type scenarioState struct {
	pickle   *messages.Pickle
	reported int
	failed   bool
	skipped  bool
	err      string
}

// EventFormatter writes Events as JSON lines
type EventFormatter struct {
	out io.Writer
	now func() time.Time

	mu        sync.Mutex
	features  map[string]string
	scenarios map[string]*scenarioState

	scenarioTotal   int
	scenarioPassed  int
	scenarioFailed  int
	scenarioSkipped int
}

// EventFormatterFunc creates a new EventFormatter
func EventFormatterFunc(suite string, out io.Writer) formatters.Formatter {
	return &EventFormatter{
		out:       out,
		now:       time.Now,
		features:  make(map[string]string),
		scenarios: make(map[string]*scenarioState),
	}
}

// emit must be called with f.mu held
func (f *EventFormatter) emit(event Event) {
	event.Time = f.now()
	data, _ := json.Marshal(event)
	fmt.Fprintf(f.out, "%s\n", data)
}

func (f *EventFormatter) TestRunStarted() {}

func (f *EventFormatter) Feature(doc *messages.GherkinDocument, uri string, content []byte) {
	if doc.Feature == nil {
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.features[uri] = doc.Feature.Name
	f.emit(Event{
		Type:    EventFeatureStart,
		Feature: doc.Feature.Name,
		File:    uri,
	})
}

func (f *EventFormatter) Pickle(pickle *messages.Pickle) {
	f.mu.Lock()
	defer f.mu.Unlock()

	st := &scenarioState{pickle: pickle}
	f.scenarios[pickle.Id] = st
	f.scenarioTotal++

	tags := make([]string, 0, len(pickle.Tags))
	for _, t := range pickle.Tags {
		tags = append(tags, t.Name)
	}

	f.emit(Event{
		Type:     EventScenarioStart,
		Feature:  f.features[pickle.Uri],
		Scenario: pickle.Name,
		Tags:     tags,
		File:     pickle.Uri,
	})

	if len(pickle.Steps) == 0 {
		f.finish(st)
	}
}

// step records one step outcome and closes the scenario after its last step
func (f *EventFormatter) step(pickle *messages.Pickle, step *messages.PickleStep, status string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	ev := Event{
		Type:     EventStepEnd,
		Feature:  f.features[pickle.Uri],
		Scenario: pickle.Name,
		Step:     step.Text,
		Status:   status,
	}
	if err != nil {
		ev.Error = err.Error()
	}
	f.emit(ev)

	st, ok := f.scenarios[pickle.Id]
	if !ok {
		return
	}
	switch status {
	case "failed", "ambiguous", "undefined":
		st.failed = true
		if ev.Error != "" && st.err == "" {
			st.err = ev.Error
		}
	case "pending", "skipped":
		st.skipped = true
	}

	st.reported++
	if st.reported >= len(pickle.Steps) {
		f.finish(st)
	}
}

// finish must be called with f.mu held
func (f *EventFormatter) finish(st *scenarioState) {
	status := "passed"
	switch {
	case st.failed:
		status = "failed"
		f.scenarioFailed++
	case st.skipped:
		status = "skipped"
		f.scenarioSkipped++
	default:
		f.scenarioPassed++
	}

	f.emit(Event{
		Type:     EventScenarioEnd,
		Feature:  f.features[st.pickle.Uri],
		Scenario: st.pickle.Name,
		Status:   status,
		Error:    st.err,
	})
	delete(f.scenarios, st.pickle.Id)
}

func (f *EventFormatter) Defined(pickle *messages.Pickle, step *messages.PickleStep, def *formatters.StepDefinition) {
}

func (f *EventFormatter) Passed(pickle *messages.Pickle, step *messages.PickleStep, def *formatters.StepDefinition) {
	f.step(pickle, step, "passed", nil)
}

func (f *EventFormatter) Failed(pickle *messages.Pickle, step *messages.PickleStep, def *formatters.StepDefinition, err error) {
	f.step(pickle, step, "failed", err)
}

func (f *EventFormatter) Skipped(pickle *messages.Pickle, step *messages.PickleStep, def *formatters.StepDefinition) {
	f.step(pickle, step, "skipped", nil)
}

func (f *EventFormatter) Undefined(pickle *messages.Pickle, step *messages.PickleStep, def *formatters.StepDefinition) {
	f.step(pickle, step, "undefined", fmt.Errorf("step is undefined: %s", step.Text))
}

func (f *EventFormatter) Pending(pickle *messages.Pickle, step *messages.PickleStep, def *formatters.StepDefinition) {
	f.step(pickle, step, "pending", nil)
}

func (f *EventFormatter) Ambiguous(pickle *messages.Pickle, step *messages.PickleStep, def *formatters.StepDefinition, err error) {
	f.step(pickle, step, "ambiguous", err)
}

// Summary closes scenarios that never reported every step and emits totals
func (f *EventFormatter) Summary() {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, st := range f.scenarios {
		f.finish(st)
	}

	f.emit(Event{
		Type:    EventSummary,
		Total:   f.scenarioTotal,
		Passed:  f.scenarioPassed,
		Failed:  f.scenarioFailed,
		Skipped: f.scenarioSkipped,
	})
}
