package hooks

import (
	"context"

	"github.com/cucumber/godog"
	"github.com/rs/zerolog/log"
	"github.com/tomatool/basil/internal/scenario"
)

type executionKey struct{}

type skipKey struct{}

// Skip marks the scenario carried by ctx as filtered out. Bind leaves a
// marked scenario alone: no manager, page or banners.
func Skip(ctx context.Context) context.Context {
	return context.WithValue(ctx, skipKey{}, true)
}

// Skipped reports whether ctx was marked by Skip
func Skipped(ctx context.Context) bool {
	skipped, _ := ctx.Value(skipKey{}).(bool)
	return skipped
}

// WithExecution returns a copy of ctx carrying ex and its scenario context
func WithExecution(ctx context.Context, ex *Execution) context.Context {
	ctx = context.WithValue(ctx, executionKey{}, ex)
	if ex != nil && ex.Context != nil {
		ctx = scenario.With(ctx, ex.Context)
	}
	return ctx
}

// ExecutionFrom returns the execution carried by ctx, or nil
func ExecutionFrom(ctx context.Context) *Execution {
	ex, _ := ctx.Value(executionKey{}).(*Execution)
	return ex
}

// BindSuite attaches the suite hooks
func (o *Orchestrator) BindSuite(tsc *godog.TestSuiteContext) {
	tsc.BeforeSuite(o.SuiteStart)
	tsc.AfterSuite(func() {
		// Errors are logged by SuiteEnd; the suite result is already decided.
		_ = o.SuiteEnd()
	})
}

// Bind attaches the scenario and step hooks
func (o *Orchestrator) Bind(sc *godog.ScenarioContext) {
	sc.Before(func(ctx context.Context, s *godog.Scenario) (context.Context, error) {
		// godog keeps running before hooks after one returns ErrSkip
		if Skipped(ctx) {
			return ctx, nil
		}

		tags := make([]string, 0, len(s.Tags))
		for _, t := range s.Tags {
			tags = append(tags, t.Name)
		}

		ex, err := o.ScenarioStart(ctx, s.Name, tags)
		return WithExecution(ctx, ex), err
	})

	sc.StepContext().Before(func(ctx context.Context, st *godog.Step) (context.Context, error) {
		if ex := ExecutionFrom(ctx); ex != nil {
			o.StepStart(ex, st.Text)
		}
		return ctx, nil
	})

	sc.StepContext().After(func(ctx context.Context, st *godog.Step, status godog.StepResultStatus, err error) (context.Context, error) {
		ex := ExecutionFrom(ctx)
		if ex == nil {
			return ctx, nil
		}

		switch status {
		case godog.StepPassed:
			o.StepEnd(ex, st.Text, nil)
		case godog.StepFailed:
			o.StepEnd(ex, st.Text, err)
		default:
			log.Debug().Str("step", st.Text).Str("status", status.String()).Msg("step not run")
		}
		return ctx, nil
	})

	sc.After(func(ctx context.Context, s *godog.Scenario, err error) (context.Context, error) {
		// Teardown problems are logged; the scenario keeps its own result.
		_ = o.ScenarioEnd(ExecutionFrom(ctx), err)
		return ctx, nil
	})
}
