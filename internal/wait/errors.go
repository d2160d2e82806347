package wait

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrTimeout         = errors.New("wait timed out")
	ErrNotClickable    = errors.New("element not clickable")
	ErrConditionNotMet = errors.New("condition not met")
)

// TimeoutError reports a wait whose deadline elapsed before the condition held
type TimeoutError struct {
	Condition string
	Timeout   time.Duration
	// Err is the last error seen while polling, if any
	Err error
}

func (e *TimeoutError) Error() string {
	msg := fmt.Sprintf("timeout after %s waiting for %s", e.Timeout, e.Condition)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *TimeoutError) Is(target error) bool { return target == ErrTimeout }

func (e *TimeoutError) Unwrap() error { return e.Err }

// NotClickableError is returned for an element that is visible but disabled
type NotClickableError struct {
	Selector string
}

func (e *NotClickableError) Error() string {
	return fmt.Sprintf("element %s is visible but not enabled", e.Selector)
}

func (e *NotClickableError) Is(target error) bool { return target == ErrNotClickable }

// ConditionNotMetError is returned by Retry after every attempt failed
type ConditionNotMetError struct {
	Attempts int
}

func (e *ConditionNotMetError) Error() string {
	return fmt.Sprintf("condition not met after %d attempts", e.Attempts)
}

func (e *ConditionNotMetError) Is(target error) bool { return target == ErrConditionNotMet }
