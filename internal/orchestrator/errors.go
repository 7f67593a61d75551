package orchestrator

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Attempt is the outcome of running one engine
type Attempt struct {
	Engine  string
	Elapsed time.Duration
	Err     error
}

// OK reports whether the engine produced text
func (a Attempt) OK() bool { return a.Err == nil }

func (a Attempt) MarshalJSON() ([]byte, error) {
	out := struct {
		Engine  string        `json:"engine"`
		Elapsed time.Duration `json:"elapsed_ns"`
		OK      bool          `json:"ok"`
		Error   string        `json:"error,omitempty"`
	}{Engine: a.Engine, Elapsed: a.Elapsed, OK: a.OK()}
	if a.Err != nil {
		out.Error = a.Err.Error()
	}
	return json.Marshal(out)
}

// AggregateError is returned when every candidate engine failed
type AggregateError struct {
	Strategy Strategy
	Attempts []Attempt
}

func (e *AggregateError) Error() string {
	if len(e.Attempts) == 0 {
		return fmt.Sprintf("strategy %s: no engine attempted", e.Strategy)
	}
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, fmt.Sprintf("%s: %v", a.Engine, a.Err))
	}
	return fmt.Sprintf("strategy %s: all engines failed (%s)", e.Strategy, strings.Join(parts, "; "))
}

// Unwrap exposes every attempt error to errors.Is and errors.As
func (e *AggregateError) Unwrap() []error {
	errs := make([]error, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		if a.Err != nil {
			errs = append(errs, a.Err)
		}
	}
	return errs
}
