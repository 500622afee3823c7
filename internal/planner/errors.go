package planner

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/crawlplan/internal/storeop"
)

// PlannerInvariantError reports an internal contradiction in a resolved
// chain, such as an unhandled render type or a snippet rendered twice. It is
// always a defect: it carries the chain and the partial plan so the
// request can be reproduced offline.
type PlannerInvariantError struct {
	Message string
	Chain   string
	Partial *storeop.Plan
}

func (e *PlannerInvariantError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "planner invariant violated: %s", e.Message)
	if e.Chain != "" {
		fmt.Fprintf(&b, "\nchain: %s", e.Chain)
	}
	if e.Partial != nil {
		fmt.Fprintf(&b, "\nplan:\n%s", e.Partial.String())
	}
	return b.String()
}

// IsInvariantError returns true if err is or wraps a *PlannerInvariantError.
func IsInvariantError(err error) bool {
	var ie *PlannerInvariantError
	return errors.As(err, &ie)
}

// LabelSelectorError reports a label selector that does not parse.
type LabelSelectorError struct {
	Selector string
	Reason   string
}

func (e *LabelSelectorError) Error() string {
	return fmt.Sprintf("invalid label selector %q: %s", e.Selector, e.Reason)
}

// RequestError reports a malformed list request field.
type RequestError struct {
	Field  string
	Reason string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("invalid request %s: %s", e.Field, e.Reason)
}

// IsInputError returns true if err is a caller input error: a label selector
// or request error. Path errors are reported by schema.IsInvalidPath.
func IsInputError(err error) bool {
	var le *LabelSelectorError
	var re *RequestError
	return errors.As(err, &le) || errors.As(err, &re)
}
