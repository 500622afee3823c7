package schema

import (
	"errors"
	"fmt"
)

// InvalidPathError reports a field-mask or query path that is not part of
// the record type. It is a caller input error and never retried.
type InvalidPathError struct {
	Path string
	Type string

	// Reason optionally narrows why the path was rejected.
	Reason string
}

func (e *InvalidPathError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("invalid path %q for %s: %s", e.Path, e.Type, e.Reason)
	}
	return fmt.Sprintf("invalid path %q for %s", e.Path, e.Type)
}

// IsInvalidPath returns true if err is or wraps an *InvalidPathError.
func IsInvalidPath(err error) bool {
	var pe *InvalidPathError
	return errors.As(err, &pe)
}

// ValueError reports a value whose type does not match the field kind.
type ValueError struct {
	Path string
	Kind Kind
	Got  string
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("path %q expects %s, got %s", e.Path, e.Kind, e.Got)
}
