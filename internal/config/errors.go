package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
)

// ValidationError describes one invalid field, addressed by its config path.
type ValidationError struct {
	Path string
	Err  error
}

func (e *ValidationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Path != "" {
		return fmt.Sprintf("%s: %v", e.Path, e.Err)
	}
	return e.Err.Error()
}

func (e *ValidationError) Unwrap() error { return e.Err }

// ConfigError is returned when a RuntimeConfig cannot be used. It is detected
// before any backend resource is created.
type ConfigError struct {
	Err error
}

func (e *ConfigError) Error() string {
	problems := e.Problems()
	switch len(problems) {
	case 0:
		return fmt.Sprintf("invalid configuration: %v", e.Err)
	case 1:
		return fmt.Sprintf("invalid configuration: %v", problems[0])
	}
	lines := make([]string, 0, len(problems))
	for _, p := range problems {
		lines = append(lines, "  - "+p.Error())
	}
	return fmt.Sprintf("invalid configuration (%d problems):\n%s", len(problems), strings.Join(lines, "\n"))
}

func (e *ConfigError) Unwrap() error { return e.Err }

// Problems lists the individual validation failures.
func (e *ConfigError) Problems() []*ValidationError {
	if e == nil || e.Err == nil {
		return nil
	}
	var errs []error
	var merr *multierror.Error
	if errors.As(e.Err, &merr) {
		errs = merr.Errors
	} else {
		errs = []error{e.Err}
	}

	out := make([]*ValidationError, 0, len(errs))
	for _, err := range errs {
		var verr *ValidationError
		if errors.As(err, &verr) {
			out = append(out, verr)
			continue
		}
		out = append(out, &ValidationError{Err: err})
	}
	return out
}
