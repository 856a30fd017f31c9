package execx

import (
	"errors"
	"fmt"
	"strings"
)

// ErrTimeout is returned by Run when the configured deadline expires before
// the command exits.
var ErrTimeout = errors.New("command timed out")

// SpawnError reports that the command could not be started at all, usually
// because the binary is not on PATH.
type SpawnError struct {
	Name string
	Err  error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("spawn %s: %v", e.Name, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// IOError reports a pipe or wait failure after the command started.
type IOError struct {
	Op  string
	Err error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// ExitError is a completed command with a non-zero exit status.
type ExitError struct {
	Name   string
	Code   int
	Stderr string
}

func (e *ExitError) Error() string {
	if e.Stderr != "" {
		return e.Stderr
	}
	return fmt.Sprintf("%s exited with status %d", e.Name, e.Code)
}

// Reason returns the text shown to the operator for a failed command: the
// last non-empty stderr line, or the exit status.
func Reason(err error) string {
	if err == nil {
		return ""
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		lines := strings.Split(strings.TrimSpace(exitErr.Stderr), "\n")
		for i := len(lines) - 1; i >= 0; i-- {
			if line := strings.TrimSpace(lines[i]); line != "" {
				return line
			}
		}
		return fmt.Sprintf("exit status %d", exitErr.Code)
	}
	return err.Error()
}
