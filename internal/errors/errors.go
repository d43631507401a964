// Package errors provides sentinel errors and custom error types for gitq.
// Use errors.Is() and errors.As() to check for specific error types.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for common conditions
var (
	// ErrConflictsPending indicates that an operation paused because a merge
	// produced conflicts that must be resolved by the user. This is an
	// expected pause, not a failure.
	ErrConflictsPending = errors.New("conflicts pending")

	// ErrEditPending indicates that an operation paused so the user can
	// amend the checked-out commit. Like ErrConflictsPending, an expected
	// pause rather than a failure.
	ErrEditPending = errors.New("edit pending")

	// ErrNoSequencerState indicates that no sequencer operation is in progress
	ErrNoSequencerState = errors.New("no operation in progress")

	// ErrNotAQueue indicates that the current branch has no queue metadata
	ErrNotAQueue = errors.New("not a patch queue")

	// ErrRefRace indicates that a compare-and-swap ref update lost a race
	ErrRefRace = errors.New("ref update race")
)

// Process exit codes for the gitq command surface.
const (
	ExitOK           = 0 // success or no-op
	ExitConflicts    = 1 // paused awaiting the user: conflicts or an amendment
	ExitPrecondition = 2 // precondition or configuration violation
	ExitRefRace      = 3 // ref update race, nothing written
)

// ConflictsPendingError pauses an operation on unresolved merge conflicts.
type ConflictsPendingError struct {
	Paths []string
}

func (e *ConflictsPendingError) Error() string {
	if len(e.Paths) == 0 {
		return "conflicts pending"
	}
	return fmt.Sprintf("conflicts pending in: %s", strings.Join(e.Paths, ", "))
}

// Is returns true if the target error is ErrConflictsPending
func (e *ConflictsPendingError) Is(target error) bool {
	return target == ErrConflictsPending
}

// NewConflictsPendingError creates a new ConflictsPendingError
func NewConflictsPendingError(paths []string) *ConflictsPendingError {
	return &ConflictsPendingError{Paths: paths}
}

// PreconditionError reports a violated operation precondition: dirty working
// tree, malformed swap target, already-pending sequencer state, and so on.
// Nothing has been mutated when one of these is returned.
type PreconditionError struct {
	Violation string
}

func (e *PreconditionError) Error() string {
	return e.Violation
}

// NewPreconditionError creates a new PreconditionError
func NewPreconditionError(format string, args ...interface{}) *PreconditionError {
	return &PreconditionError{Violation: fmt.Sprintf(format, args...)}
}

// ConfigError reports an unresolvable or invalid baseline configuration.
type ConfigError struct {
	Message string
	Err     error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// NewConfigError creates a new ConfigError
func NewConfigError(message string, err error) *ConfigError {
	return &ConfigError{Message: message, Err: err}
}

// RefRaceError reports that a compare-and-swap update of a branch ref failed
// because another process moved the ref. The operation wrote nothing reachable
// and is safe to re-run.
type RefRaceError struct {
	Ref      string
	Expected string
}

func (e *RefRaceError) Error() string {
	return fmt.Sprintf("ref %s moved since it was read (expected %s); operation aborted", e.Ref, e.Expected)
}

// Is returns true if the target error is ErrRefRace
func (e *RefRaceError) Is(target error) bool {
	return target == ErrRefRace
}

// NewRefRaceError creates a new RefRaceError
func NewRefRaceError(ref, expected string) *RefRaceError {
	return &RefRaceError{Ref: ref, Expected: expected}
}

// GitCommandError represents an error from a git command execution
type GitCommandError struct {
	Command  string
	Args     []string
	Stdout   string
	Stderr   string
	ExitCode int
	Err      error
}

func (e *GitCommandError) Error() string {
	msg := fmt.Sprintf("git command failed: %s", e.Command)
	if len(e.Args) > 0 {
		msg += fmt.Sprintf(" %v", e.Args)
	}
	if e.Stderr != "" {
		msg += fmt.Sprintf("\nstderr: %s", e.Stderr)
	}
	if e.Stdout != "" {
		msg += fmt.Sprintf("\nstdout: %s", e.Stdout)
	}
	if e.Err != nil {
		msg += fmt.Sprintf("\n%v", e.Err)
	}
	return msg
}

func (e *GitCommandError) Unwrap() error {
	return e.Err
}

// NewGitCommandError creates a new GitCommandError
func NewGitCommandError(command string, args []string, stdout, stderr string, exitCode int, err error) *GitCommandError {
	return &GitCommandError{
		Command:  command,
		Args:     args,
		Stdout:   stdout,
		Stderr:   stderr,
		ExitCode: exitCode,
		Err:      err,
	}
}

// ExitCode maps an error to the gitq process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, ErrConflictsPending), errors.Is(err, ErrEditPending):
		return ExitConflicts
	case errors.Is(err, ErrRefRace):
		return ExitRefRace
	default:
		return ExitPrecondition
	}
}
