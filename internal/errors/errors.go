package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents an agentos error code.
type ErrorCode string

const (
	ErrInvalidRequest  ErrorCode = "INVALID_REQUEST"  // exit 1
	ErrNotARepo        ErrorCode = "NOT_A_REPO"       // exit 1
	ErrNotApplicable   ErrorCode = "NOT_APPLICABLE"   // exit 0
	ErrBlocked         ErrorCode = "BLOCKED"          // exit 2
	ErrNoBoundary      ErrorCode = "NO_BOUNDARY"      // exit 1
	ErrCommitFailed    ErrorCode = "COMMIT_FAILED"    // exit 1
	ErrFindings        ErrorCode = "FINDINGS"         // exit 2
	ErrMissingDoc      ErrorCode = "MISSING_DOC"      // exit 1
	ErrToolUnavailable ErrorCode = "TOOL_UNAVAILABLE" // exit 1
	ErrInternal        ErrorCode = "INTERNAL"         // exit 1
)

// Exit codes shared by the CLI commands. Each command documents which of
// these it can produce; they are not a uniform contract.
const (
	ExitOK        = 0
	ExitFailure   = 1
	ExitAttention = 2
)

// AgentError represents a structured error with code, exit code, and details.
type AgentError struct {
	Code     ErrorCode
	ExitCode int
	Message  string
	Details  map[string]any
}

// Error implements the error interface.
func (e *AgentError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewInvalidRequest creates an error for malformed flags or arguments.
func NewInvalidRequest(msg string) *AgentError {
	return &AgentError{
		Code:     ErrInvalidRequest,
		ExitCode: ExitFailure,
		Message:  msg,
	}
}

// NewNotARepo creates an error for a working directory outside any git repository.
func NewNotARepo(dir string) *AgentError {
	return &AgentError{
		Code:     ErrNotARepo,
		ExitCode: ExitFailure,
		Message:  fmt.Sprintf("not inside a git repository: %s", dir),
		Details:  map[string]any{"dir": dir},
	}
}

// NewNotApplicable reports that a command has nothing to do here.
// It exits 0 so hooks never block on projects they do not manage.
func NewNotApplicable(msg string) *AgentError {
	return &AgentError{
		Code:     ErrNotApplicable,
		ExitCode: ExitOK,
		Message:  msg,
	}
}

// NewBlocked creates an error for a gate or stop-hook refusal.
func NewBlocked(reason string) *AgentError {
	return &AgentError{
		Code:     ErrBlocked,
		ExitCode: ExitAttention,
		Message:  reason,
	}
}

// NewNoBoundary creates an error for an unrecognized commit boundary label.
func NewNoBoundary(label string) *AgentError {
	return &AgentError{
		Code:     ErrNoBoundary,
		ExitCode: ExitFailure,
		Message:  fmt.Sprintf("no commit boundary for context %q", label),
		Details:  map[string]any{"context": label},
	}
}

// NewCommitFailed wraps a failed git commit. There is no retry.
func NewCommitFailed(output string) *AgentError {
	return &AgentError{
		Code:     ErrCommitFailed,
		ExitCode: ExitFailure,
		Message:  "git commit failed",
		Details:  map[string]any{"output": output},
	}
}

// NewFindings reports advisory findings. Not a failure, but exit 2.
func NewFindings(count int) *AgentError {
	return &AgentError{
		Code:     ErrFindings,
		ExitCode: ExitAttention,
		Message:  fmt.Sprintf("%d documentation update(s) recommended", count),
		Details:  map[string]any{"count": count},
	}
}

// NewMissingDoc creates an error for a required document that does not exist.
func NewMissingDoc(path string) *AgentError {
	return &AgentError{
		Code:     ErrMissingDoc,
		ExitCode: ExitFailure,
		Message:  fmt.Sprintf("required document missing: %s (re-run with --create-missing)", path),
		Details:  map[string]any{"path": path},
	}
}

// NewToolUnavailable creates an error for a missing or failing external tool.
func NewToolUnavailable(tool string, err error) *AgentError {
	msg := fmt.Sprintf("%s unavailable", tool)
	if err != nil {
		msg = fmt.Sprintf("%s unavailable: %v", tool, err)
	}
	return &AgentError{
		Code:     ErrToolUnavailable,
		ExitCode: ExitFailure,
		Message:  msg,
		Details:  map[string]any{"tool": tool},
	}
}

// NewInternal creates an error for unexpected internal failures.
func NewInternal(err error) *AgentError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &AgentError{
		Code:     ErrInternal,
		ExitCode: ExitFailure,
		Message:  msg,
	}
}

// Is checks if an error is (or wraps) an AgentError with the given code.
func Is(err error, code ErrorCode) bool {
	var aErr *AgentError
	if stderrors.As(err, &aErr) {
		return aErr.Code == code
	}
	return false
}

// ExitCodeOf returns the exit code carried by err.
// nil maps to 0 and foreign errors map to 1.
func ExitCodeOf(err error) int {
	if err == nil {
		return ExitOK
	}
	var aErr *AgentError
	if stderrors.As(err, &aErr) {
		return aErr.ExitCode
	}
	return ExitFailure
}
