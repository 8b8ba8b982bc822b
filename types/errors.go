/*
Copyright © 2026 TradeOps Engineering
*/
package types

import (
	"errors"
	"fmt"
)

// Error codes partition failures by how callers should react.
const (
	// CodeValidation marks bad input: unknown dependency id, cycle,
	// unknown reviewer. Surfaced immediately, never retried.
	CodeValidation = "VALIDATION"
	// CodeNotFound marks lookups of tasks that do not exist.
	CodeNotFound = "NOT_FOUND"
	// CodePrecondition marks operations attempted before their
	// conditions hold (finalize without consensus or dependencies).
	// Callers may retry later.
	CodePrecondition = "PRECONDITION_FAILED"
	// CodeDispatch marks worker failures recorded against a task.
	CodeDispatch = "DISPATCH_FAILURE"
)

// Error provides structured error information for CLI and scheduler
// consumers: a machine-readable code plus a human-readable message.
type Error struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewError creates a structured error with the given code.
func NewError(code string, message string, details map[string]interface{}) *Error {
	return &Error{Code: code, Message: message, Details: details}
}

// ValidationError creates a CodeValidation error with a formatted message.
func ValidationError(format string, args ...interface{}) *Error {
	return &Error{Code: CodeValidation, Message: fmt.Sprintf(format, args...)}
}

// NotFoundError creates a CodeNotFound error for the given task id.
func NotFoundError(id string) *Error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf("task not found: %s", id)}
}

// PreconditionError creates a CodePrecondition error with a formatted message.
func PreconditionError(format string, args ...interface{}) *Error {
	return &Error{Code: CodePrecondition, Message: fmt.Sprintf(format, args...)}
}

// CLI exit codes.
const (
	ExitOK           = 0
	ExitValidation   = 1
	ExitNotFound     = 2
	ExitPrecondition = 3
)

// ExitCode maps an error to the CLI exit code contract:
// 0 success, 1 validation error, 2 not found, 3 precondition failed.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var te *Error
	if errors.As(err, &te) {
		switch te.Code {
		case CodeNotFound:
			return ExitNotFound
		case CodePrecondition:
			return ExitPrecondition
		}
	}
	return ExitValidation
}

// Expected stop conditions for the autonomous loop. These are not
// failures: the loop pauses or exits cleanly when it sees them.
var (
	// ErrConcurrencyLost means another scheduler claimed the task
	// first. Never surfaced to users; the loop silently moves on.
	ErrConcurrencyLost = errors.New("task already claimed by another scheduler")
	// ErrRateLimited means the rolling-window claim budget is spent.
	ErrRateLimited = errors.New("claim rate limit reached for the current window")
	// ErrBudgetExceeded means dispatching would breach the cost ceiling.
	ErrBudgetExceeded = errors.New("budget ceiling would be exceeded")
)
