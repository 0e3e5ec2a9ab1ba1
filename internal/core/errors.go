// internal/core/errors.go
package core

import "fmt"

// Error represents a structured error with code and optional cause.
type Error struct {
	Code    string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is matching by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// WrapError creates a new error with the same code but with a cause.
func WrapError(base *Error, cause error) *Error {
	return &Error{
		Code:    base.Code,
		Message: base.Message,
		Cause:   cause,
	}
}

// Predefined errors
var (
	// Data errors
	ErrNoData         = &Error{Code: "NO_DATA", Message: "no market data available"}
	ErrSymbolNotFound = &Error{Code: "SYMBOL_NOT_FOUND", Message: "symbol not found"}

	// Strategy errors
	ErrUnknownIndicator = &Error{Code: "UNKNOWN_INDICATOR", Message: "unknown indicator"}
	ErrConditionEval    = &Error{Code: "CONDITION_EVAL", Message: "condition expression invalid"}
	ErrStrategyInvalid  = &Error{Code: "STRATEGY_INVALID", Message: "strategy definition invalid"}

	// Simulation errors
	ErrSimulation = &Error{Code: "SIMULATION_FAILED", Message: "simulation failed"}

	// Registry errors
	ErrPortfolioNotFound  = &Error{Code: "PORTFOLIO_NOT_FOUND", Message: "portfolio not found"}
	ErrStrategyNotFound   = &Error{Code: "STRATEGY_NOT_FOUND", Message: "strategy not found"}
	ErrDeploymentNotFound = &Error{Code: "DEPLOYMENT_NOT_FOUND", Message: "deployment not found"}
	ErrDeploymentExists   = &Error{Code: "DEPLOYMENT_EXISTS", Message: "deployment already active"}
	ErrJobNotFound        = &Error{Code: "JOB_NOT_FOUND", Message: "job not found"}

	// Config errors
	ErrConfigInvalid = &Error{Code: "CONFIG_INVALID", Message: "configuration invalid"}
	ErrConfigMissing = &Error{Code: "CONFIG_MISSING", Message: "required configuration missing"}

	// Notifier errors
	ErrNotifierFailed = &Error{Code: "NOTIFIER_FAILED", Message: "notifier failed"}
)
