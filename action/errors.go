package action

import "fmt"

type UnboundCapabilityError struct {
	ActionId string
}

func (e UnboundCapabilityError) Error() string {
	return fmt.Sprintf("action %s has no bound method", e.ActionId)
}

type InvalidCapabilityError struct {
	Method string
	Reason string
}

func (e InvalidCapabilityError) Error() string {
	return fmt.Sprintf("invalid method %s: %s", e.Method, e.Reason)
}

// ExecutorError wraps a failure returned by a runner.
type ExecutorError struct {
	ActionId string
	Method   string
	Err      error
}

func (e *ExecutorError) Error() string {
	return fmt.Sprintf("action %s: method %s failed: %v", e.ActionId, e.Method, e.Err)
}

func (e *ExecutorError) Unwrap() error {
	return e.Err
}

type RetryBudgetExceededError struct {
	ActionId string
	Attempts int
	Err      error
}

func (e *RetryBudgetExceededError) Error() string {
	return fmt.Sprintf("action %s: retry budget exceeded after %d attempts: %v", e.ActionId, e.Attempts, e.Err)
}

func (e *RetryBudgetExceededError) Unwrap() error {
	return e.Err
}

// PolicyError is returned by Run when the error policy of the action claims the failure.
// The owner of the action decides how to continue.
type PolicyError struct {
	Policy OnErrorAction
	Err    error
}

func (e *PolicyError) Error() string {
	return fmt.Sprintf("%s: %v", e.Policy, e.Err)
}

func (e *PolicyError) Unwrap() error {
	return e.Err
}
