package services

// Typed errors let the handler layer map failures to client-visible status
// codes in one place.

type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string { return "Validation error" }

type ConflictError struct{ Message string }

func (e *ConflictError) Error() string { return e.Message }

type NotFoundError struct{ Message string }

func (e *NotFoundError) Error() string { return e.Message }

type UnauthorizedError struct{ Message string }

func (e *UnauthorizedError) Error() string { return e.Message }

type ForbiddenError struct{ Message string }

func (e *ForbiddenError) Error() string { return e.Message }

type RateLimitError struct{ Message string }

func (e *RateLimitError) Error() string { return e.Message }

// InferenceError reasons. An inference failure aborts the pipeline after the
// user message is already durable, so it must stay distinguishable from a
// store failure.
const (
	InferenceUnreachable = "unreachable"
	InferenceMalformed   = "malformed_response"
)

type InferenceError struct {
	Reason  string
	Message string
}

func (e *InferenceError) Error() string { return e.Message }

// StoreError is a persistence failure; fatal to the current request, not to
// the process.
type StoreError struct {
	Message string
	Err     error
}

func (e *StoreError) Error() string { return e.Message }

func (e *StoreError) Unwrap() error { return e.Err }
