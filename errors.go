package toolrack

import (
	"errors"
	"fmt"
)

// Sentinel errors for toolrack. Use errors.Is to check.
var (
	ErrToolNotFound     = errors.New("tool not found")
	ErrValidation       = errors.New("validation failed")
	ErrShutdown         = errors.New("registry is shutting down")
	ErrAsyncUnsupported = errors.New("async execution requires an async function or a proxy callable")
	ErrAnonymousTool    = errors.New("a name must be provided for anonymous functions")
	ErrNothingToSpinoff = errors.New("no tools with the given prefix found in the registry")
	ErrPoolUnavailable  = errors.New("process pool is not available")
)

// ClientError is an error that should be sent back to the LLM for
// self-correction (e.g. invalid JSON, schema validation failure, bad enum
// value). Do not expose stack traces or internal details to the LLM.
// Err optionally wraps a sentinel (e.g. ErrValidation) for errors.Is/errors.As.
type ClientError struct {
	Reason string
	Err    error
}

func (e *ClientError) Error() string {
	return fmt.Sprintf("invalid tool input: %s", e.Reason)
}

// Unwrap supports errors.Is/errors.As on wrapped chains (e.g. errors.Is(err, ErrValidation)).
func (e *ClientError) Unwrap() error { return e.Err }

// SystemError represents an internal failure (worker process gone, panic,
// marshaling failure). The underlying error is kept for logs only.
type SystemError struct {
	Err error
}

func (e *SystemError) Error() string {
	return "internal system error during tool execution"
}

func (e *SystemError) Unwrap() error { return e.Err }

// IsClientError returns true if err is or wraps a ClientError.
func IsClientError(err error) bool {
	var ce *ClientError
	return errors.As(err, &ce)
}

// IsSystemError returns true if err is or wraps a SystemError.
func IsSystemError(err error) bool {
	var se *SystemError
	return errors.As(err, &se)
}

// wrapJSONParseError returns a ClientError for JSON unmarshal failures so
// parse errors read consistently across typed and proxy tools.
func wrapJSONParseError(err error) error {
	return &ClientError{Reason: "json parse error: " + err.Error()}
}

// errMessage extracts the human-readable cause of err for the
// "Error executing <name>: <message>" result convention. ClientError carries
// the reason directly; SystemError exposes its wrapped cause.
func errMessage(err error) string {
	var ce *ClientError
	if errors.As(err, &ce) {
		return ce.Reason
	}
	var se *SystemError
	if errors.As(err, &se) && se.Err != nil {
		return se.Err.Error()
	}
	return err.Error()
}

// panicError wraps a recovered panic value; used by Tool.Run and the
// executor workers.
type panicError struct{ p any }

func (e *panicError) Error() string {
	return "panic: " + fmt.Sprint(e.p)
}
