// Package outcome provides the uniform result wrapper returned by every
// service operation. Expected failures are carried as a message plus an
// HTTP-aligned status code instead of an error return.
package outcome

// Status codes carried by failed outcomes. They align with HTTP semantics so
// the transport layer can map them directly.
const (
	CodeValidation     = 400
	CodeAuthentication = 401
	CodeAuthorization  = 403
	CodeNotFound       = 404
	CodeGone           = 410
	CodeRateLimited    = 429
	CodeInternal       = 500
)

// Outcome wraps either a successful value or a failure message with a status
// code. The zero value is a failure with no message.
type Outcome[T any] struct {
	Success bool
	Value   T
	Message string
	Code    int
}

// Ok returns a successful outcome carrying v.
func Ok[T any](v T) Outcome[T] {
	return Outcome[T]{Success: true, Value: v}
}

// Fail returns a failed outcome with the given status code and message.
func Fail[T any](code int, message string) Outcome[T] {
	return Outcome[T]{Code: code, Message: message}
}

// Internal wraps an unexpected collaborator error as a 500-coded failure.
// It is the only constructor services use for errors they did not anticipate.
func Internal[T any](err error) Outcome[T] {
	return Outcome[T]{Code: CodeInternal, Message: err.Error()}
}
