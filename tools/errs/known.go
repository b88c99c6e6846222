package errs

import "net/http"

// Error codes for the conversation engine. Grouped by the HTTP class the
// transport maps them to; codes are stable, messages are defaults.
const (
	CodeValidation        = 42201
	CodeForbidden         = 40301
	CodeEditWindowExpired = 40302
	CodeNotFound          = 40401
	CodeConflict          = 40901
	CodeTransientStorage  = 50301
)

var (
	ErrValidation        = NewCodeError(CodeValidation, "validation failed")
	ErrForbidden         = NewCodeError(CodeForbidden, "forbidden")
	ErrEditWindowExpired = NewCodeError(CodeEditWindowExpired, "edit window expired")
	ErrNotFound          = NewCodeError(CodeNotFound, "not found")
	ErrConflict          = NewCodeError(CodeConflict, "conflict")
	ErrTransientStorage  = NewCodeError(CodeTransientStorage, "storage unavailable")
)

func init() {
	// EditWindowExpired is surfaced distinctly but behaves as Forbidden.
	DefaultCodeRelation.Add(CodeForbidden, CodeEditWindowExpired)
}

// HTTPStatus maps an error's code to the transport status. Unknown errors
// are treated as internal.
func HTTPStatus(err error) int {
	switch Code(err) {
	case CodeValidation:
		return http.StatusUnprocessableEntity
	case CodeForbidden, CodeEditWindowExpired:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeTransientStorage:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
