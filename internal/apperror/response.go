package apperror

import "errors"

// Response is the JSON body of every error response:
//
//	{"error": "validation_error", "message": "Failed to create new user."}
type Response struct {
	Error   string `json:"error"`   // machine-readable kind, e.g. "forbidden"
	Message string `json:"message"` // safe to show to a user
}

// Error kinds carried in Response.Error.
const (
	KindValidation = "validation_error"
	KindNotFound   = "not_found"
	KindForbidden  = "forbidden"
	KindConflict   = "conflict"
	KindInternal   = "internal_error"
)

// MsgInternal is sent for any error that is not an *AppError.
const MsgInternal = "An internal error occurred"

// NewResponse builds the client body for err. Unclassified errors become a
// generic internal error; their text is never exposed.
func NewResponse(err error) Response {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return Response{Error: KindInternal, Message: MsgInternal}
	}

	kind := KindInternal
	switch {
	case errors.Is(err, ErrValidation):
		kind = KindValidation
	case errors.Is(err, ErrNotFound):
		kind = KindNotFound
	case errors.Is(err, ErrForbidden):
		kind = KindForbidden
	case errors.Is(err, ErrConflict):
		kind = KindConflict
	}
	return Response{Error: kind, Message: appErr.Message}
}
