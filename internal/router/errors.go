package router

import "errors"

var (
	ErrEmptyCommand     = errors.New("EMPTY_COMMAND")
	ErrModeMismatch     = errors.New("DELIVERY_MODE_MISMATCH")
	ErrUnauthenticated  = errors.New("UNAUTHENTICATED")
	ErrNotAuthoritative = errors.New("NOT_AUTHORITATIVE")
	ErrDuplicateCommand = errors.New("DUPLICATE_COMMAND")
	ErrNoHandler        = errors.New("NO_HANDLER")
	ErrForbidden        = errors.New("FORBIDDEN")
)
