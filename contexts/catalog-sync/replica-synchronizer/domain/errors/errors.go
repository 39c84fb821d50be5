package errors

import "errors"

var (
	ErrUnknownTable          = errors.New("unknown table")
	ErrMalformedEvent        = errors.New("malformed change event")
	ErrUnsupportedOperation  = errors.New("unsupported operation")
	ErrForeignKeyViolation   = errors.New("foreign key violation")
	ErrUniqueViolation       = errors.New("unique violation")
	ErrRetryExhausted        = errors.New("ordering retries exhausted")
	ErrSideEffect            = errors.New("side effect failed")
	ErrMissingRequiredFields = errors.New("missing required fields")
)

// IsTransientOrdering reports a referential-integrity failure that may clear
// once the parent row arrives.
func IsTransientOrdering(err error) bool {
	return errors.Is(err, ErrForeignKeyViolation)
}

// IsPermanent reports failures that retrying can never fix.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrUnknownTable) ||
		errors.Is(err, ErrMalformedEvent) ||
		errors.Is(err, ErrUnsupportedOperation)
}
