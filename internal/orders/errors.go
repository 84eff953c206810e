package orders

import "errors"

var (
	ErrValidation        = errors.New("validation failed")
	ErrNotFound          = errors.New("not found")
	ErrSignatureMismatch = errors.New("payment signature mismatch")
)
