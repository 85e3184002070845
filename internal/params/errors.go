package params

import "errors"

var (
	ErrLengthMismatch = errors.New("params: vector length does not match parameter count")
	ErrInvalidLimits  = errors.New("params: invalid limits")
	ErrDuplicateName  = errors.New("params: duplicate parameter name")
	ErrEmptyName      = errors.New("params: empty parameter name")
)
