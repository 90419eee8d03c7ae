package models

import (
	"errors"
	"fmt"
)

// ErrValidation marks input that failed a business rule. The HTTP layer maps
// it to 422.
var ErrValidation = errors.New("validation failed")

func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
