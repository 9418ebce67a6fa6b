package imageio

import (
	"errors"
	"fmt"
)

// Validation checks reported by ValidationError.
const (
	CheckSize       = "size"
	CheckExtension  = "extension"
	CheckDecode     = "decode"
	CheckFormat     = "format"
	CheckDimensions = "dimensions"
)

// ErrUnsupportedOutput is returned when an output path has an extension
// that cannot be encoded.
var ErrUnsupportedOutput = errors.New("unsupported output format")

// ValidationError reports an input that was rejected before reaching the
// model. Check names the failed check.
type ValidationError struct {
	Check string
	Path  string
	Err   error
}

func (e *ValidationError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("invalid image (%s): %v", e.Check, e.Err)
	}
	return fmt.Sprintf("invalid image %s (%s): %v", e.Path, e.Check, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// IsValidation reports whether err wraps a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func invalid(check, path string, err error) error {
	return &ValidationError{Check: check, Path: path, Err: err}
}
