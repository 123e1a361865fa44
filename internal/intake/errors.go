package intake

import "errors"

// Intake failures. Callers match them with errors.Is; the returned errors
// wrap these with detail about the offending input.
var (
	ErrUnsupportedFormat = errors.New("unsupported image format")
	ErrPayloadTooLarge   = errors.New("image exceeds upload limit")
	ErrReadFailure       = errors.New("failed to read image")
	ErrUnknownSample     = errors.New("unknown sample image")
)
