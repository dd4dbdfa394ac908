package moderation

import "errors"

// Moderation service errors. The gate never returns these to callers;
// they are logged and the text is allowed.
var (
	// ErrUnexpectedStatus is returned when the service answers with a non-2xx status.
	ErrUnexpectedStatus = errors.New("moderation service returned unexpected status")

	// ErrMalformedResponse is returned when the response carries no usable scores.
	ErrMalformedResponse = errors.New("moderation service returned malformed response")

	// ErrRequestFailed is returned when the service could not be reached.
	ErrRequestFailed = errors.New("moderation request failed")
)
