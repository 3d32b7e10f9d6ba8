package ai

import "errors"

var (
	// ErrInvalidConfig indicates a Config that failed validation.
	ErrInvalidConfig = errors.New("invalid ai config")

	// ErrMissingCredentials indicates a hosted service configured without an API key.
	ErrMissingCredentials = errors.New("ai service credentials missing")

	// ErrEmptyPrompt indicates a GenerateRequest without prompt text.
	ErrEmptyPrompt = errors.New("prompt cannot be empty")

	// ErrEmptyResponse indicates the service answered without any content.
	ErrEmptyResponse = errors.New("empty response from ai service")
)
