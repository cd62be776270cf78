package core

import "errors"

// Error codes for domain errors.
const (
	ErrCodeBadRequest      = "bad_request"
	ErrCodeUnauthorized    = "unauthorized"
	ErrCodeMessageNotFound = "message_not_found"
	ErrCodeEmptyMessage    = "empty_message"
	ErrCodeFileTooLarge    = "file_too_large"
	ErrCodeInvalidFileType = "invalid_file_type"
	ErrCodeUploadFailed    = "upload_failed"
	ErrCodeProviderFailed  = "provider_failed"
	ErrCodeRateLimited     = "rate_limited"
	ErrCodeInvalidTheme    = "invalid_theme"
)

var (
	ErrMessageNotFound = errors.New("message not found")
	ErrEmptyMessage    = errors.New("message has no text and no attachment")
	ErrEmptyEmoji      = errors.New("emoji is required")
	ErrUploadFailed    = errors.New("failed to upload file")
	ErrSessionClosed   = errors.New("session closed")
)

// CoreError wraps a code and human-readable message.
type CoreError struct {
	Code    string
	Message string
	Err     error
}

func (e *CoreError) Error() string {
	return e.Message
}

func (e *CoreError) Unwrap() error {
	return e.Err
}

func coreError(code string, err error) *CoreError {
	return &CoreError{Code: code, Message: err.Error(), Err: err}
}

// ErrorCode extracts the domain code from err, or "" when err carries none.
func ErrorCode(err error) string {
	var ce *CoreError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ""
}
