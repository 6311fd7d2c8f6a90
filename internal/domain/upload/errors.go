package upload

import "errors"

var (
	ErrInvalidMimeType     = errors.New("file type is not allowed")
	ErrAuthorizationFailed = errors.New("upload authorization failed")
)
