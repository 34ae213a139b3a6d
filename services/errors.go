package services

import "errors"

// Contract violations rejected synchronously, before any network call or
// progress tracking starts.
var (
	ErrUnsupportedFileType = errors.New("unsupported file type")
	ErrInvalidSearchMode   = errors.New("invalid search mode")
	ErrInvalidField        = errors.New("invalid field")
)
