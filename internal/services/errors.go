package services

import "errors"

var (
	// ErrNotFound is returned when a result or preview does not exist
	ErrNotFound = errors.New("not found")
	// ErrNoFile is returned when an upload carries no file or filename
	ErrNoFile = errors.New("no file selected")
	// ErrUnsupportedFormat is returned when the file extension is not allowed
	ErrUnsupportedFormat = errors.New("unsupported format")
	// ErrFileTooLarge is returned when an upload exceeds the size limit
	ErrFileTooLarge = errors.New("file too large")
)
