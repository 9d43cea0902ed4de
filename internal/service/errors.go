package service

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

type ErrorType int

const (
	ErrFileNotFound ErrorType = iota
	ErrFileRead
	ErrFileWrite
	ErrParse
	ErrEncoding
	ErrMedia
	ErrValidation
	ErrConfig
	ErrNotPossible
	ErrFailedToLoad
	ErrUnknown
)

type MergeError struct {
	Type    ErrorType
	Message string
	Context map[string]any
	Cause   error
}

func NewError(errorType ErrorType, message string) *MergeError {
	return &MergeError{
		Type:    errorType,
		Message: message,
		Context: make(map[string]any),
	}
}

func NewErrorWithCause(errorType ErrorType, message string, cause error) *MergeError {
	return &MergeError{
		Type:    errorType,
		Message: message,
		Context: make(map[string]any),
		Cause:   cause,
	}
}

func (e *MergeError) Error() string {
	var parts []string
	parts = append(parts, fmt.Sprintf("[%s] %s", e.Type.String(), e.Message))

	if len(e.Context) > 0 {
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var ctxParts []string
		for _, k := range keys {
			ctxParts = append(ctxParts, fmt.Sprintf("%s=%v", k, e.Context[k]))
		}
		parts = append(parts, fmt.Sprintf("context: %s", strings.Join(ctxParts, ", ")))
	}

	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("cause: %v", e.Cause))
	}

	return strings.Join(parts, " | ")
}

func (e *MergeError) Unwrap() error {
	return e.Cause
}

func (e *MergeError) WithContext(key string, value any) *MergeError {
	e.Context[key] = value
	return e
}

func (t ErrorType) String() string {
	switch t {
	case ErrFileNotFound:
		return "FileNotFound"
	case ErrFileRead:
		return "FileRead"
	case ErrFileWrite:
		return "FileWrite"
	case ErrParse:
		return "Parse"
	case ErrEncoding:
		return "Encoding"
	case ErrMedia:
		return "Media"
	case ErrValidation:
		return "Validation"
	case ErrConfig:
		return "Config"
	case ErrNotPossible:
		return "NotPossible"
	case ErrFailedToLoad:
		return "FailedToLoad"
	default:
		return "Unknown"
	}
}

// Advice returns a hint for resolving err, or "" when err is not a *MergeError.
func Advice(err error) string {
	var mergeErr *MergeError
	if !errors.As(err, &mergeErr) {
		return ""
	}
	return mergeErr.Advice()
}

// Advice returns a hint for resolving the error.
func (e *MergeError) Advice() string {
	switch e.Type {
	case ErrFileNotFound:
		return "Please check that the file path is correct and ensure the file exists with read permissions"
	case ErrFileRead:
		return "Please check file permissions to ensure read access and verify the file is not corrupted"
	case ErrFileWrite:
		return "Please ensure the output directory exists and has write permissions"
	case ErrParse:
		return "Please verify the subtitles are in the SubRip (.srt) format"
	case ErrEncoding:
		return "Please pick another encoding for the subtitle file"
	case ErrMedia:
		return "Please check that ffmpeg and ffprobe are installed and the video is readable"
	case ErrValidation:
		return "Please verify input parameters are correct; file paths cannot be empty"
	case ErrConfig:
		return "Please check that configuration files or environment variables are set correctly"
	case ErrNotPossible:
		return "Please select subtitles manually or add subtitles in the required languages"
	case ErrFailedToLoad:
		return "Please check the subtitle streams of the video, some of them could not be read"
	default:
		return "Please review detailed error information and check relevant configuration and files"
	}
}

func IsErrorType(err error, errorType ErrorType) bool {
	var mergeErr *MergeError
	if errors.As(err, &mergeErr) {
		return mergeErr.Type == errorType
	}
	return false
}

func WrapError(err error, errorType ErrorType, message string) *MergeError {
	return NewErrorWithCause(errorType, message, err)
}

// SafeExecute runs fn and turns a panic into an ErrUnknown error.
func SafeExecute(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = NewError(ErrUnknown, fmt.Sprintf("runtime error: %v", r))
		}
	}()

	return fn()
}
