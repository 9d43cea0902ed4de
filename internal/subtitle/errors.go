package subtitle

import (
	"errors"
	"fmt"
)

// ErrFormat matches every *FormatError via errors.Is.
var ErrFormat = errors.New("incorrect subtitle format")

type FormatErrorKind int

const (
	ErrEmptyInput FormatErrorKind = iota
	ErrInvalidIndex
	ErrInvalidTiming
	ErrNonPositiveDuration
	ErrEmptyText
)

func (k FormatErrorKind) String() string {
	switch k {
	case ErrEmptyInput:
		return "EmptyInput"
	case ErrInvalidIndex:
		return "InvalidIndex"
	case ErrInvalidTiming:
		return "InvalidTiming"
	case ErrNonPositiveDuration:
		return "NonPositiveDuration"
	case ErrEmptyText:
		return "EmptyText"
	default:
		return "Unknown"
	}
}

// FormatError reports why a text could not be parsed.
// Block and Line are 1-based; both are zero for ErrEmptyInput.
type FormatError struct {
	Kind  FormatErrorKind
	Block int
	Line  int
	Value string
}

func (e *FormatError) Error() string {
	switch e.Kind {
	case ErrEmptyInput:
		return "subtitle text is empty or has no cues"
	case ErrInvalidIndex:
		return fmt.Sprintf("line %d: invalid cue index %q", e.Line, e.Value)
	case ErrInvalidTiming:
		return fmt.Sprintf("line %d: invalid timing line %q", e.Line, e.Value)
	case ErrNonPositiveDuration:
		return fmt.Sprintf("line %d: cue ends before it starts %q", e.Line, e.Value)
	case ErrEmptyText:
		return fmt.Sprintf("line %d: cue %d has no text", e.Line, e.Block)
	default:
		return fmt.Sprintf("line %d: %s", e.Line, ErrFormat)
	}
}

func (e *FormatError) Is(target error) bool {
	return target == ErrFormat
}

// IsFormatError reports whether err is or wraps a *FormatError.
func IsFormatError(err error) bool {
	var formatErr *FormatError
	return errors.As(err, &formatErr)
}
