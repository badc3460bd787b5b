package pipeline

import (
	"errors"
	"fmt"
)

// Kind classifies pipeline failures so the presentation layer can pick a
// message without inspecting the underlying error.
type Kind string

const (
	// KindValidation means the request was incomplete; nothing was processed.
	KindValidation Kind = "validation"
	// KindDecode means the audio could not be read or measured.
	KindDecode Kind = "decode"
	// KindEncode means caption rendering or video encoding failed.
	KindEncode Kind = "encode"
	// KindCleanup means temporary storage could not be released.
	KindCleanup Kind = "cleanup"
)

// Static validation and decode errors.
var (
	// ErrMissingAudio is returned when no audio (or an empty file) was supplied.
	ErrMissingAudio = errors.New("audio file is required")
	// ErrMissingLyrics is returned when the lyrics contain no non-blank line.
	ErrMissingLyrics = errors.New("lyrics are required")
	// ErrZeroDuration is returned when the audio has no playable length.
	ErrZeroDuration = errors.New("audio has no playable duration")
)

// Error is a failure of one pipeline stage.
type Error struct {
	Kind  Kind
	Stage string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s failed (%s): %v", e.Stage, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the Kind of the first *Error in err's chain, or "" when err
// carries none.
func KindOf(err error) Kind {
	var pErr *Error
	if errors.As(err, &pErr) {
		return pErr.Kind
	}
	return ""
}

func validationError(stage string, err error) error {
	return &Error{Kind: KindValidation, Stage: stage, Err: err}
}

func decodeError(stage string, err error) error {
	return &Error{Kind: KindDecode, Stage: stage, Err: err}
}

func encodeError(stage string, err error) error {
	return &Error{Kind: KindEncode, Stage: stage, Err: err}
}
