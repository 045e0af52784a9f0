package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput          = errors.New("invalid input")
	ErrNotFound              = errors.New("not found")
	ErrRecognizerUnavailable = errors.New("recognizer unavailable")
	ErrTranscriptionFailure  = errors.New("transcription failure")
	ErrReviewConflict        = errors.New("review conflict")
	ErrVersionManager        = errors.New("version manager failure")
	ErrTemporary             = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
