package notesync

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrUnauthenticated         = errors.New("not authenticated")
	ErrValidationFailed        = errors.New("validation failed")
	ErrInsufficientContent     = errors.New("content too short to summarize")
	ErrAlreadyInProgress       = errors.New("summarization already in progress")
	ErrSummaryGenerationFailed = errors.New("summary generation failed")
	ErrRemoteFailure           = errors.New("remote failure")
	ErrNoDataReturned          = errors.New("no data returned")
)

// RemoteError is any store or summarizer failure. errors.Is(err, ErrRemoteFailure) holds.
type RemoteError struct {
	Op  string
	Err error
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *RemoteError) Unwrap() error { return e.Err }

func (e *RemoteError) Is(target error) bool { return target == ErrRemoteFailure }

// SummaryNotSavedError reports a summary that was generated but could not be persisted.
// The generated text is kept so callers can show or retry it.
type SummaryNotSavedError struct {
	Summary string
	Err     error
}

func (e *SummaryNotSavedError) Error() string {
	return fmt.Sprintf("summary generated but not saved: %v", e.Err)
}

func (e *SummaryNotSavedError) Unwrap() error { return e.Err }

// ShortContentError is ErrInsufficientContent with the threshold that applied.
type ShortContentError struct {
	Min int
	Got int
}

func (e *ShortContentError) Error() string {
	return fmt.Sprintf("%v: %d of %d characters", ErrInsufficientContent, e.Got, e.Min)
}

func (e *ShortContentError) Is(target error) bool { return target == ErrInsufficientContent }

func remoteFailure(op string, err error) error {
	var re *RemoteError
	if errors.As(err, &re) {
		return err
	}
	return &RemoteError{Op: op, Err: err}
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidationFailed, fmt.Sprintf(format, args...))
}

func noData(op string) error {
	return fmt.Errorf("%s: %w", op, ErrNoDataReturned)
}

// Message turns err into a one-line message suitable for a transient notification.
func Message(err error) string {
	var notSaved *SummaryNotSavedError
	var short *ShortContentError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &notSaved):
		return "The summary was generated but could not be saved. Please try again."
	case errors.Is(err, ErrUnauthenticated):
		return "Please sign in to continue."
	case errors.As(err, &short):
		return fmt.Sprintf("Note content must be at least %d characters to summarize.", short.Min)
	case errors.Is(err, ErrInsufficientContent):
		return fmt.Sprintf("Note content must be at least %d characters to summarize.", DefaultMinSummaryLength)
	case errors.Is(err, ErrAlreadyInProgress):
		return "A summary for this note is already being generated."
	case errors.Is(err, ErrSummaryGenerationFailed):
		return "Failed to generate a summary. Please try again."
	case errors.Is(err, ErrNoDataReturned):
		return "The server confirmed the change but returned no data. Please refresh."
	case errors.Is(err, context.DeadlineExceeded):
		return "The request timed out. Please try again."
	case errors.Is(err, ErrValidationFailed), errors.Is(err, ErrRemoteFailure):
		return "Error: " + err.Error()
	default:
		return "Something went wrong: " + err.Error()
	}
}
