package services

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by Update and Get when no document exists at the
// target id. It is a caller error and is never retried automatically.
var ErrNotFound = errors.New("document not found")

// StoreUnavailableError wraps a transport or backend failure of the document
// store. Always retryable; single-document writes are atomic so no partial
// state is left behind.
type StoreUnavailableError struct {
	Op         string
	Collection string
	Err        error
}

func (e *StoreUnavailableError) Error() string {
	return fmt.Sprintf("store unavailable (%s %s): %v", e.Op, e.Collection, e.Err)
}

func (e *StoreUnavailableError) Unwrap() error {
	return e.Err
}

// QuotaExceededError reports that a subject's monthly message ceiling has
// been reached. This is an expected, user-facing condition, not a system
// fault; handlers surface it with the remaining-day count.
type QuotaExceededError struct {
	SubjectID      string
	Used           int
	Limit          int
	DaysUntilReset int
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("monthly message limit reached (%d/%d), resets in %d days",
		e.Used, e.Limit, e.DaysUntilReset)
}

// GenerationUnavailableError wraps a failure of the external text-generation
// endpoint. Records written before the enrichment step stay durable; only the
// enrichment is reported as degraded.
type GenerationUnavailableError struct {
	Err error
}

func (e *GenerationUnavailableError) Error() string {
	return fmt.Sprintf("text generation unavailable: %v", e.Err)
}

func (e *GenerationUnavailableError) Unwrap() error {
	return e.Err
}

// IsQuotaExceeded reports whether err is a quota denial.
func IsQuotaExceeded(err error) bool {
	var qe *QuotaExceededError
	return errors.As(err, &qe)
}

// IsGenerationUnavailable reports whether err is a generation-endpoint failure.
func IsGenerationUnavailable(err error) bool {
	var ge *GenerationUnavailableError
	return errors.As(err, &ge)
}
