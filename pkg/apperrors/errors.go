package apperrors

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrJobNotResumable   = errors.New("job is in a terminal state")
	ErrAdvanceInFlight   = errors.New("an advance call is already in flight for this job")
	ErrJobCancelled      = errors.New("job cancelled")
	ErrJobStateCorrupted = errors.New("job state integrity check failed")
	ErrAlreadyAnswered   = errors.New("question already answered")
)
