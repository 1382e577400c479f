package session

import "errors"

// Admission errors: the requester is not allowed to do this right now.
var (
	ErrNotPresenter       = errors.New("only the presenter can do this")
	ErrPollInProgress     = errors.New("a poll is already in progress")
	ErrNotMember          = errors.New("connection has not joined the session")
	ErrUnknownParticipant = errors.New("participant not found")
)

// Validation errors: rejected before any state change.
var (
	ErrInvalidRole   = errors.New("role must be presenter or participant")
	ErrKeyTooLong    = errors.New("session key is too long")
	ErrEmptyQuestion = errors.New("question is required")
	ErrTooFewOptions = errors.New("at least 2 options are required")
	ErrEmptyOption   = errors.New("option text is required")
	ErrEmptyMessage  = errors.New("message text is required")
)

// Race outcomes: expected, never surfaced to clients.
var (
	ErrNoActivePoll    = errors.New("no active poll")
	ErrAlreadyAnswered = errors.New("participant already answered")
)

// IsAdmission reports whether err is an admission rejection.
func IsAdmission(err error) bool {
	return errors.Is(err, ErrNotPresenter) || errors.Is(err, ErrPollInProgress) ||
		errors.Is(err, ErrNotMember) || errors.Is(err, ErrUnknownParticipant)
}

// IsValidation reports whether err is a caller contract violation.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidRole) || errors.Is(err, ErrKeyTooLong) || errors.Is(err, ErrEmptyQuestion) ||
		errors.Is(err, ErrTooFewOptions) || errors.Is(err, ErrEmptyOption) ||
		errors.Is(err, ErrEmptyMessage)
}

// IsStale reports whether err is a late or duplicate event that should be ignored silently.
func IsStale(err error) bool {
	return errors.Is(err, ErrNoActivePoll) || errors.Is(err, ErrAlreadyAnswered)
}
