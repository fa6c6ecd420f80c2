package domain

import "errors"

var (
	// ErrSetNotFound indicates the question set could not be loaded.
	ErrSetNotFound = errors.New("set not found")
	// ErrSetInactive is returned when a participant starts a set that has not been activated.
	ErrSetInactive = errors.New("set is not active")
	// ErrNoQuestions is returned when a set exists but holds no questions.
	ErrNoQuestions = errors.New("no questions available for this set")
	// ErrAttemptNotOpen covers submit with no open attempt, including double submits.
	ErrAttemptNotOpen = errors.New("set not started or already completed")
	// ErrNoOpenAttempt is returned by time checks when nothing is in flight.
	ErrNoOpenAttempt = errors.New("no active quiz found")
	// ErrAttemptConflict signals a concurrent start already created the open attempt.
	ErrAttemptConflict = errors.New("open attempt already exists")
	// ErrUnauthorized indicates the caller does not own the attempt.
	ErrUnauthorized = errors.New("unauthorized")
)
