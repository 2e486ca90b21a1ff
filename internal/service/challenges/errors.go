package challenges

import (
	"errors"
	"fmt"
)

// Error codes for the challenge engine. Every user-facing failure carries
// one so the transport layer can map it without string matching.
const (
	CodeChallengeNotFound   = "CHALLENGE_NOT_FOUND"
	CodeTaskNotFound        = "TASK_NOT_FOUND"
	CodeNotEnrolled         = "NOT_ENROLLED"
	CodeAlreadyEnrolled     = "ALREADY_ENROLLED"
	CodeChallengeNotStarted = "CHALLENGE_NOT_STARTED"
	CodeChallengeExpired    = "CHALLENGE_EXPIRED"
	CodeRewardDispatch      = "REWARD_DISPATCH_FAILED"
)

// Error is a typed domain error with a stable code.
type Error struct {
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ErrorCode extracts the domain code from err, or "" for non-domain errors.
func ErrorCode(err error) string {
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return ""
}

// ErrChallengeNotFound returns an error for a missing challenge.
func ErrChallengeNotFound(challengeID uint) *Error {
	return &Error{
		Code:    CodeChallengeNotFound,
		Message: fmt.Sprintf("challenge not found: %d", challengeID),
	}
}

// ErrTaskNotFound returns an error when a task does not belong to the
// challenge.
func ErrTaskNotFound(taskID, challengeID uint) *Error {
	return &Error{
		Code:    CodeTaskNotFound,
		Message: fmt.Sprintf("task %d not found in challenge %d", taskID, challengeID),
	}
}

// ErrNotEnrolled returns an error when the user never joined the challenge.
func ErrNotEnrolled(challengeID uint) *Error {
	return &Error{
		Code:    CodeNotEnrolled,
		Message: fmt.Sprintf("not enrolled in challenge %d", challengeID),
	}
}

// ErrAlreadyEnrolled returns an error for a duplicate join.
func ErrAlreadyEnrolled(challengeID uint) *Error {
	return &Error{
		Code:    CodeAlreadyEnrolled,
		Message: fmt.Sprintf("already enrolled in challenge %d", challengeID),
	}
}

// ErrChallengeNotStarted returns an error for a join before the window opens.
func ErrChallengeNotStarted(challengeID uint) *Error {
	return &Error{
		Code:    CodeChallengeNotStarted,
		Message: fmt.Sprintf("challenge %d has not started yet", challengeID),
	}
}

// ErrChallengeExpired returns an error when the challenge window is over or
// the enrollment already expired.
func ErrChallengeExpired(challengeID uint) *Error {
	return &Error{
		Code:    CodeChallengeExpired,
		Message: fmt.Sprintf("challenge %d has expired", challengeID),
	}
}

// ErrRewardDispatch wraps a ledger failure during reward fan-out. The
// triggering operation is aborted and the claim released so a retry can
// dispatch again.
func ErrRewardDispatch(err error) *Error {
	return &Error{
		Code:    CodeRewardDispatch,
		Message: "failed to dispatch rewards",
		Err:     err,
	}
}
