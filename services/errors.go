package services

import (
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	ErrNotFound             = errors.New("not found")
	ErrInvalidState         = errors.New("invalid state")
	ErrVolunteerUnavailable = errors.New("volunteer unavailable")
	ErrNoOtpGenerated       = errors.New("no otp generated")
	ErrOtpExpired           = errors.New("otp expired")
	ErrOtpAttemptsExceeded  = errors.New("too many attempts")
	ErrOtpMismatch          = errors.New("invalid otp")
	ErrOtpThrottled         = errors.New("otp requested too recently")
	ErrValidation           = errors.New("validation error")
	ErrForbidden            = errors.New("forbidden")
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrEmailTaken           = errors.New("email already registered")
	ErrStorageUnavailable   = errors.New("image storage is not configured")

	// both match ErrNotFound
	ErrRequestNotFound   = fmt.Errorf("request %w", ErrNotFound)
	ErrVolunteerNotFound = fmt.Errorf("volunteer %w", ErrNotFound)
)

// VerificationError is a failed OTP check. Attempts is the attempt count
// after the check, so callers can show how many tries remain.
type VerificationError struct {
	Reason   error
	Attempts int
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("%s (attempts: %d)", e.Reason, e.Attempts)
}

func (e *VerificationError) Unwrap() error {
	return e.Reason
}

// RemainingAttempts is how many more comparisons the request allows
func (e *VerificationError) RemainingAttempts() int {
	if left := MaxOtpAttempts - e.Attempts; left > 0 {
		return left
	}
	return 0
}

// ThrottledError rejects a resend issued inside the cooldown window
type ThrottledError struct {
	Wait time.Duration
}

func (e *ThrottledError) Error() string {
	return fmt.Sprintf("%s, retry in %ds", ErrOtpThrottled, e.WaitSeconds())
}

func (e *ThrottledError) Unwrap() error {
	return ErrOtpThrottled
}

// WaitSeconds rounds the remaining cooldown up to whole seconds
func (e *ThrottledError) WaitSeconds() int {
	return int(math.Ceil(e.Wait.Seconds()))
}
