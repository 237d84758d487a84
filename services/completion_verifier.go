package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kendall-kelly/helphub-api/models"
	"github.com/kendall-kelly/helphub-api/repository"
)

// VerifyResult is a successful completion
type VerifyResult struct {
	Request     *models.Request
	Attempts    int
	CompletedAt time.Time
}

// CompletionVerifier closes out a request when the customer's code matches
type CompletionVerifier struct {
	store repository.Store
	otp   *OtpGenerator
}

// NewCompletionVerifier creates a verifier
func NewCompletionVerifier(store repository.Store, otp *OtpGenerator) *CompletionVerifier {
	return &CompletionVerifier{store: store, otp: otp}
}

// Verify checks code against the request's OTP. Checks run in a fixed order:
// a missing code (whatever the status), a request that is no longer awaiting
// completion, expiry and exhausted attempts end the call without counting an
// attempt; otherwise the attempt is counted before comparing. A failed
// comparison is returned as a *VerificationError and the counted attempt is
// kept.
func (v *CompletionVerifier) Verify(ctx context.Context, requestID uuid.UUID, code string) (*VerifyResult, error) {
	var (
		result  *VerifyResult
		failure error
	)

	err := v.store.Transaction(ctx, func(tx repository.Store) error {
		request, err := tx.Requests().FindByID(ctx, requestID)
		if err != nil {
			return notFound("request", err)
		}
		attempts := request.OTP.Attempts
		if request.OTP.Code == nil {
			failure = &VerificationError{Reason: ErrNoOtpGenerated, Attempts: attempts}
			return nil
		}
		if !request.Status.AwaitingCompletion() {
			return fmt.Errorf("%w: request is %s", ErrInvalidState, request.Status)
		}

		switch {
		case v.otp.Expired(request):
			failure = &VerificationError{Reason: ErrOtpExpired, Attempts: attempts}
			return nil
		case attempts >= MaxOtpAttempts:
			failure = &VerificationError{Reason: ErrOtpAttemptsExceeded, Attempts: attempts}
			return nil
		}

		counted, err := tx.Requests().IncrementOTPAttempts(ctx, requestID, MaxOtpAttempts)
		if err != nil {
			return fmt.Errorf("failed to count attempt: %w", err)
		}

		// re-read so the attempt count reflects concurrent verifies
		request, err = tx.Requests().FindByID(ctx, requestID)
		if err != nil {
			return err
		}
		if !counted {
			failure = &VerificationError{Reason: ErrOtpAttemptsExceeded, Attempts: request.OTP.Attempts}
			return nil
		}

		if !v.otp.Matches(request, code) {
			failure = &VerificationError{Reason: ErrOtpMismatch, Attempts: request.OTP.Attempts}
			return nil
		}

		now := v.otp.Now()
		completed, err := tx.Requests().GuardedUpdate(ctx, requestID,
			repository.RequestGuard{
				Statuses: []models.RequestStatus{models.RequestStatusAssigned, models.RequestStatusInProgress},
				OTPCode:  request.OTP.Code,
			},
			map[string]interface{}{
				"otp_verified_at": now,
				"status":          models.RequestStatusCompleted,
				"completed_at":    now,
			})
		if err != nil {
			return fmt.Errorf("failed to complete request: %w", err)
		}
		if !completed {
			failure = fmt.Errorf("%w: request changed during verification", ErrInvalidState)
			return nil
		}

		if request.AssignedVolunteerID != nil {
			err = tx.Volunteers().Update(ctx, *request.AssignedVolunteerID, map[string]interface{}{
				"completed_jobs": gorm.Expr("completed_jobs + ?", 1),
				"availability":   models.AvailabilityAvailable,
			})
			if err != nil {
				return fmt.Errorf("failed to release volunteer: %w", err)
			}
		}

		request, err = tx.Requests().FindByIDWithVolunteer(ctx, requestID)
		if err != nil {
			return err
		}
		result = &VerifyResult{Request: request, Attempts: request.OTP.Attempts, CompletedAt: now}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if failure != nil {
		return nil, failure
	}
	return result, nil
}
