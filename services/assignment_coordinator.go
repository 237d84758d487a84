package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kendall-kelly/helphub-api/models"
	"github.com/kendall-kelly/helphub-api/repository"
)

// AssignmentResult is the outcome of a successful claim
type AssignmentResult struct {
	Request   *models.Request
	Volunteer *models.Volunteer
	OTP       string
}

// AssignmentCoordinator binds one volunteer to one pending request
type AssignmentCoordinator struct {
	store repository.Store
	otp   *OtpGenerator
}

// NewAssignmentCoordinator creates a coordinator
func NewAssignmentCoordinator(store repository.Store, otp *OtpGenerator) *AssignmentCoordinator {
	return &AssignmentCoordinator{store: store, otp: otp}
}

// Assign claims requestID for volunteerID. The volunteer is reserved before
// the request is updated and both writes share one transaction, so a losing
// racer leaves nothing behind.
func (c *AssignmentCoordinator) Assign(ctx context.Context, requestID, volunteerID uuid.UUID) (*AssignmentResult, error) {
	var result *AssignmentResult

	err := c.store.Transaction(ctx, func(tx repository.Store) error {
		request, err := tx.Requests().FindByID(ctx, requestID)
		if err != nil {
			return notFound("request", err)
		}
		if request.Status != models.RequestStatusPending {
			return fmt.Errorf("%w: request is %s", ErrInvalidState, request.Status)
		}

		volunteer, err := tx.Volunteers().FindByID(ctx, volunteerID)
		if err != nil {
			return notFound("volunteer", err)
		}
		if !volunteer.IsActive || volunteer.Availability != models.AvailabilityAvailable {
			return ErrVolunteerUnavailable
		}

		reserved, err := tx.Volunteers().GuardedUpdate(ctx, volunteerID,
			[]models.Availability{models.AvailabilityAvailable},
			map[string]interface{}{
				"availability": models.AvailabilityBusy,
				"total_jobs":   gorm.Expr("total_jobs + ?", 1),
			})
		if err != nil {
			return fmt.Errorf("failed to reserve volunteer: %w", err)
		}
		if !reserved {
			return ErrVolunteerUnavailable
		}

		code, err := c.otp.Generate(request)
		if err != nil {
			return err
		}

		updates := otpColumns(request.OTP)
		updates["status"] = models.RequestStatusAssigned
		updates["assigned_volunteer_id"] = volunteerID

		claimed, err := tx.Requests().GuardedUpdate(ctx, requestID,
			repository.RequestGuard{Statuses: []models.RequestStatus{models.RequestStatusPending}},
			updates)
		if err != nil {
			return fmt.Errorf("failed to assign request: %w", err)
		}
		if !claimed {
			return fmt.Errorf("%w: request was claimed concurrently", ErrInvalidState)
		}

		request, err = tx.Requests().FindByID(ctx, requestID)
		if err != nil {
			return err
		}
		volunteer, err = tx.Volunteers().FindByID(ctx, volunteerID)
		if err != nil {
			return err
		}
		request.AssignedVolunteer = volunteer

		result = &AssignmentResult{Request: request, Volunteer: volunteer, OTP: code}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// notFound converts a repository miss into the entity's not-found error
func notFound(entity string, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		if entity == "volunteer" {
			return ErrVolunteerNotFound
		}
		return ErrRequestNotFound
	}
	return fmt.Errorf("failed to load %s: %w", entity, err)
}
