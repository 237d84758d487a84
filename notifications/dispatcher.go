package notifications

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kendall-kelly/helphub-api/models"
	"github.com/kendall-kelly/helphub-api/services"
)

// DirectDispatcher delivers notifications inline. The worker uses it to run
// queued tasks, and the API uses it when no queue is configured.
type DirectDispatcher struct {
	publisher services.EventPublisher
	sender    OtpSender
	now       func() time.Time
}

// NewDirectDispatcher sends events through publisher and codes through sender
func NewDirectDispatcher(publisher services.EventPublisher, sender OtpSender) *DirectDispatcher {
	return &DirectDispatcher{publisher: publisher, sender: sender, now: time.Now}
}

// NotifyCandidates publishes a new_request event to each volunteer room. Every
// room is attempted; failures are joined.
func (d *DirectDispatcher) NotifyCandidates(ctx context.Context, volunteerIDs []uuid.UUID, summary models.RequestSummary) error {
	occurred := d.now()

	var errs []error
	for _, id := range volunteerIDs {
		err := d.publisher.Publish(ctx, models.DomainEvent{
			Type:       models.EventNewRequest,
			Room:       models.VolunteerRoom(id),
			RequestID:  summary.RequestID,
			Payload:    summary,
			OccurredAt: occurred,
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("volunteer %s: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

// DeliverOtp hands the code to the sender
func (d *DirectDispatcher) DeliverOtp(ctx context.Context, delivery models.OtpDelivery) error {
	if err := d.sender.SendOtp(ctx, delivery); err != nil {
		return fmt.Errorf("failed to deliver otp for request %s: %w", delivery.RequestID, err)
	}
	return nil
}
