package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/kendall-kelly/helphub-api/models"
)

// Processor runs notification tasks pulled from the queue
type Processor struct {
	direct *DirectDispatcher
	log    zerolog.Logger
}

// NewProcessor creates a processor that finishes the work through direct
func NewProcessor(direct *DirectDispatcher, log zerolog.Logger) *Processor {
	return &Processor{
		direct: direct,
		log:    log.With().Str("component", "notification_worker").Logger(),
	}
}

// HandleCandidatesTask pushes a new_request event to each candidate's room
func (p *Processor) HandleCandidatesTask(ctx context.Context, t *asynq.Task) error {
	var payload CandidatesTaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal candidates payload: %v: %w", err, asynq.SkipRetry)
	}

	p.log.Debug().
		Str("request_id", payload.Request.RequestID.String()).
		Int("volunteers", len(payload.VolunteerIDs)).
		Msg("Notifying candidate volunteers")

	return p.direct.NotifyCandidates(ctx, payload.VolunteerIDs, payload.Request)
}

// HandleOtpDeliveryTask sends a completion code to the customer
func (p *Processor) HandleOtpDeliveryTask(ctx context.Context, t *asynq.Task) error {
	var delivery models.OtpDelivery
	if err := json.Unmarshal(t.Payload(), &delivery); err != nil {
		return fmt.Errorf("failed to unmarshal otp payload: %v: %w", err, asynq.SkipRetry)
	}
	if delivery.CustomerEmail == "" || delivery.Code == "" {
		return fmt.Errorf("otp payload for request %s is incomplete: %w", delivery.RequestID, asynq.SkipRetry)
	}

	// a code past its validity is useless to the customer; retrying cannot help
	if !delivery.ValidUntil.IsZero() && p.direct.now().After(delivery.ValidUntil) {
		p.log.Info().Str("request_id", delivery.RequestID.String()).Msg("Dropping expired OTP delivery")
		return nil
	}

	return p.direct.DeliverOtp(ctx, delivery)
}

// NewServeMux registers the processor's handlers
func NewServeMux(p *Processor) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeNotifyCandidates, p.HandleCandidatesTask)
	mux.HandleFunc(TypeOtpDelivery, p.HandleOtpDeliveryTask)
	return mux
}
