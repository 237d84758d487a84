package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/kendall-kelly/helphub-api/models"
)

// Task types handled by the notification worker
const (
	TypeNotifyCandidates = "notify:new_request"
	TypeOtpDelivery      = "otp:deliver"
)

// Queue names; OTP delivery sits on the critical queue because the code expires
const (
	QueueCritical = "critical"
	QueueDefault  = "default"
)

// CandidatesTaskPayload is the body of a notify:new_request task
type CandidatesTaskPayload struct {
	VolunteerIDs []uuid.UUID           `json:"volunteer_ids"`
	Request      models.RequestSummary `json:"request"`
}

// TaskEnqueuer is the part of *asynq.Client the dispatcher needs
type TaskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// AsynqDispatcher hands notifications to the asynq worker instead of sending
// them inline, so a slow channel never holds up a request.
type AsynqDispatcher struct {
	client TaskEnqueuer
	now    func() time.Time
}

// NewAsynqDispatcher creates a dispatcher that enqueues on client
func NewAsynqDispatcher(client TaskEnqueuer) *AsynqDispatcher {
	return &AsynqDispatcher{client: client, now: time.Now}
}

// NotifyCandidates enqueues one task covering every candidate
func (d *AsynqDispatcher) NotifyCandidates(ctx context.Context, volunteerIDs []uuid.UUID, summary models.RequestSummary) error {
	if len(volunteerIDs) == 0 {
		return nil
	}
	task, err := NewCandidatesTask(volunteerIDs, summary)
	if err != nil {
		return err
	}
	if _, err := d.client.EnqueueContext(ctx, task, asynq.Queue(QueueDefault), asynq.MaxRetry(5)); err != nil {
		return fmt.Errorf("failed to enqueue %s: %w", TypeNotifyCandidates, err)
	}
	return nil
}

// DeliverOtp enqueues the code for delivery. The task is dropped once the code
// has expired.
func (d *AsynqDispatcher) DeliverOtp(ctx context.Context, delivery models.OtpDelivery) error {
	task, err := NewOtpDeliveryTask(delivery)
	if err != nil {
		return err
	}

	opts := []asynq.Option{asynq.Queue(QueueCritical), asynq.MaxRetry(3)}
	if delivery.ValidUntil.After(d.now()) {
		opts = append(opts, asynq.Deadline(delivery.ValidUntil))
	}
	if _, err := d.client.EnqueueContext(ctx, task, opts...); err != nil {
		return fmt.Errorf("failed to enqueue %s: %w", TypeOtpDelivery, err)
	}
	return nil
}

// NewCandidatesTask builds a notify:new_request task
func NewCandidatesTask(volunteerIDs []uuid.UUID, summary models.RequestSummary) (*asynq.Task, error) {
	payload, err := json.Marshal(CandidatesTaskPayload{VolunteerIDs: volunteerIDs, Request: summary})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal candidates payload: %w", err)
	}
	return asynq.NewTask(TypeNotifyCandidates, payload), nil
}

// NewOtpDeliveryTask builds an otp:deliver task
func NewOtpDeliveryTask(delivery models.OtpDelivery) (*asynq.Task, error) {
	payload, err := json.Marshal(delivery)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal otp payload: %w", err)
	}
	return asynq.NewTask(TypeOtpDelivery, payload), nil
}
