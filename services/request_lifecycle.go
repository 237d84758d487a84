package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/kendall-kelly/helphub-api/models"
	"github.com/kendall-kelly/helphub-api/repository"
)

// DefaultNotificationTimeout bounds each background dispatch
const DefaultNotificationTimeout = 10 * time.Second

// NotificationDispatcher delivers messages to people outside the request flow
type NotificationDispatcher interface {
	// NotifyCandidates tells eligible volunteers about a new request, usually
	// as a new_request event in each volunteer room
	NotifyCandidates(ctx context.Context, volunteerIDs []uuid.UUID, summary models.RequestSummary) error

	// DeliverOtp sends a completion code to the customer
	DeliverOtp(ctx context.Context, delivery models.OtpDelivery) error
}

// EventPublisher forwards domain events to real-time subscribers
type EventPublisher interface {
	Publish(ctx context.Context, event models.DomainEvent) error
}

// CreateRequestInput is a customer submission that has passed field validation
type CreateRequestInput struct {
	Customer      models.CustomerInfo
	Service       models.ServiceDetails
	Location      models.Location
	Amount        float64
	Currency      string
	ScheduledDate time.Time
}

// CreateResult reports the stored request and how many volunteers were notified
type CreateResult struct {
	Request            *models.Request
	MatchingVolunteers int
}

// OtpIssue is a freshly generated code and its expiry
type OtpIssue struct {
	RequestID  uuid.UUID
	Code       string
	ValidUntil time.Time
}

// OtpStatusView is the OTP state of one request
type OtpStatusView struct {
	RequestID uuid.UUID            `json:"id"`
	Status    models.RequestStatus `json:"status"`
	OTP       OtpStatus            `json:"otp"`
}

// RequestLifecycle drives a request from submission to completion
type RequestLifecycle struct {
	store      repository.Store
	otp        *OtpGenerator
	matcher    *MatchingEngine
	assigner   *AssignmentCoordinator
	verifier   *CompletionVerifier
	dispatcher NotificationDispatcher
	publisher  EventPublisher
	log        zerolog.Logger
	timeout    time.Duration

	wg sync.WaitGroup
}

// NewRequestLifecycle wires the lifecycle components. dispatcher and publisher
// may be nil, in which case notifications and events are dropped.
func NewRequestLifecycle(
	store repository.Store,
	otp *OtpGenerator,
	dispatcher NotificationDispatcher,
	publisher EventPublisher,
	log zerolog.Logger,
	timeout time.Duration,
) *RequestLifecycle {
	if otp == nil {
		otp = NewOtpGenerator(nil, nil)
	}
	if timeout <= 0 {
		timeout = DefaultNotificationTimeout
	}
	return &RequestLifecycle{
		store:      store,
		otp:        otp,
		matcher:    NewMatchingEngine(store),
		assigner:   NewAssignmentCoordinator(store, otp),
		verifier:   NewCompletionVerifier(store, otp),
		dispatcher: dispatcher,
		publisher:  publisher,
		log:        log.With().Str("component", "request_lifecycle").Logger(),
		timeout:    timeout,
	}
}

// CreateRequest stores a pending request and notifies matching volunteers in
// the background.
func (l *RequestLifecycle) CreateRequest(ctx context.Context, input CreateRequestInput) (*CreateResult, error) {
	if input.Amount < 0 {
		return nil, fmt.Errorf("%w: amount must not be negative", ErrValidation)
	}

	currency := input.Currency
	if currency == "" {
		currency = models.DefaultCurrency
	}
	service := input.Service
	if service.Urgency == "" {
		service.Urgency = models.UrgencyMedium
	}
	customer := input.Customer
	customer.Email = normalizeEmail(customer.Email)

	request := &models.Request{
		Customer: customer,
		Service:  service,
		Location: input.Location,
		Payment: models.Payment{
			Amount:   input.Amount,
			Currency: currency,
			Status:   models.PaymentStatusPending,
		},
		Status:        models.RequestStatusPending,
		ScheduledDate: input.ScheduledDate,
	}
	if err := l.store.Requests().Create(ctx, request); err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	candidates, err := l.matcher.FindCandidates(ctx, request.Location, request.Service.Category, 0)
	if err != nil {
		// the request is stored; a failed match only costs the notification
		l.log.Error().Err(err).Str("request_id", request.ID.String()).Msg("Failed to find candidate volunteers")
		candidates = nil
	}

	if len(candidates) > 0 {
		ids := make([]uuid.UUID, len(candidates))
		for i, c := range candidates {
			ids[i] = c.ID
		}
		summary := request.Summary()

		l.background("notify_candidates", func(ctx context.Context) error {
			if l.dispatcher == nil {
				return nil
			}
			return l.dispatcher.NotifyCandidates(ctx, ids, summary)
		})
	}

	l.log.Info().
		Str("request_id", request.ID.String()).
		Str("category", request.Service.Category).
		Int("candidates", len(candidates)).
		Msg("Request created")

	return &CreateResult{Request: request, MatchingVolunteers: len(candidates)}, nil
}

// GetRequest loads a request with its assigned volunteer
func (l *RequestLifecycle) GetRequest(ctx context.Context, requestID uuid.UUID) (*models.Request, error) {
	request, err := l.store.Requests().FindByIDWithVolunteer(ctx, requestID)
	if err != nil {
		return nil, notFound("request", err)
	}
	return request, nil
}

// ListCandidates returns eligible volunteers for a locality and category
func (l *RequestLifecycle) ListCandidates(ctx context.Context, location models.Location, category string, limit int) ([]models.VolunteerSummary, error) {
	return l.matcher.FindCandidates(ctx, location, category, limit)
}

// AssignVolunteer claims a pending request for a volunteer and tells the customer
func (l *RequestLifecycle) AssignVolunteer(ctx context.Context, requestID, volunteerID uuid.UUID) (*AssignmentResult, error) {
	result, err := l.assigner.Assign(ctx, requestID, volunteerID)
	if err != nil {
		return nil, err
	}

	l.publish(models.DomainEvent{
		Type:      models.EventRequestAssigned,
		Room:      models.CustomerRoom(requestID),
		RequestID: requestID,
		Payload: models.RequestAssignedPayload{
			RequestID: requestID,
			Volunteer: result.Volunteer.Contact(),
			OTP:       result.OTP,
		},
	})

	l.log.Info().
		Str("request_id", requestID.String()).
		Str("volunteer_id", volunteerID.String()).
		Msg("Request assigned")

	return result, nil
}

// StartService moves an assigned request to in_progress. Only the assigned
// volunteer may start it.
func (l *RequestLifecycle) StartService(ctx context.Context, requestID, volunteerID uuid.UUID) (*models.Request, error) {
	var request *models.Request

	err := l.store.Transaction(ctx, func(tx repository.Store) error {
		current, err := tx.Requests().FindByID(ctx, requestID)
		if err != nil {
			return notFound("request", err)
		}
		if current.AssignedVolunteerID == nil || *current.AssignedVolunteerID != volunteerID {
			return fmt.Errorf("%w: request is not assigned to this volunteer", ErrForbidden)
		}
		if current.Status != models.RequestStatusAssigned {
			return fmt.Errorf("%w: request is %s", ErrInvalidState, current.Status)
		}

		ok, err := tx.Requests().GuardedUpdate(ctx, requestID,
			repository.RequestGuard{Statuses: []models.RequestStatus{models.RequestStatusAssigned}},
			map[string]interface{}{"status": models.RequestStatusInProgress})
		if err != nil {
			return fmt.Errorf("failed to start service: %w", err)
		}
		if !ok {
			return fmt.Errorf("%w: request changed concurrently", ErrInvalidState)
		}

		request, err = tx.Requests().FindByIDWithVolunteer(ctx, requestID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return request, nil
}

// GenerateOtp replaces the request's code and sends it to the customer
func (l *RequestLifecycle) GenerateOtp(ctx context.Context, requestID uuid.UUID, customerEmail string) (*OtpIssue, error) {
	return l.issueOtp(ctx, requestID, customerEmail, false)
}

// ResendOtp is GenerateOtp with a cooldown; a call inside the window returns
// a *ThrottledError carrying the remaining wait.
func (l *RequestLifecycle) ResendOtp(ctx context.Context, requestID uuid.UUID, customerEmail string) (*OtpIssue, error) {
	return l.issueOtp(ctx, requestID, customerEmail, true)
}

func (l *RequestLifecycle) issueOtp(ctx context.Context, requestID uuid.UUID, customerEmail string, resend bool) (*OtpIssue, error) {
	var (
		issue    *OtpIssue
		delivery models.OtpDelivery
	)

	err := l.store.Transaction(ctx, func(tx repository.Store) error {
		request, err := tx.Requests().FindByID(ctx, requestID)
		if err != nil {
			return notFound("request", err)
		}
		if !sameEmail(request.Customer.Email, customerEmail) {
			return fmt.Errorf("%w: email does not match the request", ErrForbidden)
		}
		if !request.Status.AwaitingCompletion() {
			return fmt.Errorf("%w: request is not assigned to a volunteer", ErrInvalidState)
		}

		previous := request.OTP.Code
		var code string
		if resend {
			code, err = l.otp.Resend(request)
		} else {
			code, err = l.otp.Generate(request)
		}
		if err != nil {
			return err
		}

		ok, err := tx.Requests().GuardedUpdate(ctx, requestID,
			repository.RequestGuard{
				Statuses: []models.RequestStatus{models.RequestStatusAssigned, models.RequestStatusInProgress},
				OTPCode:  previous,
			},
			otpColumns(request.OTP))
		if err != nil {
			return fmt.Errorf("failed to store otp: %w", err)
		}
		if !ok {
			if resend {
				return &ThrottledError{Wait: OtpResendCooldown}
			}
			return fmt.Errorf("%w: otp changed concurrently", ErrInvalidState)
		}

		validUntil := *l.otp.ValidUntil(request)
		issue = &OtpIssue{RequestID: requestID, Code: code, ValidUntil: validUntil}
		delivery = models.OtpDelivery{
			RequestID:     requestID,
			CustomerName:  request.Customer.FirstName,
			CustomerEmail: request.Customer.Email,
			Code:          code,
			ValidUntil:    validUntil,
			Resent:        resend,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.background("deliver_otp", func(ctx context.Context) error {
		if l.dispatcher == nil {
			return nil
		}
		return l.dispatcher.DeliverOtp(ctx, delivery)
	})
	l.publish(models.DomainEvent{
		Type:      models.EventOtpIssued,
		Room:      models.CustomerRoom(requestID),
		RequestID: requestID,
		Payload: models.OtpIssuedPayload{
			RequestID:  requestID,
			ValidUntil: issue.ValidUntil,
			Resent:     resend,
		},
	})

	return issue, nil
}

// VerifyOtp completes the request when code matches
func (l *RequestLifecycle) VerifyOtp(ctx context.Context, requestID uuid.UUID, code string) (*VerifyResult, error) {
	result, err := l.verifier.Verify(ctx, requestID, code)
	if err != nil {
		l.log.Debug().Err(err).Str("request_id", requestID.String()).Msg("OTP verification failed")
		return nil, err
	}

	l.publish(models.DomainEvent{
		Type:      models.EventServiceCompleted,
		Room:      models.CustomerRoom(requestID),
		RequestID: requestID,
		Payload: models.ServiceCompletedPayload{
			RequestID:   requestID,
			CompletedAt: result.CompletedAt,
		},
	})

	l.log.Info().Str("request_id", requestID.String()).Msg("Service completed")
	return result, nil
}

// GetOtpStatus reports the OTP state; expiry is evaluated at call time
func (l *RequestLifecycle) GetOtpStatus(ctx context.Context, requestID uuid.UUID) (*OtpStatusView, error) {
	request, err := l.store.Requests().FindByID(ctx, requestID)
	if err != nil {
		return nil, notFound("request", err)
	}
	return &OtpStatusView{
		RequestID: request.ID,
		Status:    request.Status,
		OTP:       l.otp.Status(request),
	}, nil
}

// CancelRequest abandons an open request on behalf of its customer. A
// volunteer holding the request is released.
func (l *RequestLifecycle) CancelRequest(ctx context.Context, requestID uuid.UUID, customerEmail string) (*models.Request, error) {
	open := []models.RequestStatus{
		models.RequestStatusPending,
		models.RequestStatusAssigned,
		models.RequestStatusInProgress,
	}

	var (
		request  *models.Request
		released *uuid.UUID
	)
	err := l.store.Transaction(ctx, func(tx repository.Store) error {
		current, err := tx.Requests().FindByID(ctx, requestID)
		if err != nil {
			return notFound("request", err)
		}
		if !sameEmail(current.Customer.Email, customerEmail) {
			return fmt.Errorf("%w: email does not match the request", ErrForbidden)
		}
		if current.Status == models.RequestStatusCompleted || current.Status == models.RequestStatusCancelled {
			return fmt.Errorf("%w: request is %s", ErrInvalidState, current.Status)
		}

		ok, err := tx.Requests().GuardedUpdate(ctx, requestID,
			repository.RequestGuard{Statuses: open},
			map[string]interface{}{
				"status":                models.RequestStatusCancelled,
				"assigned_volunteer_id": nil,
				"otp_code":              nil,
			})
		if err != nil {
			return fmt.Errorf("failed to cancel request: %w", err)
		}
		if !ok {
			return fmt.Errorf("%w: request changed concurrently", ErrInvalidState)
		}

		if current.AssignedVolunteerID != nil {
			_, err = tx.Volunteers().GuardedUpdate(ctx, *current.AssignedVolunteerID,
				[]models.Availability{models.AvailabilityBusy},
				map[string]interface{}{"availability": models.AvailabilityAvailable})
			if err != nil {
				return fmt.Errorf("failed to release volunteer: %w", err)
			}
			released = current.AssignedVolunteerID
		}

		request, err = tx.Requests().FindByID(ctx, requestID)
		return err
	})
	if err != nil {
		return nil, err
	}

	payload := models.RequestCancelledPayload{RequestID: requestID, CancelledAt: request.UpdatedAt}
	l.publish(models.DomainEvent{
		Type:      models.EventRequestCancelled,
		Room:      models.CustomerRoom(requestID),
		RequestID: requestID,
		Payload:   payload,
	})
	if released != nil {
		l.publish(models.DomainEvent{
			Type:      models.EventRequestCancelled,
			Room:      models.VolunteerRoom(*released),
			RequestID: requestID,
			Payload:   payload,
		})
	}

	l.log.Info().Str("request_id", requestID.String()).Msg("Request cancelled")
	return request, nil
}

// SubmitFeedback records the customer's rating of a completed request once
// and refreshes the volunteer's running average.
func (l *RequestLifecycle) SubmitFeedback(ctx context.Context, requestID uuid.UUID, customerEmail string, rating int, feedback string) (*models.Request, error) {
	if rating < 1 || rating > 5 {
		return nil, fmt.Errorf("%w: rating must be between 1 and 5", ErrValidation)
	}

	var request *models.Request
	err := l.store.Transaction(ctx, func(tx repository.Store) error {
		current, err := tx.Requests().FindByID(ctx, requestID)
		if err != nil {
			return notFound("request", err)
		}
		if !sameEmail(current.Customer.Email, customerEmail) {
			return fmt.Errorf("%w: email does not match the request", ErrForbidden)
		}
		if current.Status != models.RequestStatusCompleted {
			return fmt.Errorf("%w: only completed requests can be rated", ErrInvalidState)
		}
		if current.CustomerRating != nil {
			return fmt.Errorf("%w: feedback already submitted", ErrInvalidState)
		}

		updates := map[string]interface{}{"customer_rating": rating}
		if text := strings.TrimSpace(feedback); text != "" {
			updates["customer_feedback"] = text
		}
		ok, err := tx.Requests().GuardedUpdate(ctx, requestID,
			repository.RequestGuard{
				Statuses: []models.RequestStatus{models.RequestStatusCompleted},
				Unrated:  true,
			},
			updates)
		if err != nil {
			return fmt.Errorf("failed to store feedback: %w", err)
		}
		if !ok {
			return fmt.Errorf("%w: feedback already submitted", ErrInvalidState)
		}

		if current.AssignedVolunteerID != nil {
			average, _, err := tx.Requests().AverageRating(ctx, *current.AssignedVolunteerID)
			if err != nil {
				return fmt.Errorf("failed to compute rating: %w", err)
			}
			err = tx.Volunteers().Update(ctx, *current.AssignedVolunteerID, map[string]interface{}{"rating": average})
			if err != nil {
				return fmt.Errorf("failed to update rating: %w", err)
			}
		}

		request, err = tx.Requests().FindByIDWithVolunteer(ctx, requestID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return request, nil
}

// Close waits for background notification work to finish
func (l *RequestLifecycle) Close() {
	l.wg.Wait()
}

func (l *RequestLifecycle) publish(event models.DomainEvent) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = l.otp.Now()
	}
	l.background("publish_"+string(event.Type), func(ctx context.Context) error {
		if l.publisher == nil {
			return nil
		}
		return l.publisher.Publish(ctx, event)
	})
}

// background runs fn detached from the caller's context with its own timeout
func (l *RequestLifecycle) background(task string, fn func(ctx context.Context) error) {
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), l.timeout)
		defer cancel()

		if err := fn(ctx); err != nil {
			l.log.Warn().Err(err).Str("task", task).Msg("Background notification failed")
		}
	}()
}

func sameEmail(stored, given string) bool {
	return strings.EqualFold(strings.TrimSpace(stored), strings.TrimSpace(given))
}
