package models

import (
	"time"

	"github.com/google/uuid"
)

// EventType names a domain event forwarded to real-time subscribers
type EventType string

const (
	EventNewRequest       EventType = "new_request"
	EventRequestAssigned  EventType = "request_assigned"
	EventServiceCompleted EventType = "service_completed"
	EventRequestCancelled EventType = "request_cancelled"
	EventOtpIssued        EventType = "otp_issued"
)

// DomainEvent is the payload handed to the real-time collaborator.
// Room addresses the subscribers: customer_<requestId> or volunteer_<volunteerId>.
type DomainEvent struct {
	Type       EventType   `json:"type"`
	Room       string      `json:"room"`
	RequestID  uuid.UUID   `json:"request_id"`
	Payload    interface{} `json:"payload"`
	OccurredAt time.Time   `json:"occurred_at"`
}

// CustomerRoom is the room a customer watching a request subscribes to
func CustomerRoom(requestID uuid.UUID) string {
	return "customer_" + requestID.String()
}

// VolunteerRoom is the personal room of a volunteer session
func VolunteerRoom(volunteerID uuid.UUID) string {
	return "volunteer_" + volunteerID.String()
}

// RequestAssignedPayload tells the customer who claimed the request
type RequestAssignedPayload struct {
	RequestID uuid.UUID        `json:"request_id"`
	Volunteer VolunteerContact `json:"volunteer"`
	OTP       string           `json:"otp"`
}

// ServiceCompletedPayload tells the customer the code was accepted
type ServiceCompletedPayload struct {
	RequestID   uuid.UUID `json:"request_id"`
	CompletedAt time.Time `json:"completed_at"`
}

// RequestCancelledPayload is sent to the released volunteer, if any
type RequestCancelledPayload struct {
	RequestID   uuid.UUID `json:"request_id"`
	CancelledAt time.Time `json:"cancelled_at"`
}

// OtpDelivery carries a freshly issued code to the customer
type OtpDelivery struct {
	RequestID     uuid.UUID `json:"request_id"`
	CustomerName  string    `json:"customer_name"`
	CustomerEmail string    `json:"customer_email"`
	Code          string    `json:"code"`
	ValidUntil    time.Time `json:"valid_until"`
	Resent        bool      `json:"resent"`
}

// OtpIssuedPayload tells the customer a code is on its way. The code itself is
// only sent through the delivery channel.
type OtpIssuedPayload struct {
	RequestID  uuid.UUID `json:"request_id"`
	ValidUntil time.Time `json:"valid_until"`
	Resent     bool      `json:"resent"`
}
