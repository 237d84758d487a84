package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RequestStatus is the lifecycle state of a service request
type RequestStatus string

const (
	RequestStatusPending    RequestStatus = "pending"
	RequestStatusAssigned   RequestStatus = "assigned"
	RequestStatusInProgress RequestStatus = "in_progress" // reached only through an explicit start action
	RequestStatusCompleted  RequestStatus = "completed"
	RequestStatusCancelled  RequestStatus = "cancelled"
)

// HasVolunteer reports whether a request in this status must carry an assigned volunteer
func (s RequestStatus) HasVolunteer() bool {
	return s == RequestStatusAssigned || s == RequestStatusInProgress || s == RequestStatusCompleted
}

// AwaitingCompletion reports whether the request is assigned and not yet closed out
func (s RequestStatus) AwaitingCompletion() bool {
	return s == RequestStatusAssigned || s == RequestStatusInProgress
}

// Urgency describes how soon the customer needs the service
type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyMedium Urgency = "medium"
	UrgencyHigh   Urgency = "high"
	UrgencyUrgent Urgency = "urgent"
)

// PaymentStatus is owned by the payment collaborator; the core only writes pending
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusRefunded  PaymentStatus = "refunded"
)

// DefaultCurrency is applied when a request is created without a currency
const DefaultCurrency = "INR"

// CustomerInfo identifies the person who submitted the request
type CustomerInfo struct {
	FirstName string `gorm:"not null" json:"first_name"`
	LastName  string `gorm:"not null" json:"last_name"`
	Email     string `gorm:"not null;index" json:"email"`
	Phone     string `gorm:"not null" json:"phone"`
}

// ServiceDetails describes the requested work
type ServiceDetails struct {
	Category          string  `gorm:"not null;index" json:"category"`
	Description       string  `gorm:"type:text;not null" json:"description"`
	Urgency           Urgency `gorm:"not null;default:'medium'" json:"urgency"`
	EstimatedDuration string  `gorm:"not null" json:"estimated_duration"`
}

// Location is a street address; City and State drive locality matching
type Location struct {
	Address string `gorm:"not null" json:"address"`
	City    string `gorm:"not null;index" json:"city"`
	State   string `gorm:"not null;index" json:"state"`
	ZipCode string `gorm:"not null" json:"zip_code"`
}

// Payment is inert: recorded at creation and never captured
type Payment struct {
	Amount   float64       `gorm:"not null" json:"amount"`
	Currency string        `gorm:"not null;default:'INR'" json:"currency"`
	Status   PaymentStatus `gorm:"not null;default:'pending'" json:"status"`
}

// OTP holds the completion code shared between customer and volunteer
type OTP struct {
	Code        *string    `json:"-"`
	GeneratedAt *time.Time `json:"generated_at"`
	VerifiedAt  *time.Time `json:"verified_at"`
	Attempts    int        `gorm:"not null;default:0" json:"attempts"`
}

// Request represents one unit of requested work
type Request struct {
	ID                  uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Customer            CustomerInfo   `gorm:"embedded;embeddedPrefix:customer_" json:"customer"`
	Service             ServiceDetails `gorm:"embedded;embeddedPrefix:service_" json:"service"`
	Location            Location       `gorm:"embedded;embeddedPrefix:location_" json:"location"`
	Payment             Payment        `gorm:"embedded;embeddedPrefix:payment_" json:"payment"`
	Status              RequestStatus  `gorm:"not null;default:'pending';index" json:"status"`
	AssignedVolunteerID *uuid.UUID     `gorm:"type:uuid;index" json:"assigned_volunteer_id"`
	AssignedVolunteer   *Volunteer     `gorm:"foreignKey:AssignedVolunteerID" json:"assigned_volunteer,omitempty"`
	OTP                 OTP            `gorm:"embedded;embeddedPrefix:otp_" json:"-"`
	ScheduledDate       time.Time      `gorm:"not null" json:"scheduled_date"`
	CompletedAt         *time.Time     `json:"completed_at"`
	CustomerRating      *int           `json:"customer_rating"`
	CustomerFeedback    *string        `gorm:"type:text" json:"customer_feedback"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
}

// TableName specifies the table name for the Request model
func (Request) TableName() string {
	return "requests"
}

// BeforeCreate assigns an opaque id when the caller did not set one
func (r *Request) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// Summary builds the payload sent to candidate volunteers
func (r *Request) Summary() RequestSummary {
	return RequestSummary{
		RequestID:         r.ID,
		Category:          r.Service.Category,
		Description:       r.Service.Description,
		Urgency:           r.Service.Urgency,
		EstimatedDuration: r.Service.EstimatedDuration,
		Location:          r.Location,
		ScheduledDate:     r.ScheduledDate,
		Amount:            r.Payment.Amount,
		Currency:          r.Payment.Currency,
	}
}

// RequestSummary is the public view of a pending request shown to volunteers
type RequestSummary struct {
	RequestID         uuid.UUID `json:"request_id"`
	Category          string    `json:"category"`
	Description       string    `json:"description"`
	Urgency           Urgency   `json:"urgency"`
	EstimatedDuration string    `json:"estimated_duration"`
	Location          Location  `json:"location"`
	ScheduledDate     time.Time `json:"scheduled_date"`
	Amount            float64   `json:"amount"`
	Currency          string    `json:"currency"`
}
