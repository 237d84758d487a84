package controllers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/kendall-kelly/helphub-api/models"
	"github.com/kendall-kelly/helphub-api/services"
)

// CustomerInfoInput is the customer block of a new request
type CustomerInfoInput struct {
	FirstName string `json:"first_name" binding:"required,max=100"`
	LastName  string `json:"last_name" binding:"required,max=100"`
	Email     string `json:"email" binding:"required,email"`
	Phone     string `json:"phone" binding:"required,max=30"`
}

// ServiceDetailsInput describes the requested work
type ServiceDetailsInput struct {
	Category          string `json:"category" binding:"required,max=100"`
	Description       string `json:"description" binding:"required,max=2000"`
	Urgency           string `json:"urgency" binding:"omitempty,oneof=low medium high urgent"`
	EstimatedDuration string `json:"estimated_duration" binding:"required,max=100"`
}

// LocationInput is a street address
type LocationInput struct {
	Address string `json:"address" binding:"required,max=255"`
	City    string `json:"city" binding:"required,max=100"`
	State   string `json:"state" binding:"required,max=100"`
	ZipCode string `json:"zip_code" binding:"required,max=20"`
}

// PaymentInput is the amount the customer offers
type PaymentInput struct {
	Amount   *float64 `json:"amount" binding:"required,gte=0"`
	Currency string   `json:"currency" binding:"omitempty,len=3"`
}

// CreateRequestRequest represents the request body for creating a service request
type CreateRequestRequest struct {
	CustomerInfo   CustomerInfoInput   `json:"customer_info" binding:"required"`
	ServiceDetails ServiceDetailsInput `json:"service_details" binding:"required"`
	Location       LocationInput       `json:"location" binding:"required"`
	Payment        PaymentInput        `json:"payment" binding:"required"`
	ScheduledDate  string              `json:"scheduled_date" binding:"required"`
}

// CustomerEmailRequest identifies the customer acting on a request
type CustomerEmailRequest struct {
	CustomerEmail string `json:"customer_email" binding:"required,email"`
}

// FeedbackRequest represents the request body for rating a completed request
type FeedbackRequest struct {
	CustomerEmail string `json:"customer_email" binding:"required,email"`
	Rating        int    `json:"rating" binding:"required,min=1,max=5"`
	Feedback      string `json:"feedback" binding:"max=1000"`
}

// RequestController serves the customer request endpoints and the volunteer
// actions on a single request
type RequestController struct {
	lifecycle *services.RequestLifecycle
	log       zerolog.Logger
}

// NewRequestController creates a RequestController
func NewRequestController(lifecycle *services.RequestLifecycle, log zerolog.Logger) *RequestController {
	return &RequestController{
		lifecycle: lifecycle,
		log:       log.With().Str("component", "request_controller").Logger(),
	}
}

// CreateRequest handles POST /api/v1/requests
func (rc *RequestController) CreateRequest(c *gin.Context) {
	var req CreateRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err)
		return
	}

	scheduled, err := parseScheduledDate(req.ScheduledDate)
	if err != nil {
		respondValidationError(c, err)
		return
	}

	result, err := rc.lifecycle.CreateRequest(c.Request.Context(), services.CreateRequestInput{
		Customer: models.CustomerInfo{
			FirstName: req.CustomerInfo.FirstName,
			LastName:  req.CustomerInfo.LastName,
			Email:     req.CustomerInfo.Email,
			Phone:     req.CustomerInfo.Phone,
		},
		Service: models.ServiceDetails{
			Category:          req.ServiceDetails.Category,
			Description:       req.ServiceDetails.Description,
			Urgency:           models.Urgency(req.ServiceDetails.Urgency),
			EstimatedDuration: req.ServiceDetails.EstimatedDuration,
		},
		Location: models.Location{
			Address: req.Location.Address,
			City:    req.Location.City,
			State:   req.Location.State,
			ZipCode: req.Location.ZipCode,
		},
		Amount:        *req.Payment.Amount,
		Currency:      req.Payment.Currency,
		ScheduledDate: scheduled,
	})
	if err != nil {
		handleServiceError(c, rc.log, err)
		return
	}

	respondSuccess(c, http.StatusCreated, gin.H{
		"request":             result.Request,
		"matching_volunteers": result.MatchingVolunteers,
	})
}

// GetRequest handles GET /api/v1/requests/:id
func (rc *RequestController) GetRequest(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	request, err := rc.lifecycle.GetRequest(c.Request.Context(), id)
	if err != nil {
		handleServiceError(c, rc.log, err)
		return
	}
	respondSuccess(c, http.StatusOK, request)
}

// AssignVolunteer handles PUT /api/v1/requests/:id/assign. The volunteer is
// the authenticated caller.
func (rc *RequestController) AssignVolunteer(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	volunteerID, ok := currentVolunteer(c)
	if !ok {
		return
	}

	result, err := rc.lifecycle.AssignVolunteer(c.Request.Context(), id, volunteerID)
	if err != nil {
		handleServiceError(c, rc.log, err)
		return
	}

	respondSuccess(c, http.StatusOK, gin.H{
		"request":   result.Request,
		"volunteer": result.Volunteer.Contact(),
	})
}

// StartService handles PUT /api/v1/requests/:id/start
func (rc *RequestController) StartService(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	volunteerID, ok := currentVolunteer(c)
	if !ok {
		return
	}

	request, err := rc.lifecycle.StartService(c.Request.Context(), id, volunteerID)
	if err != nil {
		handleServiceError(c, rc.log, err)
		return
	}
	respondSuccess(c, http.StatusOK, request)
}

// CancelRequest handles PUT /api/v1/requests/:id/cancel
func (rc *RequestController) CancelRequest(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req CustomerEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err)
		return
	}

	request, err := rc.lifecycle.CancelRequest(c.Request.Context(), id, req.CustomerEmail)
	if err != nil {
		handleServiceError(c, rc.log, err)
		return
	}
	respondSuccess(c, http.StatusOK, request)
}

// SubmitFeedback handles POST /api/v1/requests/:id/feedback
func (rc *RequestController) SubmitFeedback(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req FeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err)
		return
	}

	request, err := rc.lifecycle.SubmitFeedback(c.Request.Context(), id, req.CustomerEmail, req.Rating, req.Feedback)
	if err != nil {
		handleServiceError(c, rc.log, err)
		return
	}
	respondSuccess(c, http.StatusOK, request)
}

// ListAvailableVolunteers handles GET /api/v1/volunteers/available?city=&state=&category=&limit=
func (rc *RequestController) ListAvailableVolunteers(c *gin.Context) {
	city := c.Query("city")
	state := c.Query("state")
	category := c.Query("category")
	if city == "" || state == "" || category == "" {
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "city, state and category are required")
		return
	}

	// an explicit limit of 0 lists every match
	limit := services.DefaultCandidateLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "limit must be a non-negative integer")
			return
		}
		limit = parsed
	}

	volunteers, err := rc.lifecycle.ListCandidates(c.Request.Context(),
		models.Location{City: city, State: state}, category, limit)
	if err != nil {
		handleServiceError(c, rc.log, err)
		return
	}

	respondSuccess(c, http.StatusOK, gin.H{
		"volunteers": volunteers,
		"count":      len(volunteers),
	})
}

// parseScheduledDate accepts an RFC 3339 timestamp or a plain date
func parseScheduledDate(raw string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("scheduled_date must be an ISO 8601 date, got %q", raw)
}
