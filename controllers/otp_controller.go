package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/kendall-kelly/helphub-api/services"
)

// OtpRequest asks for a new completion code
type OtpRequest struct {
	RequestID     string `json:"request_id" binding:"required,uuid"`
	CustomerEmail string `json:"customer_email" binding:"required,email"`
}

// VerifyOtpRequest submits a completion code
type VerifyOtpRequest struct {
	RequestID string `json:"request_id" binding:"required,uuid"`
	OTP       string `json:"otp" binding:"required,len=6,numeric"`
}

// OtpController serves the completion code endpoints
type OtpController struct {
	lifecycle *services.RequestLifecycle
	log       zerolog.Logger
}

// NewOtpController creates an OtpController
func NewOtpController(lifecycle *services.RequestLifecycle, log zerolog.Logger) *OtpController {
	return &OtpController{
		lifecycle: lifecycle,
		log:       log.With().Str("component", "otp_controller").Logger(),
	}
}

// Generate handles POST /api/v1/otp/generate
func (oc *OtpController) Generate(c *gin.Context) {
	oc.issue(c, false)
}

// Resend handles POST /api/v1/otp/resend
func (oc *OtpController) Resend(c *gin.Context) {
	oc.issue(c, true)
}

func (oc *OtpController) issue(c *gin.Context, resend bool) {
	var req OtpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err)
		return
	}
	requestID := uuid.MustParse(req.RequestID)

	var (
		issue *services.OtpIssue
		err   error
	)
	if resend {
		issue, err = oc.lifecycle.ResendOtp(c.Request.Context(), requestID, req.CustomerEmail)
	} else {
		issue, err = oc.lifecycle.GenerateOtp(c.Request.Context(), requestID, req.CustomerEmail)
	}
	if err != nil {
		handleServiceError(c, oc.log, err)
		return
	}

	// the code travels through the delivery channel only
	respondSuccess(c, http.StatusOK, gin.H{
		"request_id":  issue.RequestID,
		"valid_until": issue.ValidUntil,
		"resent":      resend,
	})
}

// Verify handles POST /api/v1/otp/verify
func (oc *OtpController) Verify(c *gin.Context) {
	var req VerifyOtpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err)
		return
	}

	result, err := oc.lifecycle.VerifyOtp(c.Request.Context(), uuid.MustParse(req.RequestID), req.OTP)
	if err != nil {
		handleServiceError(c, oc.log, err)
		return
	}

	respondSuccess(c, http.StatusOK, gin.H{
		"request":      result.Request,
		"completed_at": result.CompletedAt,
		"attempts":     result.Attempts,
	})
}

// Status handles GET /api/v1/otp/status/:requestId
func (oc *OtpController) Status(c *gin.Context) {
	requestID, ok := parseIDParam(c, "requestId")
	if !ok {
		return
	}

	status, err := oc.lifecycle.GetOtpStatus(c.Request.Context(), requestID)
	if err != nil {
		handleServiceError(c, oc.log, err)
		return
	}
	respondSuccess(c, http.StatusOK, status)
}
