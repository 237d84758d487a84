package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/kendall-kelly/helphub-api/middleware"
	"github.com/kendall-kelly/helphub-api/services"
	"github.com/kendall-kelly/helphub-api/utils"
)

func respondSuccess(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{
		"success": true,
		"data":    data,
	})
}

func respondError(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}

func respondValidationError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"success": false,
		"error": gin.H{
			"code":    "VALIDATION_ERROR",
			"message": "Invalid request data",
			"details": err.Error(),
		},
	})
}

// handleServiceError maps service errors to the response envelope. Anything
// unrecognized is logged and reported as an internal error.
func handleServiceError(c *gin.Context, log zerolog.Logger, err error) {
	var (
		verr      *services.VerificationError
		throttled *services.ThrottledError
		uploadErr *utils.FileUploadError
	)

	switch {
	case errors.As(err, &verr):
		status, code := http.StatusBadRequest, "OTP_MISMATCH"
		switch {
		case errors.Is(err, services.ErrOtpExpired):
			code = "OTP_EXPIRED"
		case errors.Is(err, services.ErrOtpAttemptsExceeded):
			code = "OTP_ATTEMPTS_EXCEEDED"
		case errors.Is(err, services.ErrNoOtpGenerated):
			code = "OTP_NOT_GENERATED"
		}
		c.JSON(status, gin.H{
			"success": false,
			"error": gin.H{
				"code":               code,
				"message":            verr.Reason.Error(),
				"attempts":           verr.Attempts,
				"remaining_attempts": verr.RemainingAttempts(),
			},
		})
	case errors.As(err, &throttled):
		c.Header("Retry-After", strconv.Itoa(throttled.WaitSeconds()))
		c.JSON(http.StatusTooManyRequests, gin.H{
			"success": false,
			"error": gin.H{
				"code":         "OTP_THROTTLED",
				"message":      "Please wait before requesting a new OTP",
				"wait_seconds": throttled.WaitSeconds(),
			},
		})
	case errors.As(err, &uploadErr):
		respondError(c, http.StatusBadRequest, uploadErr.Code, uploadErr.Message)
	case errors.Is(err, services.ErrRequestNotFound):
		respondError(c, http.StatusNotFound, "REQUEST_NOT_FOUND", "Request not found")
	case errors.Is(err, services.ErrVolunteerNotFound):
		respondError(c, http.StatusNotFound, "VOLUNTEER_NOT_FOUND", "Volunteer not found")
	case errors.Is(err, services.ErrNotFound):
		respondError(c, http.StatusNotFound, "NOT_FOUND", err.Error())
	case errors.Is(err, services.ErrVolunteerUnavailable):
		respondError(c, http.StatusConflict, "VOLUNTEER_UNAVAILABLE", "Volunteer is not available")
	case errors.Is(err, services.ErrInvalidState):
		respondError(c, http.StatusConflict, "INVALID_STATE", err.Error())
	case errors.Is(err, services.ErrEmailTaken):
		respondError(c, http.StatusConflict, "EMAIL_EXISTS", "A volunteer with this email already exists")
	case errors.Is(err, services.ErrNoOtpGenerated):
		respondError(c, http.StatusBadRequest, "OTP_NOT_GENERATED", "No OTP has been generated for this request")
	case errors.Is(err, services.ErrValidation):
		respondValidationError(c, err)
	case errors.Is(err, services.ErrInvalidCredentials):
		respondError(c, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password")
	case errors.Is(err, services.ErrForbidden):
		respondError(c, http.StatusForbidden, "FORBIDDEN", err.Error())
	case errors.Is(err, services.ErrStorageUnavailable):
		respondError(c, http.StatusServiceUnavailable, "STORAGE_UNAVAILABLE", "Image storage is not configured")
	default:
		log.Error().Err(err).
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Msg("Request failed")
		respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred")
	}
}

// parseIDParam reads a uuid path parameter, answering 400 when it is malformed
func parseIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_ID", "Invalid "+name+" format")
		return uuid.Nil, false
	}
	return id, true
}

// currentVolunteer reads the authenticated volunteer, answering 401 when the
// token did not carry a usable subject
func currentVolunteer(c *gin.Context) (uuid.UUID, bool) {
	id, err := middleware.GetVolunteerID(c)
	if err != nil {
		var authErr *middleware.AuthError
		if errors.As(err, &authErr) {
			respondError(c, http.StatusUnauthorized, authErr.Code, authErr.Message)
		} else {
			respondError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		}
		return uuid.Nil, false
	}
	return id, true
}
