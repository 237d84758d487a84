package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/kendall-kelly/helphub-api/models"
	"github.com/kendall-kelly/helphub-api/services"
)

// AvailabilityRequest represents the request body for going on or off duty
type AvailabilityRequest struct {
	Availability string `json:"availability" binding:"required,oneof=available unavailable"`
}

// VolunteerController serves public volunteer profiles and the volunteer dashboard
type VolunteerController struct {
	volunteers *services.VolunteerService
	log        zerolog.Logger
}

// NewVolunteerController creates a VolunteerController
func NewVolunteerController(volunteers *services.VolunteerService, log zerolog.Logger) *VolunteerController {
	return &VolunteerController{
		volunteers: volunteers,
		log:        log.With().Str("component", "volunteer_controller").Logger(),
	}
}

// GetVolunteer handles GET /api/v1/volunteers/:id
func (vc *VolunteerController) GetVolunteer(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	profile, err := vc.volunteers.GetPublicProfile(c.Request.Context(), id)
	if err != nil {
		handleServiceError(c, vc.log, err)
		return
	}
	respondSuccess(c, http.StatusOK, profile)
}

// OpenRequests handles GET /api/v1/dashboard/requests
func (vc *VolunteerController) OpenRequests(c *gin.Context) {
	volunteerID, ok := currentVolunteer(c)
	if !ok {
		return
	}

	feed, err := vc.volunteers.OpenRequests(c.Request.Context(), volunteerID)
	if err != nil {
		handleServiceError(c, vc.log, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{
		"requests": feed,
		"count":    len(feed),
	})
}

// MyJobs handles GET /api/v1/dashboard/jobs?status=&limit=
func (vc *VolunteerController) MyJobs(c *gin.Context) {
	volunteerID, ok := currentVolunteer(c)
	if !ok {
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", "limit must be a non-negative integer")
			return
		}
		limit = parsed
	}

	jobs, err := vc.volunteers.MyJobs(c.Request.Context(), volunteerID, c.Query("status"), limit)
	if err != nil {
		handleServiceError(c, vc.log, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{
		"jobs":  jobs,
		"count": len(jobs),
	})
}

// UpdateAvailability handles PUT /api/v1/dashboard/availability
func (vc *VolunteerController) UpdateAvailability(c *gin.Context) {
	volunteerID, ok := currentVolunteer(c)
	if !ok {
		return
	}

	var req AvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err)
		return
	}

	volunteer, err := vc.volunteers.UpdateAvailability(c.Request.Context(), volunteerID, models.Availability(req.Availability))
	if err != nil {
		handleServiceError(c, vc.log, err)
		return
	}
	respondSuccess(c, http.StatusOK, volunteer)
}

// Stats handles GET /api/v1/dashboard/stats
func (vc *VolunteerController) Stats(c *gin.Context) {
	volunteerID, ok := currentVolunteer(c)
	if !ok {
		return
	}

	stats, err := vc.volunteers.Stats(c.Request.Context(), volunteerID)
	if err != nil {
		handleServiceError(c, vc.log, err)
		return
	}
	respondSuccess(c, http.StatusOK, stats)
}

// UploadProfileImage handles PUT /api/v1/dashboard/profile-image. The image
// is sent as multipart form field "image".
func (vc *VolunteerController) UploadProfileImage(c *gin.Context) {
	volunteerID, ok := currentVolunteer(c)
	if !ok {
		return
	}

	fileHeader, err := c.FormFile("image")
	if err != nil {
		respondError(c, http.StatusBadRequest, "NO_FILE", "No image file was uploaded")
		return
	}

	volunteer, err := vc.volunteers.SetProfileImage(c.Request.Context(), volunteerID, fileHeader)
	if err != nil {
		handleServiceError(c, vc.log, err)
		return
	}
	respondSuccess(c, http.StatusOK, volunteer)
}
