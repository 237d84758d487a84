package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/kendall-kelly/helphub-api/models"
	"github.com/kendall-kelly/helphub-api/services"
)

// RegisterRequest represents the request body for volunteer sign-up
type RegisterRequest struct {
	FirstName  string        `json:"first_name" binding:"required,max=100"`
	LastName   string        `json:"last_name" binding:"required,max=100"`
	Email      string        `json:"email" binding:"required,email"`
	Password   string        `json:"password" binding:"required,min=6"`
	Phone      string        `json:"phone" binding:"required,max=30"`
	Profession string        `json:"profession" binding:"required,max=100"`
	Skills     []string      `json:"skills" binding:"omitempty,dive,required,max=100"`
	Location   LocationInput `json:"location" binding:"required"`
}

// LoginRequest represents the request body for volunteer login
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// UpdateProfileRequest is a partial edit of the signed-in volunteer's profile
type UpdateProfileRequest struct {
	FirstName  *string        `json:"first_name" binding:"omitempty,max=100"`
	LastName   *string        `json:"last_name" binding:"omitempty,max=100"`
	Phone      *string        `json:"phone" binding:"omitempty,max=30"`
	Profession *string        `json:"profession" binding:"omitempty,max=100"`
	Skills     []string       `json:"skills" binding:"omitempty,dive,required,max=100"`
	Location   *LocationInput `json:"location"`
}

// AuthController serves volunteer sign-up, login and the current profile
type AuthController struct {
	volunteers *services.VolunteerService
	log        zerolog.Logger
}

// NewAuthController creates an AuthController
func NewAuthController(volunteers *services.VolunteerService, log zerolog.Logger) *AuthController {
	return &AuthController{
		volunteers: volunteers,
		log:        log.With().Str("component", "auth_controller").Logger(),
	}
}

// Register handles POST /api/v1/auth/register
func (ac *AuthController) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err)
		return
	}

	result, err := ac.volunteers.Register(c.Request.Context(), services.RegisterInput{
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		Email:      req.Email,
		Password:   req.Password,
		Phone:      req.Phone,
		Profession: req.Profession,
		Skills:     req.Skills,
		Location: models.Location{
			Address: req.Location.Address,
			City:    req.Location.City,
			State:   req.Location.State,
			ZipCode: req.Location.ZipCode,
		},
	})
	if err != nil {
		handleServiceError(c, ac.log, err)
		return
	}
	respondSuccess(c, http.StatusCreated, result)
}

// Login handles POST /api/v1/auth/login
func (ac *AuthController) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err)
		return
	}

	result, err := ac.volunteers.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		handleServiceError(c, ac.log, err)
		return
	}
	respondSuccess(c, http.StatusOK, result)
}

// Me handles GET /api/v1/auth/me
func (ac *AuthController) Me(c *gin.Context) {
	volunteerID, ok := currentVolunteer(c)
	if !ok {
		return
	}

	volunteer, err := ac.volunteers.GetProfile(c.Request.Context(), volunteerID)
	if err != nil {
		handleServiceError(c, ac.log, err)
		return
	}
	respondSuccess(c, http.StatusOK, volunteer)
}

// UpdateProfile handles PUT /api/v1/auth/profile
func (ac *AuthController) UpdateProfile(c *gin.Context) {
	volunteerID, ok := currentVolunteer(c)
	if !ok {
		return
	}

	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err)
		return
	}

	input := services.UpdateProfileInput{
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		Phone:      req.Phone,
		Profession: req.Profession,
		Skills:     req.Skills,
	}
	if req.Location != nil {
		input.Location = &models.Location{
			Address: req.Location.Address,
			City:    req.Location.City,
			State:   req.Location.State,
			ZipCode: req.Location.ZipCode,
		}
	}

	volunteer, err := ac.volunteers.UpdateProfile(c.Request.Context(), volunteerID, input)
	if err != nil {
		handleServiceError(c, ac.log, err)
		return
	}
	respondSuccess(c, http.StatusOK, volunteer)
}
