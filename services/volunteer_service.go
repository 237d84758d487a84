package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"mime/multipart"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/kendall-kelly/helphub-api/models"
	"github.com/kendall-kelly/helphub-api/repository"
)

const (
	// MinPasswordLength is the shortest accepted volunteer password
	MinPasswordLength = 6
	// OpenRequestsLimit caps the dashboard feed
	OpenRequestsLimit = 20
	// DefaultJobsLimit applies when MyJobs is called without a limit
	DefaultJobsLimit = 10
)

// RegisterInput is a volunteer sign-up that passed field validation
type RegisterInput struct {
	FirstName  string
	LastName   string
	Email      string
	Password   string
	Phone      string
	Profession string
	Skills     []string
	Location   models.Location
}

// UpdateProfileInput is a partial profile edit; nil fields are left unchanged
type UpdateProfileInput struct {
	FirstName  *string
	LastName   *string
	Phone      *string
	Profession *string
	Skills     []string // nil leaves skills unchanged, empty clears them
	Location   *models.Location
}

// AuthResult is returned by Register and Login
type AuthResult struct {
	Token     string            `json:"token"`
	ExpiresAt time.Time         `json:"expires_at"`
	Volunteer *models.Volunteer `json:"volunteer"`
}

// PublicProfile is what anyone may see about a volunteer
type PublicProfile struct {
	ID              uuid.UUID       `json:"id"`
	FirstName       string          `json:"first_name"`
	LastName        string          `json:"last_name"`
	Profession      string          `json:"profession"`
	Skills          []string        `json:"skills"`
	Rating          float64         `json:"rating"`
	TotalJobs       int             `json:"total_jobs"`
	CompletedJobs   int             `json:"completed_jobs"`
	Location        models.Location `json:"location"`
	ProfileImageURL *string         `json:"profile_image_url,omitempty"`
	IsVerified      bool            `json:"is_verified"`
}

// VolunteerStats summarizes a volunteer's work for the dashboard
type VolunteerStats struct {
	TotalJobs      int     `json:"total_jobs"`
	CompletedJobs  int     `json:"completed_jobs"`
	AssignedJobs   int64   `json:"assigned_jobs"`
	Rating         float64 `json:"rating"`
	AverageRating  float64 `json:"average_rating"`
	RatedJobs      int64   `json:"rated_jobs"`
	CompletionRate int     `json:"completion_rate"`
}

// VolunteerService owns volunteer accounts and the volunteer dashboard
type VolunteerService struct {
	store  repository.Store
	tokens *TokenService
	images ImageService
	log    zerolog.Logger
}

// NewVolunteerService creates the service. images may be nil when object
// storage is not configured; profile images are then unavailable.
func NewVolunteerService(store repository.Store, tokens *TokenService, images ImageService, log zerolog.Logger) *VolunteerService {
	return &VolunteerService{
		store:  store,
		tokens: tokens,
		images: images,
		log:    log.With().Str("component", "volunteer_service").Logger(),
	}
}

// Register creates an active, available volunteer and signs them in
func (s *VolunteerService) Register(ctx context.Context, input RegisterInput) (*AuthResult, error) {
	if len(input.Password) < MinPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", ErrValidation, MinPasswordLength)
	}

	email := normalizeEmail(input.Email)
	if _, err := s.store.Volunteers().FindByEmail(ctx, email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	volunteer := &models.Volunteer{
		FirstName:    strings.TrimSpace(input.FirstName),
		LastName:     strings.TrimSpace(input.LastName),
		Email:        email,
		PasswordHash: string(hash),
		Phone:        strings.TrimSpace(input.Phone),
		Profession:   strings.TrimSpace(input.Profession),
		Skills:       cleanSkills(input.Skills),
		Location:     input.Location,
		Availability: models.AvailabilityAvailable,
		IsActive:     true,
	}
	if err := s.store.Volunteers().Create(ctx, volunteer); err != nil {
		return nil, fmt.Errorf("failed to create volunteer: %w", err)
	}

	s.log.Info().Str("volunteer_id", volunteer.ID.String()).Msg("Volunteer registered")
	return s.signIn(volunteer)
}

// Login checks the password and issues a fresh token
func (s *VolunteerService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	volunteer, err := s.store.Volunteers().FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to load volunteer: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(volunteer.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	if !volunteer.IsActive {
		return nil, fmt.Errorf("%w: account is deactivated", ErrForbidden)
	}

	return s.signIn(volunteer)
}

func (s *VolunteerService) signIn(volunteer *models.Volunteer) (*AuthResult, error) {
	token, expiresAt, err := s.tokens.Issue(volunteer.ID)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: token, ExpiresAt: expiresAt, Volunteer: volunteer}, nil
}

// GetProfile returns the full volunteer record for its owner
func (s *VolunteerService) GetProfile(ctx context.Context, volunteerID uuid.UUID) (*models.Volunteer, error) {
	volunteer, err := s.store.Volunteers().FindByID(ctx, volunteerID)
	if err != nil {
		return nil, notFound("volunteer", err)
	}
	s.resolveImage(ctx, volunteer)
	return volunteer, nil
}

// GetPublicProfile returns the volunteer without contact details
func (s *VolunteerService) GetPublicProfile(ctx context.Context, volunteerID uuid.UUID) (*PublicProfile, error) {
	volunteer, err := s.GetProfile(ctx, volunteerID)
	if err != nil {
		return nil, err
	}
	return &PublicProfile{
		ID:              volunteer.ID,
		FirstName:       volunteer.FirstName,
		LastName:        volunteer.LastName,
		Profession:      volunteer.Profession,
		Skills:          volunteer.Skills,
		Rating:          volunteer.Rating,
		TotalJobs:       volunteer.TotalJobs,
		CompletedJobs:   volunteer.CompletedJobs,
		Location:        volunteer.Location,
		ProfileImageURL: volunteer.ProfileImageURL,
		IsVerified:      volunteer.IsVerified,
	}, nil
}

// UpdateProfile applies a partial edit of the volunteer's own profile.
// Availability is not editable here.
func (s *VolunteerService) UpdateProfile(ctx context.Context, volunteerID uuid.UUID, input UpdateProfileInput) (*models.Volunteer, error) {
	var volunteer *models.Volunteer
	err := s.store.Transaction(ctx, func(tx repository.Store) error {
		current, err := tx.Volunteers().FindByID(ctx, volunteerID)
		if err != nil {
			return notFound("volunteer", err)
		}

		changed := false
		for _, field := range []struct {
			name  string
			value *string
			dest  *string
		}{
			{"first_name", input.FirstName, &current.FirstName},
			{"last_name", input.LastName, &current.LastName},
			{"phone", input.Phone, &current.Phone},
			{"profession", input.Profession, &current.Profession},
		} {
			if field.value == nil {
				continue
			}
			trimmed := strings.TrimSpace(*field.value)
			if trimmed == "" {
				return fmt.Errorf("%w: %s cannot be empty", ErrValidation, field.name)
			}
			*field.dest = trimmed
			changed = true
		}
		if input.Skills != nil {
			current.Skills = cleanSkills(input.Skills)
			changed = true
		}
		if input.Location != nil {
			current.Location = *input.Location
			changed = true
		}

		if changed {
			if err := tx.Volunteers().UpdateProfile(ctx, current); err != nil {
				return fmt.Errorf("failed to update profile: %w", err)
			}
		}

		volunteer, err = tx.Volunteers().FindByID(ctx, volunteerID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.resolveImage(ctx, volunteer)
	s.log.Info().Str("volunteer_id", volunteerID.String()).Msg("Volunteer profile updated")
	return volunteer, nil
}

// UpdateAvailability lets a volunteer go on or off duty. busy belongs to the
// assignment flow and cannot be set here, and a volunteer holding an open job
// cannot change availability until it is completed or cancelled.
func (s *VolunteerService) UpdateAvailability(ctx context.Context, volunteerID uuid.UUID, availability models.Availability) (*models.Volunteer, error) {
	if availability != models.AvailabilityAvailable && availability != models.AvailabilityUnavailable {
		return nil, fmt.Errorf("%w: availability must be available or unavailable", ErrValidation)
	}

	var volunteer *models.Volunteer
	err := s.store.Transaction(ctx, func(tx repository.Store) error {
		if _, err := tx.Volunteers().FindByID(ctx, volunteerID); err != nil {
			return notFound("volunteer", err)
		}

		active, err := tx.Requests().CountByVolunteer(ctx, volunteerID,
			models.RequestStatusAssigned, models.RequestStatusInProgress)
		if err != nil {
			return fmt.Errorf("failed to count active jobs: %w", err)
		}
		if active > 0 {
			return fmt.Errorf("%w: volunteer has an active job", ErrInvalidState)
		}

		ok, err := tx.Volunteers().GuardedUpdate(ctx, volunteerID,
			[]models.Availability{models.AvailabilityAvailable, models.AvailabilityUnavailable},
			map[string]interface{}{"availability": availability})
		if err != nil {
			return fmt.Errorf("failed to update availability: %w", err)
		}
		if !ok {
			return fmt.Errorf("%w: volunteer is busy or inactive", ErrInvalidState)
		}

		volunteer, err = tx.Volunteers().FindByID(ctx, volunteerID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return volunteer, nil
}

// OpenRequests is the dashboard feed: pending requests in the volunteer's
// locality that match their profession or skills, newest first
func (s *VolunteerService) OpenRequests(ctx context.Context, volunteerID uuid.UUID) ([]models.RequestSummary, error) {
	volunteer, err := s.store.Volunteers().FindByID(ctx, volunteerID)
	if err != nil {
		return nil, notFound("volunteer", err)
	}

	pending, err := s.store.Requests().ListPendingIn(ctx, volunteer.Location.City, volunteer.Location.State)
	if err != nil {
		return nil, fmt.Errorf("failed to list requests: %w", err)
	}

	feed := make([]models.RequestSummary, 0, OpenRequestsLimit)
	for i := range pending {
		if len(feed) == OpenRequestsLimit {
			break
		}
		if MatchesRequest(volunteer, &pending[i]) {
			feed = append(feed, pending[i].Summary())
		}
	}
	return feed, nil
}

// MyJobs lists requests assigned to the volunteer. An empty status or "all"
// returns every status.
func (s *VolunteerService) MyJobs(ctx context.Context, volunteerID uuid.UUID, status string, limit int) ([]models.Request, error) {
	var statuses []models.RequestStatus
	switch st := models.RequestStatus(status); st {
	case "", "all":
	case models.RequestStatusAssigned, models.RequestStatusInProgress,
		models.RequestStatusCompleted, models.RequestStatusCancelled:
		statuses = []models.RequestStatus{st}
	default:
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, status)
	}
	if limit <= 0 {
		limit = DefaultJobsLimit
	}

	jobs, err := s.store.Requests().ListByVolunteer(ctx, volunteerID, statuses, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	return jobs, nil
}

// Stats returns job counters, ratings and the completion rate in percent
func (s *VolunteerService) Stats(ctx context.Context, volunteerID uuid.UUID) (*VolunteerStats, error) {
	volunteer, err := s.store.Volunteers().FindByID(ctx, volunteerID)
	if err != nil {
		return nil, notFound("volunteer", err)
	}

	assigned, err := s.store.Requests().CountByVolunteer(ctx, volunteerID,
		models.RequestStatusAssigned, models.RequestStatusInProgress)
	if err != nil {
		return nil, fmt.Errorf("failed to count assigned jobs: %w", err)
	}

	average, rated, err := s.store.Requests().AverageRating(ctx, volunteerID)
	if err != nil {
		return nil, fmt.Errorf("failed to compute rating: %w", err)
	}

	stats := &VolunteerStats{
		TotalJobs:     volunteer.TotalJobs,
		CompletedJobs: volunteer.CompletedJobs,
		AssignedJobs:  assigned,
		Rating:        volunteer.Rating,
		AverageRating: math.Round(average*10) / 10,
		RatedJobs:     rated,
	}
	if volunteer.TotalJobs > 0 {
		stats.CompletionRate = int(math.Round(float64(volunteer.CompletedJobs) / float64(volunteer.TotalJobs) * 100))
	}
	return stats, nil
}

// SetProfileImage uploads a new profile image and removes the previous one
func (s *VolunteerService) SetProfileImage(ctx context.Context, volunteerID uuid.UUID, fileHeader *multipart.FileHeader) (*models.Volunteer, error) {
	if s.images == nil {
		return nil, ErrStorageUnavailable
	}

	volunteer, err := s.store.Volunteers().FindByID(ctx, volunteerID)
	if err != nil {
		return nil, notFound("volunteer", err)
	}

	key, err := s.images.UploadImage(ctx, volunteerID, fileHeader)
	if err != nil {
		return nil, err
	}

	if err := s.store.Volunteers().Update(ctx, volunteerID, map[string]interface{}{"profile_image_key": key}); err != nil {
		if delErr := s.images.DeleteImage(ctx, key); delErr != nil {
			s.log.Warn().Err(delErr).Str("key", key).Msg("Failed to remove orphaned image")
		}
		return nil, fmt.Errorf("failed to store image key: %w", err)
	}

	if volunteer.ProfileImageKey != nil {
		if err := s.images.DeleteImage(ctx, *volunteer.ProfileImageKey); err != nil {
			s.log.Warn().Err(err).Str("key", *volunteer.ProfileImageKey).Msg("Failed to delete previous image")
		}
	}

	return s.GetProfile(ctx, volunteerID)
}

func (s *VolunteerService) resolveImage(ctx context.Context, volunteer *models.Volunteer) {
	if s.images == nil || volunteer.ProfileImageKey == nil {
		return
	}
	url, err := s.images.GetImageURL(ctx, *volunteer.ProfileImageKey)
	if err != nil {
		s.log.Warn().Err(err).Str("volunteer_id", volunteer.ID.String()).Msg("Failed to resolve profile image")
		return
	}
	volunteer.ProfileImageURL = &url
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func cleanSkills(raw []string) []string {
	skills := make([]string, 0, len(raw))
	for _, skill := range raw {
		if skill = strings.TrimSpace(skill); skill != "" {
			skills = append(skills, skill)
		}
	}
	return skills
}
