package testutil

import (
	"testing"

	"github.com/auth0/go-jwt-middleware/v2/validator"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/kendall-kelly/helphub-api/config"
	"github.com/kendall-kelly/helphub-api/middleware"
	"github.com/kendall-kelly/helphub-api/services"
)

// MockValidatedClaims creates a mock ValidatedClaims for testing
func MockValidatedClaims(subject, issuer, role string) *validator.ValidatedClaims {
	return &validator.ValidatedClaims{
		RegisteredClaims: validator.RegisteredClaims{
			Issuer:  issuer,
			Subject: subject,
		},
		CustomClaims: &middleware.CustomClaims{
			Role: role,
		},
	}
}

// SetMockAuthContext authenticates c as volunteerID without a token
func SetMockAuthContext(c *gin.Context, volunteerID uuid.UUID, role string) {
	middleware.SetVolunteerID(c, volunteerID)
	c.Set("validated_claims", MockValidatedClaims(volunteerID.String(), "helphub-api", role))
}

// IssueToken signs a volunteer token the way login does
func IssueToken(t *testing.T, cfg *config.Config, volunteerID uuid.UUID) string {
	t.Helper()

	tokens, err := services.NewTokenService(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience, cfg.TokenTTL)
	if err != nil {
		t.Fatalf("Failed to create token service: %v", err)
	}
	token, _, err := tokens.Issue(volunteerID)
	if err != nil {
		t.Fatalf("Failed to issue token: %v", err)
	}
	return token
}
