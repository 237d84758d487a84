package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	jwtmiddleware "github.com/auth0/go-jwt-middleware/v2"
	"github.com/auth0/go-jwt-middleware/v2/validator"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/kendall-kelly/helphub-api/config"
)

const (
	contextVolunteerID = "volunteer_id"
	contextClaims      = "validated_claims"
)

// CustomClaims contains custom data we want from the token.
type CustomClaims struct {
	Role string `json:"role"`
}

// Validate rejects tokens that carry no role
func (c CustomClaims) Validate(ctx context.Context) error {
	if c.Role == "" {
		return errors.New("token has no role")
	}
	return nil
}

// HasRole checks whether the token was issued for role
func (c CustomClaims) HasRole(role string) bool {
	return c.Role == role
}

// EnsureValidToken verifies HS256 volunteer tokens signed with the configured
// secret and stores the volunteer id in the gin context.
func EnsureValidToken(cfg *config.Config, log zerolog.Logger) (gin.HandlerFunc, error) {
	secret := []byte(cfg.JWTSecret)
	keyFunc := func(ctx context.Context) (interface{}, error) {
		return secret, nil
	}

	jwtValidator, err := validator.New(
		keyFunc,
		validator.HS256,
		cfg.JWTIssuer,
		[]string{cfg.JWTAudience},
		validator.WithCustomClaims(
			func() validator.CustomClaims {
				return &CustomClaims{}
			},
		),
		validator.WithAllowedClockSkew(time.Minute),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to set up the jwt validator: %w", err)
	}

	errorHandler := func(w http.ResponseWriter, r *http.Request, err error) {
		log.Debug().Err(err).Str("path", r.URL.Path).Msg("Rejected token")

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		if _, writeErr := w.Write([]byte(`{"success":false,"error":{"code":"INVALID_TOKEN","message":"Failed to validate JWT."}}`)); writeErr != nil {
			log.Error().Err(writeErr).Msg("Failed to write error response")
		}
	}

	middleware := jwtmiddleware.New(
		jwtValidator.ValidateToken,
		jwtmiddleware.WithErrorHandler(errorHandler),
	)

	return func(c *gin.Context) {
		passed := false
		var handler http.HandlerFunc = func(w http.ResponseWriter, r *http.Request) {
			passed = true
			token, ok := r.Context().Value(jwtmiddleware.ContextKey{}).(*validator.ValidatedClaims)
			if !ok {
				abortWithAuthError(c, http.StatusUnauthorized, "INVALID_TOKEN", "Failed to validate JWT.")
				return
			}

			c.Request = r
			c.Set(contextVolunteerID, token.RegisteredClaims.Subject)
			c.Set(contextClaims, token)

			c.Next()
		}

		middleware.CheckJWT(handler).ServeHTTP(c.Writer, c.Request)
		// the error handler already wrote the response; stop the chain
		if !passed {
			c.Abort()
		}
	}, nil
}

// GetVolunteerID extracts the authenticated volunteer's id from the Gin context
func GetVolunteerID(c *gin.Context) (uuid.UUID, error) {
	value, exists := c.Get(contextVolunteerID)
	if !exists {
		return uuid.Nil, &AuthError{Code: "MISSING_VOLUNTEER_ID", Message: "Volunteer ID not found in context"}
	}

	raw, ok := value.(string)
	if !ok {
		return uuid.Nil, &AuthError{Code: "INVALID_VOLUNTEER_ID", Message: "Volunteer ID is not a string"}
	}

	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, &AuthError{Code: "INVALID_VOLUNTEER_ID", Message: "Volunteer ID is not a valid UUID"}
	}
	return id, nil
}

// SetVolunteerID stores an authenticated volunteer id, for handlers mounted
// behind a different authentication layer and for tests
func SetVolunteerID(c *gin.Context, id uuid.UUID) {
	c.Set(contextVolunteerID, id.String())
}

// GetClaims extracts the validated JWT claims from the Gin context
func GetClaims(c *gin.Context) (*validator.ValidatedClaims, error) {
	claims, exists := c.Get(contextClaims)
	if !exists {
		return nil, &AuthError{Code: "MISSING_CLAIMS", Message: "Claims not found in context"}
	}

	validatedClaims, ok := claims.(*validator.ValidatedClaims)
	if !ok {
		return nil, &AuthError{Code: "INVALID_CLAIMS", Message: "Claims are not in the expected format"}
	}

	return validatedClaims, nil
}

// RequireRole is a middleware that checks the token was issued for role
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := GetClaims(c)
		if err != nil {
			abortWithAuthError(c, http.StatusUnauthorized, "MISSING_CLAIMS", "Could not retrieve token claims")
			return
		}

		customClaims, ok := claims.CustomClaims.(*CustomClaims)
		if !ok || !customClaims.HasRole(role) {
			abortWithAuthError(c, http.StatusForbidden, "INSUFFICIENT_ROLE", "Insufficient permissions to access this resource")
			return
		}

		c.Next()
	}
}

func abortWithAuthError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}

// AuthError represents an authentication error
type AuthError struct {
	Code    string
	Message string
}

func (e *AuthError) Error() string {
	return e.Message
}
