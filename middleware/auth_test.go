package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/auth0/go-jwt-middleware/v2/validator"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kendall-kelly/helphub-api/config"
)

func testAuthConfig() *config.Config {
	return &config.Config{
		JWTSecret:   "test-secret",
		JWTIssuer:   "helphub-api",
		JWTAudience: "helphub-volunteers",
	}
}

type tokenOptions struct {
	secret   string
	issuer   string
	audience string
	role     string
	expires  time.Time
	method   jwt.SigningMethod
}

func signToken(t *testing.T, subject string, opts tokenOptions) string {
	t.Helper()
	cfg := testAuthConfig()
	if opts.secret == "" {
		opts.secret = cfg.JWTSecret
	}
	if opts.issuer == "" {
		opts.issuer = cfg.JWTIssuer
	}
	if opts.audience == "" {
		opts.audience = cfg.JWTAudience
	}
	if opts.expires.IsZero() {
		opts.expires = time.Now().Add(time.Hour)
	}
	if opts.method == nil {
		opts.method = jwt.SigningMethodHS256
	}

	claims := jwt.MapClaims{
		"sub": subject,
		"iss": opts.issuer,
		"aud": []string{opts.audience},
		"exp": opts.expires.Unix(),
		"iat": time.Now().Unix(),
	}
	if opts.role != "" {
		claims["role"] = opts.role
	}

	signed, err := jwt.NewWithClaims(opts.method, claims).SignedString([]byte(opts.secret))
	require.NoError(t, err)
	return signed
}

func setupAuthRouter(t *testing.T) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()

	auth, err := EnsureValidToken(testAuthConfig(), zerolog.Nop())
	require.NoError(t, err)

	router.GET("/me", auth, RequireRole("volunteer"), func(c *gin.Context) {
		id, err := GetVolunteerID(c)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"volunteer_id": id.String()})
	})
	return router
}

func TestEnsureValidToken(t *testing.T) {
	volunteerID := uuid.New()

	tests := []struct {
		name           string
		token          string
		expectedStatus int
	}{
		{
			name:           "valid volunteer token",
			token:          signToken(t, volunteerID.String(), tokenOptions{role: "volunteer"}),
			expectedStatus: http.StatusOK,
		},
		{
			name:           "missing token",
			token:          "",
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "wrong secret",
			token:          signToken(t, volunteerID.String(), tokenOptions{role: "volunteer", secret: "other-secret"}),
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "wrong audience",
			token:          signToken(t, volunteerID.String(), tokenOptions{role: "volunteer", audience: "someone-else"}),
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "wrong issuer",
			token:          signToken(t, volunteerID.String(), tokenOptions{role: "volunteer", issuer: "elsewhere"}),
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "expired",
			token:          signToken(t, volunteerID.String(), tokenOptions{role: "volunteer", expires: time.Now().Add(-time.Hour)}),
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "no role claim",
			token:          signToken(t, volunteerID.String(), tokenOptions{}),
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "other role",
			token:          signToken(t, volunteerID.String(), tokenOptions{role: "admin"}),
			expectedStatus: http.StatusForbidden,
		},
		{
			name:           "different signing algorithm",
			token:          signToken(t, volunteerID.String(), tokenOptions{role: "volunteer", method: jwt.SigningMethodHS512}),
			expectedStatus: http.StatusUnauthorized,
		},
	}

	router := setupAuthRouter(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedStatus == http.StatusOK {
				assert.Contains(t, w.Body.String(), volunteerID.String())
			} else {
				assert.Contains(t, w.Body.String(), `"success":false`)
			}
		})
	}
}

func TestGetVolunteerID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	id := uuid.New()

	tests := []struct {
		name      string
		setupFunc func(*gin.Context)
		wantID    uuid.UUID
		wantCode  string
	}{
		{
			name:      "successfully extracts volunteer ID",
			setupFunc: func(c *gin.Context) { SetVolunteerID(c, id) },
			wantID:    id,
		},
		{
			name:      "volunteer ID not found in context",
			setupFunc: func(c *gin.Context) {},
			wantCode:  "MISSING_VOLUNTEER_ID",
		},
		{
			name:      "volunteer ID is not a string",
			setupFunc: func(c *gin.Context) { c.Set("volunteer_id", 12345) },
			wantCode:  "INVALID_VOLUNTEER_ID",
		},
		{
			name:      "volunteer ID is not a UUID",
			setupFunc: func(c *gin.Context) { c.Set("volunteer_id", "not-a-uuid") },
			wantCode:  "INVALID_VOLUNTEER_ID",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := gin.CreateTestContext(httptest.NewRecorder())
			tt.setupFunc(c)

			got, err := GetVolunteerID(c)
			if tt.wantCode != "" {
				var authErr *AuthError
				require.ErrorAs(t, err, &authErr)
				assert.Equal(t, tt.wantCode, authErr.Code)
				assert.Equal(t, uuid.Nil, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, got)
		})
	}
}

func TestRequireRole(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name           string
		setupFunc      func(*gin.Context)
		wantStatusCode int
		wantAborted    bool
	}{
		{
			name: "has required role",
			setupFunc: func(c *gin.Context) {
				c.Set("validated_claims", &validator.ValidatedClaims{CustomClaims: &CustomClaims{Role: "volunteer"}})
			},
			wantAborted: false,
		},
		{
			name: "different role",
			setupFunc: func(c *gin.Context) {
				c.Set("validated_claims", &validator.ValidatedClaims{CustomClaims: &CustomClaims{Role: "customer"}})
			},
			wantStatusCode: http.StatusForbidden,
			wantAborted:    true,
		},
		{
			name:           "claims not in context",
			setupFunc:      func(c *gin.Context) {},
			wantStatusCode: http.StatusUnauthorized,
			wantAborted:    true,
		},
		{
			name: "claims of unexpected type",
			setupFunc: func(c *gin.Context) {
				c.Set("validated_claims", "invalid")
			},
			wantStatusCode: http.StatusUnauthorized,
			wantAborted:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/test", nil)
			tt.setupFunc(c)

			RequireRole("volunteer")(c)

			assert.Equal(t, tt.wantAborted, c.IsAborted())
			if tt.wantAborted {
				assert.Equal(t, tt.wantStatusCode, w.Code)
			}
		})
	}
}

func TestCustomClaims_Validate(t *testing.T) {
	assert.NoError(t, CustomClaims{Role: "volunteer"}.Validate(context.Background()))
	assert.Error(t, CustomClaims{}.Validate(context.Background()))
}

func TestAuthError(t *testing.T) {
	err := &AuthError{Code: "TEST_ERROR", Message: "This is a test error"}
	assert.Equal(t, "This is a test error", err.Error())
}
