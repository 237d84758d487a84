package services

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"io"
	"math/big"
	"time"

	"github.com/kendall-kelly/helphub-api/models"
)

const (
	OtpValidity       = 15 * time.Minute
	OtpResendCooldown = 2 * time.Minute
	MaxOtpAttempts    = 3

	otpMin   = 100000
	otpRange = 900000
)

// OtpStatus is the read-only view of a request's completion code
type OtpStatus struct {
	Generated   bool       `json:"generated"`
	GeneratedAt *time.Time `json:"generated_at"`
	Verified    bool       `json:"verified"`
	VerifiedAt  *time.Time `json:"verified_at"`
	Attempts    int        `json:"attempts"`
	Expired     bool       `json:"expired"`
	ValidUntil  *time.Time `json:"valid_until"`
}

// OtpGenerator produces and checks single-use six digit codes
type OtpGenerator struct {
	now    func() time.Time
	random io.Reader
}

// NewOtpGenerator creates a generator. A nil clock uses time.Now and a nil
// reader uses crypto/rand.
func NewOtpGenerator(now func() time.Time, random io.Reader) *OtpGenerator {
	if now == nil {
		now = time.Now
	}
	if random == nil {
		random = rand.Reader
	}
	return &OtpGenerator{now: now, random: random}
}

// Now returns the generator's notion of the current time
func (g *OtpGenerator) Now() time.Time {
	return g.now()
}

// Generate draws a new code and stores it on the request with a fresh
// timestamp and a zeroed attempt counter. The caller persists the change.
func (g *OtpGenerator) Generate(request *models.Request) (string, error) {
	n, err := rand.Int(g.random, big.NewInt(otpRange))
	if err != nil {
		return "", fmt.Errorf("failed to draw otp: %w", err)
	}

	code := fmt.Sprintf("%06d", n.Int64()+otpMin)
	now := g.now()
	request.OTP = models.OTP{
		Code:        &code,
		GeneratedAt: &now,
		Attempts:    0,
	}
	return code, nil
}

// Resend behaves like Generate unless the current code is younger than the cooldown
func (g *OtpGenerator) Resend(request *models.Request) (string, error) {
	if request.OTP.GeneratedAt != nil {
		elapsed := g.now().Sub(*request.OTP.GeneratedAt)
		if elapsed < OtpResendCooldown {
			return "", &ThrottledError{Wait: OtpResendCooldown - elapsed}
		}
	}
	return g.Generate(request)
}

// Expired reports whether the stored code is past its validity window
func (g *OtpGenerator) Expired(request *models.Request) bool {
	if request.OTP.GeneratedAt == nil {
		return false
	}
	return g.now().Sub(*request.OTP.GeneratedAt) > OtpValidity
}

// ValidUntil is the instant the stored code stops being accepted
func (g *OtpGenerator) ValidUntil(request *models.Request) *time.Time {
	if request.OTP.GeneratedAt == nil {
		return nil
	}
	until := request.OTP.GeneratedAt.Add(OtpValidity)
	return &until
}

// Matches compares input against the stored code in constant time
func (g *OtpGenerator) Matches(request *models.Request, input string) bool {
	if request.OTP.Code == nil {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(*request.OTP.Code), []byte(input)) == 1
}

// Status computes the OTP view; expiry is evaluated now, not stored
func (g *OtpGenerator) Status(request *models.Request) OtpStatus {
	return OtpStatus{
		Generated:   request.OTP.Code != nil,
		GeneratedAt: request.OTP.GeneratedAt,
		Verified:    request.OTP.VerifiedAt != nil,
		VerifiedAt:  request.OTP.VerifiedAt,
		Attempts:    request.OTP.Attempts,
		Expired:     g.Expired(request),
		ValidUntil:  g.ValidUntil(request),
	}
}

// otpColumns maps the in-memory OTP onto the embedded otp_ columns
func otpColumns(otp models.OTP) map[string]interface{} {
	return map[string]interface{}{
		"otp_code":         otp.Code,
		"otp_generated_at": otp.GeneratedAt,
		"otp_verified_at":  otp.VerifiedAt,
		"otp_attempts":     otp.Attempts,
	}
}
