package services

import (
	"bytes"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kendall-kelly/helphub-api/models"
)

var sixDigits = regexp.MustCompile(`^[1-9][0-9]{5}$`)

func TestOtpGenerator_Generate(t *testing.T) {
	clock := newTestClock()
	g := NewOtpGenerator(clock.Now, nil)
	request := &models.Request{OTP: models.OTP{Attempts: 2}}

	code, err := g.Generate(request)
	require.NoError(t, err)

	assert.Regexp(t, sixDigits, code)
	require.NotNil(t, request.OTP.Code)
	assert.Equal(t, code, *request.OTP.Code)
	assert.Equal(t, clock.Now(), *request.OTP.GeneratedAt)
	assert.Equal(t, 0, request.OTP.Attempts, "a new code resets the attempt counter")
	assert.Nil(t, request.OTP.VerifiedAt)
}

func TestOtpGenerator_GenerateRange(t *testing.T) {
	// an all-zero random source yields the smallest code
	g := NewOtpGenerator(nil, bytes.NewReader(make([]byte, 8)))
	code, err := g.Generate(&models.Request{})
	require.NoError(t, err)
	assert.Equal(t, "100000", code)

	for i := 0; i < 200; i++ {
		code, err := NewOtpGenerator(nil, nil).Generate(&models.Request{})
		require.NoError(t, err)
		assert.Regexp(t, sixDigits, code)
	}
}

func TestOtpGenerator_GenerateRandomFailure(t *testing.T) {
	g := NewOtpGenerator(nil, bytes.NewReader(nil))
	request := &models.Request{}

	_, err := g.Generate(request)
	require.Error(t, err)
	assert.Nil(t, request.OTP.Code, "a failed draw leaves the request untouched")
}

func TestOtpGenerator_Resend(t *testing.T) {
	clock := newTestClock()
	g := NewOtpGenerator(clock.Now, nil)
	request := &models.Request{}

	first, err := g.Resend(request)
	require.NoError(t, err, "resend without a previous code behaves like generate")

	clock.Advance(30 * time.Second)
	_, err = g.Resend(request)
	var throttled *ThrottledError
	require.True(t, errors.As(err, &throttled))
	assert.ErrorIs(t, err, ErrOtpThrottled)
	assert.Equal(t, 90*time.Second, throttled.Wait)
	assert.Equal(t, 90, throttled.WaitSeconds())
	assert.Equal(t, first, *request.OTP.Code, "a throttled resend keeps the current code")

	clock.Advance(90 * time.Second)
	_, err = g.Resend(request)
	require.NoError(t, err)
	assert.Equal(t, clock.Now(), *request.OTP.GeneratedAt)
}

func TestOtpGenerator_Expiry(t *testing.T) {
	clock := newTestClock()
	g := NewOtpGenerator(clock.Now, nil)
	request := &models.Request{}

	assert.False(t, g.Expired(request), "no code is never expired")
	assert.Nil(t, g.ValidUntil(request))

	_, err := g.Generate(request)
	require.NoError(t, err)
	assert.Equal(t, clock.Now().Add(OtpValidity), *g.ValidUntil(request))

	clock.Advance(OtpValidity)
	assert.False(t, g.Expired(request), "the code is still valid at exactly fifteen minutes")

	clock.Advance(time.Second)
	assert.True(t, g.Expired(request))
}

func TestOtpGenerator_Matches(t *testing.T) {
	g := NewOtpGenerator(nil, nil)
	request := &models.Request{}
	assert.False(t, g.Matches(request, ""))

	code, err := g.Generate(request)
	require.NoError(t, err)

	assert.True(t, g.Matches(request, code))
	assert.False(t, g.Matches(request, code+"0"))
	assert.False(t, g.Matches(request, ""))
}

func TestOtpGenerator_Status(t *testing.T) {
	clock := newTestClock()
	g := NewOtpGenerator(clock.Now, nil)
	request := &models.Request{}

	status := g.Status(request)
	assert.False(t, status.Generated)
	assert.False(t, status.Expired)

	_, err := g.Generate(request)
	require.NoError(t, err)
	request.OTP.Attempts = 1
	clock.Advance(20 * time.Minute)

	status = g.Status(request)
	assert.True(t, status.Generated)
	assert.False(t, status.Verified)
	assert.True(t, status.Expired)
	assert.Equal(t, 1, status.Attempts)
	require.NotNil(t, status.ValidUntil)
}

func TestVerificationError(t *testing.T) {
	err := &VerificationError{Reason: ErrOtpMismatch, Attempts: 1}
	assert.ErrorIs(t, err, ErrOtpMismatch)
	assert.Equal(t, 2, err.RemainingAttempts())
	assert.Contains(t, err.Error(), "attempts: 1")

	err = &VerificationError{Reason: ErrOtpAttemptsExceeded, Attempts: 5}
	assert.Equal(t, 0, err.RemainingAttempts())
}

func TestThrottledError_WaitSecondsRoundsUp(t *testing.T) {
	err := &ThrottledError{Wait: 1500 * time.Millisecond}
	assert.Equal(t, 2, err.WaitSeconds())
	assert.Contains(t, err.Error(), "retry in 2s")
}
