package testutil

import (
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/kendall-kelly/helphub-api/config"
)

// RequireTestEnvironment ensures that tests are running in the test environment.
// This prevents accidental execution of tests against production or development databases.
// It will fail the test immediately if GO_ENV is not set to "test".
func RequireTestEnvironment(t *testing.T) {
	t.Helper()

	env := os.Getenv("GO_ENV")
	if env != "test" {
		t.Fatalf("SAFETY CHECK FAILED: Tests must run with GO_ENV=test to prevent data loss. Current GO_ENV=%q. Set GO_ENV=test before running tests.", env)
	}
}

// RequireTestEnvironmentOrSkip skips the test unless GO_ENV is "test"
func RequireTestEnvironmentOrSkip(t *testing.T) {
	t.Helper()

	env := os.Getenv("GO_ENV")
	if env != "test" {
		t.Skipf("Skipping test: GO_ENV must be 'test' (current: %q)", env)
	}
}

// MustSetTestEnvironment sets GO_ENV to test for the duration of t
func MustSetTestEnvironment(t *testing.T) {
	t.Helper()
	t.Setenv("GO_ENV", "test")
}

// TestConfig is a complete configuration backed by a private in-memory
// sqlite database, with Redis and S3 disabled
func TestConfig() *config.Config {
	return &config.Config{
		GoEnv:                 "test",
		Port:                  "0",
		DatabaseURL:           "sqlite://:memory:",
		LogLevel:              "error",
		JWTSecret:             "test-secret",
		JWTIssuer:             "helphub-api",
		JWTAudience:           "helphub-volunteers",
		TokenTTL:              time.Hour,
		WorkerConcurrency:     1,
		AWSRegion:             "us-east-1",
		CORSAllowedOrigins:    []string{"http://localhost:3000"},
		OtpRateLimitPerMinute: 60,
		OtpRateLimitBurst:     20,
		NotificationTimeout:   time.Second,
	}
}

// PrintEnvironmentInfo prints the current test environment configuration.
// Useful for debugging test environment issues.
func PrintEnvironmentInfo() {
	fmt.Printf("Test Environment Info:\n")
	fmt.Printf("  GO_ENV: %s\n", os.Getenv("GO_ENV"))
	fmt.Printf("  DATABASE_URL: %s\n", MaskDatabaseURL(os.Getenv("DATABASE_URL")))
	fmt.Printf("  REDIS_ADDR: %s\n", os.Getenv("REDIS_ADDR"))
}

// MaskDatabaseURL hides everything after the scheme and host prefix and
// flags URLs that do not look like a test database
func MaskDatabaseURL(url string) string {
	if url == "" {
		return "(not set)"
	}
	if strings.HasPrefix(url, "sqlite://") {
		return url
	}
	if len(url) <= 20 {
		return url
	}
	if strings.Contains(url, "test") {
		return url[:20] + "... [contains 'test']"
	}
	return url[:20] + "... [WARNING: may not be test DB]"
}
