package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// idleClientTTL is how long an unseen client keeps its bucket
const idleClientTTL = 30 * time.Minute

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter applies a per-client token bucket keyed by client IP
type RateLimiter struct {
	clients   map[string]*clientLimiter
	mu        sync.Mutex
	limit     rate.Limit
	burst     int
	lastSweep time.Time
	now       func() time.Time
	log       zerolog.Logger
}

// NewRateLimiter allows perMinute requests per client with the given burst.
// Idle clients are pruned lazily on access, so no goroutine is started.
func NewRateLimiter(perMinute, burst int, log zerolog.Logger) *RateLimiter {
	return &RateLimiter{
		clients: make(map[string]*clientLimiter),
		limit:   rate.Limit(float64(perMinute) / 60),
		burst:   burst,
		now:     time.Now,
		log:     log,
	}
}

func (rl *RateLimiter) allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if now.Sub(rl.lastSweep) > idleClientTTL {
		for id, client := range rl.clients {
			if now.Sub(client.lastSeen) > idleClientTTL {
				delete(rl.clients, id)
			}
		}
		rl.lastSweep = now
	}

	client, exists := rl.clients[key]
	if !exists {
		client = &clientLimiter{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.clients[key] = client
	}
	client.lastSeen = now
	return client.limiter.AllowN(now, 1)
}

// Limit creates the Gin middleware handler.
func (rl *RateLimiter) Limit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.allow(c.ClientIP()) {
			rl.log.Warn().Str("client", c.ClientIP()).Str("path", c.FullPath()).Msg("Rate limit exceeded")
			abortWithAuthError(c, http.StatusTooManyRequests, "RATE_LIMITED", "Too many requests, please slow down")
			return
		}
		c.Next()
	}
}
