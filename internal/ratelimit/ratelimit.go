// Package ratelimit guards WebSocket upgrade attempts with a per-IP
// token bucket, trimmed from the teacher's two-level (global + per-IP)
// limiter down to per-IP only — a single instance's fan-in is bounded
// by admission control and discovery routing, not a global bucket.
package ratelimit

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

type entry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// IPLimiter rate-limits connection attempts per client IP.
type IPLimiter struct {
	mu       sync.RWMutex
	limiters map[string]*entry

	ratePerSec float64
	burst      int
	ttl        time.Duration

	logger zerolog.Logger

	stopCleanup chan struct{}
}

// New creates an IPLimiter and starts its stale-entry cleanup
// goroutine. Call Stop during shutdown.
func New(ratePerSec float64, burst int, logger zerolog.Logger) *IPLimiter {
	l := &IPLimiter{
		limiters:    make(map[string]*entry),
		ratePerSec:  ratePerSec,
		burst:       burst,
		ttl:         5 * time.Minute,
		logger:      logger.With().Str("component", "connection_rate_limiter").Logger(),
		stopCleanup: make(chan struct{}),
	}
	go l.cleanupLoop()
	return l
}

// Allow reports whether a connection attempt from ip may proceed.
func (l *IPLimiter) Allow(ip string) bool {
	limiter := l.limiterFor(ip)
	if !limiter.Allow() {
		l.logger.Debug().Str("ip", ip).Msg("connection rejected: per-IP rate limit exceeded")
		return false
	}
	return true
}

func (l *IPLimiter) limiterFor(ip string) *rate.Limiter {
	l.mu.RLock()
	e, ok := l.limiters[ip]
	l.mu.RUnlock()
	if ok {
		l.mu.Lock()
		e.lastAccess = time.Now()
		l.mu.Unlock()
		return e.limiter
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok := l.limiters[ip]; ok {
		e.lastAccess = time.Now()
		return e.limiter
	}

	limiter := rate.NewLimiter(rate.Limit(l.ratePerSec), l.burst)
	l.limiters[ip] = &entry{limiter: limiter, lastAccess: time.Now()}
	return limiter
}

func (l *IPLimiter) cleanupLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.cleanup()
		case <-l.stopCleanup:
			return
		}
	}
}

func (l *IPLimiter) cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now()
	for ip, e := range l.limiters {
		if now.Sub(e.lastAccess) > l.ttl {
			delete(l.limiters, ip)
		}
	}
}

// Stop terminates the cleanup goroutine.
func (l *IPLimiter) Stop() {
	close(l.stopCleanup)
}
