// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tillgate Contributors

package auth

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Default rate limiting values.
const (
	// DefaultRateLimitWindow is the fixed window length.
	DefaultRateLimitWindow = time.Minute

	// DefaultRateLimitMax is the number of requests allowed per window.
	DefaultRateLimitMax = 10

	// DefaultRateLimitCleanupInterval is the interval at which the background
	// goroutine removes windows that elapsed long ago.
	DefaultRateLimitCleanupInterval = 5 * time.Minute
)

// RateLimiterConfig configures the rate limiter.
type RateLimiterConfig struct {
	// Window is the fixed window length.
	// Defaults to DefaultRateLimitWindow (60s) if zero.
	Window time.Duration

	// Max is the number of requests allowed within one window.
	// Defaults to DefaultRateLimitMax (10) if zero or negative.
	Max int

	// CleanupInterval is the interval at which background cleanup runs.
	// Defaults to DefaultRateLimitCleanupInterval (5 minutes) if zero.
	CleanupInterval time.Duration
}

// rateWindow tracks one fixed window: a request count and its start time.
type rateWindow struct {
	count   int
	startAt time.Time
}

// RateLimitKey identifies one counter: a client address and a request path.
type RateLimitKey struct {
	ClientAddr string
	Path       string
}

// RateLimiter implements fixed-window request counting keyed by client
// address and request path. It is safe for concurrent use; all updates to a
// key happen under the table lock so concurrent requests cannot lose counts.
//
// The RateLimiter runs a background goroutine to drop windows that elapsed
// long ago. Call Close() to stop the goroutine and release resources.
type RateLimiter struct {
	mu      sync.Mutex
	windows map[RateLimitKey]*rateWindow
	window  time.Duration
	max     int

	stopChan chan struct{}
	wg       sync.WaitGroup

	// Metrics gauge for tracked window count (nil if no registry provided)
	windowGauge prometheus.Gauge
}

// NewRateLimiter creates a rate limiter with the given configuration.
// It starts a background goroutine for cleanup. Call Close() to stop it.
func NewRateLimiter(cfg RateLimiterConfig) *RateLimiter {
	return newRateLimiter(cfg, nil)
}

// NewRateLimiterWithRegistry creates a rate limiter and registers a tracked
// window gauge with the provided Prometheus registry.
// It starts a background goroutine for cleanup. Call Close() to stop it.
func NewRateLimiterWithRegistry(cfg RateLimiterConfig, reg prometheus.Registerer) *RateLimiter {
	return newRateLimiter(cfg, reg)
}

func newRateLimiter(cfg RateLimiterConfig, reg prometheus.Registerer) *RateLimiter {
	window := cfg.Window
	if window <= 0 {
		window = DefaultRateLimitWindow
	}

	maxRequests := cfg.Max
	if maxRequests <= 0 {
		maxRequests = DefaultRateLimitMax
	}

	cleanupInterval := cfg.CleanupInterval
	if cleanupInterval <= 0 {
		cleanupInterval = DefaultRateLimitCleanupInterval
	}

	rl := &RateLimiter{
		windows:  make(map[RateLimitKey]*rateWindow),
		window:   window,
		max:      maxRequests,
		stopChan: make(chan struct{}),
	}

	if reg != nil {
		rl.windowGauge = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tilld_ratelimiter_windows",
			Help: "Current number of tracked rate limiter windows",
		})
		reg.MustRegister(rl.windowGauge)
	}

	rl.wg.Add(1)
	go rl.cleanupLoop(cleanupInterval)

	return rl
}

// Allow counts a request against the key's current window.
// Returns (allowed, retryAfter) where:
//   - allowed: true if the request should be forwarded
//   - retryAfter: time until the window resets (zero if allowed)
//
// A window that has elapsed is reset before counting, so the first request
// after a quiet minute always succeeds.
func (rl *RateLimiter) Allow(key RateLimitKey) (allowed bool, retryAfter time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()

	w, exists := rl.windows[key]
	if !exists || now.Sub(w.startAt) > rl.window {
		w = &rateWindow{startAt: now}
		rl.windows[key] = w
	}

	w.count++
	if w.count > rl.max {
		remaining := rl.window - now.Sub(w.startAt)
		if remaining < 0 {
			remaining = 0
		}
		return false, remaining
	}

	return true, 0
}

// WindowCount returns the number of tracked windows. Useful for testing and
// monitoring.
func (rl *RateLimiter) WindowCount() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.windows)
}

// Cleanup removes windows that elapsed before maxAge ago. Called
// automatically by the background goroutine; can also be invoked manually.
func (rl *RateLimiter) Cleanup(maxAge time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	threshold := time.Now().Add(-maxAge)
	for key, w := range rl.windows {
		if w.startAt.Before(threshold) {
			delete(rl.windows, key)
		}
	}

	if rl.windowGauge != nil {
		rl.windowGauge.Set(float64(len(rl.windows)))
	}
}

// cleanupLoop runs periodic cleanup in the background.
func (rl *RateLimiter) cleanupLoop(interval time.Duration) {
	defer rl.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stopChan:
			return
		case <-ticker.C:
			rl.Cleanup(rl.window)
		}
	}
}

// Close stops the background cleanup goroutine and releases resources.
// It blocks until the goroutine has stopped.
func (rl *RateLimiter) Close() {
	close(rl.stopChan)
	rl.wg.Wait()
}
