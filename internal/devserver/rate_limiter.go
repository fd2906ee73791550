package devserver

import (
	"sync"
	"time"
)

// RateLimiter implements rate limiting using token bucket algorithm
type RateLimiter struct {
	buckets    map[string]*tokenBucket
	bucketsMux sync.RWMutex
	limit      int
	period     time.Duration
	stop       chan struct{}
	stopOnce   sync.Once
}

// tokenBucket represents a token bucket for rate limiting
type tokenBucket struct {
	tokens     int
	lastRefill time.Time
	lastSeen   time.Time
	mutex      sync.Mutex
}

// NewRateLimiter allows limit requests per period for each caller
func NewRateLimiter(limit int, period time.Duration) *RateLimiter {
	return &RateLimiter{
		buckets: make(map[string]*tokenBucket),
		limit:   limit,
		period:  period,
		stop:    make(chan struct{}),
	}
}

// Allow reports whether caller may make another request now
func (rl *RateLimiter) Allow(caller string) bool {
	bucket := rl.getBucket(caller)

	bucket.mutex.Lock()
	defer bucket.mutex.Unlock()

	now := time.Now()
	bucket.lastSeen = now
	elapsed := now.Sub(bucket.lastRefill)

	if elapsed >= rl.period {
		bucket.tokens = rl.limit
		bucket.lastRefill = now
	} else {
		tokensToAdd := int(elapsed.Nanoseconds() * int64(rl.limit) / rl.period.Nanoseconds())
		if tokensToAdd > 0 {
			bucket.tokens = min(bucket.tokens+tokensToAdd, rl.limit)
			bucket.lastRefill = now
		}
	}

	if bucket.tokens > 0 {
		bucket.tokens--
		return true
	}
	return false
}

// Remaining returns the tokens left for caller
func (rl *RateLimiter) Remaining(caller string) int {
	bucket := rl.getBucket(caller)

	bucket.mutex.Lock()
	defer bucket.mutex.Unlock()
	return bucket.tokens
}

// getBucket gets or creates a token bucket for a caller
func (rl *RateLimiter) getBucket(caller string) *tokenBucket {
	rl.bucketsMux.RLock()
	bucket, exists := rl.buckets[caller]
	rl.bucketsMux.RUnlock()

	if exists {
		return bucket
	}

	rl.bucketsMux.Lock()
	defer rl.bucketsMux.Unlock()

	// Double-check after acquiring write lock
	if bucket, exists := rl.buckets[caller]; exists {
		return bucket
	}

	now := time.Now()
	bucket = &tokenBucket{
		tokens:     rl.limit,
		lastRefill: now,
		lastSeen:   now,
	}
	rl.buckets[caller] = bucket
	return bucket
}

// cleanup removes buckets idle for longer than maxIdle
func (rl *RateLimiter) cleanup(maxIdle time.Duration) {
	rl.bucketsMux.Lock()
	defer rl.bucketsMux.Unlock()

	cutoff := time.Now().Add(-maxIdle)
	for caller, bucket := range rl.buckets {
		bucket.mutex.Lock()
		if bucket.lastSeen.Before(cutoff) {
			delete(rl.buckets, caller)
		}
		bucket.mutex.Unlock()
	}
}

// StartCleanup drops idle buckets every interval until Stop
func (rl *RateLimiter) StartCleanup(interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				rl.cleanup(interval)
			case <-rl.stop:
				return
			}
		}
	}()
}

// Stop ends the cleanup goroutine
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}
