package ratelimit

import (
	"context"
	"net/http"
	"sync"
	"time"
)

// Limiter paces calls to a rate-limited API with a token bucket.
// A nil *Limiter never blocks.
type Limiter struct {
	perSecond  float64
	mu         sync.Mutex
	tokens     float64   // available requests
	lastUpdate time.Time // last time tokens were refilled
	bucketSize float64   // burst size
	now        func() time.Time
}

// NewLimiter creates a limiter allowing perSecond requests with the given burst.
// A non-positive rate disables limiting and returns nil.
func NewLimiter(perSecond float64, burst int) *Limiter {
	if perSecond <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return &Limiter{
		perSecond:  perSecond,
		tokens:     float64(burst), // start with a full bucket
		lastUpdate: time.Now(),
		bucketSize: float64(burst),
		now:        time.Now,
	}
}

// Wait blocks until one request may be issued or ctx is done
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil {
		return ctx.Err()
	}
	for {
		l.mu.Lock()
		l.refillTokens()
		if l.tokens >= 1 {
			l.tokens--
			l.mu.Unlock()
			return nil
		}

		deficit := 1 - l.tokens
		waitTime := time.Duration(deficit / l.perSecond * float64(time.Second))
		if waitTime < time.Millisecond {
			waitTime = time.Millisecond
		}
		l.mu.Unlock()

		timer := time.NewTimer(waitTime)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// refillTokens adds tokens based on elapsed time (must be called with lock held)
func (l *Limiter) refillTokens() {
	now := l.now()
	elapsed := now.Sub(l.lastUpdate)
	if elapsed <= 0 {
		return
	}
	l.tokens += elapsed.Seconds() * l.perSecond
	if l.tokens > l.bucketSize {
		l.tokens = l.bucketSize
	}
	l.lastUpdate = now
}

// Transport wraps an http.RoundTripper so every request waits for the limiter
type Transport struct {
	Base    http.RoundTripper
	Limiter *Limiter
}

// NewTransport wraps base with limiter. A nil limiter returns base unchanged.
func NewTransport(base http.RoundTripper, limiter *Limiter) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	if limiter == nil {
		return base
	}
	return &Transport{Base: base, Limiter: limiter}
}

// RoundTrip implements http.RoundTripper
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.Limiter.Wait(req.Context()); err != nil {
		return nil, err
	}
	return t.Base.RoundTrip(req)
}
