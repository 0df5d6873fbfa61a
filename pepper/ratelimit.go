package pepper

import (
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"
)

const (
	// maxFailures is the number of consecutive rejected tokens from one
	// client before lockout begins.
	maxFailures = 10
	baseLockout = 1 * time.Minute
	maxLockout  = 30 * time.Minute
	// attemptExpiry is how long after the last failure a record is kept.
	attemptExpiry = 1 * time.Hour
	// sweepThreshold triggers an inline sweep once this many clients are tracked.
	sweepThreshold = 4096
)

// failureLimiter applies exponential backoff to clients that keep
// presenting invalid tokens, so the token table cannot be brute forced.
type failureLimiter struct {
	mu       sync.Mutex
	attempts map[string]*attemptRecord
	now      func() time.Time
}

type attemptRecord struct {
	failures    int
	lastFailure time.Time
	lockedUntil time.Time
}

func newFailureLimiter() *failureLimiter {
	return &failureLimiter{
		attempts: make(map[string]*attemptRecord),
		now:      time.Now,
	}
}

// check reports whether client is locked out and for how long.
func (l *failureLimiter) check(client string) (blocked bool, retryAfter time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.attempts[client]
	if !ok {
		return false, 0
	}
	now := l.now()
	if now.Sub(rec.lastFailure) > attemptExpiry {
		delete(l.attempts, client)
		return false, 0
	}
	if now.Before(rec.lockedUntil) {
		return true, rec.lockedUntil.Sub(now)
	}
	return false, 0
}

// recordFailure counts a rejected token and locks the client out once
// maxFailures is reached: baseLockout * 2^(failures - maxFailures), capped.
func (l *failureLimiter) recordFailure(client string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if len(l.attempts) >= sweepThreshold {
		l.sweepLocked(now)
	}
	rec, ok := l.attempts[client]
	if !ok {
		rec = &attemptRecord{}
		l.attempts[client] = rec
	}
	rec.failures++
	rec.lastFailure = now

	if rec.failures >= maxFailures {
		lockout := baseLockout
		for i := 0; i < rec.failures-maxFailures; i++ {
			lockout *= 2
			if lockout > maxLockout {
				lockout = maxLockout
				break
			}
		}
		rec.lockedUntil = now.Add(lockout)
	}
}

func (l *failureLimiter) recordSuccess(client string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.attempts, client)
}

func (l *failureLimiter) sweepLocked(now time.Time) {
	for id, rec := range l.attempts {
		if now.Sub(rec.lastFailure) > attemptExpiry {
			delete(l.attempts, id)
		}
	}
}

// clientIP returns the host part of r.RemoteAddr. Proxy headers are not
// trusted; run chi's RealIP middleware in front if they should be.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeRateLimited(w http.ResponseWriter, retryAfter time.Duration) {
	secs := int(retryAfter.Seconds())
	if secs < 1 {
		secs = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(secs))
	writeError(w, http.StatusTooManyRequests, "too many failed attempts; try again later")
}
