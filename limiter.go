package pubcms

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type visitor struct {
	limiter *rate.Limiter
	seen    time.Time
}

// WriteLimiter rate-limits mutating requests per client IP with a token
// bucket per address.
type WriteLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	rate     rate.Limit
	burst    int
	idle     time.Duration
	stop     chan struct{}
	once     sync.Once
}

// NewWriteLimiter allows perSecond sustained writes per IP with the given
// burst. Buckets idle for longer than idle are dropped by a background
// sweep; call Stop to end it.
func NewWriteLimiter(perSecond float64, burst int, idle time.Duration) *WriteLimiter {
	l := &WriteLimiter{
		visitors: make(map[string]*visitor),
		rate:     rate.Limit(perSecond),
		burst:    burst,
		idle:     idle,
		stop:     make(chan struct{}),
	}
	go l.cleanup()
	return l
}

func (l *WriteLimiter) cleanup() {
	ticker := time.NewTicker(l.idle)
	defer ticker.Stop()
	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-l.idle)
			l.mu.Lock()
			for ip, v := range l.visitors {
				if v.seen.Before(cutoff) {
					delete(l.visitors, ip)
				}
			}
			l.mu.Unlock()
		}
	}
}

// Allow reports whether ip may perform a write now and consumes a token if so.
func (l *WriteLimiter) Allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	v, ok := l.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.visitors[ip] = v
	}
	v.seen = time.Now()
	return v.limiter.Allow()
}

// Len reports how many addresses are currently tracked.
func (l *WriteLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.visitors)
}

// Stop ends the background sweep.
func (l *WriteLimiter) Stop() {
	l.once.Do(func() { close(l.stop) })
}
