package clubsite

import (
	"sync"
	"time"
)

// LoginLimiter counts failed admin logins per client IP inside a sliding
// window. Successful logins are never counted.
type LoginLimiter struct {
	mu       sync.Mutex
	failures map[string][]time.Time
	max      int
	window   time.Duration
	now      func() time.Time

	stop     chan struct{}
	stopOnce sync.Once
}

// NewLoginLimiter blocks an IP once it has max failures within window.
// Call Stop to end its background sweep.
func NewLoginLimiter(max int, window time.Duration) *LoginLimiter {
	l := &LoginLimiter{
		failures: make(map[string][]time.Time),
		max:      max,
		window:   window,
		now:      time.Now,
		stop:     make(chan struct{}),
	}
	go l.sweep()
	return l
}

func (l *LoginLimiter) sweep() {
	ticker := time.NewTicker(l.window)
	defer ticker.Stop()
	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			l.mu.Lock()
			cutoff := l.now().Add(-l.window)
			for ip := range l.failures {
				l.expire(ip, cutoff)
			}
			l.mu.Unlock()
		}
	}
}

// expire drops failures older than cutoff and returns what is left.
// Callers hold l.mu.
func (l *LoginLimiter) expire(ip string, cutoff time.Time) []time.Time {
	hits := l.failures[ip]
	i := 0
	for i < len(hits) && !hits[i].After(cutoff) {
		i++
	}
	hits = hits[i:]
	if len(hits) == 0 {
		delete(l.failures, ip)
		return nil
	}
	l.failures[ip] = hits
	return hits
}

// Stop ends the sweep goroutine. It is safe to call more than once.
func (l *LoginLimiter) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
}

// Check reports whether ip may attempt a login. When it may not, retryAfter
// is the time until its oldest counted failure leaves the window.
func (l *LoginLimiter) Check(ip string) (retryAfter time.Duration, ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	hits := l.expire(ip, now.Add(-l.window))
	if len(hits) < l.max {
		return 0, true
	}
	return hits[0].Add(l.window).Sub(now), false
}

// Fail counts a failed login for ip.
func (l *LoginLimiter) Fail(ip string) {
	l.mu.Lock()
	l.failures[ip] = append(l.failures[ip], l.now())
	l.mu.Unlock()
}

// Reset forgets the failures of ip, typically after it logs in.
func (l *LoginLimiter) Reset(ip string) {
	l.mu.Lock()
	delete(l.failures, ip)
	l.mu.Unlock()
}
