// Package ratelimit counts requests per client in fixed windows and rejects
// the ones that overflow.
package ratelimit

import (
	"math"
	"net/http"
	"slices"
	"strconv"
	"sync"
	"time"
)

const (
	HeaderLimit     = "X-RateLimit-Limit"
	HeaderRemaining = "X-RateLimit-Remaining"
	HeaderReset     = "X-RateLimit-Reset"
)

type Config struct {
	// Limit is the number of counted requests a client may make per Window.
	Limit  int
	Window time.Duration
	// StaleAfter is how long an idle client is remembered after its window ends.
	StaleAfter      time.Duration
	CleanupInterval time.Duration
	// Methods limits counting to these HTTP methods; empty counts every request.
	Methods []string
}

// DefaultConfig limits writes to 60 per minute per client.
func DefaultConfig() Config {
	return Config{
		Limit:           60,
		Window:          time.Minute,
		StaleAfter:      10 * time.Minute,
		CleanupInterval: 5 * time.Minute,
		Methods:         []string{http.MethodPost, http.MethodPatch, http.MethodPut, http.MethodDelete},
	}
}

// Decision is the outcome of counting one request.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	Reset     time.Time
}

type Limiter struct {
	cfg Config
	now func() time.Time

	mu      sync.Mutex
	windows map[string]*window

	stop     chan struct{}
	stopOnce sync.Once
}

type window struct {
	start time.Time
	count int
}

// NewLimiter starts a limiter and its cleanup goroutine; call Stop to end it.
// Zero fields in cfg take their DefaultConfig values.
func NewLimiter(cfg Config) *Limiter {
	def := DefaultConfig()
	if cfg.Limit <= 0 {
		cfg.Limit = def.Limit
	}
	if cfg.Window <= 0 {
		cfg.Window = def.Window
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = def.StaleAfter
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = def.CleanupInterval
	}

	rl := &Limiter{
		cfg:     cfg,
		now:     time.Now,
		windows: make(map[string]*window),
		stop:    make(chan struct{}),
	}
	go rl.cleanupLoop()
	return rl
}

// Take counts one request for key.
func (rl *Limiter) Take(key string) Decision {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	w, ok := rl.windows[key]
	if !ok || !now.Before(w.start.Add(rl.cfg.Window)) {
		w = &window{start: now}
		rl.windows[key] = w
	}
	w.count++

	return Decision{
		Allowed:   w.count <= rl.cfg.Limit,
		Limit:     rl.cfg.Limit,
		Remaining: max(rl.cfg.Limit-w.count, 0),
		Reset:     w.start.Add(rl.cfg.Window),
	}
}

func (rl *Limiter) ActiveClients() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.windows)
}

// Stop ends the cleanup goroutine. Safe to call more than once.
func (rl *Limiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

func (rl *Limiter) cleanupLoop() {
	ticker := time.NewTicker(rl.cfg.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			rl.evictStale()
		case <-rl.stop:
			return
		}
	}
}

// evictStale forgets clients whose window ended more than StaleAfter ago.
func (rl *Limiter) evictStale() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-rl.cfg.StaleAfter)
	evicted := 0
	for key, w := range rl.windows {
		if w.start.Add(rl.cfg.Window).Before(cutoff) {
			delete(rl.windows, key)
			evicted++
		}
	}
	return evicted
}

func (rl *Limiter) counts(r *http.Request) bool {
	return len(rl.cfg.Methods) == 0 || slices.Contains(rl.cfg.Methods, r.Method)
}

// Middleware counts matching requests per key and sets the X-RateLimit
// headers. Rejected requests get Retry-After and are passed to onLimit, or
// answered with a plain 429 when onLimit is nil.
func (rl *Limiter) Middleware(key func(*http.Request) string, onLimit func(http.ResponseWriter, *http.Request)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !rl.counts(r) {
				next.ServeHTTP(w, r)
				return
			}

			d := rl.Take(key(r))
			h := w.Header()
			h.Set(HeaderLimit, strconv.Itoa(d.Limit))
			h.Set(HeaderRemaining, strconv.Itoa(d.Remaining))
			h.Set(HeaderReset, strconv.FormatInt(d.Reset.Unix(), 10))

			if !d.Allowed {
				h.Set("Retry-After", strconv.Itoa(retryAfterSeconds(d.Reset.Sub(rl.now()))))
				if onLimit != nil {
					onLimit(w, r)
					return
				}
				http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func retryAfterSeconds(d time.Duration) int {
	return max(int(math.Ceil(d.Seconds())), 1)
}
