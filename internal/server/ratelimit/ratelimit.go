// Package ratelimit limits requests per client and route with x/time/rate token buckets.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// entry is one client's limiter for one rule
type entry struct {
	lim      *rate.Limiter
	burst    int
	lastSeen time.Time
}

// Info contains information about rate limit status
type Info struct {
	Allowed    bool
	Rule       string
	Limit      int
	Remaining  int
	ResetTime  time.Time
	RetryAfter time.Duration
}

// Limiter manages one rate.Limiter per client and rule
type Limiter struct {
	cfg Config
	now func() time.Time

	mu      sync.Mutex
	entries map[string]*entry

	stop     chan struct{}
	stopOnce sync.Once
}

// NewLimiter creates a limiter and starts its cleanup loop
func NewLimiter(cfg Config) *Limiter {
	l := &Limiter{
		cfg:     cfg,
		now:     time.Now,
		entries: make(map[string]*entry),
		stop:    make(chan struct{}),
	}
	if cfg.Enabled && cfg.CleanupInterval > 0 {
		go l.cleanupLoop(cfg.CleanupInterval)
	}
	return l
}

// Allow reports whether a request from clientID may proceed
func (l *Limiter) Allow(clientID, path, method string) (bool, Info) {
	if !l.cfg.Enabled || l.cfg.Allowlist[clientID] {
		return true, Info{Allowed: true}
	}
	if l.cfg.Denylist[clientID] {
		return false, Info{Rule: "denylist"}
	}

	rule := Match(method, path, l.cfg.Rules)
	if rule == nil {
		rule = &Rule{Method: method, Pattern: "default", Limit: l.cfg.DefaultLimit, Window: l.cfg.DefaultWindow}
	}
	if rule.Limit <= 0 || rule.Window <= 0 {
		return true, Info{Allowed: true, Rule: rule.Pattern}
	}
	burst := rule.Burst
	if burst <= 0 {
		burst = rule.Limit
	}

	now := l.now()
	key := clientID + " " + rule.Method + " " + rule.Pattern

	l.mu.Lock()
	e, ok := l.entries[key]
	if !ok {
		e = &entry{
			lim:   rate.NewLimiter(rate.Every(rule.Window/time.Duration(rule.Limit)), burst),
			burst: burst,
		}
		l.entries[key] = e
	}
	e.lastSeen = now
	allowed := e.lim.AllowN(now, 1)
	tokens := e.lim.TokensAt(now)
	l.mu.Unlock()

	perSecond := float64(e.lim.Limit())
	reset := now
	if missing := float64(e.burst) - tokens; missing > 0 {
		reset = now.Add(time.Duration(missing / perSecond * float64(time.Second)))
	}
	var retry time.Duration
	if !allowed {
		retry = time.Duration((1 - tokens) / perSecond * float64(time.Second))
	}
	remaining := int(tokens)
	if remaining < 0 {
		remaining = 0
	}

	return allowed, Info{
		Allowed:    allowed,
		Rule:       rule.Pattern,
		Limit:      rule.Limit,
		Remaining:  remaining,
		ResetTime:  reset,
		RetryAfter: retry,
	}
}

// Stop stops the cleanup loop
func (l *Limiter) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
}

func (l *Limiter) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.cleanup()
		case <-l.stop:
			return
		}
	}
}

// cleanup drops limiters idle for longer than IdleTTL
func (l *Limiter) cleanup() {
	ttl := l.cfg.IdleTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	cutoff := l.now().Add(-ttl)

	l.mu.Lock()
	defer l.mu.Unlock()
	for key, e := range l.entries {
		if e.lastSeen.Before(cutoff) {
			delete(l.entries, key)
		}
	}
}

func (l *Limiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
