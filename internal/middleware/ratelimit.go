package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/AnshRaj112/globalchat/pkg/clientip"
)

// LimiterSet hands out one token bucket per key and forgets keys idle for
// longer than ttl.
type LimiterSet struct {
	limit rate.Limit
	burst int
	ttl   time.Duration

	mu      sync.Mutex
	entries map[string]*limiterEntry
	stop    chan struct{}
	once    sync.Once
}

type limiterEntry struct {
	limiter *rate.Limiter
	lastUse time.Time
}

func NewLimiterSet(limit rate.Limit, burst int, ttl time.Duration) *LimiterSet {
	return &LimiterSet{
		limit:   limit,
		burst:   burst,
		ttl:     ttl,
		entries: make(map[string]*limiterEntry),
		stop:    make(chan struct{}),
	}
}

// Allow consumes one token for key.
func (s *LimiterSet) Allow(key string) bool {
	s.once.Do(s.startCleanup)
	s.mu.Lock()
	e, ok := s.entries[key]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(s.limit, s.burst)}
		s.entries[key] = e
	}
	e.lastUse = time.Now()
	s.mu.Unlock()
	return e.limiter.Allow()
}

func (s *LimiterSet) startCleanup() {
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-s.stop:
				return
			case <-ticker.C:
				s.sweep(time.Now())
			}
		}
	}()
}

func (s *LimiterSet) sweep(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, e := range s.entries {
		if now.Sub(e.lastUse) > s.ttl {
			delete(s.entries, k)
		}
	}
}

// Close stops the cleanup goroutine.
func (s *LimiterSet) Close() {
	s.once.Do(func() {})
	select {
	case <-s.stop:
	default:
		close(s.stop)
	}
}

func tooManyRequests(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	fmt.Fprintf(w, `{"success":false,"message":%q}`, message)
}

// RateLimit limits each client IP through set. Returns 429 when exceeded.
func RateLimit(set *LimiterSet) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !set.Allow(clientip.RealClientIP(r)) {
				tooManyRequests(w, "Too many requests. Please slow down.")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GlobalRateLimit limits each IP to 1 req/s, burst 10.
func GlobalRateLimit() func(http.Handler) http.Handler {
	return RateLimit(NewLimiterSet(rate.Limit(1), 10, 30*time.Minute))
}

const (
	// RedisRateLimitWindow is the fixed counting window
	RedisRateLimitWindow = 120 * time.Second
	// RedisRateLimitMax is the maximum number of requests allowed in the window
	RedisRateLimitMax = 60
	// RateLimitKeyPrefix is the Redis key prefix for rate limiting
	RateLimitKeyPrefix = "ratelimit:"
	// BlockedIPKeyPrefix is the Redis key prefix for blocked IPs
	BlockedIPKeyPrefix = "blocked_ip:"
	// BlockedIPDuration is how long an IP stays blocked
	BlockedIPDuration = 15 * time.Minute
)

// RedisRateLimit counts requests per IP in a fixed Redis window shared by
// every instance and blocks an IP that exceeds max. Redis errors fail open.
func RedisRateLimit(rdb *redis.Client, max int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientip.RealClientIP(r)
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()

			blockedKey := BlockedIPKeyPrefix + ip
			if n, err := rdb.Exists(ctx, blockedKey).Result(); err == nil && n > 0 {
				tooManyRequests(w, "Your IP has been temporarily blocked due to excessive requests. Please try again later.")
				return
			}

			key := RateLimitKeyPrefix + ip
			count, err := rdb.Incr(ctx, key).Result()
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}
			if count == 1 {
				rdb.Expire(ctx, key, RedisRateLimitWindow)
			}

			if count > max {
				rdb.Set(ctx, blockedKey, "1", BlockedIPDuration)
				tooManyRequests(w, "Rate limit exceeded. Please try again later.")
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(max, 10))
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(max-count, 10))
			next.ServeHTTP(w, r)
		})
	}
}
