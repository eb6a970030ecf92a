package httpapi

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/lockboxhq/lockbox/internal/common"
	"github.com/lockboxhq/lockbox/internal/server/config"
	"github.com/lockboxhq/lockbox/internal/server/services"
)

const (
	// ctxAccountID / ctxEmail are the gin context keys set by requireAuth.
	ctxAccountID = "accountID"
	ctxEmail     = "email"

	// requestDeadline bounds every handler end to end.
	requestDeadline = 30 * time.Second

	// defaultBodyLimit caps ordinary JSON bodies; bulk payloads (import,
	// export snapshots) get importBodyLimit.
	defaultBodyLimit = 10 << 10 // 10 KiB
	importBodyLimit  = 1 << 20  // 1 MiB
)

// clientMeta extracts the request attribution recorded on audit rows.
func clientMeta(c *gin.Context) services.ClientMeta {
	return services.ClientMeta{
		Address:   c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}
}

// accountID returns the authenticated account id set by requireAuth.
func accountID(c *gin.Context) string {
	return c.GetString(ctxAccountID)
}

// requireAuth resolves the bearer credential. Expiry is distinguished from
// any other failure so clients know to attempt a refresh.
func requireAuth(authService AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		scheme, token, found := strings.Cut(header, " ")
		if !found || !strings.EqualFold(scheme, "Bearer") || token == "" {
			respondError(c, common.ErrUnauthenticated)
			return
		}

		claims, err := authService.VerifyAccessToken(token)
		if err != nil {
			respondError(c, err)
			return
		}

		c.Set(ctxAccountID, claims.AccountID)
		c.Set(ctxEmail, claims.Email)
		c.Next()
	}
}

// ipLimiter hands out one token bucket per client address. Idle buckets are
// dropped after bucketIdleTTL to bound memory.
type ipLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucketEntry
	limit   rate.Limit
	burst   int
}

type bucketEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

const bucketIdleTTL = time.Hour

// newIPLimiter allows n events per window per address.
func newIPLimiter(n int, window time.Duration) *ipLimiter {
	return &ipLimiter{
		buckets: map[string]*bucketEntry{},
		limit:   rate.Limit(float64(n) / window.Seconds()),
		burst:   n,
	}
}

func (l *ipLimiter) allow(addr string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	entry, ok := l.buckets[addr]
	if !ok {
		if len(l.buckets) > 10000 {
			l.evictIdleLocked(now)
		}
		entry = &bucketEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[addr] = entry
	}
	entry.lastSeen = now
	return entry.limiter.Allow()
}

func (l *ipLimiter) evictIdleLocked(now time.Time) {
	for addr, entry := range l.buckets {
		if now.Sub(entry.lastSeen) > bucketIdleTTL {
			delete(l.buckets, addr)
		}
	}
}

// rateLimit rejects with 429 once the caller's bucket is drained.
func rateLimit(limiter *ipLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.allow(c.ClientIP()) {
			respondError(c, common.ErrRateLimited)
			return
		}
		c.Next()
	}
}

// bodyLimit caps the request body size; oversized bodies surface as a
// MaxBytesError from the JSON decoder.
func bodyLimit(n int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, n)
		c.Next()
	}
}

// withDeadline bounds the whole request.
func withDeadline(d time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// corsMiddleware permits cross-origin access only from the configured
// frontend origin, with credentials so the refresh cookie travels.
func corsMiddleware(cfg *config.Config) gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOrigins:     []string{cfg.FrontendOrigin},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	})
}
