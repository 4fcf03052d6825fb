package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/provider-admission-api/internal/models"
)

func newLimitedRouter(rl *RateLimiter, claims *models.JWTClaims) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/applications", func(c *gin.Context) {
		if claims != nil {
			c.Set(ContextUserKey, claims)
		}
		c.Next()
	}, rl.Handler(), func(c *gin.Context) {
		c.Status(http.StatusCreated)
	})
	return r
}

func TestRateLimiterBlocksAfterBurst(t *testing.T) {
	rl := NewRateLimiter(1, 2, nil)
	router := newLimitedRouter(rl, &models.JWTClaims{UserID: "provider-1", Role: models.RoleProvider})

	codes := make([]int, 0, 3)
	var last *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/applications", nil))
		codes = append(codes, w.Code)
		last = w
	}
	assert.Equal(t, []int{http.StatusCreated, http.StatusCreated, http.StatusTooManyRequests}, codes)
	assert.NotEmpty(t, last.Header().Get("Retry-After"))
	assert.Contains(t, last.Body.String(), "RATE_LIMITED")
}

func TestRateLimiterKeysByIdentity(t *testing.T) {
	rl := NewRateLimiter(1, 1, nil)
	first := newLimitedRouter(rl, &models.JWTClaims{UserID: "provider-1"})
	second := newLimitedRouter(rl, &models.JWTClaims{UserID: "provider-2"})

	w := httptest.NewRecorder()
	first.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/applications", nil))
	require.Equal(t, http.StatusCreated, w.Code)

	w = httptest.NewRecorder()
	second.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/applications", nil))
	assert.Equal(t, http.StatusCreated, w.Code)

	w = httptest.NewRecorder()
	first.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/applications", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestRateLimiterCleanup(t *testing.T) {
	rl := NewRateLimiter(60, 1, nil)
	base := time.Now()
	rl.now = func() time.Time { return base }
	rl.limiterFor("a")
	rl.now = func() time.Time { return base.Add(time.Hour) }
	rl.limiterFor("b")

	assert.Equal(t, 1, rl.Cleanup(30*time.Minute))
	assert.Len(t, rl.limiters, 1)
	_, ok := rl.limiters["b"]
	assert.True(t, ok)
}
