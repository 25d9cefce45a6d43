package middleware_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taximeter/internal/middleware"
	"taximeter/internal/tests"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// countingRouter answers POST /count with the number of times it ran.
func countingRouter(store *tests.MockIdempotencyStore) (*gin.Engine, *int) {
	calls := 0
	r := gin.New()
	if store != nil {
		r.Use(middleware.IdempotencyMiddleware(store))
	} else {
		r.Use(middleware.IdempotencyMiddleware(nil))
	}
	r.POST("/count", func(c *gin.Context) {
		calls++
		c.JSON(http.StatusOK, gin.H{"calls": calls})
	})
	r.POST("/other", func(c *gin.Context) {
		calls++
		c.JSON(http.StatusOK, gin.H{"calls": calls})
	})
	return r, &calls
}

func post(r http.Handler, path, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, nil)
	if key != "" {
		req.Header.Set("Idempotency-Key", key)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestIdempotency_ReplaysStoredResponse(t *testing.T) {
	store := tests.NewMockIdempotencyStore()
	r, calls := countingRouter(store)

	first := post(r, "/count", "abc")
	second := post(r, "/count", "abc")

	assert.Equal(t, 1, *calls)
	assert.Equal(t, http.StatusOK, second.Code)
	assert.JSONEq(t, first.Body.String(), second.Body.String())
	assert.Equal(t, "true", second.Header().Get("Idempotent-Replayed"))
	assert.Empty(t, first.Header().Get("Idempotent-Replayed"))
}

func TestIdempotency_KeyIsScopedToRoute(t *testing.T) {
	store := tests.NewMockIdempotencyStore()
	r, calls := countingRouter(store)

	post(r, "/count", "abc")
	post(r, "/other", "abc")

	assert.Equal(t, 2, *calls)
	assert.ElementsMatch(t, []string{"POST:/count:abc", "POST:/other:abc"}, store.Keys())
}

func TestIdempotency_WithoutKeyAlwaysRuns(t *testing.T) {
	store := tests.NewMockIdempotencyStore()
	r, calls := countingRouter(store)

	post(r, "/count", "")
	post(r, "/count", "")

	assert.Equal(t, 2, *calls)
	assert.Zero(t, store.GetCallCount)
}

func TestIdempotency_StoreErrorFallsThrough(t *testing.T) {
	store := tests.NewMockIdempotencyStore()
	store.GetError = errors.New("redis down")
	r, calls := countingRouter(store)

	w := post(r, "/count", "abc")
	post(r, "/count", "abc")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2, *calls)
}

func TestIdempotency_NilStoreDisables(t *testing.T) {
	r, calls := countingRouter(nil)

	post(r, "/count", "abc")
	post(r, "/count", "abc")

	assert.Equal(t, 2, *calls)
}

func TestCORS_PreflightAnsweredWithoutHandler(t *testing.T) {
	reached := false
	r := gin.New()
	r.Use(middleware.CORSMiddleware([]string{"*"}))
	r.POST("/v1/meter/start", func(c *gin.Context) {
		reached = true
		c.Status(http.StatusOK)
	})
	r.OPTIONS("/v1/meter/start", func(c *gin.Context) {
		reached = true
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodOptions, "/v1/meter/start", nil)
	req.Header.Set("Origin", "http://display.local")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.False(t, reached)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORS_RejectsUnknownOrigin(t *testing.T) {
	r := gin.New()
	r.Use(middleware.CORSMiddleware([]string{"http://display.local"}))
	r.GET("/v1/meter", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/v1/meter", nil)
	req.Header.Set("Origin", "http://elsewhere.local")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRequestLogger_LogsRequestAndEchoesRequestID(t *testing.T) {
	logger, hook := logtest.NewNullLogger()

	r := gin.New()
	r.Use(middleware.RequestLogger(logger))
	r.GET("/v1/fare", func(c *gin.Context) { c.Status(http.StatusBadRequest) })

	req := httptest.NewRequest(http.MethodGet, "/v1/fare", nil)
	req.Header.Set("X-Request-ID", "req-42")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "req-42", w.Header().Get("X-Request-ID"))

	require.Len(t, hook.AllEntries(), 1)
	entry := hook.LastEntry()
	assert.Equal(t, logrus.WarnLevel, entry.Level)
	assert.Equal(t, "/v1/fare", entry.Data["path"])
	assert.Equal(t, http.StatusBadRequest, entry.Data["status"])
	assert.Equal(t, "req-42", entry.Data["request_id"])
}

func TestRequestLogger_GeneratesRequestID(t *testing.T) {
	logger, hook := logtest.NewNullLogger()

	r := gin.New()
	r.Use(middleware.RequestLogger(logger))
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	assert.Equal(t, logrus.InfoLevel, hook.LastEntry().Level)
}
