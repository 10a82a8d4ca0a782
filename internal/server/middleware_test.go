package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServer_CORSMiddleware(t *testing.T) {
	tests := []struct {
		name           string
		corsOrigin     string
		method         string
		expectedStatus int
		shouldCallNext bool
	}{
		{"GET with wildcard", "*", http.MethodGet, http.StatusOK, true},
		{"POST with specific origin", "https://example.com", http.MethodPost, http.StatusOK, true},
		{"OPTIONS preflight", "*", http.MethodOptions, http.StatusOK, false},
		{"empty origin", "", http.MethodGet, http.StatusOK, true},
		{"error in next", "*", http.MethodPost, http.StatusInternalServerError, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := &Server{corsOrigin: tt.corsOrigin}

			nextCalled := false
			next := func(w http.ResponseWriter, r *http.Request) {
				nextCalled = true
				w.WriteHeader(tt.expectedStatus)
			}

			req := httptest.NewRequest(tt.method, "/scan/frame", nil)
			w := httptest.NewRecorder()
			server.corsMiddleware(next)(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Equal(t, tt.corsOrigin, w.Header().Get("Access-Control-Allow-Origin"))
			assert.Equal(t, "GET, POST, OPTIONS", w.Header().Get("Access-Control-Allow-Methods"))
			assert.Equal(t, "Content-Type, Authorization", w.Header().Get("Access-Control-Allow-Headers"))
			assert.Equal(t, "86400", w.Header().Get("Access-Control-Max-Age"))
			assert.Equal(t, tt.shouldCallNext, nextCalled)
		})
	}
}

func TestServer_CORSMiddleware_Chaining(t *testing.T) {
	server := &Server{corsOrigin: "https://test.com"}

	var callOrder []string
	final := func(w http.ResponseWriter, r *http.Request) {
		callOrder = append(callOrder, "final")
		w.WriteHeader(http.StatusOK)
	}
	inner := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			callOrder = append(callOrder, "inner")
			next(w, r)
		}
	}

	w := httptest.NewRecorder()
	server.corsMiddleware(inner(final))(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, []string{"inner", "final"}, callOrder)
	assert.Equal(t, "https://test.com", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestServer_RateLimitMiddleware(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		server := &Server{}
		calls := 0
		handler := server.rateLimitMiddleware(func(w http.ResponseWriter, r *http.Request) { calls++ })
		for range 5 {
			handler(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/scan/region", nil))
		}
		assert.Equal(t, 5, calls)
	})

	t.Run("per minute", func(t *testing.T) {
		server := &Server{rateLimiter: NewRateLimiter(Limits{RequestsPerMinute: 2})}
		calls := 0
		handler := server.rateLimitMiddleware(func(w http.ResponseWriter, r *http.Request) { calls++ })

		var last *httptest.ResponseRecorder
		for range 3 {
			last = httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/scan/region", nil)
			req.RemoteAddr = "10.0.0.1:5000"
			handler(last, req)
		}

		assert.Equal(t, 2, calls)
		assert.Equal(t, http.StatusTooManyRequests, last.Code)
		assert.Equal(t, "minute", last.Header().Get("X-RateLimit-Type"))
		assert.Equal(t, "2", last.Header().Get("X-RateLimit-Limit"))
		assert.NotEmpty(t, last.Header().Get("Retry-After"))

		var body RateLimitResponse
		require.NoError(t, json.Unmarshal(last.Body.Bytes(), &body))
		assert.Equal(t, "rate_limit_exceeded", body.Error)
		assert.Equal(t, int64(2), body.Limit)
	})

	t.Run("data quota uses content length", func(t *testing.T) {
		server := &Server{rateLimiter: NewRateLimiter(Limits{BytesPerDay: 10})}
		calls := 0
		handler := server.rateLimitMiddleware(func(w http.ResponseWriter, r *http.Request) { calls++ })

		w := httptest.NewRecorder()
		handler(w, httptest.NewRequest(http.MethodPost, "/scan/frame", strings.NewReader("0123456789abc")))

		assert.Equal(t, 0, calls)
		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		assert.Equal(t, "data", w.Header().Get("X-Quota-Type"))
		assert.Equal(t, "10", w.Header().Get("X-Quota-Limit"))
	})
}

func TestServer_HandleRateLimitError(t *testing.T) {
	server := &Server{}

	t.Run("quota", func(t *testing.T) {
		w := httptest.NewRecorder()
		server.handleRateLimitError(w, &QuotaExceededError{
			Type: "requests", Limit: 5, Used: 5, Resets: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		})

		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		assert.Equal(t, "5", w.Header().Get("X-Quota-Used"))

		var body RateLimitResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "quota_exceeded", body.Error)
		assert.Equal(t, "2024-01-02T00:00:00Z", body.Resets)
	})

	t.Run("other error", func(t *testing.T) {
		w := httptest.NewRecorder()
		server.handleRateLimitError(w, errors.New("boom"))
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Contains(t, w.Body.String(), "internal_error")
	})
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name       string
		headers    map[string]string
		remoteAddr string
		want       string
	}{
		{"forwarded list", map[string]string{"X-Forwarded-For": "203.0.113.1, 10.0.0.1"}, "127.0.0.1:1", "203.0.113.1"},
		{"forwarded single", map[string]string{"X-Forwarded-For": " 203.0.113.2 "}, "127.0.0.1:1", "203.0.113.2"},
		{"real ip", map[string]string{"X-Real-IP": "198.51.100.7"}, "127.0.0.1:1", "198.51.100.7"},
		{"remote addr", nil, "192.0.2.9:4242", "192.0.2.9"},
		{"remote addr without port", nil, "192.0.2.9", "192.0.2.9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, getClientIP(req))
		})
	}
}

func BenchmarkServer_CORSMiddleware(b *testing.B) {
	server := &Server{corsOrigin: "*"}
	handler := server.corsMiddleware(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	req := httptest.NewRequest(http.MethodGet, "/health", nil)

	b.ResetTimer()
	for range b.N {
		handler(httptest.NewRecorder(), req)
	}
}
