package routes

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
)

func named(name string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(name))
	})
}

func TestSetupRoutes(t *testing.T) {
	r := chi.NewRouter()
	SetupRoutes(r, Handlers{
		Page:    named("page"),
		Chat:    named("chat"),
		History: named("history"),
		Health:  named("health"),
		Objects: named("objects"),
	})

	for path, want := range map[string]string{
		"/":                         "page",
		"/ws/chat":                  "chat",
		"/api/messages":             "history",
		"/health":                   "health",
		"/objects/chats/u1/1_a.png": "objects",
	} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
		assert.Equal(t, want, rec.Body.String(), path)
	}

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestObjectsRouteOptional(t *testing.T) {
	r := chi.NewRouter()
	SetupRoutes(r, Handlers{Page: named("page"), Chat: named("chat"), History: named("history"), Health: named("health")})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/objects/x", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPILimitScope(t *testing.T) {
	limited := map[string]int{}
	limit := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			limited[r.URL.Path]++
			w.WriteHeader(http.StatusTooManyRequests)
		})
	}
	r := chi.NewRouter()
	SetupRoutes(r, Handlers{
		Page:     named("page"),
		Chat:     named("chat"),
		History:  named("history"),
		Health:   named("health"),
		Objects:  named("objects"),
		APILimit: limit,
	})

	for path, want := range map[string]int{
		"/":                   http.StatusOK,
		"/health":             http.StatusOK,
		"/objects/chats/u1/x": http.StatusOK,
		"/ws/chat":            http.StatusTooManyRequests,
		"/api/messages":       http.StatusTooManyRequests,
	} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, want, rec.Code, path)
	}
	assert.Equal(t, map[string]int{"/ws/chat": 1, "/api/messages": 1}, limited)
}
