// Package middleware contains http middleware.
package middleware

import (
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/pheme-net/pheme/internal/middleware/memory"
)

// Storage keeps cached responses.
type Storage interface {
	Get(key string) []byte
	Set(key string, content []byte, duration time.Duration)
}

// Cached wraps a handler with an in-memory TTL response cache keyed by
// request URI. Used for rarely-changing read-only endpoints. Only 200
// responses are cached, errors always reach the handler.
func Cached(ttl time.Duration, handler func(w http.ResponseWriter, r *http.Request)) http.HandlerFunc {
	storage := memory.NewStorage()

	return func(w http.ResponseWriter, r *http.Request) {
		if content := storage.Get(r.RequestURI); content != nil {
			_, _ = w.Write(content)
			return
		}

		rec := httptest.NewRecorder()
		handler(rec, r)

		for k, v := range rec.Header() {
			w.Header()[k] = v
		}
		w.WriteHeader(rec.Code)

		content := rec.Body.Bytes()
		if rec.Code == http.StatusOK {
			storage.Set(r.RequestURI, content, ttl)
		}

		_, _ = w.Write(content)
	}
}
