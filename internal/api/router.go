package api

import (
	"crypto/subtle"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

func NewRouter(ingestor messageIngestor, ingestToken string, metricsHandler http.Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if metricsHandler != nil {
		r.Handle("/metrics", metricsHandler)
	}

	ih := &IngestHandler{Ingestor: ingestor}
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(requireToken(ingestToken))
		r.Post("/messages", ih.Ingest)
	})

	return r
}

// requireToken rejects requests whose X-Ingest-Token differs from token. An empty token
// disables the check.
func requireToken(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token != "" {
				got := r.Header.Get("X-Ingest-Token")
				if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
					writeError(w, http.StatusUnauthorized, "invalid ingest token")
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
