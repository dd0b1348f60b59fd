package chi

import (
	"net/http"

	chirouter "github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/kailas-cloud/semwalk/internal/metrics"
)

// NewRouter mounts the API routes of s behind the standard middleware stack.
func NewRouter(s *Server, apiKeys []string, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chirouter.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(BearerAuthMiddleware(apiKeys))
	r.Use(metrics.Middleware())

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, ErrorCodeNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, ErrorCodeBadRequest, "method not allowed")
	})

	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)

	r.Post("/walks", s.BatchWalk)

	r.Route("/corpora", func(r chirouter.Router) {
		r.Get("/", s.ListCorpora)
		r.Post("/", s.CreateCorpus)
		r.Route("/{corpus}", func(r chirouter.Router) {
			r.Get("/", s.GetCorpus)
			r.Delete("/", s.DeleteCorpus)
			r.Post("/walk", s.Walk)
			r.Post("/search", s.Search)
			r.Get("/documents", s.ListDocuments)
			r.Post("/documents", s.AddDocuments)
		})
	})

	r.Post("/chat", s.Chat)
	r.Get("/conversations/{id}/messages", s.ListMessages)

	return r
}
