package routes

import (
	"net/http"

	"github.com/foiacoach/backend/internal/api/handlers"
	"github.com/foiacoach/backend/internal/api/middleware"
	"github.com/foiacoach/backend/internal/infrastructure/observability"
)

// Router holds all route handlers
type Router struct {
	mux *http.ServeMux

	askHandler      *handlers.AskHandler
	resourceHandler *handlers.ResourceHandler
	sseHandler      *handlers.SSEHandler

	metrics *observability.Metrics
}

// NewRouter creates a new router
func NewRouter(
	askHandler *handlers.AskHandler,
	resourceHandler *handlers.ResourceHandler,
	sseHandler *handlers.SSEHandler,
	metrics *observability.Metrics,
) *Router {
	return &Router{
		mux:             http.NewServeMux(),
		askHandler:      askHandler,
		resourceHandler: resourceHandler,
		sseHandler:      sseHandler,
		metrics:         metrics,
	}
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes() http.Handler {
	// Health check endpoint
	r.mux.HandleFunc("GET /health", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			return
		}
	})

	// Assistant endpoint
	r.mux.HandleFunc("POST /api/v1/ask", r.askHandler.Ask)

	// Resource endpoints
	r.mux.HandleFunc("GET /api/v1/resources", r.resourceHandler.ListResources)
	r.mux.HandleFunc("GET /api/v1/resources/{id}", r.resourceHandler.GetResource)
	r.mux.HandleFunc("GET /api/v1/resources/{id}/uploads", r.resourceHandler.GetResourceUploads)

	// Upload lifecycle event stream
	if r.sseHandler != nil {
		r.mux.HandleFunc("GET /api/v1/events/uploads", r.sseHandler.StreamUploadEvents)
	}

	var handler http.Handler = r.mux
	handler = middleware.LoggingMiddleware(handler)
	handler = middleware.ObservabilityMiddleware(r.metrics)(handler)
	handler = middleware.CORSMiddleware(handler)

	return handler
}
