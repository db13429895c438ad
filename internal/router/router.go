package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"product-relay/internal/handlers"
	"product-relay/internal/middleware"
)

// maxBodyBytes bounds request bodies; image-heavy chat payloads carry URLs,
// not image data.
const maxBodyBytes = 1 << 20

func New(relayHandler *handlers.RelayHandler, logger *zap.Logger, corsOrigin string) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(corsOrigin))
	r.Use(chimiddleware.RequestSize(maxBodyBytes))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Post("/openai", relayHandler.ChatCompletion)
	r.Post("/insert", relayHandler.Insert)

	return r
}
