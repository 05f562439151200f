package routes

import (
	"net/http"

	"github.com/docubot/backend/app"
	"github.com/docubot/backend/handlers"
	appmiddleware "github.com/docubot/backend/middleware"
	"github.com/docubot/backend/utils"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()

	// Core middleware. No router-level timeout: streaming responses stay
	// open for as long as the generation provider keeps producing deltas,
	// and the chat service enforces its own idle window.
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(appmiddleware.RequestLogger(deps.Logger))
	r.Use(middleware.Recoverer)

	// CORS middleware
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "https://*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	healthHandler := handlers.NewHealthHandler(deps.DB.DB, deps.Logger)
	chatHandler := handlers.NewChatHandler(deps.Chat, deps.Logger)
	ingestHandler := handlers.NewIngestHandler(deps.Ingestion, deps.Logger)

	// Health check endpoints
	r.Get("/healthz", healthHandler.HandleHealth)
	r.Get("/readyz", healthHandler.HandleReadiness)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/chat", chatHandler.HandleChat)
		r.Post("/ingest", ingestHandler.HandleIngest)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteNotFound(w, "Resource not found")
	})

	return r
}
