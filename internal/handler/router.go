package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/agricare/backend/internal/handler/chat"
	"github.com/agricare/backend/internal/handler/farmer"
	"github.com/agricare/backend/internal/handler/stream"
	"github.com/agricare/backend/internal/handler/ws"
	middlewarePkg "github.com/agricare/backend/internal/middleware"
	"github.com/agricare/backend/internal/service/turn"
	"github.com/agricare/backend/pkg/utils"
)

// RouterConfig carries the HTTP-level settings of NewRouter.
type RouterConfig struct {
	AllowedOrigins []string
	Logger         zerolog.Logger
}

// NewRouter wires HTTP routes to core services.
func NewRouter(cfg RouterConfig, farmers farmer.Registry, turns *turn.Service) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middlewarePkg.RequestLogger(cfg.Logger))
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS(cfg.AllowedOrigins))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(api chi.Router) {
		farmer.New(farmers).RegisterRoutes(api)
		chat.New(turns).RegisterRoutes(api)
		stream.New(turns).RegisterRoutes(api)
		ws.New(turns, originChecker(cfg.AllowedOrigins)).RegisterRoutes(api)
	})

	return r
}

// originChecker applies the CORS allow list to WebSocket upgrades.
func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range allowed {
			if o == "*" || o == origin {
				return true
			}
		}
		return false
	}
}
