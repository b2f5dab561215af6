package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-sale-provisioner/internal/config"
	"github.com/go-sale-provisioner/internal/logger"
	"github.com/go-sale-provisioner/internal/transport/http/handler"
	appmiddleware "github.com/go-sale-provisioner/internal/transport/http/middleware"
)

// MaxBodyBytes caps webhook request bodies.
const MaxBodyBytes = 1 << 20

// NewRouter builds and returns the application router.
func NewRouter(cfg *config.Config, deps *Deps) http.Handler {
	log := deps.Logger
	if log == nil {
		log = logger.Nop()
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(appmiddleware.RequestLogger(log))
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	if cfg.RequestTimeout > 0 {
		r.Use(chimiddleware.Timeout(cfg.RequestTimeout))
	}

	healthH := handler.NewHealthHandler(deps.Health)
	saleH := handler.NewSaleEventHandler(deps.Provisioner)

	r.Get("/", healthH.Root)
	r.Get("/health", healthH.Check)

	r.Group(func(r chi.Router) {
		r.Use(appmiddleware.BodyLimit(MaxBodyBytes))

		r.Post("/sale_event", saleH.Receive)
		// Path used by earlier deployments in their payment platform's ping settings.
		r.Post("/gumroad_ping", saleH.Receive)
	})

	return r
}
