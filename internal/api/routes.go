package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/yegors/stand-status/pkg/logger"
)

// ConnectionHandler upgrades a request to a WebSocket connection
type ConnectionHandler interface {
	HandleConnection(w http.ResponseWriter, r *http.Request)
}

// Router builds the HTTP routes
type Router struct {
	handler   *Handler
	ws        ConnectionHandler
	staticDir string
	logger    *logger.Logger
}

// NewRouter creates a router. ws and staticDir are optional.
func NewRouter(service StandService, airport AirportInfo, ws ConnectionHandler, staticDir string, log *logger.Logger) *Router {
	return &Router{
		handler:   NewHandler(service, airport, log),
		ws:        ws,
		staticDir: staticDir,
		logger:    log.Named("api-router"),
	}
}

// Routes returns the configured handler
func (rt *Router) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(rt.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.Compress(5))

			r.Get("/stands", rt.handler.GetStands)
			r.Get("/stands/all", rt.handler.GetAllStands)
			r.Get("/stands/occupied", rt.handler.GetOccupiedStands)
			r.Get("/stands/unoccupied", rt.handler.GetUnoccupiedStands)
			r.Post("/stands/reload", rt.handler.ReloadStands)
			r.Get("/stands/{id}", rt.handler.GetStand)
			r.Get("/stands/{id}/history", rt.handler.GetStandHistory)
			// Unambiguous lookups for stands named all, occupied, unoccupied or reload
			r.Get("/stands/by-name/{id}", rt.handler.GetStand)
			r.Get("/stands/by-name/{id}/history", rt.handler.GetStandHistory)

			r.Get("/aircraft", rt.handler.GetAircraft)
			r.Get("/status", rt.handler.GetStatus)
			r.Get("/airport", rt.handler.GetAirport)
			r.Post("/refresh", rt.handler.Refresh)
		})

		if rt.ws != nil {
			r.Get("/ws", rt.ws.HandleConnection)
		}
	})

	if rt.staticDir != "" {
		r.Handle("/*", NewDashboardHandler(rt.staticDir, rt.logger))
	}

	return r
}

// requestLogger logs each request through the application logger
func (rt *Router) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		rt.logger.Debug("HTTP request",
			logger.String("method", r.Method),
			logger.String("path", r.URL.Path),
			logger.Int("status", ww.Status()),
			logger.Int("bytes", ww.BytesWritten()),
			logger.Duration("duration", time.Since(start)),
			logger.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
