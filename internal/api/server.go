// Package api exposes the triage service over HTTP: ticket intake and
// lifecycle, agent management, routing rules, categories, and the
// knowledge base.
package api

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/novadesk/triage/internal/config"
	"github.com/novadesk/triage/internal/pkg/logger"
)

// Server is the HTTP API server.
type Server struct {
	cfg      config.ServerConfig
	handlers *Handlers
	router   *chi.Mux
	server   *http.Server
}

// NewServer creates the server and mounts all routes.
func NewServer(cfg config.ServerConfig, handlers *Handlers) *Server {
	s := &Server{cfg: cfg, handlers: handlers, router: chi.NewRouter()}
	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.router

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(requestLogger)

	origins := s.cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", s.handlers.Health)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/tickets", func(r chi.Router) {
			r.Post("/", s.handlers.CreateTicket)
			r.Get("/", s.handlers.ListTickets)
			r.Get("/{id}", s.handlers.GetTicket)
			r.Patch("/{id}", s.handlers.UpdateTicket)
			r.Delete("/{id}", s.handlers.DeleteTicket)
			r.Post("/{id}/process", s.handlers.ProcessTicket)
			r.Post("/{id}/reassign", s.handlers.ReassignTicket)
			r.Post("/{id}/escalate", s.handlers.EscalateTicket)
			r.Post("/{id}/resolve", s.handlers.ResolveTicket)
			r.Get("/{id}/suggestions", s.handlers.TicketSuggestions)
		})

		r.Route("/agents", func(r chi.Router) {
			r.Get("/", s.handlers.ListAgents)
			r.Post("/", s.handlers.CreateAgent)
			r.Get("/available", s.handlers.AvailableAgents)
			r.Patch("/{id}/status", s.handlers.UpdateAgentStatus)
			r.Delete("/{id}", s.handlers.DeleteAgent)
			r.Get("/{id}/recommendations", s.handlers.AgentRecommendation)
		})

		r.Route("/rules", func(r chi.Router) {
			r.Get("/", s.handlers.ListRules)
			r.Post("/", s.handlers.CreateRule)
			r.Patch("/{id}/active", s.handlers.SetRuleActive)
		})

		r.Get("/categories", s.handlers.ListCategories)

		r.Route("/kb", func(r chi.Router) {
			r.Post("/faq", s.handlers.AddFAQ)
			r.Get("/search", s.handlers.SearchKB)
		})
	})
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe(addr string) error {
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout(),
		WriteTimeout: s.cfg.WriteTimeout(),
	}
	log.Printf("API: listening on %s", addr)
	return s.server.ListenAndServe()
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Handler returns the mounted router, used by tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start).Round(time.Millisecond).String(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
