// Package server exposes the chat pipeline over HTTP: a server-sent-events
// chat endpoint plus retrieval and health endpoints, for browser frontends.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/rs/zerolog"

	"docchat/internal/chat"
	"docchat/internal/domain"
)

// ChatPort is the server-facing subset of the chat service.
type ChatPort interface {
	AskWithOptions(ctx context.Context, question string, opts chat.Options) (*chat.Answer, error)
	RetrieveWithOptions(ctx context.Context, question string, opts chat.Options) ([]domain.Match, error)
}

type Config struct {
	AllowedOrigins     []string
	RequestsPerMinute  int
	SuggestedQuestions []string
	Logger             zerolog.Logger
}

type Server struct {
	chat        ChatPort
	origins     []string
	rpm         int
	suggestions []string
	log         zerolog.Logger
}

func New(chatService ChatPort, cfg Config) *Server {
	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	rpm := cfg.RequestsPerMinute
	if rpm <= 0 {
		rpm = 60
	}
	return &Server{
		chat:        chatService,
		origins:     origins,
		rpm:         rpm,
		suggestions: cfg.SuggestedQuestions,
		log:         cfg.Logger,
	}
}

// Routes assembles the HTTP router with logging, recovery, CORS and
// per-client rate limiting.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))
	r.Use(httprate.LimitByIP(s.rpm, time.Minute))

	r.Get("/healthz", s.handleHealth)
	r.Get("/api/suggestions", s.handleSuggestions)
	r.Get("/api/search", s.handleSearch)
	r.Post("/api/chat", s.handleChat)
	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	s.log.Info().Str("addr", addr).Msg("http server listening")

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	})
}
