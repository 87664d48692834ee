// Package server exposes the chat service over HTTP.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/kadirpekel/fedqa/pkg/agent"
	"github.com/kadirpekel/fedqa/pkg/config"
)

// ChatService answers one question per call.
type ChatService interface {
	Chat(ctx context.Context, message string) (*agent.Response, error)
}

// ChatRequest is the POST /chat body.
type ChatRequest struct {
	Message string `json:"message"`
}

// ChatResponse is the POST /chat reply.
type ChatResponse struct {
	Answer  string   `json:"answer"`
	Sources []string `json:"sources"`
}

// Server is the HTTP front end over the chat service.
type Server struct {
	cfg    *config.ServerConfig
	chat   ChatService
	server *http.Server
	logger *slog.Logger
}

// New builds the server with routes and middleware wired.
func New(cfg *config.ServerConfig, chat ChatService, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		cfg:    cfg,
		chat:   chat,
		logger: logger,
	}

	router := chi.NewRouter()
	router.Use(requestLogger(logger))
	router.Use(cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	}).Handler)

	router.Get("/health", s.handleHealth)
	router.Handle("/metrics", promhttp.Handler())
	router.Post("/chat", s.handleChat)

	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s
}

// Address returns the listen address.
func (s *Server) Address() string {
	return s.server.Addr
}

// Handler returns the root handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start serves until the context is cancelled, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("HTTP server starting", "address", s.server.Addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	}
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	s.logger.Info("HTTP server shutting down")
	return s.server.Shutdown(shutdownCtx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleChat validates the message before any model is involved, then
// delegates to the chat service. Service failures still carry a
// well-formed answer body, so they are returned as 200 with the error
// phrased in the answer.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "message must not be empty")
		return
	}

	response, err := s.chat.Chat(r.Context(), req.Message)
	if err != nil {
		s.logger.Error("Chat request failed", "error", err)
	}
	if response == nil {
		writeError(w, http.StatusInternalServerError, "chat service returned no response")
		return
	}

	writeJSON(w, http.StatusOK, ChatResponse{
		Answer:  response.Answer,
		Sources: response.Sources,
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
