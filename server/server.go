// Package server exposes the agent loop over HTTP
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/sammcj/actorglue/config"
)

// Agent is the conversation the server drives
type Agent interface {
	Run(ctx context.Context, query string) string
	Reset()
}

// Server represents the HTTP server for the bridge
type Server struct {
	agent  Agent
	srv    *http.Server
	logger *slog.Logger
}

// MessageRequest represents an incoming message request
type MessageRequest struct {
	Message string `json:"message"`
}

// MessageResponse represents the response to a message
type MessageResponse struct {
	Response string `json:"response"`
	Error    string `json:"error,omitempty"`
}

// New creates a new server instance
func New(cfg *config.Config, agent Agent, logger *slog.Logger) *Server {
	s := &Server{agent: agent, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/chat", s.handleChat)
	mux.HandleFunc("/api/reset", s.handleReset)
	mux.HandleFunc("/health", s.handleHealth)

	s.srv = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// HTTPServer returns the underlying server for shutdown handling
func (s *Server) HTTPServer() *http.Server {
	return s.srv
}

// Start serves until the server is shut down
func (s *Server) Start() error {
	s.logger.Info("starting server", "addr", s.srv.Addr)
	if err := s.srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// handleChat runs one user message through the agent loop
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req MessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, MessageResponse{Error: "Invalid request body"})
		return
	}
	if req.Message == "" {
		writeJSON(w, http.StatusBadRequest, MessageResponse{Error: "message is required"})
		return
	}

	s.logger.Debug("chat request", "chars", len(req.Message))
	writeJSON(w, http.StatusOK, MessageResponse{Response: s.agent.Run(r.Context(), req.Message)})
}

// handleReset clears the conversation
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.agent.Reset()
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// handleHealth provides a health check endpoint
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
