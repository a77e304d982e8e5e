package server

import (
	"net/http"

	"github.com/bobmcallan/optiwealth-portal/internal/handlers"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.app.API.RegisterRoutes(s.router)

	// MCP endpoint (JSON-RPC over HTTP)
	if s.app.MCPHandler != nil {
		s.router.Handle("/mcp", s.app.MCPHandler)
	}

	s.router.Handle("/metrics", promhttp.Handler())

	s.router.NotFound(s.handleNotFound)
	s.router.MethodNotAllowed(s.handleMethodNotAllowed)
}

// handleNotFound returns a JSON 404 for unmatched routes.
func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	handlers.WriteError(w, http.StatusNotFound, "the requested endpoint does not exist")
}

func (s *Server) handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	handlers.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
}
