package server

import (
	"net/http"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// API routes - Target management
	mux.HandleFunc("/api/targets", s.app.TargetHandler.CollectionHandler)
	mux.HandleFunc("/api/targets/", s.app.TargetHandler.ItemHandler) // GET/PUT/DELETE /{id}, POST /{id}/check, GET /{id}/checks

	// API routes - Availability analytics
	mux.HandleFunc("/api/sla/metrics", s.app.SLAHandler.MetricsHandler)

	// API routes - Debug capture sessions
	mux.HandleFunc("/api/debug/sessions", s.app.DebugHandler.CollectionHandler)
	mux.HandleFunc("/api/debug/sessions/", s.app.DebugHandler.ItemHandler) // GET /{id}, POST /{id}/start|stop, GET /{id}/events|console

	// WebSocket route - live debug stream
	mux.HandleFunc("/ws/debug/", s.app.StreamHandler.HandleStream)

	// API routes - System
	mux.HandleFunc("/api/version", s.app.APIHandler.VersionHandler)
	mux.HandleFunc("/api/health", s.app.APIHandler.HealthHandler)

	// 404 handler for unmatched API routes
	mux.HandleFunc("/api/", s.app.APIHandler.NotFoundHandler)

	return mux
}
