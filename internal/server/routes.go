package server

import "net/http"

// setupRoutes configures the full HTTP route table.
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/sessions", s.handlers.Session.Create)
	mux.HandleFunc("/sessions/", s.handlers.Session.Route)

	mux.HandleFunc("/generate", s.handlers.Generate.Single)
	mux.HandleFunc("/generate/batch", s.handlers.Generate.Batch)
	mux.HandleFunc("/generate/", s.handlers.Generate.Get)

	mux.HandleFunc("/iterate", s.handlers.Iterate.Iterate)
	mux.HandleFunc("/iterate/reject-all", s.handlers.Iterate.RejectAll)

	mux.HandleFunc("/nodes", s.handlers.Node.List)
	mux.HandleFunc("/health", s.handlers.Node.Health)

	mux.HandleFunc("/preferences/stats", s.handlers.Preference.Stats)
	mux.HandleFunc("/preferences/recommend/model", s.handlers.Preference.RecommendModel)
	mux.HandleFunc("/preferences/export", s.handlers.Preference.Export)
	mux.HandleFunc("/preferences/import", s.handlers.Preference.Import)

	mux.HandleFunc("/ws/session/", s.handlers.WebSocket.Handle)

	mux.HandleFunc("/shutdown", s.ShutdownHandler)

	return mux
}
