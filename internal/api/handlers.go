package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"dronefleet/internal/auth"
)

func (s *Server) handleDrones(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.sim.Snapshots().Metadata())
}

func (s *Server) handleVitals(w http.ResponseWriter, r *http.Request) {
	v, err := s.sim.Snapshots().Vitals(r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	f, err := s.sim.Snapshots().Feed(r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Action string `json:"action"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "Invalid request body"})
		return
	}
	rec, err := s.sim.Commands().Apply(r.Context(), r.PathValue("id"), body.Action)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleCommands(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.sim.Commands().History())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.sim.Health())
}

func (s *Server) handleTelemetry(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.sim.TelemetrySnapshot())
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	user := ""
	if c := auth.ClaimsFromContext(r.Context()); c != nil {
		user = c.Username
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Welcome to the admin dashboard!",
		"user":    user,
		"health":  s.sim.Health(),
		"hub":     s.sim.Hub().Stats(),
	})
}
