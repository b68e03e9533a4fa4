package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/leapstack-labs/scriptbox/internal/sandbox"
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleExecute runs one script through the engine. The engine returns a
// classified envelope for every failure mode, so the handler only deals
// with malformed requests; a script failure is still HTTP 200 with
// status=error in the body.
func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req sandbox.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"status": sandbox.StatusError,
			"error":  "invalid request body: " + err.Error(),
		})
		return
	}

	requestID := uuid.NewString()
	start := time.Now()
	s.logger.Info("executing script", "request_id", requestID, "session_id", req.SessionID)

	resp := s.engine.Execute(r.Context(), req)

	observeExecution(resp.Status, resp.ErrorKind, time.Since(start))
	s.logger.Info("script finished",
		"request_id", requestID,
		"status", resp.Status,
		"total_time", resp.TotalTime)

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleTools(w http.ResponseWriter, r *http.Request) {
	tools, err := s.invoker.Tools(r.Context())
	if err != nil {
		writeJSON(w, http.StatusBadGateway, map[string]string{
			"status": sandbox.StatusError,
			"error":  "failed to list tools: " + err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tools": tools})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
