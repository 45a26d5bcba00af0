package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/brunobiangulo/historymind"
)

// maxQuestionBytes bounds the request body of POST /answer.
const maxQuestionBytes = 16 << 10

type handler struct {
	engine historymind.Engine
}

func newHandler(e historymind.Engine) *handler {
	return &handler{engine: e}
}

// POST /answer
func (h *handler) handleAnswer(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), time.Minute)
	defer cancel()

	var req struct {
		Question string `json:"question"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxQuestionBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	req.Question = strings.TrimSpace(req.Question)
	if req.Question == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}

	answer := h.engine.Query(ctx, req.Question, historymind.WithRequestID(requestID(r.Context())))
	if errors.Is(answer.Err(), historymind.ErrStoreClosed) {
		writeError(w, http.StatusServiceUnavailable, "engine is shutting down")
		return
	}
	if answer.Outcome == historymind.OutcomeInternalError {
		slog.Error("answer error", "request_id", answer.Trace.RequestID, "error", answer.Trace.Error)
	}

	// Every other outcome, internal errors included, carries an answer text.
	writeJSON(w, http.StatusOK, answer)
}

// GET /stats
func (h *handler) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.engine.Stats(r.Context())
	if err != nil {
		if errors.Is(err, historymind.ErrStoreClosed) {
			writeError(w, http.StatusServiceUnavailable, "engine is shutting down")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to read stats")
		slog.Error("stats error", "error", err)
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

// GET /health
func (h *handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
