package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/xelth-com/eckdesk/internal/ai"
	"github.com/xelth-com/eckdesk/internal/middleware"
)

const defaultTranscriptLimit = 50

// ChatRequest is one user turn
type ChatRequest struct {
	Message string `json:"message"`
}

// chat sends a message to the assistant. A failed model call still answers with
// the apology turn, which is stored in the transcript.
func (r *Router) chat(w http.ResponseWriter, req *http.Request) {
	actor, _ := middleware.ActorFromContext(req.Context())

	var body ChatRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	reply, err := r.assistant.Reply(req.Context(), actor.UID, body.Message)
	if errors.Is(err, ai.ErrEmptyMessage) {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil && reply == nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, reply)
}

func (r *Router) chatTranscript(w http.ResponseWriter, req *http.Request) {
	actor, _ := middleware.ActorFromContext(req.Context())

	limit := defaultTranscriptLimit
	if n, err := strconv.Atoi(req.URL.Query().Get("limit")); err == nil && n > 0 && n <= 200 {
		limit = n
	}

	msgs, err := r.assistant.Transcript(req.Context(), actor.UID, limit)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, msgs)
}
