package handler

import (
	"encoding/json"
	"net/http"
)

// MessageEnvelope is the generic response wrapper.
type MessageEnvelope struct {
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ProvisionEnvelope wraps the result of a sale event. It never carries the
// issued secret.
type ProvisionEnvelope struct {
	Status      string   `json:"status"`
	EventID     string   `json:"event_id,omitempty"`
	Email       string   `json:"email,omitempty"`
	Credits     int      `json:"credits,omitempty"`
	Returning   bool     `json:"returning,omitempty"`
	Published   bool     `json:"published,omitempty"`
	FailedSteps []string `json:"failed_steps,omitempty"`
	Message     string   `json:"message,omitempty"`
	Error       string   `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, MessageEnvelope{Error: msg})
}
