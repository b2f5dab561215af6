package handler

import (
	"net/http"

	"github.com/go-sale-provisioner/internal/application/health"
)

// HealthHandler serves liveness and storage health.
type HealthHandler struct {
	svc health.Service
}

func NewHealthHandler(svc health.Service) *HealthHandler { return &HealthHandler{svc: svc} }

func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	rep := h.svc.Check(r.Context())
	if !rep.Healthy() {
		writeJSON(w, http.StatusServiceUnavailable, rep)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (h *HealthHandler) Root(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("Sale provisioner is running\n"))
}
