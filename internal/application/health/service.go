package health

import (
	"context"
	"time"

	"github.com/go-sale-provisioner/internal/logger"
)

const (
	StatusOK       = "ok"
	StatusDegraded = "degraded"
	StorageUp      = "up"
	StorageDown    = "down"
)

// Report is the health of the service and its storage backend.
type Report struct {
	Status  string `json:"status"`
	Storage string `json:"storage"`
	Backend string `json:"backend,omitempty"`
}

// Healthy reports whether the storage backend answered.
func (r Report) Healthy() bool { return r.Storage == StorageUp }

type Service interface {
	Check(ctx context.Context) Report
}

type pinger interface {
	Ping(ctx context.Context) error
}

type service struct {
	store   pinger
	backend string
	timeout time.Duration
}

func NewService(store pinger, backend string, timeout time.Duration) Service {
	return &service{store: store, backend: backend, timeout: timeout}
}

func (s *service) Check(ctx context.Context) Report {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	if err := s.store.Ping(ctx); err != nil {
		logger.FromContext(ctx).Warn().Err(err).Str("backend", s.backend).Msg("storage health check failed")
		return Report{Status: StatusDegraded, Storage: StorageDown, Backend: s.backend}
	}
	return Report{Status: StatusOK, Storage: StorageUp, Backend: s.backend}
}
