package publish

import (
	"context"
	"fmt"
	"time"

	"github.com/go-sale-provisioner/internal/domain"
)

// Strategy mirrors a snapshot to a remote location.
type Strategy interface {
	Publish(ctx context.Context, snap domain.Snapshot) error
}

// Service publishes the current user store state. Publishes never overlap:
// a caller waits for the one in flight, within its own timeout.
type Service interface {
	Enabled() bool
	Publish(ctx context.Context) error
}

type snapshotSource interface {
	Snapshot(ctx context.Context) (domain.Snapshot, error)
}

type service struct {
	strategy Strategy
	source   snapshotSource
	timeout  time.Duration
	sem      chan struct{}
}

type ServiceDeps struct {
	Strategy Strategy // nil disables publication
	Source   snapshotSource
	Timeout  time.Duration
}

func NewService(deps ServiceDeps) Service {
	return &service{
		strategy: deps.Strategy,
		source:   deps.Source,
		timeout:  deps.Timeout,
		sem:      make(chan struct{}, 1),
	}
}

func (s *service) Enabled() bool { return s.strategy != nil }

func (s *service) Publish(ctx context.Context) error {
	if s.strategy == nil {
		return nil
	}
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		return fmt.Errorf("wait for publish slot: %w: %w", domain.ErrPublish, ctx.Err())
	}
	defer func() { <-s.sem }()

	// The snapshot is taken under the lock so the last publish always
	// carries the latest committed state.
	snap, err := s.source.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("read snapshot: %w: %w", domain.ErrPublish, err)
	}
	if err := s.strategy.Publish(ctx, snap); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrPublish, err)
	}
	return nil
}
