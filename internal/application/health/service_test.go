package health

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/go-sale-provisioner/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type mockPinger struct{ mock.Mock }

func (m *mockPinger) Ping(ctx context.Context) error { return m.Called(ctx).Error(0) }

func TestCheck_Up(t *testing.T) {
	p := new(mockPinger)
	p.On("Ping", mock.Anything).Return(nil)

	r := NewService(p, "sqlite", time.Second).Check(context.Background())
	assert.True(t, r.Healthy())
	assert.Equal(t, Report{Status: StatusOK, Storage: StorageUp, Backend: "sqlite"}, r)
}

func TestCheck_Down(t *testing.T) {
	p := new(mockPinger)
	p.On("Ping", mock.Anything).Return(fmt.Errorf("dial: %w", domain.ErrStorage))

	r := NewService(p, "postgres", time.Second).Check(context.Background())
	assert.False(t, r.Healthy())
	assert.Equal(t, StatusDegraded, r.Status)
	assert.Equal(t, StorageDown, r.Storage)
}

func TestCheck_BoundsPing(t *testing.T) {
	p := new(mockPinger)
	p.On("Ping", mock.MatchedBy(func(ctx context.Context) bool {
		_, ok := ctx.Deadline()
		return ok
	})).Return(nil)

	NewService(p, "file", 50*time.Millisecond).Check(context.Background())
	p.AssertExpectations(t)
}
