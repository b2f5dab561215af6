package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-sale-provisioner/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockMailer struct{ mock.Mock }

func (m *mockMailer) SendEmail(ctx context.Context, to, subject, body string) error {
	return m.Called(ctx, to, subject, body).Error(0)
}

func newService(t *testing.T, m *mockMailer, timeout time.Duration) Service {
	t.Helper()
	svc, err := NewService(ServiceDeps{Mailer: m, ProductName: "PDF Extractor", Timeout: timeout})
	require.NoError(t, err)
	return svc
}

func TestNotify_RendersCredentials(t *testing.T) {
	m := new(mockMailer)
	m.On("SendEmail", mock.Anything, "buyer@example.com",
		"Your Login Credentials for PDF Extractor",
		mock.MatchedBy(func(body string) bool {
			return assert.Contains(t, body, "Username: buyer@example.com") &&
				assert.Contains(t, body, "Password: s3cr3tPassw0") &&
				assert.Contains(t, body, "Thank you for purchasing PDF Extractor!")
		}),
	).Return(nil)

	err := newService(t, m, 0).Notify(context.Background(), "buyer@example.com", "s3cr3tPassw0")
	require.NoError(t, err)
	m.AssertExpectations(t)
}

func TestNotify_EmptyRecipient(t *testing.T) {
	m := new(mockMailer)
	err := newService(t, m, 0).Notify(context.Background(), "  ", "secret")
	assert.ErrorIs(t, err, domain.ErrNotifyInvalidAddress)
	m.AssertNotCalled(t, "SendEmail", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestNotify_AppliesTimeout(t *testing.T) {
	m := new(mockMailer)
	m.On("SendEmail", mock.MatchedBy(func(ctx context.Context) bool {
		deadline, ok := ctx.Deadline()
		return ok && time.Until(deadline) <= 5*time.Second
	}), mock.Anything, mock.Anything, mock.Anything).Return(nil)

	require.NoError(t, newService(t, m, 5*time.Second).Notify(context.Background(), "buyer@example.com", "x"))
	m.AssertExpectations(t)
}

func TestNotify_PropagatesTransportError(t *testing.T) {
	m := new(mockMailer)
	m.On("SendEmail", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(errors.Join(domain.ErrNotifyAuth, errors.New("535")))

	err := newService(t, m, 0).Notify(context.Background(), "buyer@example.com", "x")
	assert.ErrorIs(t, err, domain.ErrNotifyAuth)
}

func TestNewService_CustomTemplates(t *testing.T) {
	m := new(mockMailer)
	m.On("SendEmail", mock.Anything, "b@example.com", "Welcome b@example.com", "pw=x").Return(nil)

	svc, err := NewService(ServiceDeps{
		Mailer:          m,
		SubjectTemplate: "Welcome {{.Email}}",
		BodyTemplate:    "pw={{.Secret}}",
	})
	require.NoError(t, err)
	require.NoError(t, svc.Notify(context.Background(), "b@example.com", "x"))
	m.AssertExpectations(t)
}

func TestNewService_BadTemplate(t *testing.T) {
	_, err := NewService(ServiceDeps{Mailer: new(mockMailer), BodyTemplate: "{{.Secret"})
	assert.Error(t, err)
}
