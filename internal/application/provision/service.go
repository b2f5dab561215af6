// Package provision turns a sale event into a provisioned account: it
// validates the event, rotates the buyer's secret and credits, then notifies
// the buyer and publishes the store.
//
// Only a storage failure fails the request. Notification and publication run
// after the record is committed and are reported as failed steps of a
// partial success.
package provision

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sale-provisioner/internal/config"
	"github.com/go-sale-provisioner/internal/domain"
	"github.com/go-sale-provisioner/internal/logger"
	"github.com/go-sale-provisioner/internal/pkg/id"
	"github.com/go-sale-provisioner/internal/pkg/keylock"
	"github.com/go-sale-provisioner/internal/pkg/validate"
)

const defaultAlertTimeout = 5 * time.Second

type Service interface {
	Provision(ctx context.Context, ev domain.SaleEvent) *domain.ProvisionResult
}

type userStore interface {
	Exists(ctx context.Context, email string) (bool, error)
	Upsert(ctx context.Context, email, secretHash string, credits int) (*domain.UserRecord, error)
}

type secretIssuer interface {
	Generate() string
	Hash(secret string) (string, error)
}

type notifier interface {
	Notify(ctx context.Context, email, secret string) error
}

type publisher interface {
	Enabled() bool
	Publish(ctx context.Context) error
}

type alerter interface {
	Alert(ctx context.Context, subject, message string) error
}

type service struct {
	store     userStore
	issuer    secretIssuer
	notifier  notifier
	publisher publisher
	alerter   alerter
	locks     *keylock.Map
	product   config.Product
	alertWait time.Duration
}

type ServiceDeps struct {
	Store     userStore
	Issuer    secretIssuer
	Notifier  notifier
	Publisher publisher // optional
	Alerter   alerter   // optional
	Locks     *keylock.Map
	Product   config.Product
	// AlertTimeout bounds the ops alert; zero means five seconds.
	AlertTimeout time.Duration
}

func NewService(deps ServiceDeps) Service {
	locks := deps.Locks
	if locks == nil {
		locks = keylock.New()
	}
	alertWait := deps.AlertTimeout
	if alertWait <= 0 {
		alertWait = defaultAlertTimeout
	}
	return &service{
		store:     deps.Store,
		issuer:    deps.Issuer,
		notifier:  deps.Notifier,
		publisher: deps.Publisher,
		alerter:   deps.Alerter,
		locks:     locks,
		product:   deps.Product,
		alertWait: alertWait,
	}
}

func (s *service) Provision(ctx context.Context, ev domain.SaleEvent) *domain.ProvisionResult {
	ev.Email = strings.TrimSpace(ev.Email)
	ev.ProductID = strings.TrimSpace(ev.ProductID)

	res := &domain.ProvisionResult{
		EventID: ev.SaleID,
		Email:   ev.Email,
		State:   domain.StateReceived,
	}
	if res.EventID == "" {
		res.EventID = id.New()
	}
	log := logger.FromContext(ctx).With("event_id", res.EventID)
	ctx = log.WithContext(ctx)

	if err := s.validate(ev); err != nil {
		return s.reject(log, res, ev, err)
	}
	res.State = domain.StateValidated

	rec, secret, returning, err := s.provision(ctx, ev.Email)
	if err != nil {
		res.State = domain.StateProvisionFailed
		res.Outcome = domain.OutcomeFailed
		res.Reason = "could not provision user"
		res.Err = err
		log.Error().Err(err).Str("email", ev.Email).Msg("provisioning failed")
		return res
	}
	res.State = domain.StateProvisioned
	res.Credits = rec.Credits
	res.Returning = returning
	log.Info().Str("email", rec.Email).Int("credits", rec.Credits).Bool("returning", returning).Msg("user provisioned")

	// The record is committed: the remaining steps must not be cut short by
	// the caller going away. Each carries its own timeout.
	post := context.WithoutCancel(ctx)

	if err := s.notifier.Notify(post, rec.Email, secret); err != nil {
		res.NotifyErr = err
		log.Warn().Err(err).Str("email", rec.Email).Msg("credential notification failed")
	}
	res.State = domain.StateNotified

	if s.publisher != nil && s.publisher.Enabled() {
		if err := s.publisher.Publish(post); err != nil {
			res.PublishErr = err
			log.Warn().Err(err).Msg("store publication failed")
		} else {
			res.Published = true
		}
	}
	res.State = domain.StatePublished

	res.Outcome = domain.OutcomeSuccess
	if failed := res.FailedSteps(); len(failed) > 0 {
		res.Outcome = domain.OutcomePartial
		s.alert(post, res, failed)
	}
	log.Info().Str("outcome", string(res.Outcome)).Msg("provisioning complete")
	return res
}

func (s *service) validate(ev domain.SaleEvent) error {
	if err := validate.Struct(ev); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrBadRequest, err)
	}
	expected := s.product.ID
	if expected == "" {
		return nil
	}
	if ev.ProductID == "" && !s.product.IDRequired {
		return nil
	}
	if ev.ProductID != expected {
		return fmt.Errorf("%w: got %q", domain.ErrProductMismatch, ev.ProductID)
	}
	return nil
}

func (s *service) reject(log *logger.Logger, res *domain.ProvisionResult, ev domain.SaleEvent, err error) *domain.ProvisionResult {
	res.Err = err
	if !errors.Is(err, domain.ErrProductMismatch) {
		res.State = domain.StateRejected
		res.Outcome = domain.OutcomeRejected
		res.Reason = "missing or invalid email"
		log.Warn().Err(err).Msg("sale event rejected")
		return res
	}

	res.Reason = "product mismatch"
	if s.product.MismatchPolicy == domain.MismatchIgnore {
		res.State = domain.StateIgnored
		res.Outcome = domain.OutcomeIgnored
		log.Warn().Str("product_id", ev.ProductID).Str("email", ev.Email).Msg("sale event for another product ignored")
		return res
	}
	res.State = domain.StateRejected
	res.Outcome = domain.OutcomeRejected
	log.Warn().Str("product_id", ev.ProductID).Str("email", ev.Email).Msg("sale event rejected: product mismatch")
	return res
}

// provision rotates the secret of email under its key lock. It returns the
// stored record, the plaintext secret and whether the buyer already existed.
func (s *service) provision(ctx context.Context, email string) (*domain.UserRecord, string, bool, error) {
	unlock := s.locks.Lock(email)
	defer unlock()

	returning, err := s.store.Exists(ctx, email)
	if err != nil {
		return nil, "", false, err
	}
	secret := s.issuer.Generate()
	hash, err := s.issuer.Hash(secret)
	if err != nil {
		return nil, "", false, fmt.Errorf("hash secret: %w", err)
	}
	rec, err := s.store.Upsert(ctx, email, hash, s.product.Credits)
	if err != nil {
		return nil, "", false, err
	}
	return rec, secret, returning, nil
}

func (s *service) alert(ctx context.Context, res *domain.ProvisionResult, failed []string) {
	if s.alerter == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, s.alertWait)
	defer cancel()

	var b strings.Builder
	fmt.Fprintf(&b, "event %s for %s was provisioned but these steps failed: %s\n",
		res.EventID, res.Email, strings.Join(failed, ", "))
	if res.NotifyErr != nil {
		fmt.Fprintf(&b, "notify: %v\n", res.NotifyErr)
	}
	if res.PublishErr != nil {
		fmt.Fprintf(&b, "publish: %v\n", res.PublishErr)
	}
	if err := s.alerter.Alert(ctx, "provisioning partially failed", b.String()); err != nil {
		logger.FromContext(ctx).Warn().Err(err).Msg("ops alert failed")
	}
}
