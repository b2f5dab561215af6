package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-sale-provisioner/internal/application/health"
	"github.com/go-sale-provisioner/internal/application/notify"
	"github.com/go-sale-provisioner/internal/application/provision"
	"github.com/go-sale-provisioner/internal/application/publish"
	"github.com/go-sale-provisioner/internal/config"
	"github.com/go-sale-provisioner/internal/domain"
	"github.com/go-sale-provisioner/internal/infrastructure/dynamo"
	"github.com/go-sale-provisioner/internal/infrastructure/filestore"
	"github.com/go-sale-provisioner/internal/infrastructure/mirror"
	s3infra "github.com/go-sale-provisioner/internal/infrastructure/s3"
	"github.com/go-sale-provisioner/internal/infrastructure/smtp"
	"github.com/go-sale-provisioner/internal/infrastructure/sns"
	"github.com/go-sale-provisioner/internal/infrastructure/sqlstore"
	"github.com/go-sale-provisioner/internal/logger"
	"github.com/go-sale-provisioner/internal/pkg/credential"
	"github.com/go-sale-provisioner/internal/pkg/keylock"
	transporthttp "github.com/go-sale-provisioner/internal/transport/http"
	"github.com/joho/godotenv"
)

// userStore is what every storage backend provides.
type userStore interface {
	Exists(ctx context.Context, email string) (bool, error)
	Upsert(ctx context.Context, email, secretHash string, credits int) (*domain.UserRecord, error)
	Snapshot(ctx context.Context) (domain.Snapshot, error)
	Ping(ctx context.Context) error
}

func main() {
	bootLog := logger.NewLogger("api", "info")
	if err := godotenv.Load(); err != nil {
		bootLog.Info().Msg("no .env file found, reading from environment")
	}

	cfg, err := config.Load()
	if err != nil {
		bootLog.Fatal().Err(err).Msg("refusing to start")
	}
	log := logger.NewLogger("api", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := newUserStore(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.Store.Backend).Msg("user store unavailable")
	}
	defer closeStore()

	strategy, err := newPublishStrategy(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.Publish.Backend).Msg("publisher unavailable")
	}

	notifier, err := notify.NewService(notify.ServiceDeps{
		Mailer:      smtp.NewMailer(cfg.SMTP),
		ProductName: cfg.Product.Name,
		Timeout:     cfg.SMTP.Timeout,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("notifier templates")
	}

	deps := provision.ServiceDeps{
		Store:    store,
		Issuer:   credential.NewGenerator(),
		Notifier: notifier,
		Publisher: publish.NewService(publish.ServiceDeps{
			Strategy: strategy,
			Source:   store,
			Timeout:  cfg.Publish.Timeout,
		}),
		Locks:        keylock.New(),
		Product:      cfg.Product,
		AlertTimeout: cfg.AlertTimeout,
	}
	if cfg.AlertTopicARN != "" {
		client, err := sns.NewClient(ctx, cfg.AWS)
		if err != nil {
			log.Warn().Err(err).Msg("ops alerts disabled")
		} else {
			deps.Alerter = sns.NewAlerter(client, cfg.AlertTopicARN)
		}
	}

	router := transporthttp.NewRouter(cfg, &transporthttp.Deps{
		Provisioner: provision.NewService(deps),
		Health:      health.NewService(store, cfg.Store.Backend, 3*time.Second),
		Logger:      log,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.WriteTimeout(),
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().
			Str("port", cfg.AppPort).
			Str("env", cfg.AppEnv).
			Str("store", cfg.Store.Backend).
			Str("publish", cfg.Publish.Backend).
			Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()

	log.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
		return
	}
	log.Info().Msg("server stopped")
}

func newUserStore(ctx context.Context, cfg *config.Config, log *logger.Logger) (userStore, func(), error) {
	noop := func() {}
	switch cfg.Store.Backend {
	case config.StoreDynamoDB:
		client, err := dynamo.NewClient(ctx, cfg.AWS)
		if err != nil {
			return nil, noop, err
		}
		if err := dynamo.Bootstrap(ctx, client, cfg.Store.DynamoTable, log); err != nil {
			return nil, noop, err
		}
		return dynamo.NewUserRepo(client, cfg.Store.DynamoTable), noop, nil

	case config.StorePostgres, config.StoreSQLite:
		d, err := sqlstore.DialectFor(cfg.Store.Backend)
		if err != nil {
			return nil, noop, err
		}
		db, err := sqlstore.Open(ctx, d, cfg.Store.DSN, log)
		if err != nil {
			return nil, noop, err
		}
		closeDB := func() { _ = db.Close() }
		if err := sqlstore.Migrate(ctx, db, d); err != nil {
			closeDB()
			return nil, noop, err
		}
		return sqlstore.NewUserRepo(db, d), closeDB, nil

	default:
		return filestore.NewUserRepo(cfg.Store.FilePath), noop, nil
	}
}

// newPublishStrategy returns nil when publication is disabled.
func newPublishStrategy(ctx context.Context, cfg *config.Config) (publish.Strategy, error) {
	switch cfg.Publish.Backend {
	case config.PublishS3:
		client, err := s3infra.NewClient(ctx, cfg.AWS)
		if err != nil {
			return nil, err
		}
		return s3infra.NewPublisher(s3infra.NewStore(client, cfg.Publish.S3Bucket), cfg.Publish.S3Key), nil
	case config.PublishMirror:
		return mirror.NewPublisher(cfg.Publish.MirrorDir, cfg.Publish.MirrorFile), nil
	default:
		return nil, nil
	}
}
