package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-sale-provisioner/internal/domain"
	"github.com/go-sale-provisioner/internal/pkg/validate"
)

// Storage and publication backends selectable through the environment.
const (
	StoreFile     = "file"
	StoreDynamoDB = "dynamodb"
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"

	PublishNone   = "none"
	PublishS3     = "s3"
	PublishMirror = "mirror"
)

// Config holds all runtime configuration loaded from environment variables.
// It is built once at startup and passed explicitly to every component.
type Config struct {
	AppPort        string        `env:"APP_PORT" envDefault:"5000"`
	AppEnv         string        `env:"APP_ENV" envDefault:"development"`
	LogLevel       string        `env:"LOG_LEVEL" envDefault:"info" validate:"oneof=trace debug info warn error"`
	AllowedOrigins []string      `env:"ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"60s"`
	AlertTimeout   time.Duration `env:"ALERT_TIMEOUT" envDefault:"5s" validate:"gt=0"`

	Product Product
	SMTP    SMTP
	Store   Store
	Publish Publish
	AWS     AWS

	AlertTopicARN string `env:"ALERT_SNS_TOPIC_ARN"`
}

// Product describes what a sale event must refer to and what it grants.
type Product struct {
	ID             string                `env:"PRODUCT_ID"`
	IDRequired     bool                  `env:"PRODUCT_ID_REQUIRED"`
	MismatchPolicy domain.MismatchPolicy `env:"PRODUCT_MISMATCH_POLICY" envDefault:"reject" validate:"oneof=reject ignore"`
	Name           string                `env:"PRODUCT_NAME" envDefault:"PDF Extractor"`
	Credits        int                   `env:"PROVISION_CREDITS" envDefault:"10" validate:"gte=0"`
}

// SMTP holds the mail transport credentials. They have no defaults: the
// service refuses to start without them.
type SMTP struct {
	Host     string        `env:"SMTP_HOST,required,notEmpty"`
	Port     string        `env:"SMTP_PORT" envDefault:"465"`
	From     string        `env:"SMTP_FROM,required,notEmpty" validate:"email"`
	Username string        `env:"SMTP_USERNAME,required,notEmpty"`
	Password string        `env:"SMTP_PASSWORD,required,notEmpty"`
	TLS      string        `env:"SMTP_TLS" envDefault:"implicit" validate:"oneof=implicit starttls none"`
	Timeout  time.Duration `env:"NOTIFY_TIMEOUT" envDefault:"10s" validate:"gt=0"`
}

// Store selects and parameterises the user store backend.
type Store struct {
	Backend     string `env:"STORE_BACKEND" envDefault:"file" validate:"oneof=file dynamodb postgres sqlite"`
	FilePath    string `env:"STORE_FILE_PATH" envDefault:"credentials.json"`
	DSN         string `env:"DATABASE_DSN"`
	DynamoTable string `env:"DYNAMO_TABLE_USERS" envDefault:"users"`
}

// Publish selects the remote publisher strategy.
type Publish struct {
	Backend    string        `env:"PUBLISH_BACKEND" envDefault:"none" validate:"oneof=none s3 mirror"`
	S3Bucket   string        `env:"PUBLISH_S3_BUCKET"`
	S3Key      string        `env:"PUBLISH_S3_KEY" envDefault:"credentials.json"`
	MirrorDir  string        `env:"PUBLISH_MIRROR_DIR"`
	MirrorFile string        `env:"PUBLISH_MIRROR_FILE" envDefault:"credentials.json"`
	Timeout    time.Duration `env:"PUBLISH_TIMEOUT" envDefault:"20s" validate:"gt=0"`
}

// AWS holds the shared AWS client settings.
type AWS struct {
	Region      string `env:"AWS_REGION" envDefault:"us-east-1"`
	EndpointURL string `env:"AWS_ENDPOINT_URL"` // empty in prod, set to LocalStack URL in dev
	AccessKeyID string `env:"AWS_ACCESS_KEY_ID"`
	SecretKey   string `env:"AWS_SECRET_ACCESS_KEY"`
}

// writeMargin is the time the server keeps for encoding and writing the
// response once the request handling budget is spent.
const writeMargin = 5 * time.Second

// PostCommitBudget is the longest the steps that run after a record is
// committed (notification, publication, ops alert) can take before the
// response is written.
func (c *Config) PostCommitBudget() time.Duration {
	budget := c.SMTP.Timeout
	if c.Publish.Backend != PublishNone {
		budget += c.Publish.Timeout
	}
	if c.AlertTopicARN != "" {
		budget += c.AlertTimeout
	}
	return budget
}

// WriteTimeout is the HTTP server write deadline. Validate guarantees it
// outlasts PostCommitBudget.
func (c *Config) WriteTimeout() time.Duration {
	return c.RequestTimeout + writeMargin
}

// Load reads all configuration from environment variables and validates it.
func Load() (*Config, error) {
	return parse(env.Options{})
}

// LoadFrom is Load over an explicit environment instead of the process one.
func LoadFrom(environ map[string]string) (*Config, error) {
	return parse(env.Options{Environment: environ})
}

func parse(opts env.Options) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field formats and the settings each selected backend needs.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("invalid config: REQUEST_TIMEOUT must be positive")
	}
	if budget := c.PostCommitBudget(); c.RequestTimeout <= budget {
		return fmt.Errorf("invalid config: REQUEST_TIMEOUT (%s) must exceed NOTIFY_TIMEOUT, PUBLISH_TIMEOUT and ALERT_TIMEOUT combined (%s)",
			c.RequestTimeout, budget)
	}
	if c.Product.IDRequired && c.Product.ID == "" {
		return fmt.Errorf("invalid config: PRODUCT_ID is required when PRODUCT_ID_REQUIRED is set")
	}
	switch c.Store.Backend {
	case StorePostgres, StoreSQLite:
		if c.Store.DSN == "" {
			return fmt.Errorf("invalid config: DATABASE_DSN is required for store backend %q", c.Store.Backend)
		}
	case StoreFile:
		if c.Store.FilePath == "" {
			return fmt.Errorf("invalid config: STORE_FILE_PATH is required for store backend %q", c.Store.Backend)
		}
	}
	switch c.Publish.Backend {
	case PublishS3:
		if c.Publish.S3Bucket == "" {
			return fmt.Errorf("invalid config: PUBLISH_S3_BUCKET is required for publish backend %q", c.Publish.Backend)
		}
	case PublishMirror:
		if c.Publish.MirrorDir == "" {
			return fmt.Errorf("invalid config: PUBLISH_MIRROR_DIR is required for publish backend %q", c.Publish.Backend)
		}
	}
	return nil
}
