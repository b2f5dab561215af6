package config

import (
	"testing"
	"time"

	"github.com/go-sale-provisioner/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseEnv() map[string]string {
	return map[string]string{
		"SMTP_HOST":     "smtp.example.com",
		"SMTP_FROM":     "shop@example.com",
		"SMTP_USERNAME": "shop@example.com",
		"SMTP_PASSWORD": "app-password",
	}
}

func TestLoadFrom_Defaults(t *testing.T) {
	cfg, err := LoadFrom(baseEnv())
	require.NoError(t, err)

	assert.Equal(t, "5000", cfg.AppPort)
	assert.Equal(t, StoreFile, cfg.Store.Backend)
	assert.Equal(t, "credentials.json", cfg.Store.FilePath)
	assert.Equal(t, PublishNone, cfg.Publish.Backend)
	assert.Equal(t, 10, cfg.Product.Credits)
	assert.Equal(t, domain.MismatchReject, cfg.Product.MismatchPolicy)
	assert.Equal(t, "465", cfg.SMTP.Port)
	assert.Equal(t, 10*time.Second, cfg.SMTP.Timeout)
	assert.Equal(t, 20*time.Second, cfg.Publish.Timeout)
	assert.Equal(t, 5*time.Second, cfg.AlertTimeout)
	assert.Equal(t, 10*time.Second, cfg.PostCommitBudget())
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
}

func TestLoadFrom_MissingMandatorySecret(t *testing.T) {
	for _, key := range []string{"SMTP_HOST", "SMTP_FROM", "SMTP_USERNAME", "SMTP_PASSWORD"} {
		t.Run(key, func(t *testing.T) {
			environ := baseEnv()
			delete(environ, key)
			_, err := LoadFrom(environ)
			require.Error(t, err)
			assert.Contains(t, err.Error(), key)
		})
	}
}

func TestLoadFrom_EmptyMandatorySecret(t *testing.T) {
	environ := baseEnv()
	environ["SMTP_PASSWORD"] = ""
	_, err := LoadFrom(environ)
	assert.Error(t, err)
}

func TestLoadFrom_Overrides(t *testing.T) {
	environ := baseEnv()
	environ["PRODUCT_ID"] = "prod-1"
	environ["PRODUCT_ID_REQUIRED"] = "true"
	environ["PRODUCT_MISMATCH_POLICY"] = "ignore"
	environ["PROVISION_CREDITS"] = "25"
	environ["ALLOWED_ORIGINS"] = "https://a.example,https://b.example"
	environ["NOTIFY_TIMEOUT"] = "3s"

	cfg, err := LoadFrom(environ)
	require.NoError(t, err)
	assert.Equal(t, "prod-1", cfg.Product.ID)
	assert.True(t, cfg.Product.IDRequired)
	assert.Equal(t, domain.MismatchIgnore, cfg.Product.MismatchPolicy)
	assert.Equal(t, 25, cfg.Product.Credits)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.Equal(t, 3*time.Second, cfg.SMTP.Timeout)
}

func TestLoadFrom_UnknownBackend(t *testing.T) {
	environ := baseEnv()
	environ["STORE_BACKEND"] = "redis"
	_, err := LoadFrom(environ)
	assert.ErrorContains(t, err, "invalid config")
}

func TestLoadFrom_UnknownMismatchPolicy(t *testing.T) {
	environ := baseEnv()
	environ["PRODUCT_MISMATCH_POLICY"] = "maybe"
	_, err := LoadFrom(environ)
	assert.ErrorContains(t, err, "invalid config")
}

func TestValidate_BackendRequirements(t *testing.T) {
	tests := []struct {
		name string
		set  map[string]string
		want string
	}{
		{"postgres without dsn", map[string]string{"STORE_BACKEND": "postgres"}, "DATABASE_DSN"},
		{"sqlite without dsn", map[string]string{"STORE_BACKEND": "sqlite"}, "DATABASE_DSN"},
		{"s3 without bucket", map[string]string{"PUBLISH_BACKEND": "s3"}, "PUBLISH_S3_BUCKET"},
		{"mirror without dir", map[string]string{"PUBLISH_BACKEND": "mirror"}, "PUBLISH_MIRROR_DIR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			environ := baseEnv()
			for k, v := range tt.set {
				environ[k] = v
			}
			_, err := LoadFrom(environ)
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestValidate_BackendRequirementsSatisfied(t *testing.T) {
	environ := baseEnv()
	environ["STORE_BACKEND"] = "postgres"
	environ["DATABASE_DSN"] = "postgres://u:p@localhost:5432/shop?sslmode=disable"
	environ["PUBLISH_BACKEND"] = "s3"
	environ["PUBLISH_S3_BUCKET"] = "credentials"
	cfg, err := LoadFrom(environ)
	require.NoError(t, err)
	assert.Equal(t, StorePostgres, cfg.Store.Backend)
	assert.Equal(t, PublishS3, cfg.Publish.Backend)
}

func TestLoadFrom_ProductIDRequiredNeedsProductID(t *testing.T) {
	environ := baseEnv()
	environ["PRODUCT_ID_REQUIRED"] = "true"
	_, err := LoadFrom(environ)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PRODUCT_ID")

	environ["PRODUCT_ID"] = "pdf-extractor"
	cfg, err := LoadFrom(environ)
	require.NoError(t, err)
	assert.True(t, cfg.Product.IDRequired)
}

func TestValidate_RequestTimeoutCoversPostCommitSteps(t *testing.T) {
	tests := []struct {
		name string
		set  map[string]string
	}{
		{"zero", map[string]string{"REQUEST_TIMEOUT": "0s"}},
		{"negative", map[string]string{"REQUEST_TIMEOUT": "-1s"}},
		{"shorter than notify", map[string]string{"REQUEST_TIMEOUT": "5s", "NOTIFY_TIMEOUT": "10s"}},
		{"shorter than notify plus publish", map[string]string{
			"REQUEST_TIMEOUT": "25s", "PUBLISH_BACKEND": "mirror", "PUBLISH_MIRROR_DIR": "/tmp/mirror",
		}},
		{"shorter than notify plus publish plus alert", map[string]string{
			"REQUEST_TIMEOUT": "32s", "PUBLISH_BACKEND": "mirror", "PUBLISH_MIRROR_DIR": "/tmp/mirror",
			"ALERT_SNS_TOPIC_ARN": "arn:aws:sns:us-east-1:000000000000:alerts",
		}},
		{"unbounded notify", map[string]string{"NOTIFY_TIMEOUT": "0s"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			environ := baseEnv()
			for k, v := range tt.set {
				environ[k] = v
			}
			_, err := LoadFrom(environ)
			assert.ErrorContains(t, err, "invalid config")
		})
	}
}

func TestWriteTimeout_OutlastsPostCommitBudget(t *testing.T) {
	environ := baseEnv()
	environ["PUBLISH_BACKEND"] = "mirror"
	environ["PUBLISH_MIRROR_DIR"] = "/tmp/mirror"
	environ["ALERT_SNS_TOPIC_ARN"] = "arn:aws:sns:us-east-1:000000000000:alerts"

	cfg, err := LoadFrom(environ)
	require.NoError(t, err)
	assert.Equal(t, 35*time.Second, cfg.PostCommitBudget())
	assert.Greater(t, cfg.WriteTimeout(), cfg.RequestTimeout)
	assert.Greater(t, cfg.WriteTimeout(), cfg.PostCommitBudget())

	environ["REQUEST_TIMEOUT"] = "36s"
	cfg, err = LoadFrom(environ)
	require.NoError(t, err)
	assert.Equal(t, 41*time.Second, cfg.WriteTimeout())
}
