package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("APP_ENV", "")
	t.Setenv("STORAGE_DRIVER", "")
	t.Setenv("UPLOAD_MODE", "")
	t.Setenv("UPLOAD_URL_TTL", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "dev", cfg.AppEnv)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, DriverLocal, cfg.Storage.Driver)
	assert.Equal(t, ModePut, cfg.Storage.UploadMode)
	assert.Equal(t, 60*time.Second, cfg.Storage.UploadURLTTL)
	assert.False(t, cfg.IsProd())
}

func TestLoad_UploadTTLBounds(t *testing.T) {
	t.Chdir(t.TempDir())

	t.Setenv("UPLOAD_URL_TTL", "30s")
	_, err := Load()
	assert.ErrorContains(t, err, "UPLOAD_URL_TTL")

	t.Setenv("UPLOAD_URL_TTL", "2h")
	_, err = Load()
	assert.ErrorContains(t, err, "UPLOAD_URL_TTL")

	t.Setenv("UPLOAD_URL_TTL", "15m")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 15*time.Minute, cfg.Storage.UploadURLTTL)
}

func TestLoad_S3RequiresBucket(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("STORAGE_DRIVER", "s3")
	t.Setenv("AWS_BUCKET_NAME", "")

	_, err := Load()
	assert.ErrorContains(t, err, "AWS_BUCKET_NAME")

	t.Setenv("AWS_BUCKET_NAME", "contact-images")
	t.Setenv("AWS_ACCESS_KEY_ID", "AKIA")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "")
	_, err = Load()
	assert.ErrorContains(t, err, "must be set together")
}

func TestLoad_InvalidUploadMode(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("UPLOAD_MODE", "multipart")

	_, err := Load()
	assert.ErrorContains(t, err, "UPLOAD_MODE")
}

func TestLoad_ProdRejectsDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("APP_ENV", "production")
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	assert.ErrorContains(t, err, "JWT_SECRET")

	t.Setenv("JWT_SECRET", "real-secret")
	_, err = Load()
	assert.ErrorContains(t, err, "STORAGE_DRIVER must be s3")
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, splitList(" https://a.example, ,https://b.example "))
	assert.Nil(t, splitList(""))
}
