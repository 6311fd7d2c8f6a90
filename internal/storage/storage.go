package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"contactdesk/internal/config"
)

// Transfer methods a client must use with an Authorization.
const (
	MethodPut  = "PUT"
	MethodPost = "POST"
)

var (
	ErrGrantInvalid = errors.New("upload grant is invalid or expired")
	ErrKeyMismatch  = errors.New("upload grant was issued for a different key")
	ErrTypeMismatch = errors.New("upload grant was issued for a different content type")
	ErrInvalidKey   = errors.New("object key is invalid")
)

// Authorization is a short-lived capability to write exactly one object.
// With MethodPut the client sends the raw bytes to URL; with MethodPost it
// sends a multipart form made of Fields followed by the file part.
type Authorization struct {
	Key         string            `json:"key"`
	ContentType string            `json:"contentType"`
	Method      string            `json:"method"`
	URL         string            `json:"url"`
	Fields      map[string]string `json:"fields,omitempty"`
	PublicURL   string            `json:"publicURL"`
	ExpiresAt   time.Time         `json:"expiresAt"`
}

// Driver issues upload authorizations against an object store.
type Driver interface {
	Authorize(ctx context.Context, key, contentType string) (*Authorization, error)
	Name() string
}

// New builds the driver selected by configuration. secret signs local grants.
func New(ctx context.Context, cfg config.StorageConfig, secret string, log *zap.Logger) (Driver, error) {
	switch cfg.Driver {
	case config.DriverS3:
		return NewS3(ctx, cfg)
	case config.DriverLocal:
		return NewLocal(cfg, secret, log)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

func methodFor(mode string) string {
	if mode == config.ModePost {
		return MethodPost
	}
	return MethodPut
}
