package upload

import (
	"context"
	"fmt"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"contactdesk/internal/storage"
)

const KeyPrefix = "uploads"

// AllowedMimeTypes defines which file types may be authorized
var AllowedMimeTypes = map[string]bool{
	"image/jpeg":    true,
	"image/png":     true,
	"image/gif":     true,
	"image/webp":    true,
	"image/svg+xml": true,
}

var authorizationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "contactdesk_upload_authorizations_total",
		Help: "Upload authorizations issued, by driver and result.",
	},
	[]string{"driver", "result"},
)

// Service issues upload authorizations. It never touches the file itself.
type Service struct {
	driver storage.Driver
	log    *zap.Logger
	now    func() time.Time
}

func NewService(driver storage.Driver, log *zap.Logger) *Service {
	return &Service{driver: driver, log: log.Named("upload_service"), now: time.Now}
}

// Authorize validates the requested type, derives a fresh object key and asks
// the storage driver for a single-key authorization. One attempt, no retry.
func (s *Service) Authorize(ctx context.Context, fileName, fileType string) (*storage.Authorization, error) {
	contentType := normalizeType(fileType)
	if !AllowedMimeTypes[contentType] {
		return nil, ErrInvalidMimeType
	}

	key := ObjectKey(s.now(), fileName, contentType)
	auth, err := s.driver.Authorize(ctx, key, contentType)
	if err != nil {
		authorizationsTotal.WithLabelValues(s.driver.Name(), "error").Inc()
		s.log.Error("issue upload authorization", zap.String("key", key), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrAuthorizationFailed, err)
	}
	authorizationsTotal.WithLabelValues(s.driver.Name(), "ok").Inc()
	s.log.Debug("upload authorized",
		zap.String("key", key),
		zap.String("method", auth.Method),
		zap.Time("expires_at", auth.ExpiresAt),
	)
	return auth, nil
}

// ObjectKey builds uploads/YYYY/MM/DD/<uuid>_<name><ext>.
func ObjectKey(now time.Time, fileName, contentType string) string {
	now = now.UTC()
	ext := strings.ToLower(filepath.Ext(filepath.Base(fileName)))
	if !isSafeExt(ext) {
		ext = mimeToExt(contentType)
	}
	return fmt.Sprintf("%s/%d/%02d/%02d/%s_%s%s",
		KeyPrefix, now.Year(), now.Month(), now.Day(), uuid.New().String(), sanitizeName(fileName), ext)
}

func normalizeType(fileType string) string {
	mediaType, _, err := mime.ParseMediaType(fileType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(fileType))
	}
	return mediaType
}

func isSafeExt(ext string) bool {
	if len(ext) < 2 || len(ext) > 6 {
		return false
	}
	for _, r := range ext[1:] {
		if !(r >= 'a' && r <= 'z') && !(r >= '0' && r <= '9') {
			return false
		}
	}
	return true
}

func sanitizeName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.TrimSuffix(name, filepath.Ext(name)) // strip extension (added separately)
	name = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' {
			return r
		}
		return '_'
	}, name)
	if len(name) > 40 {
		name = name[:40]
	}
	if name == "" || strings.Trim(name, "_") == "" {
		return "file"
	}
	return name
}

func mimeToExt(mime string) string {
	switch mime {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	case "image/svg+xml":
		return ".svg"
	default:
		return ".bin"
	}
}
