package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	jwtlib "github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"contactdesk/internal/config"
	"contactdesk/internal/pkg/response"
)

const (
	MaxObjectSize = 10 * 1024 * 1024 // 10 MB
	objectsPath   = "/storage/objects"
)

type grantClaims struct {
	Key         string `json:"key"`
	ContentType string `json:"ct"`
	jwtlib.RegisteredClaims
}

// Local is a development object store. It mimics presigned uploads: the
// authorization carries a signed grant and the API itself accepts the bytes.
type Local struct {
	dir     string
	baseURL string
	method  string
	ttl     time.Duration
	secret  []byte
	now     func() time.Time
	log     *zap.Logger
}

func NewLocal(cfg config.StorageConfig, secret string, log *zap.Logger) (*Local, error) {
	if err := os.MkdirAll(cfg.LocalDir, 0755); err != nil {
		return nil, fmt.Errorf("create storage directory: %w", err)
	}
	return &Local{
		dir:     cfg.LocalDir,
		baseURL: strings.TrimRight(cfg.PublicBaseURL, "/"),
		method:  methodFor(cfg.UploadMode),
		ttl:     cfg.UploadURLTTL,
		secret:  []byte(secret),
		now:     time.Now,
		log:     log.Named("local_storage"),
	}, nil
}

func (d *Local) Name() string { return config.DriverLocal }

func (d *Local) Authorize(_ context.Context, key, contentType string) (*Authorization, error) {
	key, err := cleanKey(key)
	if err != nil {
		return nil, err
	}
	now := d.now()
	expiresAt := now.Add(d.ttl)
	token, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, grantClaims{
		Key:         key,
		ContentType: contentType,
		RegisteredClaims: jwtlib.RegisteredClaims{
			IssuedAt:  jwtlib.NewNumericDate(now),
			ExpiresAt: jwtlib.NewNumericDate(expiresAt),
		},
	}).SignedString(d.secret)
	if err != nil {
		return nil, fmt.Errorf("sign upload grant: %w", err)
	}

	endpoint := d.baseURL + objectsPath
	auth := &Authorization{
		Key:         key,
		ContentType: contentType,
		PublicURL:   endpoint + "/" + key,
		ExpiresAt:   expiresAt,
	}
	if d.method == MethodPost {
		auth.Method = MethodPost
		auth.URL = endpoint
		auth.Fields = map[string]string{
			"key":          key,
			"Content-Type": contentType,
			"token":        token,
		}
		return auth, nil
	}
	auth.Method = MethodPut
	auth.URL = endpoint + "/" + key + "?token=" + url.QueryEscape(token)
	return auth, nil
}

// Verify checks that token grants writing key with contentType right now.
func (d *Local) Verify(token, key, contentType string) error {
	claims := &grantClaims{}
	parsed, err := jwtlib.ParseWithClaims(token, claims, func(t *jwtlib.Token) (any, error) {
		return d.secret, nil
	},
		jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Alg()}),
		jwtlib.WithExpirationRequired(),
		jwtlib.WithTimeFunc(d.now),
	)
	if err != nil || !parsed.Valid {
		return ErrGrantInvalid
	}
	if claims.Key != key {
		return ErrKeyMismatch
	}
	if claims.ContentType != contentType {
		return ErrTypeMismatch
	}
	return nil
}

// RegisterRoutes mounts the object endpoints. They authenticate with the
// grant only, so they live outside the bearer-protected group.
func (d *Local) RegisterRoutes(r gin.IRouter) {
	r.PUT(objectsPath+"/*key", d.handlePut)
	r.POST(objectsPath, d.handlePost)
	r.GET(objectsPath+"/*key", d.handleGet)
}

func (d *Local) handlePut(c *gin.Context) {
	key, err := cleanKey(c.Param("key"))
	if err != nil {
		response.Error(c, http.StatusBadRequest, "INVALID_KEY", err.Error())
		return
	}
	contentType := c.ContentType()
	if err := d.Verify(c.Query("token"), key, contentType); err != nil {
		d.reject(c, key, err)
		return
	}

	body := http.MaxBytesReader(c.Writer, c.Request.Body, MaxObjectSize)
	if err := d.write(key, body); err != nil {
		d.writeFailed(c, key, err)
		return
	}
	c.Status(http.StatusOK)
}

func (d *Local) handlePost(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxObjectSize+64*1024)
	key, err := cleanKey(c.PostForm("key"))
	if err != nil {
		response.Error(c, http.StatusBadRequest, "INVALID_KEY", err.Error())
		return
	}
	if err := d.Verify(c.PostForm("token"), key, c.PostForm("Content-Type")); err != nil {
		d.reject(c, key, err)
		return
	}

	fh, err := c.FormFile("file")
	if err != nil {
		response.Error(c, http.StatusBadRequest, "FILE_MISSING", "no file provided")
		return
	}
	if fh.Size > MaxObjectSize {
		response.Error(c, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", "file exceeds maximum allowed size")
		return
	}
	f, err := fh.Open()
	if err != nil {
		d.writeFailed(c, key, err)
		return
	}
	defer f.Close()

	if err := d.write(key, f); err != nil {
		d.writeFailed(c, key, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (d *Local) handleGet(c *gin.Context) {
	key, err := cleanKey(c.Param("key"))
	if err != nil {
		response.Error(c, http.StatusNotFound, "NOT_FOUND", "object not found")
		return
	}
	p := d.pathFor(key)
	if _, err := os.Stat(p); err != nil {
		response.Error(c, http.StatusNotFound, "NOT_FOUND", "object not found")
		return
	}
	c.File(p)
}

func (d *Local) reject(c *gin.Context, key string, err error) {
	d.log.Info("upload grant rejected", zap.String("key", key), zap.Error(err))
	response.Error(c, http.StatusForbidden, "ACCESS_DENIED", err.Error())
}

func (d *Local) writeFailed(c *gin.Context, key string, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		response.Error(c, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", "file exceeds maximum allowed size")
		return
	}
	d.log.Error("store object", zap.String("key", key), zap.Error(err))
	response.Error(c, http.StatusInternalServerError, "STORE_FAILED", "failed to store object")
}

func (d *Local) pathFor(key string) string {
	return filepath.Join(d.dir, filepath.FromSlash(key))
}

// write stores the object atomically; a failed transfer leaves nothing behind.
func (d *Local) write(key string, src io.Reader) error {
	dst := d.pathFor(key)
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("create object directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".upload-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), dst)
}

func cleanKey(key string) (string, error) {
	key = strings.TrimPrefix(key, "/")
	if key == "" || strings.Contains(key, "\\") {
		return "", ErrInvalidKey
	}
	cleaned := path.Clean("/" + key)[1:]
	if cleaned != key || strings.HasPrefix(cleaned, ".") {
		return "", ErrInvalidKey
	}
	return cleaned, nil
}
