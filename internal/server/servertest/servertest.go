// Package servertest runs the full API against in-memory SQLite and the
// local storage driver for tests in other packages.
package servertest

import (
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"contactdesk/internal/config"
	"contactdesk/internal/database"
	"contactdesk/internal/domain/contact"
	"contactdesk/internal/middleware"
	"contactdesk/internal/pkg/jwt"
	"contactdesk/internal/server"
	"contactdesk/internal/storage"
)

const Secret = "servertest-secret"

type Env struct {
	URL     string
	Token   string
	DB      *gorm.DB
	Hub     *contact.Hub
	Storage *storage.Local
	Tokens  *jwt.Service
}

type Options struct {
	UploadMode string
	UploadTTL  time.Duration
}

// Start serves the API until the test ends.
func Start(t *testing.T, opts Options) *Env {
	t.Helper()
	gin.SetMode(gin.TestMode)
	if opts.UploadMode == "" {
		opts.UploadMode = config.ModePut
	}
	if opts.UploadTTL == 0 {
		opts.UploadTTL = time.Minute
	}

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.NewReplacer("/", "_", " ", "_").Replace(t.Name()))
	db, err := database.Connect(dsn, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, contact.Migrate(db))

	// The listener exists before Start, so grant URLs can point at it.
	srv := httptest.NewUnstartedServer(nil)
	baseURL := "http://" + srv.Listener.Addr().String()
	t.Cleanup(func() {
		srv.Close()
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	local, err := storage.NewLocal(config.StorageConfig{
		LocalDir:      t.TempDir(),
		PublicBaseURL: baseURL,
		UploadMode:    opts.UploadMode,
		UploadURLTTL:  opts.UploadTTL,
	}, Secret, zap.NewNop())
	require.NoError(t, err)

	tokens := jwt.New(Secret, time.Hour)
	token, err := tokens.GenerateToken("operator-test", "ops@example.com", middleware.RoleAuthenticated)
	require.NoError(t, err)

	hub := contact.NewHub(zap.NewNop())
	router := server.NewRouter(server.Deps{
		DB:      db,
		Tokens:  tokens,
		Storage: local,
		Hub:     hub,
		Log:     zap.NewNop(),
	})
	srv.Config.Handler = router
	srv.Start()

	return &Env{URL: srv.URL, Token: token, DB: db, Hub: hub, Storage: local, Tokens: tokens}
}
