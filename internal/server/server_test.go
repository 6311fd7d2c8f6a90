package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"contactdesk/internal/config"
	"contactdesk/internal/database"
	"contactdesk/internal/domain/contact"
	"contactdesk/internal/middleware"
	"contactdesk/internal/pkg/jwt"
	"contactdesk/internal/storage"
)

type E2ETestSuite struct {
	router *gin.Engine
	db     *gorm.DB
	token  string
}

type TestResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   *ErrorDetail    `json:"error,omitempty"`
}

type ErrorDetail struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func setupTestSuite(t *testing.T) *E2ETestSuite {
	gin.SetMode(gin.TestMode)

	db, err := database.Connect(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()), zap.NewNop())
	require.NoError(t, err, "Failed to connect to test database")
	require.NoError(t, contact.Migrate(db), "Failed to migrate contacts")
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	local, err := storage.NewLocal(config.StorageConfig{
		LocalDir:      t.TempDir(),
		PublicBaseURL: "http://files.test",
		UploadMode:    config.ModePut,
		UploadURLTTL:  time.Minute,
	}, "test_secret_key_32_characters_min", zap.NewNop())
	require.NoError(t, err)

	tokens := jwt.New("test_secret_key_32_characters_min", time.Hour)
	token, err := tokens.GenerateToken("operator-1", "ops@test.com", middleware.RoleAuthenticated)
	require.NoError(t, err)

	return &E2ETestSuite{
		router: NewRouter(Deps{
			DB:          db,
			Tokens:      tokens,
			Storage:     local,
			Log:         zap.NewNop(),
			CORSOrigins: []string{"https://ops.example.com"},
		}),
		db:    db,
		token: token,
	}
}

func (s *E2ETestSuite) makeRequest(method, path string, body any, token string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func parseResponse(t *testing.T, w *httptest.ResponseRecorder, data any) *TestResponse {
	t.Helper()
	var resp TestResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), "body: %s", w.Body.String())
	if data != nil && len(resp.Data) > 0 {
		require.NoError(t, json.Unmarshal(resp.Data, data))
	}
	return &resp
}

func TestHealthAndMetrics(t *testing.T) {
	suite := setupTestSuite(t)

	w := suite.makeRequest(http.MethodGet, "/healthz", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"storage":"local"`)

	suite.makeRequest(http.MethodGet, "/api/v1/contacts", nil, suite.token)
	w = suite.makeRequest(http.MethodGet, "/metrics", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "contactdesk_http_requests_total")
}

func TestCORSPreflight(t *testing.T) {
	suite := setupTestSuite(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/contacts", nil)
	req.Header.Set("Origin", "https://ops.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPatch)
	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://ops.example.com", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestFlow_ContactLifecycle(t *testing.T) {
	suite := setupTestSuite(t)
	var id string

	t.Run("POST /contacts", func(t *testing.T) {
		w := suite.makeRequest(http.MethodPost, "/api/v1/contacts", map[string]any{
			"name": "John Doe", "phone": "123", "email": "john@example.com", "age": 30,
		}, suite.token)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

		var c contact.Contact
		resp := parseResponse(t, w, &c)
		assert.True(t, resp.Success)
		id = c.ID
		require.NotEmpty(t, id)
	})

	t.Run("PATCH /contacts/:id", func(t *testing.T) {
		w := suite.makeRequest(http.MethodPatch, "/api/v1/contacts/"+id, map[string]any{"age": 31}, suite.token)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var c contact.Contact
		parseResponse(t, w, &c)
		assert.Equal(t, 31, c.Age)
		assert.Equal(t, "john@example.com", c.Email)
	})

	t.Run("GET /contacts?filter", func(t *testing.T) {
		w := suite.makeRequest(http.MethodGet, "/api/v1/contacts?filter=JOHN", nil, suite.token)
		require.Equal(t, http.StatusOK, w.Code)

		var res contact.ListResult
		parseResponse(t, w, &res)
		assert.EqualValues(t, 1, res.Total)
	})

	t.Run("DELETE /contacts/:id", func(t *testing.T) {
		w := suite.makeRequest(http.MethodDelete, "/api/v1/contacts/"+id, nil, suite.token)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		w = suite.makeRequest(http.MethodGet, "/api/v1/contacts/"+id, nil, suite.token)
		assert.Equal(t, http.StatusNotFound, w.Code)
		resp := parseResponse(t, w, nil)
		assert.Equal(t, "CONTACT_NOT_FOUND", resp.Error.Code)
	})
}

func TestFlow_DirectUploadThroughLocalStorage(t *testing.T) {
	suite := setupTestSuite(t)

	w := suite.makeRequest(http.MethodPost, "/api/v1/uploads/authorize", map[string]any{
		"fileName": "avatar.png", "fileType": "image/png",
	}, suite.token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var auth struct {
		Method    string `json:"method"`
		UploadURL string `json:"uploadURL"`
		PublicURL string `json:"publicURL"`
	}
	parseResponse(t, w, &auth)
	require.Equal(t, http.MethodPut, auth.Method)

	put, err := url.Parse(auth.UploadURL)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPut, put.RequestURI(), bytes.NewReader([]byte("png-bytes")))
	req.Header.Set("Content-Type", "image/png")
	rec := httptest.NewRecorder()
	suite.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// The same grant cannot be reused for another content type.
	req = httptest.NewRequest(http.MethodPut, put.RequestURI(), bytes.NewReader([]byte("gif")))
	req.Header.Set("Content-Type", "image/gif")
	rec = httptest.NewRecorder()
	suite.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	public, err := url.Parse(auth.PublicURL)
	require.NoError(t, err)
	rec = httptest.NewRecorder()
	suite.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, public.RequestURI(), nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, _ := io.ReadAll(rec.Body)
	assert.Equal(t, "png-bytes", string(body))

	w = suite.makeRequest(http.MethodPost, "/api/v1/contacts", map[string]any{
		"name": "Pic Person", "phone": "1", "email": "pic@example.com", "age": 25, "image_url": auth.PublicURL,
	}, suite.token)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	suite := setupTestSuite(t)

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/api/v1/contacts"},
		{http.MethodPost, "/api/v1/contacts"},
		{http.MethodPost, "/api/v1/contacts/batch"},
		{http.MethodPatch, "/api/v1/contacts/x"},
		{http.MethodDelete, "/api/v1/contacts/x"},
		{http.MethodPost, "/api/v1/uploads/authorize"},
	} {
		w := suite.makeRequest(tc.method, tc.path, nil, "")
		assert.Equal(t, http.StatusUnauthorized, w.Code, "%s %s", tc.method, tc.path)
	}
}
