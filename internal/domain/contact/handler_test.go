package contact

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"contactdesk/internal/middleware"
	"contactdesk/internal/pkg/jwt"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Details struct {
			FieldErrors map[string]string `json:"field_errors"`
		} `json:"details"`
	} `json:"error"`
}

type testEnv struct {
	router *gin.Engine
	db     *gorm.DB
	hub    *Hub
	tokens *jwt.Service
	token  string
}

func setupRouter(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := newTestDB(t)
	tokens := jwt.New("test-secret", time.Hour)
	token, err := tokens.GenerateToken("operator-1", "ops@example.com", middleware.RoleAuthenticated)
	require.NoError(t, err)

	hub := NewHub(zap.NewNop())
	service := NewService(NewRepository(db), hub, zap.NewNop())
	handler := NewHandler(service, hub, tokens, zap.NewNop())

	router := gin.New()
	v1 := router.Group("/api/v1")
	RegisterFeedRoutes(v1, handler)
	protected := v1.Group("")
	protected.Use(middleware.JWTAuth(tokens), middleware.Operators())
	RegisterRoutes(protected, handler)

	return &testEnv{router: router, db: db, hub: hub, tokens: tokens, token: token}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.token)
	resp := httptest.NewRecorder()
	e.router.ServeHTTP(resp, req)

	var env envelope
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &env), resp.Body.String())
	return resp, env
}

func (e *testEnv) count(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.db.Model(&Contact{}).Count(&n).Error)
	return n
}

func validPayload() map[string]any {
	return map[string]any{"name": "John Doe", "phone": "1234567890", "email": "john@example.com", "age": 30}
}

func TestHandler_CreateAndGetRoundTrip(t *testing.T) {
	env := setupRouter(t)

	payload := validPayload()
	payload["image_url"] = "https://bucket.s3.amazonaws.com/uploads/a.png"
	resp, body := env.do(t, http.MethodPost, "/api/v1/contacts", payload)
	require.Equal(t, http.StatusCreated, resp.Code)

	var created Contact
	require.NoError(t, json.Unmarshal(body.Data, &created))
	require.NotEmpty(t, created.ID)

	resp, body = env.do(t, http.MethodGet, "/api/v1/contacts/"+created.ID, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	var got Contact
	require.NoError(t, json.Unmarshal(body.Data, &got))
	assert.Equal(t, "John Doe", got.Name)
	assert.Equal(t, "1234567890", got.Phone)
	assert.Equal(t, "john@example.com", got.Email)
	assert.Equal(t, 30, got.Age)
	assert.Equal(t, "https://bucket.s3.amazonaws.com/uploads/a.png", got.Image())
}

func TestHandler_CreateRejectsInvalidWithoutInsert(t *testing.T) {
	cases := map[string]struct {
		field string
		value any
	}{
		"age 17":          {"age", 17},
		"age 121":         {"age", 121},
		"malformed email": {"email", "john@"},
		"non-digit phone": {"phone", "555-1234"},
		"short name":      {"name", "J"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			env := setupRouter(t)
			payload := validPayload()
			payload[tc.field] = tc.value

			resp, body := env.do(t, http.MethodPost, "/api/v1/contacts", payload)
			assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
			require.NotNil(t, body.Error)
			assert.Equal(t, "VALIDATION_ERROR", body.Error.Code)
			assert.Contains(t, body.Error.Details.FieldErrors, tc.field)
			assert.EqualValues(t, 0, env.count(t))
		})
	}
}

func TestHandler_CreateBatch(t *testing.T) {
	env := setupRouter(t)

	batch := map[string]any{"contacts": []map[string]any{
		validPayload(),
		{"name": "Jane Roe", "phone": "555", "email": "jane@example.com", "age": 44},
	}}
	resp, body := env.do(t, http.MethodPost, "/api/v1/contacts/batch", batch)
	require.Equal(t, http.StatusCreated, resp.Code)

	var result BatchResult
	require.NoError(t, json.Unmarshal(body.Data, &result))
	assert.Equal(t, 2, result.Count)
	assert.NotEqual(t, result.Items[0].ID, result.Items[1].ID)
	assert.EqualValues(t, 2, env.count(t))
}

func TestHandler_CreateBatchValidatesEveryEntry(t *testing.T) {
	env := setupRouter(t)

	bad := validPayload()
	bad["age"] = 12
	resp, body := env.do(t, http.MethodPost, "/api/v1/contacts/batch", map[string]any{
		"contacts": []map[string]any{validPayload(), bad},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
	assert.Equal(t, "Age must be between 18 and 120.", body.Error.Details.FieldErrors["contacts[1].age"])
	assert.EqualValues(t, 0, env.count(t))

	resp, body = env.do(t, http.MethodPost, "/api/v1/contacts/batch", map[string]any{"contacts": []any{}})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
	assert.Contains(t, body.Error.Details.FieldErrors, "contacts")
}

func TestHandler_ListFilterSortPaginate(t *testing.T) {
	env := setupRouter(t)
	repo := NewRepository(env.db)
	seedContacts(t, repo, 25)

	resp, body := env.do(t, http.MethodGet, "/api/v1/contacts?sort=age&dir=asc&page=2&page_size=10", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	var page ListResult
	require.NoError(t, json.Unmarshal(body.Data, &page))
	assert.EqualValues(t, 25, page.Total)
	assert.Equal(t, 3, page.TotalPages)
	assert.Len(t, page.Items, 5)

	resp, body = env.do(t, http.MethodGet, "/api/v1/contacts?filter=PERSON%200", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	require.NoError(t, json.Unmarshal(body.Data, &page))
	assert.EqualValues(t, 10, page.Total)
	for _, c := range page.Items {
		assert.True(t, strings.HasPrefix(c.Name, "Person 0"))
	}

	resp, body = env.do(t, http.MethodGet, "/api/v1/contacts?sort=secret", nil)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, "INVALID_SORT", body.Error.Code)
}

func TestHandler_PatchEmailOnly(t *testing.T) {
	env := setupRouter(t)
	orig := seedContacts(t, NewRepository(env.db), 1)[0]

	resp, body := env.do(t, http.MethodPatch, "/api/v1/contacts/"+orig.ID, map[string]any{"email": "changed@example.com"})
	require.Equal(t, http.StatusOK, resp.Code)

	var got Contact
	require.NoError(t, json.Unmarshal(body.Data, &got))
	assert.Equal(t, orig.ID, got.ID)
	assert.Equal(t, orig.Name, got.Name)
	assert.Equal(t, orig.Age, got.Age)
	assert.Equal(t, "changed@example.com", got.Email)
}

func TestHandler_PatchErrors(t *testing.T) {
	env := setupRouter(t)
	orig := seedContacts(t, NewRepository(env.db), 1)[0]

	resp, body := env.do(t, http.MethodPatch, "/api/v1/contacts/"+orig.ID, map[string]any{"age": 200})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
	assert.Contains(t, body.Error.Details.FieldErrors, "age")

	resp, body = env.do(t, http.MethodPatch, "/api/v1/contacts/"+orig.ID, map[string]any{})
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, "NOTHING_TO_UPDATE", body.Error.Code)

	resp, body = env.do(t, http.MethodPatch, "/api/v1/contacts/missing", map[string]any{"name": "Ghost"})
	assert.Equal(t, http.StatusNotFound, resp.Code)
	assert.Equal(t, "CONTACT_NOT_FOUND", body.Error.Code)
}

func TestHandler_DeleteThenGone(t *testing.T) {
	env := setupRouter(t)
	seeded := seedContacts(t, NewRepository(env.db), 2)

	resp, body := env.do(t, http.MethodDelete, "/api/v1/contacts/"+seeded[0].ID, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "deleted", body.Message)

	resp, _ = env.do(t, http.MethodGet, "/api/v1/contacts/"+seeded[0].ID, nil)
	assert.Equal(t, http.StatusNotFound, resp.Code)

	_, body = env.do(t, http.MethodGet, "/api/v1/contacts", nil)
	var page ListResult
	require.NoError(t, json.Unmarshal(body.Data, &page))
	assert.EqualValues(t, 1, page.Total)
	assert.Equal(t, seeded[1].ID, page.Items[0].ID)
}

func TestHandler_RequiresToken(t *testing.T) {
	env := setupRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/contacts", nil)
	resp := httptest.NewRecorder()
	env.router.ServeHTTP(resp, req)
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestHandler_ChangeFeed(t *testing.T) {
	env := setupRouter(t)
	srv := httptest.NewServer(env.router)
	defer srv.Close()

	wsURL := fmt.Sprintf("ws%s/api/v1/contacts/ws?token=%s", strings.TrimPrefix(srv.URL, "http"), env.token)
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return env.hub.Subscribers() == 1 }, 2*time.Second, 10*time.Millisecond)

	resp, _ := env.do(t, http.MethodPost, "/api/v1/contacts", validPayload())
	require.Equal(t, http.StatusCreated, resp.Code)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var event ChangeEvent
	require.NoError(t, conn.ReadJSON(&event))
	assert.Equal(t, EventInsert, event.Type)
	require.NotNil(t, event.Record)
	assert.Equal(t, "John Doe", event.Record.Name)
}

func TestHandler_ChangeFeedRejectsBadToken(t *testing.T) {
	env := setupRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/contacts/ws?token=garbage", nil)
	resp := httptest.NewRecorder()
	env.router.ServeHTTP(resp, req)
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}
