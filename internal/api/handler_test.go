package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"site_registry/internal/limiter"
	"site_registry/internal/repository"
	"site_registry/internal/service"
)

const (
	adminUser = "root"
	adminPass = "Break-Glass-1"
)

type testServer struct {
	router *gin.Engine
}

func newTestServer(t *testing.T, loginLimit int) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	events := repository.NewMemoryEventRepo()
	writer := service.NewStatusEventWriter(events, 1, time.Hour)
	t.Cleanup(writer.Close)

	cache := service.NewCache(time.Minute)
	t.Cleanup(cache.Close)

	sites := service.NewSiteService(repository.NewMemorySiteRepo(), events, writer, cache, time.Minute)
	auth := service.NewAuthService(repository.NewMemoryUserRepo(), service.AuthConfig{
		Secret:        "test-secret",
		TokenTTL:      time.Hour,
		AdminUsername: adminUser,
		AdminPassword: adminPass,
		BcryptCost:    bcrypt.MinCost,
	})

	r, err := NewEngine(nil)
	require.NoError(t, err)
	SetupRoutes(r, Services{
		Sites:   sites,
		Auth:    auth,
		Limiter: limiter.NewMemoryLimiter(loginLimit, time.Minute),
	})
	return &testServer{router: r}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) login(t *testing.T, username, password string) string {
	t.Helper()
	w := s.do(t, http.MethodPost, "/api/auth/login", gin.H{"username": username, "password": password}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return decode(t, w)["token"].(string)
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func towerBody() gin.H {
	return gin.H{
		"id":           2001,
		"name":         "Tower A",
		"address":      "X",
		"height":       "30m",
		"location":     gin.H{"lat": 9.03, "lng": 38.74},
		"powerSources": []string{"Generator"},
		"powerSourceDetails": gin.H{
			"generator": gin.H{"type": "cat", "capacity": 100},
		},
	}
}

func TestAuthRoutes(t *testing.T) {
	s := newTestServer(t, 100)

	w := s.do(t, http.MethodPost, "/api/auth/register", gin.H{"username": "alice", "password": "Secret123"}, "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	body := decode(t, w)
	assert.NotEmpty(t, body["token"])
	assert.Equal(t, map[string]interface{}{"username": "alice", "role": "user"}, body["user"])

	w = s.do(t, http.MethodPost, "/api/auth/register", gin.H{"username": "alice", "password": "Secret123"}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "User already exists", decode(t, w)["message"])

	w = s.do(t, http.MethodPost, "/api/auth/register", gin.H{"username": "bob", "password": "secret123"}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Password must contain both uppercase and lowercase letters", decode(t, w)["message"])

	w = s.do(t, http.MethodPost, "/api/auth/register", gin.H{"password": "Secret123"}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "username is required", decode(t, w)["message"])

	w = s.do(t, http.MethodPost, "/api/auth/login", gin.H{"username": "alice", "password": "wrong"}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid credentials", decode(t, w)["message"])

	w = s.do(t, http.MethodPost, "/api/auth/login", gin.H{"username": "nobody", "password": "wrong"}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid credentials", decode(t, w)["message"])

	token := s.login(t, "alice", "Secret123")
	w = s.do(t, http.MethodGet, "/api/auth/verify", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]interface{}{"username": "alice", "role": "user"}, decode(t, w)["user"])

	w = s.do(t, http.MethodGet, "/api/auth/verify", nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "No token provided", decode(t, w)["message"])

	w = s.do(t, http.MethodGet, "/api/auth/verify", nil, "garbage")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Token is not valid", decode(t, w)["message"])
}

func TestLoginRateLimit(t *testing.T) {
	s := newTestServer(t, 2)

	for i := 0; i < 2; i++ {
		w := s.do(t, http.MethodPost, "/api/auth/login", gin.H{"username": "x", "password": "y"}, "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	}
	w := s.do(t, http.MethodPost, "/api/auth/login", gin.H{"username": adminUser, "password": adminPass}, "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestLoginRateLimit_IgnoresForwardedFor(t *testing.T) {
	s := newTestServer(t, 1)

	for i, forwarded := range []string{"203.0.113.1", "203.0.113.2"} {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login",
			bytes.NewReader([]byte(`{"username":"x","password":"y"}`)))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Forwarded-For", forwarded)
		req.Header.Set("X-Real-IP", forwarded)
		w := httptest.NewRecorder()
		s.router.ServeHTTP(w, req)

		if i == 0 {
			assert.Equal(t, http.StatusBadRequest, w.Code)
		} else {
			assert.Equal(t, http.StatusTooManyRequests, w.Code)
		}
	}
}

func TestNewEngine_InvalidTrustedProxy(t *testing.T) {
	_, err := NewEngine([]string{"not-an-ip"})
	assert.Error(t, err)
}

func TestSiteRoutes_RequireToken(t *testing.T) {
	s := newTestServer(t, 100)

	w := s.do(t, http.MethodGet, "/api/sites", nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodGet, "/api/sites", nil, "garbage")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSiteRoutes_TowerScenario(t *testing.T) {
	s := newTestServer(t, 100)
	admin := s.login(t, adminUser, adminPass)

	w := s.do(t, http.MethodPost, "/api/sites", towerBody(), admin)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode(t, w)
	assert.Equal(t, float64(2001), created["id"])
	assert.Equal(t, "active", created["status"])
	assert.Equal(t, "Medium", created["capacity"])
	assert.Equal(t, "0%", created["uptime"])
	assert.NotContains(t, created, "lastMaintenance")

	w = s.do(t, http.MethodGet, "/api/sites/2001", nil, admin)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, created, decode(t, w))

	w = s.do(t, http.MethodPatch, "/api/sites/2001/status", gin.H{"status": "maintenance"}, admin)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	paused := decode(t, w)
	assert.Equal(t, "maintenance", paused["status"])
	assert.NotContains(t, paused, "lastMaintenance")

	w = s.do(t, http.MethodPatch, "/api/sites/2001/status", gin.H{"status": "active"}, admin)
	require.Equal(t, http.StatusOK, w.Code)
	resumed := decode(t, w)
	assert.Equal(t, "active", resumed["status"])
	assert.Equal(t, resumed["updatedAt"], resumed["lastMaintenance"])

	w = s.do(t, http.MethodGet, "/api/sites/2001/history", nil, admin)
	require.Equal(t, http.StatusOK, w.Code)
	history := decode(t, w)
	assert.Equal(t, float64(2), history["count"])

	w = s.do(t, http.MethodPatch, "/api/sites/2001/status", gin.H{"status": "retired"}, admin)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid status value", decode(t, w)["message"])
}

func TestSiteRoutes_CreateErrors(t *testing.T) {
	s := newTestServer(t, 100)
	admin := s.login(t, adminUser, adminPass)

	body := towerBody()
	body["powerSources"] = []string{"Grid"}
	body["powerSourceDetails"] = gin.H{"grid": gin.H{"connectionType": "single_phase", "load": 3}}
	w := s.do(t, http.MethodPost, "/api/sites", body, admin)
	require.Equal(t, http.StatusBadRequest, w.Code)
	resp := decode(t, w)
	assert.Equal(t, "Grid voltage is required", resp["message"])
	errs := resp["errors"].([]interface{})
	require.Len(t, errs, 1)
	assert.Equal(t, "powerSourceDetails.grid.voltage", errs[0].(map[string]interface{})["field"])

	w = s.do(t, http.MethodPost, "/api/sites", towerBody(), admin)
	require.Equal(t, http.StatusCreated, w.Code)
	w = s.do(t, http.MethodPost, "/api/sites", towerBody(), admin)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Site with this ID already exists", decode(t, w)["message"])

	w = s.do(t, http.MethodPost, "/api/sites", "{not json", admin)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid JSON", decode(t, w)["message"])
}

func TestSiteRoutes_UpdateAndDelete(t *testing.T) {
	s := newTestServer(t, 100)
	admin := s.login(t, adminUser, adminPass)

	w := s.do(t, http.MethodPost, "/api/sites", towerBody(), admin)
	require.Equal(t, http.StatusCreated, w.Code)

	w = s.do(t, http.MethodPut, "/api/sites/2001", gin.H{"id": 3000, "name": "Moved"}, admin)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Site ID cannot be changed", decode(t, w)["message"])

	w = s.do(t, http.MethodPut, "/api/sites/2001", gin.H{"name": "Tower B", "powerSources": []string{}}, admin)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	updated := decode(t, w)
	assert.Equal(t, "Tower B", updated["name"])
	assert.NotContains(t, updated["powerSourceDetails"], "generator")

	w = s.do(t, http.MethodPut, "/api/sites/2001/power/battery", gin.H{"type": "li_ion", "capacity": 20}, admin)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, []interface{}{"Battery"}, decode(t, w)["powerSources"])

	w = s.do(t, http.MethodPut, "/api/sites/404", gin.H{"name": "x"}, admin)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Site not found", decode(t, w)["message"])

	w = s.do(t, http.MethodDelete, "/api/sites/2001", nil, admin)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Site deleted successfully", decode(t, w)["message"])

	w = s.do(t, http.MethodDelete, "/api/sites/2001", nil, admin)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodGet, "/api/sites/abc", nil, admin)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSiteRoutes_ListAndRoles(t *testing.T) {
	s := newTestServer(t, 100)
	admin := s.login(t, adminUser, adminPass)

	w := s.do(t, http.MethodPost, "/api/auth/register", gin.H{"username": "field", "password": "Secret123"}, "")
	require.Equal(t, http.StatusCreated, w.Code)
	user := decode(t, w)["token"].(string)

	w = s.do(t, http.MethodPost, "/api/sites", towerBody(), user)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "Access denied. Requires admin role.", decode(t, w)["message"])

	w = s.do(t, http.MethodPost, "/api/sites", towerBody(), admin)
	require.Equal(t, http.StatusCreated, w.Code)

	// any signed-in user may change status
	w = s.do(t, http.MethodPatch, "/api/sites/2001/status", gin.H{"status": "inactive"}, user)
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/api/sites?status=inactive", nil, user)
	require.Equal(t, http.StatusOK, w.Code)
	var list []map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, float64(2001), list[0]["id"])

	w = s.do(t, http.MethodGet, "/api/sites?status=active", nil, user)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())

	w = s.do(t, http.MethodGet, "/api/sites?status=retired", nil, user)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid status filter", decode(t, w)["message"])

	w = s.do(t, http.MethodGet, "/api/sites/export", nil, user)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, http.MethodGet, "/api/sites/export", nil, admin)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, xlsxContentType, w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "attachment; filename=\"sites-")
	assert.NotEmpty(t, w.Body.Bytes())

	w = s.do(t, http.MethodGet, "/api/admin/stats", nil, user)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, http.MethodGet, "/api/admin/stats", nil, admin)
	require.Equal(t, http.StatusOK, w.Code)
	stats := decode(t, w)
	assert.Equal(t, "memory", stats["store"])
	assert.Contains(t, stats, "cache")
	assert.Contains(t, stats, "event_writer")
}

func TestMiddleware_RequestIDAndCORS(t *testing.T) {
	s := newTestServer(t, 100)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(requestIDHeader, "req-42")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "req-42", w.Header().Get(requestIDHeader))

	w = s.do(t, http.MethodGet, "/healthz", nil, "")
	assert.NotEmpty(t, w.Header().Get(requestIDHeader))

	req = httptest.NewRequest(http.MethodOptions, "/api/sites", nil)
	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
