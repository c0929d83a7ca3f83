package http

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"sitewatch/internal/auth"
	"sitewatch/internal/domain"
	"sitewatch/internal/repository/sqlite"
	"sitewatch/internal/service"
)

const testSecret = "test-signing-secret"

type testServer struct {
	router   *gin.Engine
	db       *sql.DB
	websites service.WebsiteService
	hook     *logtest.Hook
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := sqlite.Open(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, sqlite.Init(context.Background(), db))

	tokens, err := auth.NewTokenService(auth.Config{Secret: []byte(testSecret)})
	require.NoError(t, err)

	users := service.NewUserService(sqlite.NewUserRepository(db), tokens, bcrypt.MinCost)
	websites := service.NewWebsiteService(sqlite.NewWebsiteRepository(db), sqlite.NewTickRepository(db), nil, service.ExportConfig{})

	logger, hook := logtest.NewNullLogger()
	router := gin.New()
	NewHandler(users, websites, tokens, db, logger, 5*time.Second).RegisterRoutes(router)

	return &testServer{router: router, db: db, websites: websites, hook: hook}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	switch v := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(v))
	default:
		raw, err := json.Marshal(v)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	var decoded map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded), rec.Body.String())
	}
	return rec, decoded
}

func (s *testServer) signupAndLogin(t *testing.T, username string) (string, string) {
	t.Helper()
	creds := gin.H{"username": username, "password": "secret123"}

	rec, body := s.do(t, http.MethodPost, "/api/v1/users/signup", "", creds)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	id := body["id"].(string)

	rec, body = s.do(t, http.MethodPost, "/api/v1/users/login", "", creds)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return id, body["token"].(string)
}

func TestAPI_SignupLoginCreateAndRead(t *testing.T) {
	s := newTestServer(t)
	creds := gin.H{"username": "alice_1", "password": "secret123"}

	rec, body := s.do(t, http.MethodPost, "/api/v1/users/signup", "", creds)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "alice_1", body["username"])
	assert.Equal(t, "User created successfully", body["message"])
	aliceID := body["id"].(string)
	assert.NotEmpty(t, aliceID)
	assert.NotContains(t, rec.Body.String(), "secret123")

	rec, body = s.do(t, http.MethodPost, "/api/v1/users/signup", "", creds)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "Username already exists", body["error"])

	rec, body = s.do(t, http.MethodPost, "/api/v1/users/login", "", creds)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Login successful", body["message"])
	token := body["token"].(string)
	require.NotEmpty(t, token)

	rec, body = s.do(t, http.MethodPost, "/api/v1/website/create_url", token, gin.H{"url": "https://example.com", "ownerId": "someone-else"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "https://example.com", body["url"])
	assert.Equal(t, aliceID, body["ownerId"])
	siteID := body["id"].(string)

	rec, body = s.do(t, http.MethodGet, "/api/v1/website/get_url/"+siteID, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, siteID, body["id"])
	assert.Contains(t, body, "latestTick")
	assert.Nil(t, body["latestTick"])

	_, err := s.websites.RecordTick(context.Background(), siteID, domain.Tick{
		Status:         domain.TickStatusUp,
		StatusCode:     200,
		ResponseTimeMS: 42,
	})
	require.NoError(t, err)

	rec, body = s.do(t, http.MethodGet, "/api/v1/website/get_url/"+siteID, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	latest, ok := body["latestTick"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "up", latest["status"])
	assert.EqualValues(t, 42, latest["responseTimeMs"])

	rec, body = s.do(t, http.MethodGet, "/api/v1/website/ticks/"+siteID+"?limit=10", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["ticks"], 1)

	for _, entry := range s.hook.AllEntries() {
		line, err := entry.String()
		require.NoError(t, err)
		assert.NotContains(t, line, token)
		assert.NotContains(t, line, "secret123")
	}
}

func TestAPI_SignupValidation(t *testing.T) {
	s := newTestServer(t)

	rec, body := s.do(t, http.MethodPost, "/api/v1/users/signup", "", gin.H{"username": "ab", "password": "123"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid input data", body["error"])
	details, ok := body["details"].([]any)
	require.True(t, ok)
	assert.Len(t, details, 2)

	rec, _ = s.do(t, http.MethodPost, "/api/v1/users/signup", "", `{"username": 5}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = s.do(t, http.MethodPost, "/api/v1/users/signup", "", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPI_LoginFailuresAreIndistinguishable(t *testing.T) {
	s := newTestServer(t)
	s.signupAndLogin(t, "carol")

	recWrong, wrong := s.do(t, http.MethodPost, "/api/v1/users/login", "", gin.H{"username": "carol", "password": "badpass1"})
	recMissing, missing := s.do(t, http.MethodPost, "/api/v1/users/login", "", gin.H{"username": "nobody", "password": "badpass1"})

	assert.Equal(t, http.StatusUnauthorized, recWrong.Code)
	assert.Equal(t, http.StatusUnauthorized, recMissing.Code)
	assert.Equal(t, "Invalid credentials", wrong["error"])
	assert.Equal(t, wrong, missing)
}

func TestAPI_CreateWebsiteInvalidURL(t *testing.T) {
	s := newTestServer(t)
	_, token := s.signupAndLogin(t, "dave")

	for _, raw := range []string{"", "not a url", "ftp://example.com"} {
		rec, body := s.do(t, http.MethodPost, "/api/v1/website/create_url", token, gin.H{"url": raw})
		assert.Equal(t, http.StatusBadRequest, rec.Code, raw)
		assert.NotEmpty(t, body["details"], raw)
	}
}

func TestAPI_ForeignWebsiteIsNotFound(t *testing.T) {
	s := newTestServer(t)
	_, aliceToken := s.signupAndLogin(t, "alice")
	_, bobToken := s.signupAndLogin(t, "bobby")

	rec, body := s.do(t, http.MethodPost, "/api/v1/website/create_url", aliceToken, gin.H{"url": "https://example.com"})
	require.Equal(t, http.StatusCreated, rec.Code)
	siteID := body["id"].(string)

	recForeign, foreign := s.do(t, http.MethodGet, "/api/v1/website/get_url/"+siteID, bobToken, nil)
	recMissing, missing := s.do(t, http.MethodGet, "/api/v1/website/get_url/does-not-exist", bobToken, nil)

	assert.Equal(t, http.StatusNotFound, recForeign.Code)
	assert.Equal(t, http.StatusNotFound, recMissing.Code)
	assert.Equal(t, missing, foreign)

	rec, _ = s.do(t, http.MethodGet, "/api/v1/website/ticks/"+siteID, bobToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPI_DanglingSubjectCannotCreate(t *testing.T) {
	s := newTestServer(t)
	tokens, err := auth.NewTokenService(auth.Config{Secret: []byte(testSecret)})
	require.NoError(t, err)
	ghost, err := tokens.Issue("deleted-user")
	require.NoError(t, err)

	rec, body := s.do(t, http.MethodPost, "/api/v1/website/create_url", ghost, gin.H{"url": "https://example.com"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid token", body["error"])

	var count int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM websites`).Scan(&count))
	assert.Zero(t, count)
}

func TestAPI_ExportWithoutStorage(t *testing.T) {
	s := newTestServer(t)
	_, token := s.signupAndLogin(t, "erin")

	rec, body := s.do(t, http.MethodPost, "/api/v1/website/create_url", token, gin.H{"url": "https://example.com"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, body = s.do(t, http.MethodPost, "/api/v1/website/export/"+body["id"].(string), token, nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Tick export is not configured", body["error"])
}

func TestAPI_TicksRejectsNonNumericLimit(t *testing.T) {
	s := newTestServer(t)
	_, token := s.signupAndLogin(t, "frank")

	rec, _ := s.do(t, http.MethodGet, "/api/v1/website/ticks/x?limit=abc", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPI_Health(t *testing.T) {
	s := newTestServer(t)

	rec, body := s.do(t, http.MethodGet, "/api/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["ok"])

	require.NoError(t, s.db.Close())
	rec, _ = s.do(t, http.MethodGet, "/api/health", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestAPI_CORSPreflight(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/users/login", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.True(t, strings.Contains(rec.Header().Get("Access-Control-Allow-Headers"), "Authorization"))
}

func signWith(t *testing.T, secret string, claims jwt.RegisteredClaims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}
