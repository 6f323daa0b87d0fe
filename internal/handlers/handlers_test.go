package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"chatdesk/internal/auth"
	"chatdesk/internal/bot"
	"chatdesk/internal/config"
	"chatdesk/internal/eventlog"
	"chatdesk/internal/metrics"
	"chatdesk/internal/middleware"
	"chatdesk/internal/realtime"
	"chatdesk/internal/repositories"
	"chatdesk/internal/services"
	"chatdesk/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	Meta *struct {
		Total int64 `json:"total"`
	} `json:"meta"`
}

type testServer struct {
	t      *testing.T
	router *gin.Engine
	jwt    *auth.JWTService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := logger.NewNop()
	repos := repositories.NewMemoryRepositories()
	m := metrics.New()
	chatCfg := config.ChatConfig{
		LockTimeout:      time.Second,
		LockRetryBackoff: 10 * time.Millisecond,
		MaxMessageLength: 2000,
		SuggestLimit:     3,
	}
	analyticsCfg := config.AnalyticsConfig{DefaultDays: 30, MaxDays: 365, TopRatedLimit: 5}

	responder := bot.NewResponder(repos.Knowledge, bot.NewMatcher(log), bot.NewResponseBuilder(""), log)
	router := services.NewRouter(repos, "", m, log)
	analytics := services.NewAnalyticsService(repos.Snapshots, analyticsCfg, m, log)
	sessions := services.NewSessionService(repos, router, responder, realtime.NewNoopPublisher(), eventlog.NewNoopSink(), chatCfg, m, log, analytics)

	h := &Handlers{
		Chat:        NewChatHandler(sessions, log),
		AdminChat:   NewAdminChatHandler(sessions, analytics, log),
		Departments: NewDepartmentHandler(services.NewDepartmentService(repos, analytics, log), log),
		Agents:      NewAgentHandler(services.NewAgentService(repos, log), log),
		Knowledge:   NewKnowledgeHandler(services.NewKnowledgeService(repos.Knowledge, responder, log), log),
		Auth:        NewAuthHandler(),
		Health:      NewHealthHandler("chatdesk", "memory", nil, m.Handler()),
	}

	jwtService := auth.NewJWTService(config.JWTConfig{Secret: "test-secret", Issuer: "chatdesk"})
	engine := gin.New()
	engine.Use(middleware.RequestID(), middleware.Recovery(log), middleware.Logging(log, m))
	h.Register(engine, middleware.Auth(jwtService), func(c *gin.Context) { c.Next() })

	return &testServer{t: t, router: engine, jwt: jwtService}
}

func (s *testServer) token(id string, role auth.Role) string {
	tok, err := s.jwt.GenerateToken(auth.Principal{ID: id, Name: id, Role: role}, time.Hour)
	require.NoError(s.t, err)
	return tok
}

func (s *testServer) do(method, path, token string, body interface{}) (int, envelope) {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var env envelope
	if w.Header().Get("Content-Type") != "" && bytes.HasPrefix(w.Body.Bytes(), []byte("{")) {
		require.NoError(s.t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w.Code, env
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

func TestAuthRequired(t *testing.T) {
	s := newTestServer(t)

	code, env := s.do(http.MethodGet, "/admin/chat", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "UNAUTHORIZED", env.Error.Code)

	code, env = s.do(http.MethodGet, "/admin/chat", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "INVALID_TOKEN", env.Error.Code)

	code, env = s.do(http.MethodGet, "/admin/chat", s.token("v1", auth.RoleVisitor), nil)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "FORBIDDEN", env.Error.Code)

	code, env = s.do(http.MethodGet, "/auth/me", s.token("agent-7", auth.RoleAgent), nil)
	require.Equal(t, http.StatusOK, code)
	me := decode[map[string]string](t, env.Data)
	assert.Equal(t, "agent-7", me["id"])
	assert.Equal(t, "agent", me["role"])
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)

	code, env := s.do(http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.True(t, env.Success)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "chatdesk_http_requests_total")
}

func TestChatLifecycleOverHTTP(t *testing.T) {
	s := newTestServer(t)
	visitor := s.token("visitor-1", auth.RoleVisitor)
	admin := s.token("admin-1", auth.RoleAdmin)

	code, env := s.do(http.MethodPost, "/admin/chat/departments", admin, map[string]interface{}{
		"name": "Technical", "slug": "technical",
	})
	require.Equal(t, http.StatusCreated, code)

	code, env = s.do(http.MethodPost, "/chat", visitor, map[string]interface{}{
		"visitor_name": "Asha", "message": "need help",
	})
	require.Equal(t, http.StatusCreated, code, env.Error)
	opened := decode[map[string]interface{}](t, env.Data)
	sessionID := opened["sessionId"].(string)
	assert.Equal(t, "waiting", opened["status"])

	code, env = s.do(http.MethodPost, "/admin/chat/assign", admin, map[string]interface{}{"chatId": sessionID})
	require.Equal(t, http.StatusOK, code)
	assigned := decode[map[string]interface{}](t, env.Data)
	assert.Equal(t, "inbox", assigned["outcome"])

	code, _ = s.do(http.MethodPost, "/admin/chat", admin, map[string]interface{}{"chatId": sessionID, "message": "hello Asha"})
	require.Equal(t, http.StatusCreated, code)

	code, env = s.do(http.MethodGet, "/chat?sessionId="+sessionID, visitor, nil)
	require.Equal(t, http.StatusOK, code)
	tr := decode[map[string]json.RawMessage](t, env.Data)
	messages := decode[[]map[string]interface{}](t, tr["messages"])
	require.Len(t, messages, 2)
	assert.Equal(t, "need help", messages[0]["body"])
	assert.NotNil(t, messages[1]["read_at"])

	// rating before resolve
	code, env = s.do(http.MethodPost, "/chat/rating", visitor, map[string]interface{}{"sessionId": sessionID, "rating": 5})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "NOT_RESOLVED", env.Error.Code)

	code, env = s.do(http.MethodPatch, "/admin/chat", admin, map[string]interface{}{"chatId": sessionID, "status": "waiting"})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "INVALID_TRANSITION", env.Error.Code)

	code, _ = s.do(http.MethodPatch, "/admin/chat", admin, map[string]interface{}{"chatId": sessionID, "status": "resolved"})
	require.Equal(t, http.StatusOK, code)

	// reopening is reserved to visitor messages
	code, env = s.do(http.MethodPatch, "/admin/chat", admin, map[string]interface{}{"chatId": sessionID, "status": "waiting"})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "INVALID_TRANSITION", env.Error.Code)

	code, env = s.do(http.MethodPost, "/chat/rating", visitor, map[string]interface{}{"sessionId": sessionID, "rating": 9})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)

	code, _ = s.do(http.MethodPost, "/chat/rating", visitor, map[string]interface{}{"sessionId": sessionID, "rating": 5, "comment": "great"})
	require.Equal(t, http.StatusOK, code)

	code, env = s.do(http.MethodPost, "/chat/rating", visitor, map[string]interface{}{"sessionId": sessionID, "rating": 3})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "ALREADY_RATED", env.Error.Code)

	code, env = s.do(http.MethodGet, "/admin/chat?status=resolved", admin, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, int64(1), env.Meta.Total)

	code, env = s.do(http.MethodGet, "/admin/chat/analytics?days=7", admin, nil)
	require.Equal(t, http.StatusOK, code)
	summary := decode[services.AnalyticsSummary](t, env.Data)
	assert.Equal(t, 1, summary.TotalChats)
	assert.Equal(t, 1, summary.RatingDistribution[5])
	assert.Equal(t, 1, summary.DepartmentStats["technical"].Count)
}

func TestVisitorScoping(t *testing.T) {
	s := newTestServer(t)
	owner := s.token("visitor-1", auth.RoleVisitor)
	other := s.token("visitor-2", auth.RoleVisitor)

	code, env := s.do(http.MethodPost, "/chat", owner, map[string]interface{}{"visitor_name": "Asha", "message": "hi"})
	require.Equal(t, http.StatusCreated, code)
	sessionID := decode[map[string]interface{}](t, env.Data)["sessionId"].(string)

	code, env = s.do(http.MethodGet, "/chat?sessionId="+sessionID, other, nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, env = s.do(http.MethodPost, "/chat", other, map[string]interface{}{"sessionId": sessionID, "message": "hijack"})
	assert.Equal(t, http.StatusForbidden, code)

	code, env = s.do(http.MethodGet, "/chat?sessionId=not-a-uuid", owner, nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, env = s.do(http.MethodDelete, "/chat?sessionId="+sessionID, owner, nil)
	require.Equal(t, http.StatusOK, code)
	cancelled := decode[map[string]interface{}](t, env.Data)
	assert.Equal(t, "closed", cancelled["status"])

	// a new message reopens the cancelled session
	code, env = s.do(http.MethodPost, "/chat", owner, map[string]interface{}{"sessionId": sessionID, "message": "back again"})
	require.Equal(t, http.StatusOK, code)
	reopened := decode[map[string]interface{}](t, env.Data)
	assert.Equal(t, true, reopened["reopened"])
	assert.Equal(t, "waiting", reopened["status"])
}

func TestDepartmentEndpoints(t *testing.T) {
	s := newTestServer(t)
	admin := s.token("admin-1", auth.RoleAdmin)
	agent := s.token("agent-1", auth.RoleAgent)

	code, env := s.do(http.MethodPost, "/admin/chat/departments", admin, map[string]interface{}{"name": "Billing", "slug": "billing"})
	require.Equal(t, http.StatusCreated, code)
	id := decode[map[string]interface{}](t, env.Data)["id"].(string)

	code, env = s.do(http.MethodPost, "/admin/chat/departments", admin, map[string]interface{}{"name": "Billing 2", "slug": "billing"})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "DUPLICATE_SLUG", env.Error.Code)

	code, _ = s.do(http.MethodPost, "/admin/chat/departments", agent, map[string]interface{}{"name": "Sales", "slug": "sales"})
	assert.Equal(t, http.StatusForbidden, code)

	code, env = s.do(http.MethodGet, "/chat/departments", s.token("v", auth.RoleVisitor), nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, decode[[]map[string]interface{}](t, env.Data), 1)

	code, env = s.do(http.MethodDelete, "/admin/chat/departments/"+id, admin, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(0), decode[map[string]interface{}](t, env.Data)["sessions_detached"])

	code, env = s.do(http.MethodDelete, "/admin/chat/departments/"+id, admin, nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)
}

func TestKnowledgeEndpoints(t *testing.T) {
	s := newTestServer(t)
	admin := s.token("admin-1", auth.RoleAdmin)
	visitor := s.token("visitor-1", auth.RoleVisitor)

	code, env := s.do(http.MethodPost, "/admin/chat/knowledge-base", admin, map[string]interface{}{
		"title": "Refunds", "content": "Refunds take 5 days.", "keywords": []string{"refund"},
	})
	require.Equal(t, http.StatusCreated, code)
	id := decode[map[string]interface{}](t, env.Data)["id"].(string)

	// the opening message gets the article as a suggestion
	code, env = s.do(http.MethodPost, "/chat", visitor, map[string]interface{}{"visitor_name": "Asha", "message": "I want a refund"})
	require.Equal(t, http.StatusCreated, code)
	opened := decode[map[string]json.RawMessage](t, env.Data)
	assert.Len(t, decode[[]map[string]interface{}](t, opened["suggestions"]), 1)

	code, env = s.do(http.MethodGet, "/chat/knowledge-base?q=refund", visitor, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, decode[[]map[string]interface{}](t, env.Data), 1)

	code, _ = s.do(http.MethodPost, "/chat/knowledge-base/"+id+"/feedback", visitor, map[string]interface{}{"helpful": true})
	require.Equal(t, http.StatusOK, code)

	code, env = s.do(http.MethodPost, "/chat/knowledge-base/"+id+"/feedback", visitor, map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, code)

	code, env = s.do(http.MethodPatch, "/admin/chat/knowledge-base/"+id, admin, map[string]interface{}{"helpful": 0})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(0), decode[map[string]interface{}](t, env.Data)["helpful"])

	code, _ = s.do(http.MethodDelete, "/admin/chat/knowledge-base/"+id, visitor, nil)
	assert.Equal(t, http.StatusForbidden, code)
}
