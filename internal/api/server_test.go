package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"teamhub-notifications/internal/common/auth"
	"teamhub-notifications/internal/common/logger"
	"teamhub-notifications/internal/notifications"
	"teamhub-notifications/internal/realtime"
	"teamhub-notifications/internal/search"
)

// ==========================
// Test Helper Functions
// ==========================

const testSecret = "api-test-secret"

type mockService struct {
	GetNotificationsFunc           func(ctx context.Context, q notifications.Query) (*notifications.Page, error)
	MarkAsReadFunc                 func(ctx context.Context, id, userID string) (bool, error)
	CreateNotificationFunc         func(ctx context.Context, in notifications.NewNotification) (*notifications.CreateResult, error)
	CreateAdvancedNotificationFunc func(ctx context.Context, in notifications.AdvancedNotification) (*notifications.CreateResult, error)
	ArchiveNotificationFunc        func(ctx context.Context, id string) error
	DeleteNotificationFunc         func(ctx context.Context, id string) error
}

func (m *mockService) GetNotifications(ctx context.Context, q notifications.Query) (*notifications.Page, error) {
	return m.GetNotificationsFunc(ctx, q)
}

func (m *mockService) MarkAsRead(ctx context.Context, id, userID string) (bool, error) {
	return m.MarkAsReadFunc(ctx, id, userID)
}

func (m *mockService) CreateNotification(ctx context.Context, in notifications.NewNotification) (*notifications.CreateResult, error) {
	return m.CreateNotificationFunc(ctx, in)
}

func (m *mockService) CreateAdvancedNotification(ctx context.Context, in notifications.AdvancedNotification) (*notifications.CreateResult, error) {
	return m.CreateAdvancedNotificationFunc(ctx, in)
}

func (m *mockService) ArchiveNotification(ctx context.Context, id string) error {
	return m.ArchiveNotificationFunc(ctx, id)
}

func (m *mockService) DeleteNotification(ctx context.Context, id string) error {
	return m.DeleteNotificationFunc(ctx, id)
}

type mockSearcher struct {
	SearchFunc func(ctx context.Context, teamID, query string, limit int) (*search.Result, error)
}

func (m *mockSearcher) Search(ctx context.Context, teamID, query string, limit int) (*search.Result, error) {
	return m.SearchFunc(ctx, teamID, query, limit)
}

func newTestServer(t *testing.T, svc *mockService, searcher Searcher, sub Subscriber) http.Handler {
	t.Helper()
	if svc == nil {
		svc = &mockService{}
	}
	srv := NewServer(Config{
		ServiceName:       "notification-service",
		Version:           "test",
		JWTSecret:         testSecret,
		AllowedOrigins:    []string{"https://app.teamhub.example"},
		HeartbeatInterval: time.Hour,
	}, svc, searcher, sub, logger.NewTestLogger(t))
	return srv.Routes()
}

func token(t *testing.T, userID, role, teamID string) string {
	t.Helper()
	tok, err := auth.GenerateToken(testSecret, userID, role, teamID, time.Hour)
	require.NoError(t, err)
	return "Bearer " + tok
}

func do(t *testing.T, h http.Handler, method, path, authz, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if authz != "" {
		req.Header.Set("Authorization", authz)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var out errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

// ==========================
// Authentication and CORS
// ==========================

func TestAuthMiddleware(t *testing.T) {
	h := newTestServer(t, nil, nil, nil)

	tests := []struct {
		name  string
		authz string
	}{
		{name: "missing header", authz: ""},
		{name: "wrong scheme", authz: "Basic abc"},
		{name: "bad token", authz: "Bearer nope"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodGet, "/api/v1/notifications", tt.authz, "")
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, "UNAUTHORIZED", decodeError(t, rec).Error)
		})
	}
}

func TestCORSPreflight(t *testing.T) {
	h := newTestServer(t, nil, nil, nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/notifications", nil)
	req.Header.Set("Origin", "https://app.teamhub.example")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://app.teamhub.example", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/api/v1/notifications", nil)
	req.Header.Set("Origin", "https://evil.example")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

// ==========================
// Feed and read state
// ==========================

func TestGetNotifications(t *testing.T) {
	var got notifications.Query
	svc := &mockService{
		GetNotificationsFunc: func(ctx context.Context, q notifications.Query) (*notifications.Page, error) {
			got = q
			return &notifications.Page{
				Notifications: []notifications.Notification{{ID: "announcement-a1", Title: "Release freeze"}},
				Total:         1,
			}, nil
		},
	}
	h := newTestServer(t, svc, nil, nil)

	rec := do(t, h, http.MethodGet, "/api/v1/notifications?limit=5&page=2&category=project&priority=High&search=freeze",
		token(t, "user-1", "manager", "team-1"), "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, notifications.Query{
		UserID: "user-1", Role: "manager", TeamID: "team-1",
		Limit: 5, Page: 2, Category: "project", Priority: "High", Search: "freeze",
	}, got)

	var page notifications.Page
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Equal(t, 1, page.Total)
	assert.Equal(t, "announcement-a1", page.Notifications[0].ID)
}

func TestGetNotifications_BadLimit(t *testing.T) {
	h := newTestServer(t, nil, nil, nil)

	rec := do(t, h, http.MethodGet, "/api/v1/notifications?limit=abc", token(t, "user-1", "employee", "team-1"), "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_NOTIFICATION_INPUT", decodeError(t, rec).Error)
}

func TestMarkAsRead(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{name: "success", wantStatus: http.StatusOK},
		{name: "not found", err: notifications.ErrNotFound, wantStatus: http.StatusNotFound, wantCode: "NOTIFICATION_NOT_FOUND"},
		{name: "bad id", err: fmt.Errorf("%w: x", notifications.ErrInvalidNotificationID), wantStatus: http.StatusBadRequest, wantCode: "INVALID_NOTIFICATION_ID"},
		{name: "database down", err: errors.New("connection refused"), wantStatus: http.StatusInternalServerError, wantCode: "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotID, gotUser string
			svc := &mockService{
				MarkAsReadFunc: func(ctx context.Context, id, userID string) (bool, error) {
					gotID, gotUser = id, userID
					return tt.err == nil, tt.err
				},
			}
			h := newTestServer(t, svc, nil, nil)

			rec := do(t, h, http.MethodPut, "/api/v1/notifications/task-n1/read", token(t, "user-1", "employee", "team-1"), "")

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, "task-n1", gotID)
			assert.Equal(t, "user-1", gotUser)
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, decodeError(t, rec).Error)
			}
		})
	}
}

// ==========================
// Writes
// ==========================

func TestCreateNotification(t *testing.T) {
	var got notifications.NewNotification
	svc := &mockService{
		CreateNotificationFunc: func(ctx context.Context, in notifications.NewNotification) (*notifications.CreateResult, error) {
			got = in
			return &notifications.CreateResult{IDs: []string{"a1"}, Indexed: true}, nil
		},
	}
	h := newTestServer(t, svc, nil, nil)

	body := `{"title":"Sprint 5 started","content":"Kickoff at 10","teamId":"team-1","createdBy":"spoofed","priority":"High"}`
	rec := do(t, h, http.MethodPost, "/api/v1/notifications", token(t, "mgr-1", "manager", "team-1"), body)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "mgr-1", got.CreatedBy)
	assert.Equal(t, "team-1", got.TeamID)
	assert.Equal(t, "High", got.Priority)

	var res notifications.CreateResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, []string{"a1"}, res.IDs)
}

func TestCreateNotification_Rejected(t *testing.T) {
	h := newTestServer(t, &mockService{}, nil, nil)

	tests := []struct {
		name       string
		authz      string
		body       string
		wantStatus int
		wantCode   string
	}{
		{name: "employee forbidden", authz: token(t, "user-1", "employee", "team-1"), body: `{"title":"x"}`, wantStatus: http.StatusForbidden, wantCode: "FORBIDDEN"},
		{name: "empty body", authz: token(t, "mgr-1", "manager", "team-1"), body: "", wantStatus: http.StatusBadRequest, wantCode: "INVALID_NOTIFICATION_INPUT"},
		{name: "malformed json", authz: token(t, "mgr-1", "admin", ""), body: `{"title":`, wantStatus: http.StatusBadRequest, wantCode: "INVALID_NOTIFICATION_INPUT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/api/v1/notifications", tt.authz, tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantCode, decodeError(t, rec).Error)
		})
	}
}

func TestCreateAdvancedNotification(t *testing.T) {
	var got notifications.AdvancedNotification
	svc := &mockService{
		CreateAdvancedNotificationFunc: func(ctx context.Context, in notifications.AdvancedNotification) (*notifications.CreateResult, error) {
			got = in
			return &notifications.CreateResult{IDs: []string{"a1", "a2"}, Warnings: []string{"delivery: throttled"}}, nil
		},
	}
	h := newTestServer(t, svc, nil, nil)

	body := `{"title":"VPN outage","content":"Down until 14:00","recipients":"teams","teamIds":["team-1","team-2"],"channels":["in_app","email"]}`
	rec := do(t, h, http.MethodPost, "/api/v1/notifications/advanced", token(t, "admin-1", "admin", ""), body)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "admin-1", got.CreatedBy)
	assert.Equal(t, []string{"team-1", "team-2"}, got.TeamIDs)
	assert.Equal(t, []notifications.Channel{notifications.ChannelInApp, notifications.ChannelEmail}, got.Channels)
	assert.Contains(t, rec.Body.String(), "delivery: throttled")
}

func TestArchiveAndDelete(t *testing.T) {
	var archived, deleted string
	svc := &mockService{
		ArchiveNotificationFunc: func(ctx context.Context, id string) error {
			archived = id
			return nil
		},
		DeleteNotificationFunc: func(ctx context.Context, id string) error {
			if id == "task-1" {
				return fmt.Errorf("%w: %s", notifications.ErrInvalidNotificationID, id)
			}
			deleted = id
			return nil
		},
	}
	h := newTestServer(t, svc, nil, nil)
	manager := token(t, "mgr-1", "manager", "team-1")

	rec := do(t, h, http.MethodPost, "/api/v1/notifications/announcement-a1/archive", manager, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "announcement-a1", archived)

	rec = do(t, h, http.MethodDelete, "/api/v1/notifications/a2", manager, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "a2", deleted)

	rec = do(t, h, http.MethodDelete, "/api/v1/notifications/task-1", manager, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodDelete, "/api/v1/notifications/a2", token(t, "user-1", "employee", "team-1"), "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

// ==========================
// Search
// ==========================

func TestSearch(t *testing.T) {
	searcher := &mockSearcher{
		SearchFunc: func(ctx context.Context, teamID, query string, limit int) (*search.Result, error) {
			assert.Equal(t, "team-1", teamID)
			assert.Equal(t, "sprint", query)
			assert.Equal(t, 10, limit)
			return &search.Result{Total: 1, Hits: []search.Hit{{Document: search.Document{ID: "announcement-a1"}, Score: 2.1}}}, nil
		},
	}
	h := newTestServer(t, nil, searcher, nil)

	rec := do(t, h, http.MethodGet, "/api/v1/notifications/search?q=sprint&limit=10", token(t, "user-1", "employee", "team-1"), "")

	require.Equal(t, http.StatusOK, rec.Code)
	var res search.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, int64(1), res.Total)
}

func TestSearch_Failures(t *testing.T) {
	authz := token(t, "user-1", "employee", "team-1")

	rec := do(t, newTestServer(t, nil, nil, nil), http.MethodGet, "/api/v1/notifications/search?q=x", authz, "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	failing := &mockSearcher{
		SearchFunc: func(ctx context.Context, teamID, query string, limit int) (*search.Result, error) {
			return nil, fmt.Errorf("%w: cluster red", search.ErrSearchFailed)
		},
	}
	rec = do(t, newTestServer(t, nil, failing, nil), http.MethodGet, "/api/v1/notifications/search?q=x", authz, "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "SEARCH_INDEX_FAILED", decodeError(t, rec).Error)
}

// ==========================
// Health
// ==========================

func TestHealthAndReady(t *testing.T) {
	srv := NewServer(Config{ServiceName: "notification-service"}, &mockService{}, nil, nil, logger.NewTestLogger(t))
	healthy := true
	srv.AddReadinessCheck("postgres", func(ctx context.Context) error {
		if healthy {
			return nil
		}
		return errors.New("connection refused")
	})
	h := srv.Routes()

	rec := do(t, h, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")

	rec = do(t, h, http.MethodGet, "/ready", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	healthy = false
	rec = do(t, h, http.MethodGet, "/ready", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "postgres")
}

// ==========================
// Stream
// ==========================

type sseEvent struct {
	Name string
	Data string
}

func readEvent(t *testing.T, r *bufio.Reader) sseEvent {
	t.Helper()
	var ev sseEvent
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		switch {
		case line == "" && ev.Name != "":
			return ev
		case strings.HasPrefix(line, "event: "):
			ev.Name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			ev.Data = strings.TrimPrefix(line, "data: ")
		}
	}
}

func openStream(t *testing.T, url, authz string) (*http.Response, *bufio.Reader) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url+"/api/v1/notifications/stream", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", authz)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	return resp, bufio.NewReader(resp.Body)
}

func TestStream(t *testing.T) {
	hub := realtime.NewHub(nil, logger.NewTestLogger(t))
	ts := httptest.NewServer(newTestServer(t, nil, nil, hub))
	defer ts.Close()
	defer hub.Dispose()

	authz := token(t, "user-1", "manager", "team-1")
	_, first := openStream(t, ts.URL, authz)

	ready := readEvent(t, first)
	assert.Equal(t, "ready", ready.Name)
	assert.Contains(t, ready.Data, realtime.ChannelKey("user-1"))

	delivered := hub.Dispatch(realtime.RawEvent{
		Table:     realtime.TableAnnouncements,
		Operation: realtime.OperationInsert,
		Payload:   json.RawMessage(`{"id":"a1"}`),
	})
	assert.Equal(t, 1, delivered)

	ev := readEvent(t, first)
	assert.Equal(t, "notification", ev.Name)
	var payload realtime.Event
	require.NoError(t, json.Unmarshal([]byte(ev.Data), &payload))
	assert.Equal(t, realtime.TableAnnouncements, payload.Table)
	assert.JSONEq(t, `{"id":"a1"}`, string(payload.Payload))

	_, second := openStream(t, ts.URL, authz)
	assert.Equal(t, "ready", readEvent(t, second).Name)
	assert.Equal(t, "closed", readEvent(t, first).Name)
	assert.Equal(t, 1, hub.Active())
}

func TestStream_Disabled(t *testing.T) {
	h := newTestServer(t, nil, nil, nil)

	rec := do(t, h, http.MethodGet, "/api/v1/notifications/stream", token(t, "user-1", "employee", "team-1"), "")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "REALTIME_SUBSCRIBE_FAILED", decodeError(t, rec).Error)
}
