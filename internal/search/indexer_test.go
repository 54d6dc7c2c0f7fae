package search

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"teamhub-notifications/internal/common/logger"
	"teamhub-notifications/internal/models"
	"teamhub-notifications/internal/notifications"
)

// ==========================
// Test Helper Functions
// ==========================

type recordedRequest struct {
	Method string
	Path   string
	Body   string
}

type fakeES struct {
	mu       sync.Mutex
	requests []recordedRequest
	respond  func(r *http.Request, body string) (int, string)
}

func (f *fakeES) handler(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.requests = append(f.requests, recordedRequest{Method: r.Method, Path: r.URL.Path, Body: string(body)})
	f.mu.Unlock()

	status, payload := f.respond(r, string(body))
	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(payload))
}

func newTestIndexer(t *testing.T, respond func(r *http.Request, body string) (int, string)) (*Indexer, *fakeES) {
	fake := &fakeES{respond: respond}
	srv := httptest.NewServer(http.HandlerFunc(fake.handler))
	t.Cleanup(srv.Close)

	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{srv.URL}})
	require.NoError(t, err)
	return NewIndexer(client, "notifications-test", logger.NewTestLogger(t)), fake
}

func sampleNotification(id, team string) notifications.Notification {
	a := models.Announcement{ID: id, Title: "Sprint 5 started", CreatedBy: "admin-1"}
	if team != "" {
		a.TeamID = &team
	}
	return notifications.Notification{
		ID:        notifications.SourceAnnouncement.ID(id),
		Type:      notifications.TypeSprintUpdate,
		Category:  notifications.CategoryProject,
		Title:     a.Title,
		Message:   "Kickoff at 10",
		Priority:  notifications.PriorityHigh,
		CreatedAt: time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC),
		Data:      a,
	}
}

// ==========================
// Index
// ==========================

func TestIndexer_Index(t *testing.T) {
	ix, fake := newTestIndexer(t, func(r *http.Request, body string) (int, string) {
		return http.StatusOK, `{"took":3,"errors":false,"items":[{"index":{"_id":"announcement-a1","status":201}},{"index":{"_id":"announcement-a2","status":201}}]}`
	})

	err := ix.Index(context.Background(), []notifications.Notification{
		sampleNotification("a1", "team-1"),
		sampleNotification("a2", ""),
	})
	require.NoError(t, err)

	require.Len(t, fake.requests, 1)
	req := fake.requests[0]
	assert.Equal(t, "/_bulk", req.Path)

	var lines []map[string]interface{}
	sc := bufio.NewScanner(strings.NewReader(req.Body))
	for sc.Scan() {
		var m map[string]interface{}
		require.NoError(t, json.Unmarshal(sc.Bytes(), &m))
		lines = append(lines, m)
	}
	require.Len(t, lines, 4)
	meta := lines[0]["index"].(map[string]interface{})
	assert.Equal(t, "notifications-test", meta["_index"])
	assert.Equal(t, "announcement-a1", meta["_id"])
	assert.Equal(t, "team-1", lines[1]["teamId"])
	assert.Equal(t, "admin-1", lines[1]["createdBy"])
	_, hasTeam := lines[3]["teamId"]
	assert.False(t, hasTeam)
}

func TestIndexer_Index_RejectedDocuments(t *testing.T) {
	ix, _ := newTestIndexer(t, func(r *http.Request, body string) (int, string) {
		return http.StatusOK, `{"errors":true,"items":[{"index":{"_id":"announcement-a1","status":400}}]}`
	})

	err := ix.Index(context.Background(), []notifications.Notification{sampleNotification("a1", "team-1")})

	assert.ErrorIs(t, err, ErrIndexFailed)
	assert.Contains(t, err.Error(), "1 of 1")
}

func TestIndexer_Index_Empty(t *testing.T) {
	ix, fake := newTestIndexer(t, func(r *http.Request, body string) (int, string) {
		return http.StatusOK, `{}`
	})

	require.NoError(t, ix.Index(context.Background(), nil))
	assert.Empty(t, fake.requests)
}

// ==========================
// Remove and EnsureIndex
// ==========================

func TestIndexer_Remove(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr bool
	}{
		{name: "deleted", status: http.StatusOK},
		{name: "already gone", status: http.StatusNotFound},
		{name: "server error", status: http.StatusInternalServerError, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ix, fake := newTestIndexer(t, func(r *http.Request, body string) (int, string) {
				return tt.status, `{"result":"ok"}`
			})

			err := ix.Remove(context.Background(), "announcement-a1")
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrIndexFailed)
			} else {
				assert.NoError(t, err)
			}
			require.NotEmpty(t, fake.requests)
			assert.Equal(t, http.MethodDelete, fake.requests[0].Method)
			assert.Equal(t, "/notifications-test/_doc/announcement-a1", fake.requests[0].Path)
		})
	}
}

func TestIndexer_EnsureIndex(t *testing.T) {
	ix, fake := newTestIndexer(t, func(r *http.Request, body string) (int, string) {
		if r.Method == http.MethodHead {
			return http.StatusNotFound, ``
		}
		return http.StatusOK, `{"acknowledged":true}`
	})

	require.NoError(t, ix.EnsureIndex(context.Background()))

	require.Len(t, fake.requests, 2)
	assert.Equal(t, http.MethodPut, fake.requests[1].Method)
	assert.Contains(t, fake.requests[1].Body, `"teamId"`)
}

func TestIndexer_EnsureIndex_Exists(t *testing.T) {
	ix, fake := newTestIndexer(t, func(r *http.Request, body string) (int, string) {
		return http.StatusOK, ``
	})

	require.NoError(t, ix.EnsureIndex(context.Background()))
	assert.Len(t, fake.requests, 1)
}

// ==========================
// Search
// ==========================

func TestIndexer_Search(t *testing.T) {
	ix, fake := newTestIndexer(t, func(r *http.Request, body string) (int, string) {
		return http.StatusOK, `{
			"hits": {
				"total": {"value": 1},
				"hits": [{"_id": "announcement-a1", "_score": 1.7,
					"_source": {"id": "announcement-a1", "type": "sprint_update", "title": "Sprint 5 started", "teamId": "team-1"}}]
			}
		}`
	})

	res, err := ix.Search(context.Background(), "team-1", "sprint", 500)
	require.NoError(t, err)

	assert.Equal(t, int64(1), res.Total)
	require.Len(t, res.Hits, 1)
	assert.Equal(t, "announcement-a1", res.Hits[0].ID)
	assert.Equal(t, 1.7, res.Hits[0].Score)

	require.Len(t, fake.requests, 1)
	assert.Equal(t, "/notifications-test/_search", fake.requests[0].Path)

	var sent map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(fake.requests[0].Body), &sent))
	assert.Equal(t, float64(20), sent["size"])
	assert.Contains(t, fake.requests[0].Body, `"teamId":"team-1"`)
	assert.Contains(t, fake.requests[0].Body, `"multi_match"`)
}

func TestIndexer_Search_Error(t *testing.T) {
	ix, _ := newTestIndexer(t, func(r *http.Request, body string) (int, string) {
		return http.StatusBadRequest, `{"error":{"type":"parsing_exception"}}`
	})

	_, err := ix.Search(context.Background(), "", "x", 10)
	assert.ErrorIs(t, err, ErrSearchFailed)
}
