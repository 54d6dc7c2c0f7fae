package notifications

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"teamhub-notifications/internal/common/logger"
)

// ==========================
// Test Helper Functions
// ==========================

var baseTime = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

func item(id string, ageMinutes int, read bool, category Category, priority Priority, title string) Notification {
	return Notification{
		ID:        id,
		Title:     title,
		Message:   title + " body",
		CreatedAt: baseTime.Add(-time.Duration(ageMinutes) * time.Minute),
		Read:      read,
		Category:  category,
		Priority:  priority,
	}
}

func ids(items []Notification) []string {
	out := make([]string, len(items))
	for i, n := range items {
		out[i] = n.ID
	}
	return out
}

// ==========================
// Merge
// ==========================

func TestMerge_SortsNewestFirst(t *testing.T) {
	results := []FetchResult{
		{Source: SourceAnnouncement, Items: []Notification{item("announcement-1", 30, false, CategoryAdministrative, PriorityLow, "a")}},
		{Source: SourceLeave, Items: []Notification{item("leave-1", 5, false, CategoryAdministrative, PriorityHigh, "l")}},
		{Source: SourceTask, Items: []Notification{item("task-1", 10, true, CategoryTask, PriorityMedium, "t")}},
	}

	merged := Merge(results, logger.NewTestLogger(t))

	assert.Equal(t, []string{"leave-1", "task-1", "announcement-1"}, ids(merged))
	for i := 1; i < len(merged); i++ {
		assert.False(t, merged[i].CreatedAt.After(merged[i-1].CreatedAt))
	}
}

func TestMerge_EqualTimestampsKeepFoldOrder(t *testing.T) {
	results := []FetchResult{
		{Source: SourceAnnouncement, Items: []Notification{item("announcement-1", 0, false, "", PriorityLow, "a")}},
		{Source: SourceLeave, Items: []Notification{item("leave-1", 0, false, "", PriorityLow, "l")}},
		{Source: SourceTimesheet, Items: []Notification{item("timesheet-1", 0, false, "", PriorityLow, "s")}},
	}

	merged := Merge(results, nil)

	assert.Equal(t, []string{"announcement-1", "leave-1", "timesheet-1"}, ids(merged))
}

func TestMerge_FailedSourceIsEmpty(t *testing.T) {
	results := []FetchResult{
		{Source: SourceAnnouncement, Err: errors.New("connection refused")},
		{Source: SourceTask, Items: []Notification{item("task-1", 1, false, CategoryTask, PriorityLow, "t")}},
	}

	merged := Merge(results, logger.NewTestLogger(t))

	assert.Equal(t, []string{"task-1"}, ids(merged))
}

func TestMerge_AllSourcesFailed(t *testing.T) {
	results := []FetchResult{
		{Source: SourceAnnouncement, Err: errors.New("boom")},
		{Source: SourceTask, Err: errors.New("boom")},
	}

	page := Aggregate(results, Query{Page: 1, Limit: 20}, logger.NewTestLogger(t))

	assert.Empty(t, page.Notifications)
	assert.Equal(t, 0, page.Total)
	assert.False(t, page.HasMore)
}

// ==========================
// Paginate and filters
// ==========================

func sampleFeed() []Notification {
	return []Notification{
		item("task-1", 1, false, CategoryTask, PriorityHigh, "Deploy task"),
		item("announcement-1", 2, false, CategoryAdministrative, PriorityLow, "Office closed"),
		item("task-2", 3, true, CategoryTask, PriorityMedium, "Review task"),
		item("leave-1", 4, false, CategoryAdministrative, PriorityHigh, "Leave request"),
		item("announcement-2", 5, false, CategoryProject, PriorityCritical, "Sprint 3 started"),
	}
}

func TestPaginate(t *testing.T) {
	tests := []struct {
		name           string
		query          Query
		validateOutput func(t *testing.T, page *Page)
	}{
		{
			name:  "first page",
			query: Query{Page: 1, Limit: 2},
			validateOutput: func(t *testing.T, page *Page) {
				assert.Equal(t, []string{"task-1", "announcement-1"}, ids(page.Notifications))
				assert.Equal(t, 5, page.Total)
				assert.Equal(t, 4, page.UnreadCount)
				assert.True(t, page.HasMore)
			},
		},
		{
			name:  "last partial page",
			query: Query{Page: 3, Limit: 2},
			validateOutput: func(t *testing.T, page *Page) {
				assert.Equal(t, []string{"announcement-2"}, ids(page.Notifications))
				assert.False(t, page.HasMore)
			},
		},
		{
			name:  "page past the end",
			query: Query{Page: 9, Limit: 2},
			validateOutput: func(t *testing.T, page *Page) {
				assert.Empty(t, page.Notifications)
				assert.NotNil(t, page.Notifications)
				assert.Equal(t, 5, page.Total)
				assert.False(t, page.HasMore)
			},
		},
		{
			name:  "unread filter applies to the page only",
			query: Query{Page: 1, Limit: 3, Category: FilterUnread},
			validateOutput: func(t *testing.T, page *Page) {
				assert.Equal(t, []string{"task-1", "announcement-1"}, ids(page.Notifications))
				assert.Equal(t, 5, page.Total)
				assert.True(t, page.HasMore)
			},
		},
		{
			name:  "category filter",
			query: Query{Page: 1, Limit: 5, Category: string(CategoryTask)},
			validateOutput: func(t *testing.T, page *Page) {
				assert.Equal(t, []string{"task-1", "task-2"}, ids(page.Notifications))
			},
		},
		{
			name:  "all category is a no-op",
			query: Query{Page: 1, Limit: 5, Category: FilterAll, Priority: FilterAll},
			validateOutput: func(t *testing.T, page *Page) {
				assert.Len(t, page.Notifications, 5)
			},
		},
		{
			name:  "priority filter",
			query: Query{Page: 1, Limit: 5, Priority: string(PriorityHigh)},
			validateOutput: func(t *testing.T, page *Page) {
				assert.Equal(t, []string{"task-1", "leave-1"}, ids(page.Notifications))
			},
		},
		{
			name:  "search is case-insensitive over title and message",
			query: Query{Page: 1, Limit: 5, Search: "  TASK "},
			validateOutput: func(t *testing.T, page *Page) {
				assert.Equal(t, []string{"task-1", "task-2"}, ids(page.Notifications))
			},
		},
		{
			name:  "filters combine",
			query: Query{Page: 1, Limit: 5, Category: string(CategoryTask), Priority: string(PriorityMedium), Search: "review"},
			validateOutput: func(t *testing.T, page *Page) {
				assert.Equal(t, []string{"task-2"}, ids(page.Notifications))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page := Paginate(sampleFeed(), tt.query)
			require.NotNil(t, page)
			tt.validateOutput(t, page)
		})
	}
}

func TestQuery_Normalize(t *testing.T) {
	q := Query{Page: 0, Limit: 0}.Normalize(20, 100)
	assert.Equal(t, 1, q.Page)
	assert.Equal(t, 20, q.Limit)

	q = Query{Page: 3, Limit: 500}.Normalize(20, 100)
	assert.Equal(t, 100, q.Limit)
	assert.Equal(t, 200, q.Offset())
	assert.Equal(t, 300, q.Window())

	q = Query{Page: -4, Limit: -1}.Normalize(10, 0)
	assert.Equal(t, 1, q.Page)
	assert.Equal(t, 10, q.Limit)
	assert.Equal(t, 0, q.Offset())
}
