package notifications

import (
	"sort"
	"strings"

	"teamhub-notifications/internal/common/logger"
	"teamhub-notifications/internal/common/metrics"
)

// Query is the caller's feed request.
type Query struct {
	UserID   string `json:"userId"`
	Role     string `json:"role"`
	TeamID   string `json:"teamId"`
	Limit    int    `json:"limit"`
	Page     int    `json:"page"`
	Category string `json:"category,omitempty"`
	Priority string `json:"priority,omitempty"`
	Search   string `json:"search,omitempty"`
}

// Normalize clamps page and limit.
func (q Query) Normalize(defaultLimit, maxLimit int) Query {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = defaultLimit
	}
	if maxLimit > 0 && q.Limit > maxLimit {
		q.Limit = maxLimit
	}
	return q
}

func (q Query) Offset() int {
	return (q.Page - 1) * q.Limit
}

// Window is the number of merged items needed to serve the page.
func (q Query) Window() int {
	return q.Offset() + q.Limit
}

// Page is the feed response. Total and HasMore describe the merged list
// before category, priority and search filters are applied.
type Page struct {
	Notifications []Notification `json:"notifications"`
	Total         int            `json:"total"`
	UnreadCount   int            `json:"unreadCount"`
	HasMore       bool           `json:"hasMore"`
}

// Merge folds the fetch results in order, logging and counting failed sources
// as empty, and sorts the concatenation newest first. Equal timestamps keep
// fold order.
func Merge(results []FetchResult, log logger.Logger) []Notification {
	var merged []Notification
	for _, r := range results {
		if r.Err != nil {
			metrics.SourceFetchTotal.WithLabelValues(string(r.Source), "error").Inc()
			if log != nil {
				log.Warn("notification source failed, treating as empty", map[string]interface{}{
					"source": string(r.Source),
					"error":  r.Err,
				})
			}
			continue
		}
		metrics.SourceFetchTotal.WithLabelValues(string(r.Source), "ok").Inc()
		merged = append(merged, r.Items...)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].CreatedAt.After(merged[j].CreatedAt)
	})
	return merged
}

// Paginate slices the merged list for the requested page and then filters
// that page.
func Paginate(merged []Notification, q Query) *Page {
	total := len(merged)
	unread := 0
	for _, n := range merged {
		if !n.Read {
			unread++
		}
	}

	start := q.Offset()
	if start > total {
		start = total
	}
	end := start + q.Limit
	if end > total {
		end = total
	}

	page := make([]Notification, 0, end-start)
	for _, n := range merged[start:end] {
		if matches(n, q) {
			page = append(page, n)
		}
	}

	return &Page{
		Notifications: page,
		Total:         total,
		UnreadCount:   unread,
		HasMore:       start+len(page) < total,
	}
}

// Aggregate is Merge followed by Paginate.
func Aggregate(results []FetchResult, q Query, log logger.Logger) *Page {
	return Paginate(Merge(results, log), q)
}

func matches(n Notification, q Query) bool {
	switch c := q.Category; {
	case c == "" || c == FilterAll:
	case c == FilterUnread:
		if n.Read {
			return false
		}
	default:
		if string(n.Category) != c {
			return false
		}
	}

	if p := q.Priority; p != "" && p != FilterAll && string(n.Priority) != p {
		return false
	}

	if s := strings.ToLower(strings.TrimSpace(q.Search)); s != "" {
		if !strings.Contains(strings.ToLower(n.Title), s) && !strings.Contains(strings.ToLower(n.Message), s) {
			return false
		}
	}
	return true
}
