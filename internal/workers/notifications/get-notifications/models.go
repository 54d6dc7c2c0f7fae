// internal/workers/notifications/get-notifications/models.go
package getnotifications

import "teamhub-notifications/internal/notifications"

type Input struct {
	UserID   string `json:"userId"`
	Role     string `json:"role,omitempty"`
	TeamID   string `json:"teamId,omitempty"`
	Limit    int    `json:"limit,omitempty"`
	Page     int    `json:"page,omitempty"`
	Category string `json:"category,omitempty"`
	Priority string `json:"priority,omitempty"`
	Search   string `json:"search,omitempty"`
}

func (in Input) Query() notifications.Query {
	return notifications.Query{
		UserID:   in.UserID,
		Role:     in.Role,
		TeamID:   in.TeamID,
		Limit:    in.Limit,
		Page:     in.Page,
		Category: in.Category,
		Priority: in.Priority,
		Search:   in.Search,
	}
}

// Output mirrors the feed page. UrgentCount lets gateways branch on items
// that need attention without iterating the list.
type Output struct {
	Notifications []notifications.Notification `json:"notifications"`
	Total         int                          `json:"total"`
	UnreadCount   int                          `json:"unreadCount"`
	UrgentCount   int                          `json:"urgentCount"`
	HasMore       bool                         `json:"hasMore"`
}
