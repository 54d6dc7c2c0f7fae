package models

import "time"

// Announcement is a row of the announcements table. A nil TeamID makes the
// announcement visible to every team.
type Announcement struct {
	ID               string                 `json:"id"`
	Title            string                 `json:"title"`
	Content          string                 `json:"content"`
	TeamID           *string                `json:"team_id,omitempty"`
	CreatedBy        string                 `json:"created_by"`
	Priority         string                 `json:"priority"`
	NotificationType string                 `json:"notification_type,omitempty"`
	Metadata         map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt        time.Time              `json:"created_at"`
	ExpiryDate       time.Time              `json:"expiry_date"`
}

// TeamIDValue returns the team id or "" for global announcements.
func (a Announcement) TeamIDValue() string {
	if a.TeamID == nil {
		return ""
	}
	return *a.TeamID
}
