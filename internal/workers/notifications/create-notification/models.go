// internal/workers/notifications/create-notification/models.go
package createnotification

import (
	"time"

	"teamhub-notifications/internal/notifications"
)

type Input struct {
	Title            string                  `json:"title"`
	Content          string                  `json:"content"`
	CreatedBy        string                  `json:"createdBy"`
	Recipients       string                  `json:"recipients,omitempty"`
	TeamIDs          []string                `json:"teamIds,omitempty"`
	Priority         string                  `json:"priority,omitempty"`
	NotificationType string                  `json:"notificationType,omitempty"`
	Channels         []notifications.Channel `json:"channels,omitempty"`
	Metadata         map[string]interface{}  `json:"metadata,omitempty"`
	ExpiryDate       *time.Time              `json:"expiryDate,omitempty"`
}

// Notification defaults recipients to the listed teams when only teamIds is
// given.
func (in Input) Notification() notifications.AdvancedNotification {
	recipients := in.Recipients
	if recipients == "" && len(in.TeamIDs) > 0 {
		recipients = notifications.RecipientsTeams
	}
	return notifications.AdvancedNotification{
		Title:            in.Title,
		Content:          in.Content,
		CreatedBy:        in.CreatedBy,
		Recipients:       recipients,
		TeamIDs:          in.TeamIDs,
		Priority:         in.Priority,
		NotificationType: in.NotificationType,
		Channels:         in.Channels,
		Metadata:         in.Metadata,
		ExpiryDate:       in.ExpiryDate,
	}
}

type Output struct {
	IDs       []string                      `json:"ids"`
	Count     int                           `json:"count"`
	Delivery  *notifications.DeliveryReport `json:"delivery,omitempty"`
	Indexed   bool                          `json:"indexed"`
	Published bool                          `json:"published"`
	Warnings  []string                      `json:"warnings,omitempty"`
}
