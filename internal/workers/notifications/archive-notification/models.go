// internal/workers/notifications/archive-notification/models.go
package archivenotification

const (
	ModeArchive = "archive"
	ModeDelete  = "delete"
)

type Input struct {
	NotificationID string `json:"notificationId"`
	Mode           string `json:"mode,omitempty"` // archive (default) or delete
}

type Output struct {
	NotificationID string `json:"notificationId"`
	Mode           string `json:"mode"`
	Removed        bool   `json:"removed"`
}
