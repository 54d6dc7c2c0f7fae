package notifications

import (
	"context"
	"errors"
	"fmt"
	"time"

	commonerrors "teamhub-notifications/internal/common/errors"
	"teamhub-notifications/internal/models"
)

var (
	ErrNotFound              = errors.New("NOTIFICATION_NOT_FOUND")
	ErrInvalidNotificationID = errors.New("INVALID_NOTIFICATION_ID")
	ErrInvalidInput          = errors.New("INVALID_NOTIFICATION_INPUT")
	ErrCreateFailed          = errors.New("NOTIFICATION_CREATE_FAILED")
	ErrDeleteFailed          = errors.New("NOTIFICATION_DELETE_FAILED")
)

// Store is the persistence port behind the fetchers and write paths.
type Store interface {
	ListAnnouncements(ctx context.Context, teamID string, now time.Time, limit int) ([]models.Announcement, error)
	ListPendingLeave(ctx context.Context, teamID string, limit int) ([]models.LeavePlan, error)
	ListPendingTimesheets(ctx context.Context, teamID string, limit int) ([]models.TimesheetSubmission, error)
	ListTaskNotifications(ctx context.Context, userID string, types []string, limit int) ([]models.TaskNotification, error)

	MarkTaskNotificationRead(ctx context.Context, id, userID string) error
	InsertAnnouncements(ctx context.Context, rows []models.Announcement) error
	DeleteAnnouncement(ctx context.Context, id string) error
	ListTeamIDs(ctx context.Context) ([]string, error)
}

// AsStandardError maps the package sentinels onto the shared error codes used
// by the API and the job workers.
func AsStandardError(err error) *commonerrors.StandardError {
	if stdErr, ok := commonerrors.As(err); ok {
		return stdErr
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return commonerrors.NewNotificationNotFoundError(err.Error())
	case errors.Is(err, ErrInvalidNotificationID):
		return commonerrors.NewInvalidNotificationIDError(err.Error())
	case errors.Is(err, ErrInvalidInput):
		return commonerrors.NewInvalidNotificationInputError(err.Error())
	case errors.Is(err, ErrCreateFailed):
		return commonerrors.NewNotificationCreateFailedError(err)
	case errors.Is(err, ErrDeleteFailed):
		return commonerrors.NewNotificationDeleteFailedError("", err)
	case errors.Is(err, context.DeadlineExceeded):
		return commonerrors.NewQueryTimeoutError(err.Error())
	default:
		return commonerrors.NewInternalError(err)
	}
}

func invalidInput(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
