package notifications

import (
	"context"
	"fmt"
	"strings"
	"time"

	"teamhub-notifications/internal/models"
)

// FetchResult is the outcome of one source query. Err is set instead of
// panicking or returning early so that the merge step decides how to degrade.
type FetchResult struct {
	Source Source
	Items  []Notification
	Err    error
}

// FetcherConfig tunes message building.
type FetcherConfig struct {
	MessageMaxLength int
	LeaveUrgencyDays int
}

// Fetcher adapts rows of every source table into Notifications.
type Fetcher struct {
	store  Store
	config FetcherConfig
	now    func() time.Time
}

func NewFetcher(store Store, config FetcherConfig, now func() time.Time) *Fetcher {
	if config.MessageMaxLength <= 0 {
		config.MessageMaxLength = DefaultMessageLength
	}
	if config.LeaveUrgencyDays <= 0 {
		config.LeaveUrgencyDays = 3
	}
	if now == nil {
		now = time.Now
	}
	return &Fetcher{store: store, config: config, now: now}
}

// CanReviewRequests reports whether role sees pending leave and timesheets.
func CanReviewRequests(role string) bool {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case "manager", "admin":
		return true
	default:
		return false
	}
}

// reviewsRequests reports whether pending leave and timesheets are fetched for
// the caller. A manager reviews their own team only, so a manager without a
// team gets none. An admin without a team reviews every team.
func reviewsRequests(role, teamID string) bool {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case "admin":
		return true
	case "manager":
		return teamID != ""
	default:
		return false
	}
}

// FetchAnnouncements returns unexpired announcements of the team plus global
// ones. Without a user or a team nothing is queried.
func (f *Fetcher) FetchAnnouncements(ctx context.Context, userID, teamID string, limit int) FetchResult {
	res := FetchResult{Source: SourceAnnouncement}
	if userID == "" || teamID == "" {
		return res
	}

	rows, err := f.store.ListAnnouncements(ctx, teamID, f.now(), limit)
	if err != nil {
		res.Err = err
		return res
	}
	res.Items = make([]Notification, 0, len(rows))
	for _, a := range rows {
		res.Items = append(res.Items, f.FromAnnouncement(a))
	}
	return res
}

// FromAnnouncement classifies and adapts one announcement row.
func (f *Fetcher) FromAnnouncement(a models.Announcement) Notification {
	t := DetectAnnouncementType(ClassifierInput{
		Title:            a.Title,
		Content:          a.Content,
		NotificationType: a.NotificationType,
		Metadata:         a.Metadata,
	})
	return Notification{
		ID:        SourceAnnouncement.ID(a.ID),
		Type:      t,
		Category:  CategoryFor(t),
		Title:     a.Title,
		Message:   truncate(a.Content, f.config.MessageMaxLength),
		CreatedAt: a.CreatedAt,
		Priority:  ParsePriority(a.Priority),
		Data:      a,
		Actions:   ActionsFor(SourceAnnouncement),
	}
}

func (f *Fetcher) FetchLeaveRequests(ctx context.Context, teamID string, limit int) FetchResult {
	res := FetchResult{Source: SourceLeave}

	rows, err := f.store.ListPendingLeave(ctx, teamID, limit)
	if err != nil {
		res.Err = err
		return res
	}

	today := dateOf(f.now())
	urgency := time.Duration(f.config.LeaveUrgencyDays) * 24 * time.Hour

	res.Items = make([]Notification, 0, len(rows))
	for _, l := range rows {
		start, end := dateOf(l.StartDate), dateOf(l.EndDate)
		days := LeaveDays(start, end)

		priority := PriorityMedium
		if start.Sub(today) <= urgency {
			priority = PriorityHigh
		}

		employee := l.EmployeeName
		if employee == "" {
			employee = "An employee"
		}
		unit := "days"
		if days == 1 {
			unit = "day"
		}

		res.Items = append(res.Items, Notification{
			ID:       SourceLeave.ID(l.ID),
			Type:     TypeLeaveRequest,
			Category: CategoryFor(TypeLeaveRequest),
			Title:    fmt.Sprintf("Leave request: %s", leaveTypeLabel(l.LeaveType)),
			Message: truncate(fmt.Sprintf("%s requested %d %s off from %s to %s",
				employee, days, unit, start.Format("2006-01-02"), end.Format("2006-01-02")),
				f.config.MessageMaxLength),
			CreatedAt: l.CreatedAt,
			Priority:  priority,
			Data:      l,
			Actions:   ActionsFor(SourceLeave),
		})
	}
	return res
}

func (f *Fetcher) FetchTimesheets(ctx context.Context, teamID string, limit int) FetchResult {
	res := FetchResult{Source: SourceTimesheet}

	rows, err := f.store.ListPendingTimesheets(ctx, teamID, limit)
	if err != nil {
		res.Err = err
		return res
	}

	res.Items = make([]Notification, 0, len(rows))
	for _, ts := range rows {
		employee := ts.EmployeeName
		if employee == "" {
			employee = "An employee"
		}
		res.Items = append(res.Items, Notification{
			ID:       SourceTimesheet.ID(ts.ID),
			Type:     TypeTimesheet,
			Category: CategoryFor(TypeTimesheet),
			Title:    "Timesheet submission",
			Message: truncate(fmt.Sprintf("%s submitted a timesheet for the week of %s (%.1f hours)",
				employee, dateOf(ts.WeekStart).Format("2006-01-02"), ts.TotalHours),
				f.config.MessageMaxLength),
			CreatedAt: ts.CreatedAt,
			Priority:  PriorityMedium,
			Data:      ts,
			Actions:   ActionsFor(SourceTimesheet),
		})
	}
	return res
}

// FetchTaskNotifications reads the user's rows of the notifications table.
// role and teamID do not narrow the query; every role receives its own task
// notifications.
func (f *Fetcher) FetchTaskNotifications(ctx context.Context, userID, role, teamID string, limit int) FetchResult {
	res := FetchResult{Source: SourceTask}
	if userID == "" {
		return res
	}

	rows, err := f.store.ListTaskNotifications(ctx, userID, TaskTableTypes, limit)
	if err != nil {
		res.Err = err
		return res
	}

	res.Items = make([]Notification, 0, len(rows))
	for _, n := range rows {
		t := Type(n.Type)
		if !IsKnownType(n.Type) {
			t = TypeTaskUpdated
		}
		res.Items = append(res.Items, Notification{
			ID:        SourceTask.ID(n.ID),
			Type:      t,
			Category:  CategoryFor(t),
			Title:     n.Title,
			Message:   truncate(n.Message, f.config.MessageMaxLength),
			CreatedAt: n.CreatedAt,
			Read:      n.IsRead,
			Priority:  ParsePriority(n.Priority),
			Data:      n,
			Actions:   ActionsFor(SourceTask),
		})
	}
	return res
}

// LeaveDays counts calendar days from start to end, both inclusive.
func LeaveDays(start, end time.Time) int {
	days := int(dateOf(end).Sub(dateOf(start)).Hours()/24) + 1
	if days < 1 {
		return 1
	}
	return days
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func leaveTypeLabel(s string) string {
	s = strings.TrimSpace(strings.ReplaceAll(s, "_", " "))
	if s == "" {
		return "leave"
	}
	return s
}
