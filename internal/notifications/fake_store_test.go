package notifications

import (
	"context"
	"sync"
	"time"

	"teamhub-notifications/internal/models"
)

// fakeStore is an in-memory Store that counts every call.
type fakeStore struct {
	mu sync.Mutex

	announcements []models.Announcement
	leave         []models.LeavePlan
	timesheets    []models.TimesheetSubmission
	tasks         []models.TaskNotification
	teams         []string

	errs  map[string]error
	delay map[string]time.Duration
	calls map[string]int

	inserted []models.Announcement
	deleted  []string
	markRead []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		errs:  map[string]error{},
		delay: map[string]time.Duration{},
		calls: map[string]int{},
	}
}

func (f *fakeStore) enter(ctx context.Context, op string) error {
	f.mu.Lock()
	f.calls[op]++
	err, d := f.errs[op], f.delay[op]
	f.mu.Unlock()

	if d > 0 {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func (f *fakeStore) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeStore) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func (f *fakeStore) ListAnnouncements(ctx context.Context, teamID string, now time.Time, limit int) ([]models.Announcement, error) {
	if err := f.enter(ctx, "announcements"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Announcement
	for _, a := range f.announcements {
		if a.ExpiryDate.Before(now) {
			continue
		}
		if a.TeamID != nil && *a.TeamID != teamID {
			continue
		}
		out = append(out, a)
	}
	return capRows(out, limit), nil
}

func (f *fakeStore) ListPendingLeave(ctx context.Context, teamID string, limit int) ([]models.LeavePlan, error) {
	if err := f.enter(ctx, "leave"); err != nil {
		return nil, err
	}
	var out []models.LeavePlan
	for _, l := range f.leave {
		if l.Status == "pending" && (teamID == "" || l.TeamID == teamID) {
			out = append(out, l)
		}
	}
	return capRows(out, limit), nil
}

func (f *fakeStore) ListPendingTimesheets(ctx context.Context, teamID string, limit int) ([]models.TimesheetSubmission, error) {
	if err := f.enter(ctx, "timesheets"); err != nil {
		return nil, err
	}
	var out []models.TimesheetSubmission
	for _, ts := range f.timesheets {
		if ts.Status == "pending" && (teamID == "" || ts.TeamID == teamID) {
			out = append(out, ts)
		}
	}
	return capRows(out, limit), nil
}

func (f *fakeStore) ListTaskNotifications(ctx context.Context, userID string, types []string, limit int) ([]models.TaskNotification, error) {
	if err := f.enter(ctx, "tasks"); err != nil {
		return nil, err
	}
	var out []models.TaskNotification
	for _, n := range f.tasks {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	return capRows(out, limit), nil
}

func (f *fakeStore) MarkTaskNotificationRead(ctx context.Context, id, userID string) error {
	if err := f.enter(ctx, "markRead"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.tasks {
		if f.tasks[i].ID == id && f.tasks[i].UserID == userID {
			f.tasks[i].IsRead = true
			f.markRead = append(f.markRead, id)
			return nil
		}
	}
	return ErrNotFound
}

func (f *fakeStore) InsertAnnouncements(ctx context.Context, rows []models.Announcement) error {
	if err := f.enter(ctx, "insert"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inserted = append(f.inserted, rows...)
	f.announcements = append(f.announcements, rows...)
	return nil
}

func (f *fakeStore) DeleteAnnouncement(ctx context.Context, id string) error {
	if err := f.enter(ctx, "delete"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, a := range f.announcements {
		if a.ID == id {
			f.announcements = append(f.announcements[:i], f.announcements[i+1:]...)
			f.deleted = append(f.deleted, id)
			return nil
		}
	}
	return ErrNotFound
}

func (f *fakeStore) ListTeamIDs(ctx context.Context) ([]string, error) {
	if err := f.enter(ctx, "teams"); err != nil {
		return nil, err
	}
	return f.teams, nil
}

// pausingStore reads announcements and then blocks until release is closed,
// so a test can land a write between the read and the end of the fetch.
type pausingStore struct {
	*fakeStore
	read    chan struct{}
	release chan struct{}
	once    sync.Once
}

func newPausingStore(inner *fakeStore) *pausingStore {
	return &pausingStore{fakeStore: inner, read: make(chan struct{}), release: make(chan struct{})}
}

func (p *pausingStore) ListAnnouncements(ctx context.Context, teamID string, now time.Time, limit int) ([]models.Announcement, error) {
	rows, err := p.fakeStore.ListAnnouncements(ctx, teamID, now, limit)
	paused := false
	p.once.Do(func() { paused = true })
	if !paused {
		return rows, err
	}
	close(p.read)
	select {
	case <-p.release:
	case <-ctx.Done():
	}
	return rows, err
}

func capRows[T any](rows []T, limit int) []T {
	if limit > 0 && len(rows) > limit {
		return rows[:limit]
	}
	return rows
}

func strPtr(s string) *string { return &s }
