//go:build e2e

// test/e2e/e2e_test.go
package e2e

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"teamhub-notifications/internal/common/config"
	"teamhub-notifications/internal/common/database"
	"teamhub-notifications/internal/common/logger"
	"teamhub-notifications/internal/notifications"
	"teamhub-notifications/internal/realtime"
)

// ==========================
// 1. Environment
// ==========================

type env struct {
	cfg     *config.Config
	pg      *database.PostgresClient
	redis   *database.RedisClient
	store   *notifications.PostgresStore
	service *notifications.Service
	run     string
}

func setup(t *testing.T) *env {
	t.Helper()

	cfg, err := config.Load()
	require.NoError(t, err)

	if host := os.Getenv("E2E_POSTGRES_HOST"); host != "" {
		cfg.Database.Postgres.Host = host
	}
	if addr := os.Getenv("E2E_REDIS_ADDRESS"); addr != "" {
		cfg.Database.Redis.Address = addr
	}

	ctx := context.Background()
	log := logger.NewTestLogger(t)

	pg, err := database.NewPostgres(cfg.Database.Postgres)
	require.NoError(t, err, "PostgreSQL client creation failed")
	require.NoError(t, pg.Ping(ctx), "PostgreSQL ping failed")
	t.Cleanup(func() { pg.Close() })

	rdb := database.NewRedis(cfg.Database.Redis)
	require.NoError(t, rdb.Ping(ctx), "Redis ping failed")
	t.Cleanup(func() { rdb.Close() })

	store := notifications.NewPostgresStore(pg.DB, 5*time.Second)
	require.NoError(t, store.EnsureSchema(ctx))
	require.NoError(t, realtime.InstallTriggers(ctx, pg.DB))

	e := &env{
		cfg:   cfg,
		pg:    pg,
		redis: rdb,
		store: store,
		run:   uuid.NewString()[:8],
	}
	e.service = notifications.NewService(notifications.Config{SourceTimeout: 5 * time.Second}, notifications.Dependencies{
		Store:  store,
		Cache:  notifications.NewFeedCache(rdb.Client, 30*time.Second, log),
		Logger: log,
	})

	seed(t, pg.DB, e.run)
	t.Cleanup(func() { cleanup(pg.DB, e.run) })
	return e
}

func (e *env) id(name string) string { return fmt.Sprintf("%s-%s", name, e.run) }

// ==========================
// 2. Test Data
// ==========================

func seed(t *testing.T, db *sql.DB, run string) {
	t.Helper()
	id := func(name string) string { return fmt.Sprintf("%s-%s", name, run) }

	stmts := []struct {
		query string
		args  []interface{}
	}{
		{`INSERT INTO teams (id, name) VALUES ($1, 'Platform')`, []interface{}{id("team")}},
		{`INSERT INTO users (id, full_name, email, role, team_id) VALUES ($1, 'Morgan Manager', 'morgan@example.com', 'manager', $2)`,
			[]interface{}{id("manager"), id("team")}},
		{`INSERT INTO users (id, full_name, email, role, team_id) VALUES ($1, 'Eli Employee', 'eli@example.com', 'employee', $2)`,
			[]interface{}{id("employee"), id("team")}},
		{`INSERT INTO leave_plans (id, user_id, team_id, leave_type, start_date, end_date, reason, created_at)
		  VALUES ($1, $2, $3, 'vacation', CURRENT_DATE + 2, CURRENT_DATE + 4, 'family trip', NOW() - INTERVAL '2 hours')`,
			[]interface{}{id("leave"), id("employee"), id("team")}},
		{`INSERT INTO timesheet_submissions (id, user_id, team_id, week_start, total_hours, created_at)
		  VALUES ($1, $2, $3, CURRENT_DATE - 7, 40, NOW() - INTERVAL '3 hours')`,
			[]interface{}{id("timesheet"), id("employee"), id("team")}},
		{`INSERT INTO notifications (id, user_id, type, title, message, created_at)
		  VALUES ($1, $2, 'task_assigned', 'Review PR', 'Please review the migration', NOW() - INTERVAL '1 hour')`,
			[]interface{}{id("task"), id("employee")}},
	}
	for _, s := range stmts {
		_, err := db.Exec(s.query, s.args...)
		require.NoError(t, err, s.query)
	}
}

func cleanup(db *sql.DB, run string) {
	suffix := "%-" + run
	for _, q := range []string{
		`DELETE FROM notifications WHERE id LIKE $1`,
		`DELETE FROM timesheet_submissions WHERE id LIKE $1`,
		`DELETE FROM leave_plans WHERE id LIKE $1`,
		`DELETE FROM announcements WHERE team_id LIKE $1`,
		`DELETE FROM users WHERE id LIKE $1`,
		`DELETE FROM teams WHERE id LIKE $1`,
	} {
		_, _ = db.Exec(q, suffix)
	}
}

// ==========================
// 3. Scenarios
// ==========================

func TestFeedAndWrites(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	created, err := e.service.CreateNotification(ctx, notifications.NewNotification{
		Title:            "Sprint 12 kickoff",
		Content:          "Planning at 10:00 in room B",
		TeamID:           e.id("team"),
		CreatedBy:        e.id("manager"),
		Priority:         "High",
		NotificationType: "sprint_update",
	})
	require.NoError(t, err)
	require.Len(t, created.IDs, 1)

	managerFeed, err := e.service.GetNotifications(ctx, notifications.Query{
		UserID: e.id("manager"), Role: "manager", TeamID: e.id("team"), Limit: 50,
	})
	require.NoError(t, err)
	ids := map[string]bool{}
	for _, n := range managerFeed.Notifications {
		ids[n.ID] = true
	}
	assert.True(t, ids[created.IDs[0]], "announcement in manager feed")
	assert.True(t, ids["leave-"+e.id("leave")], "leave request in manager feed")
	assert.True(t, ids["timesheet-"+e.id("timesheet")], "timesheet in manager feed")

	employeeFeed, err := e.service.GetNotifications(ctx, notifications.Query{
		UserID: e.id("employee"), Role: "employee", TeamID: e.id("team"), Limit: 50,
	})
	require.NoError(t, err)
	var sawTask bool
	for _, n := range employeeFeed.Notifications {
		assert.NotEqual(t, notifications.TypeLeaveRequest, n.Type)
		if n.ID == "task-"+e.id("task") {
			sawTask = true
			assert.False(t, n.Read)
		}
	}
	assert.True(t, sawTask, "task notification in employee feed")

	ok, err := e.service.MarkAsRead(ctx, "task-"+e.id("task"), e.id("employee"))
	require.NoError(t, err)
	assert.True(t, ok)

	var isRead bool
	require.NoError(t, e.pg.DB.QueryRow(`SELECT is_read FROM notifications WHERE id = $1`, e.id("task")).Scan(&isRead))
	assert.True(t, isRead)

	require.NoError(t, e.service.DeleteNotification(ctx, created.IDs[0]))
	err = e.service.DeleteNotification(ctx, created.IDs[0])
	assert.ErrorIs(t, err, notifications.ErrNotFound)
}

func TestRealtimeInsertReachesSubscriber(t *testing.T) {
	e := setup(t)
	log := logger.NewTestLogger(t)

	feed, err := realtime.NewPGFeed(e.pg.DSN(), realtime.PGListenerConfig{}, log)
	require.NoError(t, err)
	hub := realtime.NewHub(feed, log)
	defer hub.Dispose()

	received := make(chan realtime.Event, 4)
	_, err = hub.Subscribe(e.id("manager"), "manager", e.id("team"), func(ev realtime.Event) {
		received <- ev
	})
	require.NoError(t, err)

	_, err = e.service.CreateNotification(context.Background(), notifications.NewNotification{
		Title:     "Fire drill at 15:00",
		TeamID:    e.id("team"),
		CreatedBy: e.id("manager"),
	})
	require.NoError(t, err)

	select {
	case ev := <-received:
		assert.Equal(t, realtime.TableAnnouncements, ev.Table)
		assert.Equal(t, realtime.ChannelKey(e.id("manager")), ev.Channel)
	case <-time.After(10 * time.Second):
		t.Fatal("no realtime event within 10s")
	}
}
