// Package realtime pushes database change events on the notification source
// tables to subscribed users.
package realtime

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Watched tables. Only inserts on these reach subscribers.
const (
	TableLeavePlans           = "leave_plans"
	TableAnnouncements        = "announcements"
	TableTimesheetSubmissions = "timesheet_submissions"
)

var WatchedTables = []string{TableLeavePlans, TableAnnouncements, TableTimesheetSubmissions}

const OperationInsert = "INSERT"

// RawEvent is one change as emitted by the database.
type RawEvent struct {
	Table     string          `json:"table"`
	Operation string          `json:"op"`
	Payload   json.RawMessage `json:"row"`
}

// ChangeFeed is a stream of database changes. Events is closed once the feed
// has stopped.
type ChangeFeed interface {
	Events() <-chan RawEvent
	Close() error
}

// ParseNotification decodes a pg_notify payload produced by the installed
// triggers.
func ParseNotification(payload string) (RawEvent, error) {
	var ev RawEvent
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		return RawEvent{}, fmt.Errorf("decode change payload: %w", err)
	}
	if ev.Table == "" {
		return RawEvent{}, fmt.Errorf("decode change payload: missing table")
	}
	ev.Operation = strings.ToUpper(ev.Operation)
	return ev, nil
}

func isWatched(ev RawEvent) bool {
	if ev.Operation != OperationInsert {
		return false
	}
	for _, t := range WatchedTables {
		if ev.Table == t {
			return true
		}
	}
	return false
}
