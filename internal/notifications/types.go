// Package notifications merges announcements, pending leave requests, pending
// timesheets and task notifications into one ranked feed per user.
package notifications

import (
	"strings"
	"time"
	"unicode/utf8"
)

// Source identifies the table a notification was synthesized from. It is also
// the id prefix.
type Source string

const (
	SourceAnnouncement Source = "announcement"
	SourceLeave        Source = "leave"
	SourceTimesheet    Source = "timesheet"
	SourceTask         Source = "task"
)

// Sources lists every source in fold order.
var Sources = []Source{SourceAnnouncement, SourceLeave, SourceTimesheet, SourceTask}

// ID builds the prefixed notification id for a source row.
func (s Source) ID(rowID string) string {
	return string(s) + "-" + rowID
}

// Synthesized reports whether the source has no per-user read state.
func (s Source) Synthesized() bool {
	return s != SourceTask
}

// SourceOf splits a notification id into its source and the row id.
func SourceOf(id string) (Source, string, bool) {
	for _, s := range Sources {
		if rowID, ok := strings.CutPrefix(id, string(s)+"-"); ok && rowID != "" {
			return s, rowID, true
		}
	}
	return "", "", false
}

type Type string

const (
	TypeAnnouncement        Type = "announcement"
	TypeLeaveRequest        Type = "leave_request"
	TypeTimesheet           Type = "timesheet"
	TypeTimesheetSubmission Type = "timesheet_submission"
	TypeTaskCreated         Type = "task_created"
	TypeTaskUpdated         Type = "task_updated"
	TypeTaskAssigned        Type = "task_assigned"
	TypeTaskComment         Type = "task_comment"
	TypeTaskStatusChange    Type = "task_status_change"
	TypeProjectUpdate       Type = "project_update"
	TypeSprintUpdate        Type = "sprint_update"
	TypeSystemAlert         Type = "system_alert"
	TypeMeeting             Type = "meeting"
	TypeAchievement         Type = "achievement"
	TypeUrgent              Type = "urgent"
	TypeTeamCommunication   Type = "team_communication"
)

// Types is the closed type enumeration.
var Types = []Type{
	TypeAnnouncement, TypeLeaveRequest, TypeTimesheet, TypeTimesheetSubmission,
	TypeTaskCreated, TypeTaskUpdated, TypeTaskAssigned, TypeTaskComment, TypeTaskStatusChange,
	TypeProjectUpdate, TypeSprintUpdate, TypeSystemAlert, TypeMeeting, TypeAchievement,
	TypeUrgent, TypeTeamCommunication,
}

func IsKnownType(t string) bool {
	for _, known := range Types {
		if string(known) == t {
			return true
		}
	}
	return false
}

// TaskTableTypes are the rows of the notifications table surfaced in the feed.
var TaskTableTypes = []string{string(TypeTaskAssigned), string(TypeTaskUpdated), string(TypeTaskComment)}

type Category string

const (
	CategoryAdministrative Category = "administrative"
	CategoryProject        Category = "project"
	CategoryTask           Category = "task"
	CategorySystem         Category = "system"
	CategoryCommunication  Category = "communication"
	CategoryAchievement    Category = "achievement"
)

type Priority string

const (
	PriorityLow      Priority = "Low"
	PriorityMedium   Priority = "Medium"
	PriorityHigh     Priority = "High"
	PriorityCritical Priority = "Critical"
)

var priorityRank = map[Priority]int{
	PriorityLow:      0,
	PriorityMedium:   1,
	PriorityHigh:     2,
	PriorityCritical: 3,
}

// ParsePriority accepts any casing and falls back to Medium.
func ParsePriority(s string) Priority {
	for p := range priorityRank {
		if strings.EqualFold(string(p), strings.TrimSpace(s)) {
			return p
		}
	}
	return PriorityMedium
}

// AtLeast reports whether p ranks at or above min.
func (p Priority) AtLeast(min Priority) bool {
	return priorityRank[p] >= priorityRank[min]
}

type Action string

const (
	ActionApprove  Action = "approve"
	ActionReject   Action = "reject"
	ActionView     Action = "view"
	ActionDismiss  Action = "dismiss"
	ActionMarkRead Action = "mark_read"
)

var sourceActions = map[Source][]Action{
	SourceAnnouncement: {ActionView, ActionDismiss},
	SourceLeave:        {ActionApprove, ActionReject, ActionView},
	SourceTimesheet:    {ActionApprove, ActionReject, ActionView},
	SourceTask:         {ActionView, ActionMarkRead},
}

// ActionsFor returns a copy of the verbs offered for items of a source.
func ActionsFor(s Source) []Action {
	return append([]Action(nil), sourceActions[s]...)
}

// Filter keys and priority keys shared with the UI. These literals are
// compared for equality by callers.
var (
	FilterCategoryKeys = []string{"all", "unread", "mention", "task", "project", "system", "achievement"}
	PriorityKeys       = []string{string(PriorityLow), string(PriorityMedium), string(PriorityHigh), string(PriorityCritical)}
)

const (
	FilterAll    = "all"
	FilterUnread = "unread"
)

// Notification is the unified feed item, built from one source row.
type Notification struct {
	ID        string      `json:"id"`
	Type      Type        `json:"type"`
	Category  Category    `json:"category"`
	Title     string      `json:"title"`
	Message   string      `json:"message"`
	CreatedAt time.Time   `json:"created_at"`
	Read      bool        `json:"read"`
	Priority  Priority    `json:"priority"`
	// Data is the source row (models.Announcement, models.LeavePlan,
	// models.TimesheetSubmission or models.TaskNotification) on a fresh
	// fetch. Feeds served from the cache carry the decoded JSON object
	// instead, a map[string]interface{} keyed by the row's JSON names.
	Data      interface{} `json:"data,omitempty"`
	Actions   []Action    `json:"actions"`
}

// Source returns the source encoded in the id prefix.
func (n Notification) Source() Source {
	s, _, _ := SourceOf(n.ID)
	return s
}

const DefaultMessageLength = 150

// truncate cuts s to max runes, ending in "..." when anything was dropped.
func truncate(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max]) + "..."
}
