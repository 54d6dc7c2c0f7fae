package notifications

import "strings"

// ClassifierInput carries the announcement fields the classifier reads.
type ClassifierInput struct {
	Title            string
	Content          string
	NotificationType string
	Metadata         map[string]interface{}
}

type classifierText struct {
	title    string
	content  string
	combined string
	in       ClassifierInput
}

// typeRule is one entry of the classification cascade. Rules are evaluated in
// order and the first matching rule decides the type.
type typeRule struct {
	name    string
	match   func(classifierText) bool
	resolve func(classifierText) Type
}

var sprintLifecycle = []string{"started", "completed", "created", "planning", "review", "retrospective", "ended"}

var classifierRules = []typeRule{
	{
		name: "explicit",
		match: func(t classifierText) bool {
			return IsKnownType(strings.TrimSpace(t.in.NotificationType))
		},
		resolve: func(t classifierText) Type { return Type(strings.TrimSpace(t.in.NotificationType)) },
	},
	{
		name: "sprint",
		match: func(t classifierText) bool {
			if strings.HasPrefix(t.title, "sprint ") {
				return true
			}
			if containsAny(t.combined, "sprint update", "sprint started", "sprint completed", "sprint created") {
				return true
			}
			return strings.Contains(t.content, "sprint") && containsAny(t.content, sprintLifecycle...)
		},
		resolve: constType(TypeSprintUpdate),
	},
	{
		name:  "task",
		match: func(t classifierText) bool { return strings.Contains(t.combined, "task") },
		resolve: func(t classifierText) Type {
			switch {
			case containsAny(t.combined, "assigned", "new task", "task created"):
				return TypeTaskAssigned
			case containsAny(t.combined, "status", "completed"):
				return TypeTaskStatusChange
			case strings.Contains(t.combined, "comment"):
				return TypeTaskComment
			default:
				return TypeTaskUpdated
			}
		},
	},
	{
		name: "project",
		match: func(t classifierText) bool {
			return containsAny(t.combined, "project update", "project created", "project updated", "new project", "milestone")
		},
		resolve: constType(TypeProjectUpdate),
	},
	{
		name:    "leave",
		match:   func(t classifierText) bool { return strings.Contains(t.combined, "leave request") },
		resolve: constType(TypeLeaveRequest),
	},
	{
		name:    "timesheet",
		match:   func(t classifierText) bool { return strings.Contains(t.combined, "timesheet") },
		resolve: constType(TypeTimesheetSubmission),
	},
	{
		name:    "metadata-task",
		match:   func(t classifierText) bool { return hasAnyKey(t.in.Metadata, "task_id", "task_title") },
		resolve: constType(TypeTaskUpdated),
	},
	{
		name:    "metadata-project",
		match:   func(t classifierText) bool { return hasAnyKey(t.in.Metadata, "project_id", "project_name") },
		resolve: constType(TypeProjectUpdate),
	},
}

// DetectAnnouncementType infers the type of an announcement from its explicit
// tag, its free text and finally its metadata. It never fails; anything
// unrecognised is a plain announcement.
func DetectAnnouncementType(in ClassifierInput) Type {
	t := classifierText{
		title:   strings.ToLower(strings.TrimSpace(in.Title)),
		content: strings.ToLower(in.Content),
		in:      in,
	}
	t.combined = t.title + " " + t.content

	for _, rule := range classifierRules {
		if rule.match(t) {
			return rule.resolve(t)
		}
	}
	return TypeAnnouncement
}

// ClassifierRules returns the rule names in evaluation order.
func ClassifierRules() []string {
	names := make([]string, len(classifierRules))
	for i, r := range classifierRules {
		names[i] = r.name
	}
	return names
}

func constType(t Type) func(classifierText) Type {
	return func(classifierText) Type { return t }
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func hasAnyKey(m map[string]interface{}, keys ...string) bool {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil && v != "" {
			return true
		}
	}
	return false
}
