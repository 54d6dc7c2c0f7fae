// pkg/registry/schema.go
package registry

// ActivityRegistry describes every job worker the service exposes to BPMN
// processes.
type ActivityRegistry struct {
	Version     string     `json:"version"`
	LastUpdated string     `json:"lastUpdated"`
	Activities  []Activity `json:"activities"`
}

type Activity struct {
	ID                   string                 `json:"id"`
	DisplayName          string                 `json:"displayName"`
	Description          string                 `json:"description"`
	Category             string                 `json:"category"`
	Version              string                 `json:"version"`
	TaskType             string                 `json:"taskType"`
	ImplementationStatus string                 `json:"implementationStatus"`
	InputSchema          map[string]interface{} `json:"inputSchema"`
	OutputSchema         map[string]interface{} `json:"outputSchema"`
	ErrorCodes           []string               `json:"errorCodes"`
	Timeout              string                 `json:"timeout"`
	Retries              int                    `json:"retries"`
	Workflows            []string               `json:"workflows"`
	Tags                 []string               `json:"tags"`
}

func object(required []string, props map[string]interface{}) map[string]interface{} {
	req := make([]interface{}, len(required))
	for i, r := range required {
		req[i] = r
	}
	return map[string]interface{}{
		"type":       "object",
		"required":   req,
		"properties": props,
	}
}

func str() map[string]interface{} { return map[string]interface{}{"type": "string"} }

func enum(values ...string) map[string]interface{} {
	vals := make([]interface{}, len(values))
	for i, v := range values {
		vals[i] = v
	}
	return map[string]interface{}{"type": "string", "enum": vals}
}

// BuiltIn is the registry shipped with the binary, used when no registry file
// is configured.
func BuiltIn() *ActivityRegistry {
	return &ActivityRegistry{
		Version: "1.0.0",
		Activities: []Activity{
			{
				ID:                   "get-notifications",
				DisplayName:          "Get Notifications",
				Description:          "Aggregates announcements, leave requests, timesheets and task notifications for a user",
				Category:             "notifications",
				Version:              "1.0.0",
				TaskType:             "get-notifications",
				ImplementationStatus: "completed",
				InputSchema: object([]string{"userId"}, map[string]interface{}{
					"userId":   str(),
					"role":     str(),
					"teamId":   str(),
					"limit":    map[string]interface{}{"type": "integer", "minimum": 0},
					"page":     map[string]interface{}{"type": "integer", "minimum": 0},
					"category": str(),
					"priority": str(),
					"search":   str(),
				}),
				OutputSchema: object([]string{"notifications", "total", "hasMore"}, map[string]interface{}{
					"notifications": map[string]interface{}{"type": "array"},
					"total":         map[string]interface{}{"type": "integer"},
					"unreadCount":   map[string]interface{}{"type": "integer"},
					"urgentCount":   map[string]interface{}{"type": "integer"},
					"hasMore":       map[string]interface{}{"type": "boolean"},
				}),
				ErrorCodes: []string{"INVALID_NOTIFICATION_INPUT"},
				Timeout:    "10s",
				Retries:    0,
				Tags:       []string{"read"},
			},
			{
				ID:                   "create-notification",
				DisplayName:          "Create Notification",
				Description:          "Writes an announcement for everyone or a list of teams and fans it out to email/SMS",
				Category:             "notifications",
				Version:              "1.0.0",
				TaskType:             "create-notification",
				ImplementationStatus: "completed",
				InputSchema: object([]string{"title", "content", "createdBy"}, map[string]interface{}{
					"title":            map[string]interface{}{"type": "string", "minLength": 1},
					"content":          str(),
					"createdBy":        map[string]interface{}{"type": "string", "minLength": 1},
					"recipients":       enum("everyone", "teams"),
					"teamIds":          map[string]interface{}{"type": "array", "items": str()},
					"priority":         enum("Low", "Medium", "High", "Critical"),
					"notificationType": str(),
					"channels":         map[string]interface{}{"type": "array", "items": enum("in_app", "email", "sms")},
					"metadata":         map[string]interface{}{"type": "object"},
					"expiryDate":       map[string]interface{}{"type": "string", "format": "date-time"},
				}),
				OutputSchema: object([]string{"ids", "count"}, map[string]interface{}{
					"ids":       map[string]interface{}{"type": "array", "items": str()},
					"count":     map[string]interface{}{"type": "integer"},
					"indexed":   map[string]interface{}{"type": "boolean"},
					"published": map[string]interface{}{"type": "boolean"},
					"warnings":  map[string]interface{}{"type": "array", "items": str()},
				}),
				ErrorCodes: []string{"INVALID_NOTIFICATION_INPUT", "NOTIFICATION_CREATE_FAILED"},
				Timeout:    "30s",
				Retries:    3,
				Workflows:  []string{"leave-approval", "sprint-lifecycle"},
				Tags:       []string{"write"},
			},
			{
				ID:                   "archive-notification",
				DisplayName:          "Archive Notification",
				Description:          "Archives or deletes an announcement",
				Category:             "notifications",
				Version:              "1.0.0",
				TaskType:             "archive-notification",
				ImplementationStatus: "completed",
				InputSchema: object([]string{"notificationId"}, map[string]interface{}{
					"notificationId": map[string]interface{}{"type": "string", "minLength": 1},
					"mode":           enum("archive", "delete"),
				}),
				OutputSchema: object([]string{"removed"}, map[string]interface{}{
					"notificationId": str(),
					"mode":           str(),
					"removed":        map[string]interface{}{"type": "boolean"},
				}),
				ErrorCodes: []string{"NOTIFICATION_NOT_FOUND", "INVALID_NOTIFICATION_ID", "NOTIFICATION_DELETE_FAILED"},
				Timeout:    "10s",
				Retries:    3,
				Tags:       []string{"write"},
			},
		},
	}
}
