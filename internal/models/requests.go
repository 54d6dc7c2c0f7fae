package models

import "time"

// LeavePlan is a row of leave_plans joined with the requesting employee.
type LeavePlan struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	EmployeeName string    `json:"employee_name"`
	TeamID       string    `json:"team_id"`
	LeaveType    string    `json:"leave_type"`
	StartDate    time.Time `json:"start_date"`
	EndDate      time.Time `json:"end_date"`
	Reason       string    `json:"reason,omitempty"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
}

// TimesheetSubmission is a row of timesheet_submissions joined with the
// submitting employee.
type TimesheetSubmission struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	EmployeeName string    `json:"employee_name"`
	TeamID       string    `json:"team_id"`
	WeekStart    time.Time `json:"week_start"`
	TotalHours   float64   `json:"total_hours"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
}

// TaskNotification is a row of the generic notifications table.
type TaskNotification struct {
	ID        string                 `json:"id"`
	UserID    string                 `json:"user_id"`
	Type      string                 `json:"type"`
	Title     string                 `json:"title"`
	Message   string                 `json:"message"`
	IsRead    bool                   `json:"is_read"`
	Priority  string                 `json:"priority,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}
