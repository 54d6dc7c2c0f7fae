package models

// Contact is the delivery view of a users row.
type Contact struct {
	UserID   string `json:"user_id"`
	FullName string `json:"full_name"`
	Email    string `json:"email,omitempty"`
	Phone    string `json:"phone,omitempty"`
	TeamID   string `json:"team_id"`
}

type Team struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
