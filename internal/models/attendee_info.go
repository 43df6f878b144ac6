package models

import "time"

// AttendeeInfo accumulates what the system knows about a person the user
// meets with. One row per (owner, email) pair, updated as meetings sync
// and briefs generate.
type AttendeeInfo struct {
	BaseModel

	UserID string `gorm:"type:uuid;uniqueIndex:idx_attendee_owner_email;not null" json:"user_id"`
	Email  string `gorm:"uniqueIndex:idx_attendee_owner_email;not null" json:"email"`

	Name          string     `json:"name"`
	Notes         string     `gorm:"type:text" json:"notes"`
	MeetingCount  int        `gorm:"default:0" json:"meeting_count"`
	LastMeetingAt *time.Time `json:"last_meeting_at"`
}
