package models

import (
	"time"

	"gorm.io/datatypes"
)

// Meeting is a calendar entry owned by a user. EventID carries the external
// calendar identifier and is the dedup key during sync; manual meetings
// leave it empty.
type Meeting struct {
	BaseModel

	UserID string `gorm:"type:uuid;index:idx_meetings_owner_event;not null" json:"user_id"`
	User   *User  `gorm:"foreignKey:UserID" json:"-"`

	// Uniqueness of (user, event) is enforced in the service layer so manual
	// meetings can share the empty event id.
	EventID     string `gorm:"index:idx_meetings_owner_event" json:"event_id"`
	Title       string `gorm:"not null" json:"title"`
	Description string `gorm:"type:text" json:"description"`

	StartTime time.Time `gorm:"index;not null" json:"start_time"`
	EndTime   time.Time `json:"end_time"`

	// Attendees is a JSON list of email addresses.
	Attendees datatypes.JSON `json:"attendees"`

	Location        string `json:"location"`
	MeetingLink     string `json:"meeting_link"`
	MeetingPlatform string `json:"meeting_platform"`

	IsConfirmed      bool `gorm:"default:true" json:"is_confirmed"`
	IsCancelled      bool `gorm:"default:false" json:"is_cancelled"`
	ContextGenerated bool `gorm:"default:false" json:"context_generated"`

	Notes    string     `gorm:"type:text" json:"notes"`
	SyncedAt *time.Time `json:"synced_at"`
}
