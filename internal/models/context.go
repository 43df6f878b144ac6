package models

import (
	"time"

	"gorm.io/datatypes"
)

// Meeting type classifications produced by the brief generator.
const (
	MeetingTypeOneOnOne   = "one_on_one"
	MeetingTypeTeamSync   = "team_sync"
	MeetingTypeClientCall = "client_call"
	MeetingTypeBrainstorm = "brainstorm"
	MeetingTypeReview     = "review"
	MeetingTypePlanning   = "planning"
	MeetingTypeGeneral    = "general"
)

// Importance levels assigned to a meeting by the brief generator.
const (
	ImportanceHigh   = "high"
	ImportanceMedium = "medium"
	ImportanceLow    = "low"
)

// Context is the AI-generated preparation brief for a meeting. At most one
// row exists per meeting; regeneration replaces the content in place.
type Context struct {
	BaseModel

	MeetingID string   `gorm:"type:uuid;uniqueIndex;not null" json:"meeting_id"`
	Meeting   *Meeting `gorm:"foreignKey:MeetingID" json:"-"`
	UserID    string   `gorm:"type:uuid;index;not null" json:"user_id"`

	AIBrief     string `gorm:"type:text" json:"ai_brief"`
	MeetingType string `gorm:"default:'general'" json:"meeting_type"`

	KeyTopics            datatypes.JSON `json:"key_topics"`
	PreparationChecklist datatypes.JSON `json:"preparation_checklist"`
	SuggestedAgenda      datatypes.JSON `json:"suggested_agenda"`

	// AttendeeContext maps attendee email to a short background note.
	AttendeeContext datatypes.JSON `json:"attendee_context"`

	EstimatedImportance    string `gorm:"default:'medium'" json:"estimated_importance"`
	RecommendedPrepMinutes int    `gorm:"default:10" json:"recommended_prep_minutes"`

	ConfidenceScore int    `gorm:"default:0" json:"confidence_score"`
	ModelVersion    string `json:"model_version"`
	UserEdited      bool   `gorm:"default:false" json:"user_edited"`

	GeneratedAt time.Time `json:"generated_at"`
}
