package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// User is an account that owns meetings, contexts, and notifications.
type User struct {
	BaseModel

	Email    string `gorm:"uniqueIndex;not null" json:"email"`
	Password string `gorm:"not null" json:"-"`
	FullName string `json:"full_name"`
	Timezone string `gorm:"default:'UTC'" json:"timezone"`

	// Preferences holds reminder offsets, enabled channels, and the
	// auto-generate flag. See DefaultPreferences for the shape.
	Preferences datatypes.JSON `json:"preferences"`

	// Google OAuth tokens are AES-GCM encrypted before they reach this row.
	GoogleAccessToken  string     `json:"-"`
	GoogleRefreshToken string     `json:"-"`
	GoogleTokenExpiry  *time.Time `json:"-"`
	CalendarConnected  bool       `gorm:"default:false" json:"calendar_connected"`

	TelegramChatID string `json:"telegram_chat_id"`

	IsActive    bool       `gorm:"default:true" json:"is_active"`
	LastLoginAt *time.Time `json:"last_login_at"`

	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// Preferences mirrors the JSON stored on User.Preferences.
type Preferences struct {
	ReminderOffsets     []int    `json:"reminder_offsets"`
	Channels            []string `json:"channels"`
	AutoGenerateContext bool     `json:"auto_generate_context"`
}

// DefaultPreferences returns the preferences applied to new accounts.
func DefaultPreferences() Preferences {
	return Preferences{
		ReminderOffsets:     []int{15},
		Channels:            []string{ChannelEmail},
		AutoGenerateContext: true,
	}
}
