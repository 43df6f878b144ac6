package models

import "time"

// Delivery channels.
const (
	ChannelEmail    = "email"
	ChannelTelegram = "telegram"
)

// Notification lifecycle states. Transitions are forward-only:
// scheduled → sent → delivered, or scheduled → failed/cancelled,
// with failed → scheduled allowed once via resend.
const (
	StatusScheduled = "scheduled"
	StatusSent      = "sent"
	StatusDelivered = "delivered"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// Notification is a reminder queued for delivery over a single channel.
type Notification struct {
	BaseModel

	MeetingID string   `gorm:"type:uuid;index;not null" json:"meeting_id"`
	Meeting   *Meeting `gorm:"foreignKey:MeetingID" json:"-"`
	UserID    string   `gorm:"type:uuid;index;not null" json:"user_id"`

	Channel string `gorm:"not null" json:"channel"`
	Status  string `gorm:"default:'scheduled';index" json:"status"`

	ScheduledTime time.Time  `gorm:"index;not null" json:"scheduled_time"`
	SentAt        *time.Time `json:"sent_at"`
	DeliveredAt   *time.Time `json:"delivered_at"`

	RetryCount   int    `gorm:"default:0" json:"retry_count"`
	ErrorMessage string `gorm:"type:text" json:"error_message"`
}

// IsTerminal reports whether the notification can no longer change state
// through normal delivery.
func (n *Notification) IsTerminal() bool {
	return n.Status == StatusDelivered || n.Status == StatusCancelled
}
