package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/contextmeet/contextmeet/internal/models"
	apperrors "github.com/contextmeet/contextmeet/pkg/errors"
)

// NotificationListOptions filters the notification listing.
type NotificationListOptions struct {
	Status string
	Limit  int
}

// NotificationStats counts a user's notifications by status.
type NotificationStats struct {
	Total     int64 `json:"total"`
	Scheduled int64 `json:"scheduled"`
	Sent      int64 `json:"sent"`
	Delivered int64 `json:"delivered"`
	Failed    int64 `json:"failed"`
	Cancelled int64 `json:"cancelled"`
}

// NotificationService schedules reminders and tracks their delivery state.
type NotificationService struct {
	db  *gorm.DB
	now func() time.Time
}

// NewNotificationService constructs a NotificationService instance.
func NewNotificationService(db *gorm.DB) (*NotificationService, error) {
	if db == nil {
		return nil, errors.New("notification service: db is required")
	}
	return &NotificationService{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

// List returns the user's notifications, optionally filtered by status.
func (s *NotificationService) List(ctx context.Context, userID string, opts NotificationListOptions) ([]models.Notification, error) {
	ctx = ensureContext(ctx)

	limit := opts.Limit
	if limit < 1 || limit > 200 {
		limit = 50
	}

	query := s.db.WithContext(ctx).Where("user_id = ?", userID)
	if opts.Status != "" {
		query = query.Where("status = ?", opts.Status)
	}

	var notifications []models.Notification
	err := query.Order("scheduled_time DESC").Limit(limit).Find(&notifications).Error
	if err != nil {
		return nil, fmt.Errorf("notification service: list: %w", err)
	}
	return notifications, nil
}

// Get loads a notification owned by the user.
func (s *NotificationService) Get(ctx context.Context, userID, notificationID string) (*models.Notification, error) {
	ctx = ensureContext(ctx)

	var notification models.Notification
	err := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", notificationID, userID).
		First(&notification).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotificationNotFound
		}
		return nil, fmt.Errorf("notification service: get: %w", err)
	}
	return &notification, nil
}

// Schedule queues one reminder for a meeting the user owns. The delivery
// time must still be in the future.
func (s *NotificationService) Schedule(ctx context.Context, userID, meetingID, channel string, at time.Time) (*models.Notification, error) {
	ctx = ensureContext(ctx)

	if channel != models.ChannelEmail && channel != models.ChannelTelegram {
		return nil, apperrors.NewBadRequest("unsupported notification channel")
	}
	if !at.After(s.now()) {
		return nil, ErrScheduledInPast
	}

	var meeting models.Meeting
	err := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", meetingID, userID).
		First(&meeting).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMeetingNotFound
		}
		return nil, fmt.Errorf("notification service: get meeting: %w", err)
	}

	notification := &models.Notification{
		MeetingID:     meeting.ID,
		UserID:        userID,
		Channel:       channel,
		Status:        models.StatusScheduled,
		ScheduledTime: at.UTC(),
	}
	if err := s.db.WithContext(ctx).Create(notification).Error; err != nil {
		return nil, fmt.Errorf("notification service: create: %w", err)
	}
	return notification, nil
}

// AutoSchedule queues reminders for a meeting according to the owner's
// preferences: one per enabled channel per reminder offset. Offsets whose
// delivery time has already passed are skipped, as is the telegram channel
// when the user has no chat id. Re-running does not duplicate pending rows.
func (s *NotificationService) AutoSchedule(ctx context.Context, user *models.User, meeting *models.Meeting) ([]models.Notification, error) {
	ctx = ensureContext(ctx)

	if user == nil || meeting == nil {
		return nil, apperrors.NewBadRequest("user and meeting are required")
	}

	prefs := PreferencesFor(user)
	now := s.now()

	var created []models.Notification
	for _, channel := range prefs.Channels {
		if channel == models.ChannelTelegram && user.TelegramChatID == "" {
			continue
		}
		if channel != models.ChannelEmail && channel != models.ChannelTelegram {
			continue
		}

		for _, offset := range prefs.ReminderOffsets {
			at := meeting.StartTime.Add(-time.Duration(offset) * time.Minute).UTC()
			if !at.After(now) {
				continue
			}

			var count int64
			err := s.db.WithContext(ctx).Model(&models.Notification{}).
				Where("meeting_id = ? AND channel = ? AND scheduled_time = ? AND status = ?",
					meeting.ID, channel, at, models.StatusScheduled).
				Count(&count).Error
			if err != nil {
				return nil, fmt.Errorf("notification service: check duplicate: %w", err)
			}
			if count > 0 {
				continue
			}

			notification := models.Notification{
				MeetingID:     meeting.ID,
				UserID:        user.ID,
				Channel:       channel,
				Status:        models.StatusScheduled,
				ScheduledTime: at,
			}
			if err := s.db.WithContext(ctx).Create(&notification).Error; err != nil {
				return nil, fmt.Errorf("notification service: create: %w", err)
			}
			created = append(created, notification)
		}
	}
	return created, nil
}

// Cancel withdraws a pending notification. Anything past scheduled has
// already been processed and cannot be cancelled.
func (s *NotificationService) Cancel(ctx context.Context, userID, notificationID string) (*models.Notification, error) {
	ctx = ensureContext(ctx)

	notification, err := s.Get(ctx, userID, notificationID)
	if err != nil {
		return nil, err
	}
	if notification.Status != models.StatusScheduled {
		return nil, apperrors.ErrAlreadyProcessed
	}

	if err := s.db.WithContext(ctx).Model(notification).Update("status", models.StatusCancelled).Error; err != nil {
		return nil, fmt.Errorf("notification service: cancel: %w", err)
	}
	notification.Status = models.StatusCancelled
	return notification, nil
}

// Resend requeues a failed notification for immediate delivery. Only failed
// rows are eligible.
func (s *NotificationService) Resend(ctx context.Context, userID, notificationID string) (*models.Notification, error) {
	ctx = ensureContext(ctx)

	notification, err := s.Get(ctx, userID, notificationID)
	if err != nil {
		return nil, err
	}
	if notification.IsTerminal() {
		return nil, apperrors.ErrAlreadyProcessed
	}
	if notification.Status != models.StatusFailed {
		return nil, ErrResendNotFailed
	}

	now := s.now()
	err = s.db.WithContext(ctx).Model(notification).Updates(map[string]any{
		"status":         models.StatusScheduled,
		"scheduled_time": now,
		"error_message":  "",
	}).Error
	if err != nil {
		return nil, fmt.Errorf("notification service: resend: %w", err)
	}
	return s.Get(ctx, userID, notificationID)
}

// Stats aggregates the user's notifications by status.
func (s *NotificationService) Stats(ctx context.Context, userID string) (*NotificationStats, error) {
	ctx = ensureContext(ctx)

	var rows []struct {
		Status string
		Count  int64
	}
	err := s.db.WithContext(ctx).Model(&models.Notification{}).
		Select("status, count(*) as count").
		Where("user_id = ?", userID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("notification service: stats: %w", err)
	}

	stats := &NotificationStats{}
	for _, row := range rows {
		stats.Total += row.Count
		switch row.Status {
		case models.StatusScheduled:
			stats.Scheduled = row.Count
		case models.StatusSent:
			stats.Sent = row.Count
		case models.StatusDelivered:
			stats.Delivered = row.Count
		case models.StatusFailed:
			stats.Failed = row.Count
		case models.StatusCancelled:
			stats.Cancelled = row.Count
		}
	}
	return stats, nil
}

// Pending lists scheduled notifications due within the window, oldest first.
// Cancelled and already processed rows never appear.
func (s *NotificationService) Pending(ctx context.Context, userID string, window time.Duration) ([]models.Notification, error) {
	ctx = ensureContext(ctx)

	if window <= 0 {
		window = 24 * time.Hour
	}

	var notifications []models.Notification
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND status = ? AND scheduled_time <= ?", userID, models.StatusScheduled, s.now().Add(window)).
		Order("scheduled_time ASC").
		Find(&notifications).Error
	if err != nil {
		return nil, fmt.Errorf("notification service: pending: %w", err)
	}
	return notifications, nil
}

// Due returns scheduled notifications across all users whose delivery time
// has arrived. The dispatcher polls this.
func (s *NotificationService) Due(ctx context.Context, limit int) ([]models.Notification, error) {
	ctx = ensureContext(ctx)

	if limit < 1 {
		limit = 100
	}

	var notifications []models.Notification
	err := s.db.WithContext(ctx).
		Where("status = ? AND scheduled_time <= ?", models.StatusScheduled, s.now()).
		Order("scheduled_time ASC").
		Limit(limit).
		Find(&notifications).Error
	if err != nil {
		return nil, fmt.Errorf("notification service: due: %w", err)
	}
	return notifications, nil
}

// MarkSent records a successful hand-off to the channel. When the channel
// confirmed receipt the row moves straight to delivered.
func (s *NotificationService) MarkSent(ctx context.Context, notificationID string, delivered bool) error {
	ctx = ensureContext(ctx)

	now := s.now()
	updates := map[string]any{
		"status":  models.StatusSent,
		"sent_at": now,
	}
	if delivered {
		updates["status"] = models.StatusDelivered
		updates["delivered_at"] = now
	}

	result := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ? AND status = ?", notificationID, models.StatusScheduled).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("notification service: mark sent: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrAlreadyProcessed
	}
	return nil
}

// MarkFailed records a delivery failure and bumps the retry counter.
func (s *NotificationService) MarkFailed(ctx context.Context, notificationID, message string) error {
	ctx = ensureContext(ctx)

	result := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ? AND status = ?", notificationID, models.StatusScheduled).
		Updates(map[string]any{
			"status":        models.StatusFailed,
			"error_message": message,
			"retry_count":   gorm.Expr("retry_count + 1"),
		})
	if result.Error != nil {
		return fmt.Errorf("notification service: mark failed: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrAlreadyProcessed
	}
	return nil
}
