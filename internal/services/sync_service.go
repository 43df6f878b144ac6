package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"gorm.io/gorm"

	"github.com/contextmeet/contextmeet/internal/calendar"
	"github.com/contextmeet/contextmeet/internal/models"
	"github.com/contextmeet/contextmeet/pkg/crypto"
	"github.com/contextmeet/contextmeet/pkg/metrics"
)

// SyncResult summarises one calendar pull.
type SyncResult struct {
	Fetched  int       `json:"fetched"`
	Created  int       `json:"created"`
	Updated  int       `json:"updated"`
	Skipped  int       `json:"skipped"`
	SyncedAt time.Time `json:"synced_at"`
	Window   [2]string `json:"window"`
}

// SyncService pulls upcoming events from the user's Google calendar and
// mirrors them into the meetings table.
type SyncService struct {
	db            *gorm.DB
	calendar      *calendar.Client
	encryptionKey []byte
	now           func() time.Time
}

// NewSyncService constructs a SyncService instance.
func NewSyncService(db *gorm.DB, cal *calendar.Client, encryptionKey []byte) (*SyncService, error) {
	if db == nil {
		return nil, errors.New("sync service: db is required")
	}
	if cal == nil {
		return nil, errors.New("sync service: calendar client is required")
	}
	return &SyncService{
		db:            db,
		calendar:      cal,
		encryptionKey: encryptionKey,
		now:           func() time.Time { return time.Now().UTC() },
	}, nil
}

// Sync fetches events inside the forward window and upserts them by event
// id. Events the user already has are updated in place; remote deletions
// are left alone. A refreshed OAuth token is re-encrypted and stored.
func (s *SyncService) Sync(ctx context.Context, userID string) (*SyncResult, error) {
	ctx = ensureContext(ctx)

	var user models.User
	err := s.db.WithContext(ctx).Where("id = ?", userID).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("sync service: get user: %w", err)
	}

	token, err := googleTokenFor(&user, s.encryptionKey)
	if err != nil {
		return nil, err
	}

	from := s.now()
	to := from.Add(s.calendar.SyncWindow())

	events, refreshed, err := s.calendar.ListEvents(ctx, token, from, to)
	if err != nil {
		metrics.CalendarSyncEvents.WithLabelValues("error").Inc()
		return nil, err
	}

	if refreshed != nil && refreshed.AccessToken != token.AccessToken {
		if err := s.storeRefreshedToken(ctx, &user, refreshed); err != nil {
			return nil, err
		}
	}

	result := &SyncResult{
		Fetched:  len(events),
		SyncedAt: from,
		Window:   [2]string{from.Format(time.RFC3339), to.Format(time.RFC3339)},
	}

	for _, event := range events {
		if strings.EqualFold(event.Status, "cancelled") {
			result.Skipped++
			metrics.CalendarSyncEvents.WithLabelValues("skipped").Inc()
			continue
		}

		created, err := s.upsertEvent(ctx, &user, event, from)
		if err != nil {
			return nil, err
		}
		if created {
			result.Created++
			metrics.CalendarSyncEvents.WithLabelValues("created").Inc()
		} else {
			result.Updated++
			metrics.CalendarSyncEvents.WithLabelValues("updated").Inc()
		}
	}
	return result, nil
}

func (s *SyncService) upsertEvent(ctx context.Context, user *models.User, event calendar.Event, syncedAt time.Time) (bool, error) {
	attendees := make([]string, 0, len(event.Attendees))
	for _, attendee := range event.Attendees {
		attendees = append(attendees, attendee.Email)
	}
	attendees = normaliseEmails(attendees)

	fields := map[string]any{
		"title":            event.Title,
		"description":      event.Description,
		"start_time":       event.StartTime,
		"end_time":         event.EndTime,
		"attendees":        toJSON(attendees),
		"location":         event.Location,
		"meeting_link":     event.MeetingLink,
		"meeting_platform": platformForLink(event.MeetingLink),
		"is_confirmed":     !strings.EqualFold(event.Status, "tentative"),
		"synced_at":        syncedAt,
	}

	var existing models.Meeting
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND event_id = ?", user.ID, event.EventID).
		First(&existing).Error
	switch {
	case err == nil:
		if err := s.db.WithContext(ctx).Model(&existing).Updates(fields).Error; err != nil {
			return false, fmt.Errorf("sync service: update meeting: %w", err)
		}
		return false, nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return false, fmt.Errorf("sync service: check meeting: %w", err)
	}

	meeting := &models.Meeting{
		UserID:          user.ID,
		EventID:         event.EventID,
		Title:           event.Title,
		Description:     event.Description,
		StartTime:       event.StartTime,
		EndTime:         event.EndTime,
		Attendees:       toJSON(attendees),
		Location:        event.Location,
		MeetingLink:     event.MeetingLink,
		MeetingPlatform: platformForLink(event.MeetingLink),
		IsConfirmed:     !strings.EqualFold(event.Status, "tentative"),
		SyncedAt:        &syncedAt,
	}
	if err := s.db.WithContext(ctx).Create(meeting).Error; err != nil {
		return false, fmt.Errorf("sync service: create meeting: %w", err)
	}

	if err := s.touchAttendees(ctx, user.ID, event, meeting.StartTime); err != nil {
		return false, err
	}
	return true, nil
}

// touchAttendees records that the user is meeting these people, capturing
// display names the calendar provides.
func (s *SyncService) touchAttendees(ctx context.Context, userID string, event calendar.Event, when time.Time) error {
	meetingTime := when.UTC()
	for _, attendee := range event.Attendees {
		email := strings.ToLower(strings.TrimSpace(attendee.Email))
		if email == "" {
			continue
		}

		var info models.AttendeeInfo
		err := s.db.WithContext(ctx).
			Where("user_id = ? AND email = ?", userID, email).
			First(&info).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			info = models.AttendeeInfo{
				UserID:        userID,
				Email:         email,
				Name:          attendee.Name,
				MeetingCount:  1,
				LastMeetingAt: &meetingTime,
			}
			if err := s.db.WithContext(ctx).Create(&info).Error; err != nil {
				return fmt.Errorf("sync service: create attendee info: %w", err)
			}
		case err != nil:
			return fmt.Errorf("sync service: load attendee info: %w", err)
		default:
			updates := map[string]any{
				"meeting_count":   info.MeetingCount + 1,
				"last_meeting_at": meetingTime,
			}
			if info.Name == "" && attendee.Name != "" {
				updates["name"] = attendee.Name
			}
			if err := s.db.WithContext(ctx).Model(&info).Updates(updates).Error; err != nil {
				return fmt.Errorf("sync service: update attendee info: %w", err)
			}
		}
	}
	return nil
}

func (s *SyncService) storeRefreshedToken(ctx context.Context, user *models.User, token *oauth2.Token) error {
	encryptedAccess, err := crypto.Encrypt([]byte(token.AccessToken), s.encryptionKey)
	if err != nil {
		return fmt.Errorf("sync service: encrypt access token: %w", err)
	}

	updates := map[string]any{"google_access_token": encryptedAccess}
	if token.RefreshToken != "" {
		encryptedRefresh, err := crypto.Encrypt([]byte(token.RefreshToken), s.encryptionKey)
		if err != nil {
			return fmt.Errorf("sync service: encrypt refresh token: %w", err)
		}
		updates["google_refresh_token"] = encryptedRefresh
	}
	if !token.Expiry.IsZero() {
		updates["google_token_expiry"] = token.Expiry.UTC()
	}

	if err := s.db.WithContext(ctx).Model(user).Updates(updates).Error; err != nil {
		return fmt.Errorf("sync service: store refreshed token: %w", err)
	}
	return nil
}
