package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/contextmeet/contextmeet/internal/models"
	apperrors "github.com/contextmeet/contextmeet/pkg/errors"
)

// MeetingListOptions narrows and pages the meeting listing.
type MeetingListOptions struct {
	Page     int
	PageSize int
	Upcoming bool
}

// MeetingList is a page of meetings with the total row count.
type MeetingList struct {
	Meetings []models.Meeting
	Total    int64
	Page     int
	PageSize int
}

// MeetingInput carries the writable fields of a meeting.
type MeetingInput struct {
	EventID     string
	Title       string
	Description string
	StartTime   time.Time
	EndTime     time.Time
	Attendees   []string
	Location    string
	MeetingLink string
	Notes       string
}

// MeetingUpdateInput applies partial updates; nil fields are left unchanged.
type MeetingUpdateInput struct {
	Title       *string
	Description *string
	StartTime   *time.Time
	EndTime     *time.Time
	Attendees   *[]string
	Location    *string
	MeetingLink *string
	Notes       *string
	IsConfirmed *bool
}

// MeetingStats summarises a user's meeting load.
type MeetingStats struct {
	Total        int64 `json:"total"`
	Upcoming     int64 `json:"upcoming"`
	Today        int64 `json:"today"`
	ThisWeek     int64 `json:"this_week"`
	WithContext  int64 `json:"with_context"`
	Cancelled    int64 `json:"cancelled"`
	FromCalendar int64 `json:"from_calendar"`
}

// MeetingService manages the meeting records of a user.
type MeetingService struct {
	db  *gorm.DB
	now func() time.Time
}

// NewMeetingService constructs a MeetingService instance.
func NewMeetingService(db *gorm.DB) (*MeetingService, error) {
	if db == nil {
		return nil, errors.New("meeting service: db is required")
	}
	return &MeetingService{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

// List returns the user's meetings, newest start first unless filtering to
// upcoming, in which case nearest first.
func (s *MeetingService) List(ctx context.Context, userID string, opts MeetingListOptions) (*MeetingList, error) {
	ctx = ensureContext(ctx)

	page := opts.Page
	if page < 1 {
		page = 1
	}
	pageSize := opts.PageSize
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	query := s.db.WithContext(ctx).Model(&models.Meeting{}).Where("user_id = ?", userID)
	order := "start_time DESC"
	if opts.Upcoming {
		query = query.Where("start_time >= ? AND is_cancelled = ?", s.now(), false)
		order = "start_time ASC"
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("meeting service: count meetings: %w", err)
	}

	var meetings []models.Meeting
	err := query.Order(order).
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&meetings).Error
	if err != nil {
		return nil, fmt.Errorf("meeting service: list meetings: %w", err)
	}

	return &MeetingList{Meetings: meetings, Total: total, Page: page, PageSize: pageSize}, nil
}

// Get loads a meeting owned by the user.
func (s *MeetingService) Get(ctx context.Context, userID, meetingID string) (*models.Meeting, error) {
	ctx = ensureContext(ctx)

	var meeting models.Meeting
	err := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", meetingID, userID).
		First(&meeting).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMeetingNotFound
		}
		return nil, fmt.Errorf("meeting service: get meeting: %w", err)
	}
	return &meeting, nil
}

// Create stores a new meeting. When the input carries an external event id
// that the user already has a meeting for, the existing row is updated
// instead of inserting a duplicate; the returned flag reports which happened.
func (s *MeetingService) Create(ctx context.Context, userID string, input MeetingInput) (*models.Meeting, bool, error) {
	ctx = ensureContext(ctx)

	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, false, apperrors.NewBadRequest("title is required")
	}
	if input.StartTime.IsZero() {
		return nil, false, apperrors.NewBadRequest("start_time is required")
	}
	endTime := input.EndTime
	if endTime.IsZero() || endTime.Before(input.StartTime) {
		endTime = input.StartTime.Add(30 * time.Minute)
	}

	eventID := strings.TrimSpace(input.EventID)
	if eventID != "" {
		var existing models.Meeting
		err := s.db.WithContext(ctx).
			Where("user_id = ? AND event_id = ?", userID, eventID).
			First(&existing).Error
		switch {
		case err == nil:
			updated, uerr := s.applyInput(ctx, &existing, input, title, endTime)
			return updated, false, uerr
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return nil, false, fmt.Errorf("meeting service: check event id: %w", err)
		}
	}

	meeting := &models.Meeting{
		UserID:          userID,
		EventID:         eventID,
		Title:           title,
		Description:     strings.TrimSpace(input.Description),
		StartTime:       input.StartTime.UTC(),
		EndTime:         endTime.UTC(),
		Attendees:       toJSON(normaliseEmails(input.Attendees)),
		Location:        strings.TrimSpace(input.Location),
		MeetingLink:     strings.TrimSpace(input.MeetingLink),
		MeetingPlatform: platformForLink(input.MeetingLink),
		IsConfirmed:     true,
		Notes:           strings.TrimSpace(input.Notes),
	}
	if err := s.db.WithContext(ctx).Create(meeting).Error; err != nil {
		return nil, false, fmt.Errorf("meeting service: create meeting: %w", err)
	}
	return meeting, true, nil
}

func (s *MeetingService) applyInput(ctx context.Context, meeting *models.Meeting, input MeetingInput, title string, endTime time.Time) (*models.Meeting, error) {
	updates := map[string]any{
		"title":            title,
		"description":      strings.TrimSpace(input.Description),
		"start_time":       input.StartTime.UTC(),
		"end_time":         endTime.UTC(),
		"attendees":        toJSON(normaliseEmails(input.Attendees)),
		"location":         strings.TrimSpace(input.Location),
		"meeting_link":     strings.TrimSpace(input.MeetingLink),
		"meeting_platform": platformForLink(input.MeetingLink),
	}
	if notes := strings.TrimSpace(input.Notes); notes != "" {
		updates["notes"] = notes
	}
	if err := s.db.WithContext(ctx).Model(meeting).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("meeting service: update meeting: %w", err)
	}
	return s.Get(ctx, meeting.UserID, meeting.ID)
}

// Update applies partial changes to a meeting the user owns.
func (s *MeetingService) Update(ctx context.Context, userID, meetingID string, input MeetingUpdateInput) (*models.Meeting, error) {
	ctx = ensureContext(ctx)

	meeting, err := s.Get(ctx, userID, meetingID)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" {
			return nil, apperrors.NewBadRequest("title cannot be empty")
		}
		updates["title"] = title
	}
	if input.Description != nil {
		updates["description"] = strings.TrimSpace(*input.Description)
	}
	if input.StartTime != nil {
		updates["start_time"] = input.StartTime.UTC()
	}
	if input.EndTime != nil {
		updates["end_time"] = input.EndTime.UTC()
	}
	if input.Attendees != nil {
		updates["attendees"] = toJSON(normaliseEmails(*input.Attendees))
	}
	if input.Location != nil {
		updates["location"] = strings.TrimSpace(*input.Location)
	}
	if input.MeetingLink != nil {
		link := strings.TrimSpace(*input.MeetingLink)
		updates["meeting_link"] = link
		updates["meeting_platform"] = platformForLink(link)
	}
	if input.Notes != nil {
		updates["notes"] = strings.TrimSpace(*input.Notes)
	}
	if input.IsConfirmed != nil {
		updates["is_confirmed"] = *input.IsConfirmed
	}
	if len(updates) == 0 {
		return meeting, nil
	}

	if err := s.db.WithContext(ctx).Model(meeting).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("meeting service: update meeting: %w", err)
	}
	return s.Get(ctx, userID, meetingID)
}

// Delete removes a meeting along with its generated context, cancelling any
// reminders that are still pending.
func (s *MeetingService) Delete(ctx context.Context, userID, meetingID string) error {
	ctx = ensureContext(ctx)

	meeting, err := s.Get(ctx, userID, meetingID)
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&models.Notification{}).
			Where("meeting_id = ? AND status = ?", meeting.ID, models.StatusScheduled).
			Update("status", models.StatusCancelled).Error
		if err != nil {
			return fmt.Errorf("meeting service: cancel notifications: %w", err)
		}

		if err := tx.Where("meeting_id = ?", meeting.ID).Delete(&models.Context{}).Error; err != nil {
			return fmt.Errorf("meeting service: delete context: %w", err)
		}
		if err := tx.Delete(meeting).Error; err != nil {
			return fmt.Errorf("meeting service: delete meeting: %w", err)
		}
		return nil
	})
}

// Today lists the user's meetings between local midnight boundaries, in UTC.
func (s *MeetingService) Today(ctx context.Context, userID string) ([]models.Meeting, error) {
	ctx = ensureContext(ctx)

	now := s.now()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.Add(24 * time.Hour)

	var meetings []models.Meeting
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND start_time >= ? AND start_time < ? AND is_cancelled = ?", userID, dayStart, dayEnd, false).
		Order("start_time ASC").
		Find(&meetings).Error
	if err != nil {
		return nil, fmt.Errorf("meeting service: today: %w", err)
	}
	return meetings, nil
}

// Stats aggregates counts over the user's meetings.
func (s *MeetingService) Stats(ctx context.Context, userID string) (*MeetingStats, error) {
	ctx = ensureContext(ctx)

	now := s.now()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	weekEnd := now.Add(7 * 24 * time.Hour)

	stats := &MeetingStats{}
	base := func() *gorm.DB {
		return s.db.WithContext(ctx).Model(&models.Meeting{}).Where("user_id = ?", userID)
	}

	if err := base().Count(&stats.Total).Error; err != nil {
		return nil, fmt.Errorf("meeting service: stats: %w", err)
	}
	if err := base().Where("start_time >= ? AND is_cancelled = ?", now, false).Count(&stats.Upcoming).Error; err != nil {
		return nil, fmt.Errorf("meeting service: stats: %w", err)
	}
	if err := base().Where("start_time >= ? AND start_time < ? AND is_cancelled = ?", dayStart, dayStart.Add(24*time.Hour), false).Count(&stats.Today).Error; err != nil {
		return nil, fmt.Errorf("meeting service: stats: %w", err)
	}
	if err := base().Where("start_time >= ? AND start_time < ? AND is_cancelled = ?", now, weekEnd, false).Count(&stats.ThisWeek).Error; err != nil {
		return nil, fmt.Errorf("meeting service: stats: %w", err)
	}
	if err := base().Where("context_generated = ?", true).Count(&stats.WithContext).Error; err != nil {
		return nil, fmt.Errorf("meeting service: stats: %w", err)
	}
	if err := base().Where("is_cancelled = ?", true).Count(&stats.Cancelled).Error; err != nil {
		return nil, fmt.Errorf("meeting service: stats: %w", err)
	}
	if err := base().Where("event_id <> ''").Count(&stats.FromCalendar).Error; err != nil {
		return nil, fmt.Errorf("meeting service: stats: %w", err)
	}
	return stats, nil
}
