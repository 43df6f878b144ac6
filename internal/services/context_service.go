package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/contextmeet/contextmeet/internal/ai"
	"github.com/contextmeet/contextmeet/internal/models"
	apperrors "github.com/contextmeet/contextmeet/pkg/errors"
)

const previousMeetingLimit = 3

// ContextUpdateInput applies user edits to a generated brief.
type ContextUpdateInput struct {
	AIBrief              *string
	KeyTopics            *[]string
	PreparationChecklist *[]string
	SuggestedAgenda      *[]string
	Notes                map[string]string
}

// BatchResult reports the outcome of one meeting in a batch generation run.
type BatchResult struct {
	MeetingID string `json:"meeting_id"`
	Success   bool   `json:"success"`
	Error     string `json:"error,omitempty"`
}

// ContextService generates and manages meeting preparation briefs.
type ContextService struct {
	db        *gorm.DB
	generator *ai.Generator
	now       func() time.Time
}

// NewContextService constructs a ContextService instance.
func NewContextService(db *gorm.DB, generator *ai.Generator) (*ContextService, error) {
	if db == nil {
		return nil, errors.New("context service: db is required")
	}
	if generator == nil {
		return nil, errors.New("context service: generator is required")
	}
	return &ContextService{
		db:        db,
		generator: generator,
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

// GetByMeeting loads the brief for a meeting the user owns.
func (s *ContextService) GetByMeeting(ctx context.Context, userID, meetingID string) (*models.Context, error) {
	ctx = ensureContext(ctx)

	if err := s.requireMeeting(ctx, userID, meetingID); err != nil {
		return nil, err
	}

	var mc models.Context
	err := s.db.WithContext(ctx).
		Where("meeting_id = ? AND user_id = ?", meetingID, userID).
		First(&mc).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrContextNotFound
		}
		return nil, fmt.Errorf("context service: get context: %w", err)
	}
	return &mc, nil
}

// Generate produces a brief for the meeting. An existing brief is returned
// untouched unless force is set, in which case it is regenerated in place.
// Upstream model failures degrade to a template brief rather than an error.
func (s *ContextService) Generate(ctx context.Context, userID, meetingID string, force bool) (*models.Context, error) {
	ctx = ensureContext(ctx)

	var meeting models.Meeting
	err := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", meetingID, userID).
		First(&meeting).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMeetingNotFound
		}
		return nil, fmt.Errorf("context service: get meeting: %w", err)
	}

	var existing models.Context
	err = s.db.WithContext(ctx).
		Where("meeting_id = ?", meeting.ID).
		First(&existing).Error
	switch {
	case err == nil && !force:
		return &existing, nil
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, fmt.Errorf("context service: check context: %w", err)
	}

	attendees := stringsFromJSON(meeting.Attendees)
	notes := s.attendeeNotes(ctx, userID, attendees)
	previous := s.previousMeetings(ctx, userID, meeting.ID)

	brief := s.generator.Generate(ctx, ai.MeetingInput{
		Title:            meeting.Title,
		Description:      meeting.Description,
		Attendees:        attendees,
		StartTime:        meeting.StartTime,
		AttendeeNotes:    notes,
		PreviousMeetings: previous,
	})

	mc := &models.Context{
		MeetingID:              meeting.ID,
		UserID:                 userID,
		AIBrief:                brief.Summary,
		MeetingType:            brief.MeetingType,
		KeyTopics:              toJSON(brief.KeyTopics),
		PreparationChecklist:   toJSON(brief.PreparationChecklist),
		SuggestedAgenda:        toJSON(brief.SuggestedAgenda),
		AttendeeContext:        toJSON(brief.AttendeeContext),
		EstimatedImportance:    brief.EstimatedImportance,
		RecommendedPrepMinutes: brief.RecommendedPrepMinutes,
		ConfidenceScore:        brief.ConfidenceScore,
		ModelVersion:           brief.ModelVersion,
		GeneratedAt:            s.now(),
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if existing.ID != "" {
			mc.ID = existing.ID
			mc.CreatedAt = existing.CreatedAt
			if err := tx.Save(mc).Error; err != nil {
				return fmt.Errorf("context service: replace context: %w", err)
			}
		} else if err := tx.Create(mc).Error; err != nil {
			return fmt.Errorf("context service: create context: %w", err)
		}

		if err := tx.Model(&meeting).Update("context_generated", true).Error; err != nil {
			return fmt.Errorf("context service: flag meeting: %w", err)
		}
		return s.upsertAttendees(tx, userID, attendees, brief.AttendeeContext, meeting.StartTime)
	})
	if err != nil {
		return nil, err
	}
	return mc, nil
}

// Update applies user edits to a brief and marks it edited.
func (s *ContextService) Update(ctx context.Context, userID, meetingID string, input ContextUpdateInput) (*models.Context, error) {
	ctx = ensureContext(ctx)

	mc, err := s.GetByMeeting(ctx, userID, meetingID)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{"user_edited": true}
	if input.AIBrief != nil {
		updates["ai_brief"] = strings.TrimSpace(*input.AIBrief)
	}
	if input.KeyTopics != nil {
		updates["key_topics"] = toJSON(*input.KeyTopics)
	}
	if input.PreparationChecklist != nil {
		updates["preparation_checklist"] = toJSON(*input.PreparationChecklist)
	}
	if input.SuggestedAgenda != nil {
		updates["suggested_agenda"] = toJSON(*input.SuggestedAgenda)
	}
	if input.Notes != nil {
		merged := stringMapFromJSON(mc.AttendeeContext)
		if merged == nil {
			merged = map[string]string{}
		}
		for email, note := range input.Notes {
			merged[strings.ToLower(strings.TrimSpace(email))] = note
		}
		updates["attendee_context"] = toJSON(merged)
	}

	if err := s.db.WithContext(ctx).Model(mc).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("context service: update context: %w", err)
	}
	return s.GetByMeeting(ctx, userID, meetingID)
}

// Delete removes the brief for a meeting.
func (s *ContextService) Delete(ctx context.Context, userID, meetingID string) error {
	ctx = ensureContext(ctx)

	mc, err := s.GetByMeeting(ctx, userID, meetingID)
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(mc).Error; err != nil {
			return fmt.Errorf("context service: delete context: %w", err)
		}
		err := tx.Model(&models.Meeting{}).
			Where("id = ?", meetingID).
			Update("context_generated", false).Error
		if err != nil {
			return fmt.Errorf("context service: unflag meeting: %w", err)
		}
		return nil
	})
}

// Recent lists the newest briefs for the user.
func (s *ContextService) Recent(ctx context.Context, userID string, limit int) ([]models.Context, error) {
	ctx = ensureContext(ctx)

	if limit < 1 || limit > 50 {
		limit = 10
	}

	var contexts []models.Context
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("generated_at DESC").
		Limit(limit).
		Find(&contexts).Error
	if err != nil {
		return nil, fmt.Errorf("context service: recent: %w", err)
	}
	return contexts, nil
}

// GenerateBatch generates briefs for several meetings. A failure on one
// meeting does not stop the rest; each item reports its own outcome and the
// combined error aggregates the individual failures.
func (s *ContextService) GenerateBatch(ctx context.Context, userID string, meetingIDs []string, force bool) ([]BatchResult, error) {
	ctx = ensureContext(ctx)

	results := make([]BatchResult, 0, len(meetingIDs))
	var combined error
	for _, meetingID := range meetingIDs {
		result := BatchResult{MeetingID: meetingID}
		if _, err := s.Generate(ctx, userID, meetingID, force); err != nil {
			result.Error = apperrors.FromError(err).Message
			combined = multierr.Append(combined, fmt.Errorf("meeting %s: %w", meetingID, err))
		} else {
			result.Success = true
		}
		results = append(results, result)
	}
	return results, combined
}

func (s *ContextService) requireMeeting(ctx context.Context, userID, meetingID string) error {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Meeting{}).
		Where("id = ? AND user_id = ?", meetingID, userID).
		Count(&count).Error
	if err != nil {
		return fmt.Errorf("context service: check meeting: %w", err)
	}
	if count == 0 {
		return ErrMeetingNotFound
	}
	return nil
}

// attendeeNotes loads the stored notes for the given addresses.
func (s *ContextService) attendeeNotes(ctx context.Context, userID string, attendees []string) map[string]string {
	if len(attendees) == 0 {
		return nil
	}

	var infos []models.AttendeeInfo
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND email IN ?", userID, attendees).
		Find(&infos).Error
	if err != nil {
		return nil
	}

	notes := make(map[string]string, len(infos))
	for _, info := range infos {
		if info.Notes != "" {
			notes[info.Email] = info.Notes
		}
	}
	if len(notes) == 0 {
		return nil
	}
	return notes
}

// previousMeetings returns recent past meetings to give the model history.
func (s *ContextService) previousMeetings(ctx context.Context, userID, excludeID string) []ai.PreviousMeeting {
	var rows []struct {
		Title       string
		MeetingType string
	}
	err := s.db.WithContext(ctx).Model(&models.Meeting{}).
		Select("meetings.title, contexts.meeting_type").
		Joins("LEFT JOIN contexts ON contexts.meeting_id = meetings.id").
		Where("meetings.user_id = ? AND meetings.id <> ? AND meetings.start_time < ?", userID, excludeID, s.now()).
		Order("meetings.start_time DESC").
		Limit(previousMeetingLimit).
		Scan(&rows).Error
	if err != nil || len(rows) == 0 {
		return nil
	}

	previous := make([]ai.PreviousMeeting, 0, len(rows))
	for _, row := range rows {
		previous = append(previous, ai.PreviousMeeting{Title: row.Title, MeetingType: row.MeetingType})
	}
	return previous
}

// upsertAttendees refreshes the per-attendee knowledge rows after generation.
func (s *ContextService) upsertAttendees(tx *gorm.DB, userID string, attendees []string, roles map[string]string, meetingTime time.Time) error {
	when := meetingTime.UTC()
	for _, email := range attendees {
		var info models.AttendeeInfo
		err := tx.Where("user_id = ? AND email = ?", userID, email).First(&info).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			info = models.AttendeeInfo{
				UserID:        userID,
				Email:         email,
				Notes:         roles[email],
				MeetingCount:  1,
				LastMeetingAt: &when,
			}
			if err := tx.Create(&info).Error; err != nil {
				return fmt.Errorf("context service: create attendee info: %w", err)
			}
		case err != nil:
			return fmt.Errorf("context service: load attendee info: %w", err)
		default:
			updates := map[string]any{
				"meeting_count":   info.MeetingCount + 1,
				"last_meeting_at": when,
			}
			if info.Notes == "" && roles[email] != "" {
				updates["notes"] = roles[email]
			}
			if err := tx.Model(&info).Updates(updates).Error; err != nil {
				return fmt.Errorf("context service: update attendee info: %w", err)
			}
		}
	}
	return nil
}
