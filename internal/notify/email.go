package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/contextmeet/contextmeet/internal/models"
	"github.com/contextmeet/contextmeet/pkg/mail"
)

// EmailSender delivers meeting reminders over SMTP.
type EmailSender struct {
	mailer mail.Mailer
}

// NewEmailSender wraps a Mailer as a notification channel.
func NewEmailSender(mailer mail.Mailer) *EmailSender {
	return &EmailSender{mailer: mailer}
}

// Channel implements Sender.
func (s *EmailSender) Channel() string {
	return models.ChannelEmail
}

// Send implements Sender. SMTP acceptance does not confirm the message
// reached the recipient, so delivered is always false on success.
func (s *EmailSender) Send(ctx context.Context, p Payload) (bool, error) {
	if p.UserEmail == "" {
		return false, errors.New("email: recipient address missing")
	}
	if p.Meeting == nil {
		return false, errors.New("email: meeting missing")
	}

	msg := mail.Message{
		To:      []string{p.UserEmail},
		Subject: emailSubject(p.Meeting, p.MinutesUntil),
		Body:    buildEmailBody(p.Meeting, p.Context, p.MinutesUntil),
	}

	if err := s.mailer.Send(ctx, msg); err != nil {
		return false, fmt.Errorf("email: send reminder: %w", err)
	}
	return false, nil
}

func emailSubject(meeting *models.Meeting, minutesUntil int) string {
	if minutesUntil <= 0 {
		return fmt.Sprintf("Meeting Created: %s", meeting.Title)
	}
	return fmt.Sprintf("Reminder: %s in %d minutes", meeting.Title, minutesUntil)
}

func buildEmailBody(meeting *models.Meeting, context *models.Context, minutesUntil int) string {
	var b strings.Builder

	b.WriteString("MEETING REMINDER\n")
	b.WriteString(strings.Repeat("=", 50) + "\n\n")
	fmt.Fprintf(&b, "%s starts in %d minutes\n\n", meeting.Title, minutesUntil)

	b.WriteString("DETAILS:\n")
	fmt.Fprintf(&b, "Time: %s\n", meeting.StartTime.Format("3:04 PM"))
	fmt.Fprintf(&b, "Duration: %d minutes\n", durationMinutes(meeting))

	if meeting.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", meeting.Description)
	}

	if attendees := attendeeEmails(meeting); len(attendees) > 0 {
		limit := len(attendees)
		if limit > 5 {
			limit = 5
		}
		fmt.Fprintf(&b, "Attendees: %s\n", strings.Join(attendees[:limit], ", "))
	}

	if context != nil && context.AIBrief != "" {
		fmt.Fprintf(&b, "\nAI-GENERATED CONTEXT:\n%s\n", context.AIBrief)

		if topics := stringList(context.KeyTopics); len(topics) > 0 {
			b.WriteString("\nKey Topics:\n")
			for _, topic := range capList(topics, 5) {
				fmt.Fprintf(&b, "  - %s\n", topic)
			}
		}

		if checklist := stringList(context.PreparationChecklist); len(checklist) > 0 {
			b.WriteString("\nPreparation Checklist:\n")
			for _, item := range capList(checklist, 5) {
				fmt.Fprintf(&b, "  - %s\n", item)
			}
		}
	}

	if meeting.MeetingLink != "" {
		fmt.Fprintf(&b, "\nJoin Meeting: %s\n", meeting.MeetingLink)
	}

	b.WriteString("\n" + strings.Repeat("=", 50))
	b.WriteString("\nSent by ContextMeet - Your AI Meeting Assistant")

	return b.String()
}

func durationMinutes(meeting *models.Meeting) int {
	if meeting.StartTime.IsZero() || meeting.EndTime.IsZero() {
		return 30
	}
	minutes := int(meeting.EndTime.Sub(meeting.StartTime).Minutes())
	if minutes <= 0 {
		return 30
	}
	return minutes
}

func capList(values []string, limit int) []string {
	if len(values) > limit {
		return values[:limit]
	}
	return values
}
