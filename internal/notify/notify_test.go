package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/contextmeet/contextmeet/internal/models"
	"github.com/contextmeet/contextmeet/pkg/mail"
)

type captureMailer struct {
	sent []mail.Message
	err  error
}

func (m *captureMailer) Send(ctx context.Context, msg mail.Message) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func sampleMeeting() *models.Meeting {
	attendees, _ := json.Marshal([]string{"sam@example.com", "lee@example.com"})
	return &models.Meeting{
		Title:       "Design Review",
		Description: "Review the Q3 mocks",
		StartTime:   time.Date(2025, 7, 1, 10, 0, 0, 0, time.UTC),
		EndTime:     time.Date(2025, 7, 1, 10, 45, 0, 0, time.UTC),
		MeetingLink: "https://meet.google.com/abc-defg-hij",
		Attendees:   datatypes.JSON(attendees),
	}
}

func sampleContext() *models.Context {
	topics, _ := json.Marshal([]string{"mocks", "timeline"})
	checklist, _ := json.Marshal([]string{"review designs"})
	return &models.Context{
		AIBrief:              "Walkthrough of the Q3 design direction.",
		KeyTopics:            datatypes.JSON(topics),
		PreparationChecklist: datatypes.JSON(checklist),
	}
}

func TestEmailSenderBuildsReminder(t *testing.T) {
	mailer := &captureMailer{}
	sender := NewEmailSender(mailer)

	delivered, err := sender.Send(context.Background(), Payload{
		Meeting:      sampleMeeting(),
		Context:      sampleContext(),
		UserEmail:    "alex@example.com",
		MinutesUntil: 15,
	})
	require.NoError(t, err)
	require.False(t, delivered)
	require.Len(t, mailer.sent, 1)

	msg := mailer.sent[0]
	require.Equal(t, []string{"alex@example.com"}, msg.To)
	require.Equal(t, "Reminder: Design Review in 15 minutes", msg.Subject)
	require.Contains(t, msg.Body, "Duration: 45 minutes")
	require.Contains(t, msg.Body, "Walkthrough of the Q3 design direction.")
	require.Contains(t, msg.Body, "sam@example.com, lee@example.com")
	require.Contains(t, msg.Body, "Join Meeting: https://meet.google.com/abc-defg-hij")
}

func TestEmailSenderCreatedSubject(t *testing.T) {
	mailer := &captureMailer{}
	sender := NewEmailSender(mailer)

	_, err := sender.Send(context.Background(), Payload{
		Meeting:   sampleMeeting(),
		UserEmail: "alex@example.com",
	})
	require.NoError(t, err)
	require.Equal(t, "Meeting Created: Design Review", mailer.sent[0].Subject)
}

func TestEmailSenderRequiresRecipient(t *testing.T) {
	sender := NewEmailSender(&captureMailer{})
	_, err := sender.Send(context.Background(), Payload{Meeting: sampleMeeting()})
	require.Error(t, err)
}

func TestTelegramSenderPostsMessage(t *testing.T) {
	var captured sendMessageRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/bot123:token/sendMessage", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		_, _ = w.Write([]byte(`{"ok": true}`))
	}))
	defer server.Close()

	sender := NewTelegramSender(TelegramConfig{
		BotToken: "123:token",
		APIBase:  server.URL,
	}, WithTelegramHTTPClient(server.Client()))

	delivered, err := sender.Send(context.Background(), Payload{
		Meeting:        sampleMeeting(),
		Context:        sampleContext(),
		TelegramChatID: "chat-9",
		MinutesUntil:   15,
	})
	require.NoError(t, err)
	require.True(t, delivered)

	require.Equal(t, "chat-9", captured.ChatID)
	require.Equal(t, "Markdown", captured.ParseMode)
	require.Contains(t, captured.Text, "*Design Review*")
	require.Contains(t, captured.Text, "15 minutes")
	require.NotNil(t, captured.ReplyMarkup)
	require.Equal(t, "https://meet.google.com/abc-defg-hij", captured.ReplyMarkup.InlineKeyboard[0][0].URL)
}

func TestTelegramSenderNon200Fails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	sender := NewTelegramSender(TelegramConfig{BotToken: "t", APIBase: server.URL}, WithTelegramHTTPClient(server.Client()))

	delivered, err := sender.Send(context.Background(), Payload{
		Meeting:        sampleMeeting(),
		TelegramChatID: "chat-9",
	})
	require.Error(t, err)
	require.False(t, delivered)
}

func TestTelegramSenderRequiresChatID(t *testing.T) {
	sender := NewTelegramSender(TelegramConfig{BotToken: "t"})
	_, err := sender.Send(context.Background(), Payload{Meeting: sampleMeeting()})
	require.Error(t, err)
}

func TestDispatcherRoutesByChannel(t *testing.T) {
	mailer := &captureMailer{}
	dispatcher := NewDispatcher(NewEmailSender(mailer))

	delivered, err := dispatcher.Dispatch(context.Background(), models.ChannelEmail, Payload{
		Meeting:   sampleMeeting(),
		UserEmail: "alex@example.com",
	})
	require.NoError(t, err)
	require.False(t, delivered)
	require.Len(t, mailer.sent, 1)
}

func TestDispatcherUnknownChannel(t *testing.T) {
	dispatcher := NewDispatcher()
	_, err := dispatcher.Dispatch(context.Background(), "sms", Payload{})
	require.Error(t, err)
}

func TestDispatcherPropagatesSendFailure(t *testing.T) {
	mailer := &captureMailer{err: errors.New("smtp down")}
	dispatcher := NewDispatcher(NewEmailSender(mailer))

	_, err := dispatcher.Dispatch(context.Background(), models.ChannelEmail, Payload{
		Meeting:   sampleMeeting(),
		UserEmail: "alex@example.com",
	})
	require.Error(t, err)
}

func TestMinutesUntil(t *testing.T) {
	meeting := sampleMeeting()
	now := meeting.StartTime.Add(-30 * time.Minute)
	require.Equal(t, 30, MinutesUntil(meeting, now))
	require.Equal(t, 0, MinutesUntil(nil, now))
}
