package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/contextmeet/contextmeet/internal/models"
)

// DefaultTelegramAPIBase is the public Telegram Bot API endpoint.
const DefaultTelegramAPIBase = "https://api.telegram.org"

// TelegramConfig holds bot credentials and endpoint settings.
type TelegramConfig struct {
	BotToken string
	APIBase  string
	Timeout  time.Duration
}

// TelegramSender delivers meeting reminders through the Telegram Bot API.
type TelegramSender struct {
	cfg        TelegramConfig
	httpClient *http.Client
}

// TelegramOption customises TelegramSender construction.
type TelegramOption func(*TelegramSender)

// WithTelegramHTTPClient overrides the underlying HTTP client.
func WithTelegramHTTPClient(httpClient *http.Client) TelegramOption {
	return func(s *TelegramSender) {
		s.httpClient = httpClient
	}
}

// NewTelegramSender builds a Telegram notification channel.
func NewTelegramSender(cfg TelegramConfig, opts ...TelegramOption) *TelegramSender {
	if cfg.APIBase == "" {
		cfg.APIBase = DefaultTelegramAPIBase
	}
	cfg.APIBase = strings.TrimRight(cfg.APIBase, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	s := &TelegramSender{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Channel implements Sender.
func (s *TelegramSender) Channel() string {
	return models.ChannelTelegram
}

type inlineKeyboardButton struct {
	Text string `json:"text"`
	URL  string `json:"url"`
}

type inlineKeyboard struct {
	InlineKeyboard [][]inlineKeyboardButton `json:"inline_keyboard"`
}

type sendMessageRequest struct {
	ChatID                string          `json:"chat_id"`
	Text                  string          `json:"text"`
	ParseMode             string          `json:"parse_mode"`
	DisableWebPagePreview bool            `json:"disable_web_page_preview"`
	ReplyMarkup           *inlineKeyboard `json:"reply_markup,omitempty"`
}

// Send implements Sender. A 200 from the Bot API means the message reached
// the user's chat, so success reports delivered.
func (s *TelegramSender) Send(ctx context.Context, p Payload) (bool, error) {
	if s.cfg.BotToken == "" {
		return false, errors.New("telegram: bot token not configured")
	}
	if p.TelegramChatID == "" {
		return false, errors.New("telegram: chat id missing")
	}
	if p.Meeting == nil {
		return false, errors.New("telegram: meeting missing")
	}

	request := sendMessageRequest{
		ChatID:    p.TelegramChatID,
		Text:      buildTelegramMessage(p.Meeting, p.Context, p.MinutesUntil),
		ParseMode: "Markdown",
	}

	if p.Meeting.MeetingLink != "" {
		request.ReplyMarkup = &inlineKeyboard{
			InlineKeyboard: [][]inlineKeyboardButton{{
				{Text: "Join Meeting", URL: p.Meeting.MeetingLink},
			}},
		}
	}

	body, err := json.Marshal(request)
	if err != nil {
		return false, fmt.Errorf("telegram: marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", s.cfg.APIBase, s.cfg.BotToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("telegram: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("telegram: send message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("telegram: bot API returned %d", resp.StatusCode)
	}

	return true, nil
}

func buildTelegramMessage(meeting *models.Meeting, context *models.Context, minutesUntil int) string {
	var b strings.Builder

	b.WriteString("*Meeting Reminder*\n\n")
	fmt.Fprintf(&b, "*%s* starts in *%d minutes*\n\n", escapeMarkdown(meeting.Title), minutesUntil)
	b.WriteString("*Details:*\n")
	fmt.Fprintf(&b, "- Time: %s\n", meeting.StartTime.Format("3:04 PM"))
	fmt.Fprintf(&b, "- Duration: %d minutes\n", durationMinutes(meeting))

	if meeting.Description != "" {
		fmt.Fprintf(&b, "- Description: %s\n", escapeMarkdown(meeting.Description))
	}

	if attendees := attendeeEmails(meeting); len(attendees) > 0 {
		list := strings.Join(capList(attendees, 3), ", ")
		if len(attendees) > 3 {
			list += fmt.Sprintf(" +%d more", len(attendees)-3)
		}
		fmt.Fprintf(&b, "- Attendees: %s\n", list)
	}

	if context != nil && context.AIBrief != "" {
		fmt.Fprintf(&b, "\n*AI Context:*\n%s\n", escapeMarkdown(context.AIBrief))

		if topics := stringList(context.KeyTopics); len(topics) > 0 {
			b.WriteString("\n*Key Topics:*\n")
			for _, topic := range capList(topics, 3) {
				fmt.Fprintf(&b, "  - %s\n", escapeMarkdown(topic))
			}
		}

		if checklist := stringList(context.PreparationChecklist); len(checklist) > 0 {
			b.WriteString("\n*Quick Prep:*\n")
			for _, item := range capList(checklist, 3) {
				fmt.Fprintf(&b, "  - %s\n", escapeMarkdown(item))
			}
		}
	}

	return b.String()
}

func escapeMarkdown(text string) string {
	text = strings.ReplaceAll(text, "_", "\\_")
	text = strings.ReplaceAll(text, "*", "\\*")
	return text
}
