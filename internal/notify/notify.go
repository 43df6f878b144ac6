package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/contextmeet/contextmeet/internal/models"
	"github.com/contextmeet/contextmeet/pkg/logger"
	"github.com/contextmeet/contextmeet/pkg/metrics"
)

// Payload carries everything a channel needs to render one reminder.
type Payload struct {
	Meeting *models.Meeting
	Context *models.Context

	UserEmail      string
	TelegramChatID string

	// MinutesUntil is the time remaining before the meeting starts.
	// Zero or negative means the message announces a newly created meeting.
	MinutesUntil int
}

// Sender delivers a reminder over a single channel. The returned flag
// reports whether the channel confirmed end-user delivery, as opposed to
// mere acceptance by an intermediary.
type Sender interface {
	Channel() string
	Send(ctx context.Context, p Payload) (delivered bool, err error)
}

// Dispatcher routes payloads to the sender registered for each channel.
type Dispatcher struct {
	senders map[string]Sender
	log     *zap.Logger
}

// NewDispatcher builds a Dispatcher from the given senders.
func NewDispatcher(senders ...Sender) *Dispatcher {
	registry := make(map[string]Sender, len(senders))
	for _, s := range senders {
		registry[s.Channel()] = s
	}
	return &Dispatcher{
		senders: registry,
		log:     logger.WithModule("notify"),
	}
}

// Dispatch sends the payload over the named channel.
func (d *Dispatcher) Dispatch(ctx context.Context, channel string, p Payload) (bool, error) {
	sender, ok := d.senders[channel]
	if !ok {
		return false, fmt.Errorf("notify: unknown channel %q", channel)
	}

	delivered, err := sender.Send(ctx, p)
	if err != nil {
		metrics.NotificationsDelivered.WithLabelValues(channel, "failed").Inc()
		d.log.Warn("delivery failed",
			zap.String("channel", channel),
			zap.Error(err),
		)
		return false, err
	}

	metrics.NotificationsDelivered.WithLabelValues(channel, "sent").Inc()
	return delivered, nil
}

// MinutesUntil computes whole minutes from now until the meeting start.
func MinutesUntil(meeting *models.Meeting, now time.Time) int {
	if meeting == nil || meeting.StartTime.IsZero() {
		return 0
	}
	return int(meeting.StartTime.Sub(now).Minutes())
}

// attendeeEmails decodes the JSON attendee list stored on the meeting.
func attendeeEmails(meeting *models.Meeting) []string {
	if meeting == nil || len(meeting.Attendees) == 0 {
		return nil
	}
	var emails []string
	if err := json.Unmarshal(meeting.Attendees, &emails); err != nil {
		return nil
	}
	return emails
}

// stringList decodes a JSON string array column.
func stringList(raw []byte) []string {
	if len(raw) == 0 {
		return nil
	}
	var values []string
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil
	}
	return values
}
