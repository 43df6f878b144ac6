package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/contextmeet/contextmeet/internal/models"
	"github.com/contextmeet/contextmeet/internal/notify"
	"github.com/contextmeet/contextmeet/internal/services"
	"github.com/contextmeet/contextmeet/pkg/logger"
)

const (
	defaultDispatchSpec = "* * * * *"
	defaultBatchSize    = 100
)

// Dispatcher polls for due reminders and hands them to the channel senders.
// One bad notification never blocks the rest of the batch.
type Dispatcher struct {
	db            *gorm.DB
	notifications *services.NotificationService
	sender        *notify.Dispatcher
	cron          *cron.Cron
	now           func() time.Time
	log           *zap.Logger

	schedule  string
	batchSize int
}

// Option customises the Dispatcher.
type Option func(*Dispatcher)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(d *Dispatcher) {
		if c != nil {
			d.cron = c
		}
	}
}

// WithNow overrides the clock used for due checks and reminder lead times.
func WithNow(now func() time.Time) Option {
	return func(d *Dispatcher) {
		if now != nil {
			d.now = now
		}
	}
}

// WithSchedule overrides the cron expression for the delivery poll.
func WithSchedule(spec string) Option {
	return func(d *Dispatcher) {
		if spec != "" {
			d.schedule = spec
		}
	}
}

// WithBatchSize caps how many due notifications one tick processes.
func WithBatchSize(size int) Option {
	return func(d *Dispatcher) {
		if size > 0 {
			d.batchSize = size
		}
	}
}

// NewDispatcher constructs a Dispatcher with sensible defaults.
func NewDispatcher(db *gorm.DB, notifications *services.NotificationService, sender *notify.Dispatcher, opts ...Option) (*Dispatcher, error) {
	if db == nil {
		return nil, errors.New("dispatcher: db is required")
	}
	if notifications == nil {
		return nil, errors.New("dispatcher: notification service is required")
	}
	if sender == nil {
		return nil, errors.New("dispatcher: channel dispatcher is required")
	}

	dispatcher := &Dispatcher{
		db:            db,
		notifications: notifications,
		sender:        sender,
		now:           func() time.Time { return time.Now().UTC() },
		log:           logger.WithModule("scheduler"),
		schedule:      defaultDispatchSpec,
		batchSize:     defaultBatchSize,
	}
	for _, opt := range opts {
		opt(dispatcher)
	}

	if dispatcher.cron == nil {
		dispatcher.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}
	return dispatcher, nil
}

// Start registers the delivery job and launches the scheduler.
func (d *Dispatcher) Start() error {
	_, err := d.cron.AddFunc(d.schedule, func() {
		if err := d.RunOnce(context.Background()); err != nil {
			d.log.Warn("delivery tick finished with errors", zap.Error(err))
		}
	})
	if err != nil {
		return err
	}

	d.cron.Start()
	d.log.Info("notification dispatcher started", zap.String("schedule", d.schedule))
	return nil
}

// Stop halts the scheduler, waiting for any running tick to complete.
func (d *Dispatcher) Stop() context.Context {
	if d.cron == nil {
		return context.Background()
	}
	return d.cron.Stop()
}

// RunOnce processes one batch of due notifications. Failures are recorded on
// the individual rows and aggregated into the returned error.
func (d *Dispatcher) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	due, err := d.notifications.Due(ctx, d.batchSize)
	if err != nil {
		return err
	}
	if len(due) == 0 {
		return nil
	}

	var errs error
	for _, notification := range due {
		if err := d.deliver(ctx, &notification); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("notification %s: %w", notification.ID, err))
		}
	}
	return errs
}

func (d *Dispatcher) deliver(ctx context.Context, notification *models.Notification) error {
	payload, err := d.buildPayload(ctx, notification)
	if err != nil {
		if markErr := d.notifications.MarkFailed(ctx, notification.ID, err.Error()); markErr != nil {
			return multierr.Append(err, markErr)
		}
		return err
	}

	delivered, err := d.sender.Dispatch(ctx, notification.Channel, *payload)
	if err != nil {
		d.log.Warn("delivery failed",
			zap.String("notification_id", notification.ID),
			zap.String("channel", notification.Channel),
			zap.Error(err))
		if markErr := d.notifications.MarkFailed(ctx, notification.ID, err.Error()); markErr != nil {
			return multierr.Append(err, markErr)
		}
		return err
	}

	if err := d.notifications.MarkSent(ctx, notification.ID, delivered); err != nil {
		return err
	}

	d.log.Info("reminder delivered",
		zap.String("notification_id", notification.ID),
		zap.String("channel", notification.Channel),
		zap.Bool("confirmed", delivered))
	return nil
}

// buildPayload assembles the meeting, brief, and recipient details for a
// notification. A missing or cancelled meeting is a permanent failure.
func (d *Dispatcher) buildPayload(ctx context.Context, notification *models.Notification) (*notify.Payload, error) {
	var meeting models.Meeting
	err := d.db.WithContext(ctx).Where("id = ?", notification.MeetingID).First(&meeting).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("meeting no longer exists")
		}
		return nil, fmt.Errorf("load meeting: %w", err)
	}
	if meeting.IsCancelled {
		return nil, errors.New("meeting was cancelled")
	}

	var user models.User
	err = d.db.WithContext(ctx).Where("id = ?", notification.UserID).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("user no longer exists")
		}
		return nil, fmt.Errorf("load user: %w", err)
	}

	payload := &notify.Payload{
		Meeting:        &meeting,
		UserEmail:      user.Email,
		TelegramChatID: user.TelegramChatID,
		MinutesUntil:   notify.MinutesUntil(&meeting, d.now()),
	}

	var mc models.Context
	err = d.db.WithContext(ctx).Where("meeting_id = ?", meeting.ID).First(&mc).Error
	switch {
	case err == nil:
		payload.Context = &mc
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, fmt.Errorf("load context: %w", err)
	}
	return payload, nil
}
