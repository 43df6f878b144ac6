package main

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/contextmeet/contextmeet/internal/ai"
	"github.com/contextmeet/contextmeet/internal/api"
	"github.com/contextmeet/contextmeet/internal/app"
	iauth "github.com/contextmeet/contextmeet/internal/auth"
	"github.com/contextmeet/contextmeet/internal/calendar"
	"github.com/contextmeet/contextmeet/internal/database"
	"github.com/contextmeet/contextmeet/internal/handlers"
	"github.com/contextmeet/contextmeet/internal/notify"
	"github.com/contextmeet/contextmeet/internal/scheduler"
	"github.com/contextmeet/contextmeet/internal/services"
	"github.com/contextmeet/contextmeet/pkg/logger"
	"github.com/contextmeet/contextmeet/pkg/mail"
)

// runtimeStack bundles the long-lived pieces of the running server.
type runtimeStack struct {
	DB         *gorm.DB
	Router     *gin.Engine
	Dispatcher *scheduler.Dispatcher
}

// bootstrapRuntime initialises the database, services, background delivery,
// and the HTTP router.
func bootstrapRuntime(cfg *app.Config, log *zap.Logger) (*runtimeStack, error) {
	stack := &runtimeStack{}
	var err error
	success := false

	defer func() {
		if !success {
			stack.Shutdown(log)
		}
	}()

	stack.DB, err = initialiseDatabase(cfg)
	if err != nil {
		return nil, err
	}

	encryptionKey, err := cfg.Security.EncryptionKeyBytes()
	if err != nil {
		return nil, fmt.Errorf("decode encryption key: %w", err)
	}

	jwtSvc, err := iauth.NewJWTService(iauth.JWTConfig{
		Secret:          cfg.Auth.JWT.Secret,
		Issuer:          cfg.Auth.JWT.Issuer,
		AccessTokenTTL:  cfg.Auth.JWT.TTL,
		RefreshTokenTTL: cfg.Auth.Session.RefreshTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("initialise jwt service: %w", err)
	}

	var calendarClient *calendar.Client
	if cfg.Google.ClientID != "" && cfg.Google.ClientSecret != "" {
		calendarClient = calendar.NewClient(calendar.Config{
			ClientID:     cfg.Google.ClientID,
			ClientSecret: cfg.Google.ClientSecret,
			RedirectURL:  cfg.Google.RedirectURL,
			SyncWindow:   cfg.Google.SyncWindow,
		})
	} else {
		log.Info("google credentials not configured; calendar sync disabled")
	}

	generator := ai.NewGenerator(ai.NewClient(ai.Config{
		Enabled: cfg.AI.Enabled,
		BaseURL: cfg.AI.BaseURL,
		Model:   cfg.AI.Model,
		Timeout: cfg.AI.Timeout,
	}))

	authSvc, err := services.NewAuthService(stack.DB, jwtSvc, calendarClient, encryptionKey)
	if err != nil {
		return nil, fmt.Errorf("initialise auth service: %w", err)
	}
	meetingSvc, err := services.NewMeetingService(stack.DB)
	if err != nil {
		return nil, fmt.Errorf("initialise meeting service: %w", err)
	}
	contextSvc, err := services.NewContextService(stack.DB, generator)
	if err != nil {
		return nil, fmt.Errorf("initialise context service: %w", err)
	}
	notificationSvc, err := services.NewNotificationService(stack.DB)
	if err != nil {
		return nil, fmt.Errorf("initialise notification service: %w", err)
	}

	var syncSvc *services.SyncService
	if calendarClient != nil {
		syncSvc, err = services.NewSyncService(stack.DB, calendarClient, encryptionKey)
		if err != nil {
			return nil, fmt.Errorf("initialise sync service: %w", err)
		}
	}

	if cfg.Notifications.Enabled {
		senders, err := buildSenders(cfg, log)
		if err != nil {
			return nil, err
		}

		stack.Dispatcher, err = scheduler.NewDispatcher(stack.DB, notificationSvc, notify.NewDispatcher(senders...),
			scheduler.WithSchedule(cfg.Notifications.DispatchSchedule),
		)
		if err != nil {
			return nil, fmt.Errorf("initialise dispatcher: %w", err)
		}
		if err := stack.Dispatcher.Start(); err != nil {
			return nil, fmt.Errorf("start dispatcher: %w", err)
		}
	}

	stack.Router, err = api.NewRouter(api.Options{
		DB:              stack.DB,
		JWT:             jwtSvc,
		Auth:            handlers.NewAuthHandler(authSvc, calendarClient),
		Meetings:        handlers.NewMeetingHandler(meetingSvc, authSvc, contextSvc, notificationSvc, syncSvc),
		Contexts:        handlers.NewContextHandler(contextSvc),
		Notifications:   handlers.NewNotificationHandler(notificationSvc, authSvc, meetingSvc),
		AllowedOrigins:  cfg.Server.AllowedOrigins,
		MetricsEndpoint: cfg.Monitoring.Prometheus.Endpoint,
		HealthEnabled:   cfg.Monitoring.Health.Enabled,
		MetricsEnabled:  cfg.Monitoring.Prometheus.Enabled,
	})
	if err != nil {
		return nil, fmt.Errorf("build api router: %w", err)
	}

	success = true
	return stack, nil
}

// buildSenders assembles the delivery channels that are configured.
func buildSenders(cfg *app.Config, log *zap.Logger) ([]notify.Sender, error) {
	var senders []notify.Sender

	mailer, err := mail.NewSMTPMailer(cfg.Email.MailConfig())
	if err != nil {
		return nil, fmt.Errorf("initialise mailer: %w", err)
	}
	senders = append(senders, notify.NewEmailSender(mailer))
	if !cfg.Email.SMTP.Enabled {
		log.Info("smtp disabled; email reminders will fail until configured")
	}

	if cfg.Telegram.Enabled && cfg.Telegram.BotToken != "" {
		senders = append(senders, notify.NewTelegramSender(notify.TelegramConfig{
			BotToken: cfg.Telegram.BotToken,
			APIBase:  cfg.Telegram.APIBase,
			Timeout:  cfg.Telegram.Timeout,
		}))
	}

	return senders, nil
}

// Shutdown stops background delivery and releases the database.
func (s *runtimeStack) Shutdown(log *zap.Logger) {
	if s == nil {
		return
	}

	if s.Dispatcher != nil {
		<-s.Dispatcher.Stop().Done()
	}
	if s.DB != nil {
		closeDatabase(s.DB, log)
	}
}

func initialiseDatabase(cfg *app.Config) (*gorm.DB, error) {
	dbCfg := convertDatabaseConfig(cfg)
	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := database.Migrate(db); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	logger.WithModule("database").Info("database connected",
		zap.String("driver", strings.ToLower(strings.TrimSpace(dbCfg.Driver))))
	return db, nil
}

func convertDatabaseConfig(cfg *app.Config) database.Config {
	dbCfg := database.Config{
		Driver: strings.ToLower(strings.TrimSpace(cfg.Database.Driver)),
		Path:   strings.TrimSpace(cfg.Database.Path),
		DSN:    strings.TrimSpace(cfg.Database.DSN),
	}

	switch dbCfg.Driver {
	case "", "sqlite":
		dbCfg.Driver = "sqlite"
	case "postgres", "postgresql":
		dbCfg.Driver = "postgres"
		dbCfg.Host = strings.TrimSpace(cfg.Database.Postgres.Host)
		dbCfg.Port = cfg.Database.Postgres.Port
		dbCfg.Name = strings.TrimSpace(cfg.Database.Postgres.Database)
		dbCfg.User = strings.TrimSpace(cfg.Database.Postgres.Username)
		dbCfg.Password = strings.TrimSpace(cfg.Database.Postgres.Password)
	case "mysql", "mariadb":
		dbCfg.Driver = "mysql"
		dbCfg.Host = strings.TrimSpace(cfg.Database.MySQL.Host)
		dbCfg.Port = cfg.Database.MySQL.Port
		dbCfg.Name = strings.TrimSpace(cfg.Database.MySQL.Database)
		dbCfg.User = strings.TrimSpace(cfg.Database.MySQL.Username)
		dbCfg.Password = strings.TrimSpace(cfg.Database.MySQL.Password)
	default:
		// Leave driver as-is to surface unsupported driver error during open.
	}

	return dbCfg
}

func closeDatabase(db *gorm.DB, log *zap.Logger) {
	if db == nil {
		return
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Warn("failed to obtain underlying sql DB for closing", zap.Error(err))
		return
	}

	if err := sqlDB.Close(); err != nil {
		log.Warn("failed to close database", zap.Error(err))
	}
}
