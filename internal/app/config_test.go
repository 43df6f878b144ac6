package app

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigFromFile(t *testing.T) {
	path := filepath.Join("testdata")
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, "debug", cfg.Server.LogLevel)
	require.Equal(t, []string{"https://app.contextmeet.io"}, cfg.Server.AllowedOrigins)

	require.Equal(t, "postgres", cfg.Database.Driver)
	require.Equal(t, "db.example.com", cfg.Database.Postgres.Host)
	require.Equal(t, 6543, cfg.Database.Postgres.Port)

	require.Equal(t, "jwt-secret", cfg.Auth.JWT.Secret)
	require.Equal(t, "contextmeet-test", cfg.Auth.JWT.Issuer)
	require.Equal(t, 45*time.Minute, cfg.Auth.JWT.TTL)
	require.Equal(t, 1440*time.Hour, cfg.Auth.Session.RefreshTTL)
	require.Equal(t, 64, cfg.Auth.Session.RefreshLength)

	require.Equal(t, "google-client", cfg.Google.ClientID)
	require.Equal(t, 72*time.Hour, cfg.Google.SyncWindow)

	require.True(t, cfg.AI.Enabled)
	require.Equal(t, "http://ollama.internal:11434", cfg.AI.BaseURL)
	require.Equal(t, "llama3.1:70b", cfg.AI.Model)
	require.Equal(t, 45*time.Second, cfg.AI.Timeout)

	require.True(t, cfg.Email.SMTP.Enabled)
	require.Equal(t, "smtp.example.com", cfg.Email.SMTP.Host)
	require.Equal(t, 2525, cfg.Email.SMTP.Port)
	require.Equal(t, 15*time.Second, cfg.Email.SMTP.Timeout)

	require.True(t, cfg.Telegram.Enabled)
	require.Equal(t, "123456:bot-token", cfg.Telegram.BotToken)
	require.Equal(t, "https://api.telegram.org", cfg.Telegram.APIBase)

	require.True(t, cfg.Notifications.Enabled)
	require.Equal(t, []int{15, 60}, cfg.Notifications.ReminderOffsets)
	require.Equal(t, "* * * * *", cfg.Notifications.DispatchSchedule)
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	require.Equal(t, 8000, cfg.Server.Port)
	require.Equal(t, "sqlite", cfg.Database.Driver)
	require.Equal(t, 30*time.Minute, cfg.Auth.JWT.TTL)
	require.Equal(t, 168*time.Hour, cfg.Google.SyncWindow)
	require.Equal(t, []int{15}, cfg.Notifications.ReminderOffsets)
	require.False(t, cfg.Email.SMTP.Enabled)
	require.False(t, cfg.Telegram.Enabled)
}

func TestMailConfigAdapter(t *testing.T) {
	cfg := EmailConfig{SMTP: SMTPConfig{
		Enabled: true,
		Host:    "smtp.example.com",
		Port:    587,
		From:    "no-reply@contextmeet.io",
		Timeout: 10 * time.Second,
	}}

	mc := cfg.MailConfig()
	require.True(t, mc.Enabled)
	require.Equal(t, "smtp.example.com", mc.Host)
	require.Equal(t, 587, mc.Port)
	require.Equal(t, "no-reply@contextmeet.io", mc.From)
	require.Equal(t, 10*time.Second, mc.Timeout)
}
