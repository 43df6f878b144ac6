package mail

import (
	"bytes"
	"context"
	"crypto/tls"
	"io"
	"net"
	"net/smtp"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeSMTPClient struct {
	mailFrom string
	rcpts    []string
	data     bytes.Buffer
	quit     bool
}

func (f *fakeSMTPClient) Mail(from string) error { f.mailFrom = from; return nil }
func (f *fakeSMTPClient) Rcpt(to string) error   { f.rcpts = append(f.rcpts, to); return nil }
func (f *fakeSMTPClient) Data() (io.WriteCloser, error) {
	return nopWriteCloser{&f.data}, nil
}
func (f *fakeSMTPClient) Quit() error                       { f.quit = true; return nil }
func (f *fakeSMTPClient) Close() error                      { return nil }
func (f *fakeSMTPClient) StartTLS(*tls.Config) error        { return nil }
func (f *fakeSMTPClient) Auth(smtp.Auth) error              { return nil }
func (f *fakeSMTPClient) Extension(string) (bool, string)   { return false, "" }

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

func newTestMailer(client *fakeSMTPClient) *smtpMailer {
	server, _ := net.Pipe()
	return &smtpMailer{
		cfg: Config{
			Enabled: true,
			Host:    "smtp.example.com",
			Port:    587,
			From:    "noreply@contextmeet.io",
			Timeout: time.Second,
		},
		dialFn: func(ctx context.Context, cfg Config) (net.Conn, smtpClient, error) {
			return server, client, nil
		},
		authFn: func(smtpClient, Config) error { return nil },
	}
}

func TestSendWritesFormattedMessage(t *testing.T) {
	client := &fakeSMTPClient{}
	mailer := newTestMailer(client)

	err := mailer.Send(context.Background(), Message{
		To:      []string{"alex@example.com", "alex@example.com", "sam@example.com"},
		Subject: "Reminder: Design Review in 15 minutes",
		Body:    "Your meeting starts soon.",
	})
	require.NoError(t, err)
	require.True(t, client.quit)

	require.Equal(t, "noreply@contextmeet.io", client.mailFrom)
	require.Equal(t, []string{"alex@example.com", "sam@example.com"}, client.rcpts)

	payload := client.data.String()
	require.Contains(t, payload, "Subject: Reminder: Design Review in 15 minutes")
	require.Contains(t, payload, "\r\n\r\nYour meeting starts soon.")
}

func TestSendRejectsEmptyRecipients(t *testing.T) {
	mailer := newTestMailer(&fakeSMTPClient{})

	err := mailer.Send(context.Background(), Message{Subject: "hi"})
	require.Error(t, err)
}

func TestSendDisabled(t *testing.T) {
	mailer := newTestMailer(&fakeSMTPClient{})
	mailer.cfg.Enabled = false

	err := mailer.Send(context.Background(), Message{To: []string{"a@b.com"}})
	require.ErrorIs(t, err, ErrDisabled)
}

func TestSubjectHeaderInjectionStripped(t *testing.T) {
	client := &fakeSMTPClient{}
	mailer := newTestMailer(client)

	err := mailer.Send(context.Background(), Message{
		To:      []string{"alex@example.com"},
		Subject: "Hello\r\nBcc: attacker@example.com",
		Body:    "body",
	})
	require.NoError(t, err)
	require.NotContains(t, client.data.String(), "Bcc: attacker")
}

func TestValidateConfig(t *testing.T) {
	require.NoError(t, validateConfig(Config{Enabled: false}))
	require.Error(t, validateConfig(Config{Enabled: true, Port: 25}))
	require.Error(t, validateConfig(Config{Enabled: true, Host: "smtp.example.com"}))

	_, err := NewSMTPMailer(Config{Enabled: true, Host: "smtp.example.com", Port: 25})
	require.NoError(t, err)
}
