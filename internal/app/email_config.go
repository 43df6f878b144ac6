package app

import "github.com/contextmeet/contextmeet/pkg/mail"

// MailConfig converts EmailConfig to the mail package representation.
func (c EmailConfig) MailConfig() mail.Config {
	return mail.Config{
		Enabled:  c.SMTP.Enabled,
		Host:     c.SMTP.Host,
		Port:     c.SMTP.Port,
		Username: c.SMTP.Username,
		Password: c.SMTP.Password,
		From:     c.SMTP.From,
		UseTLS:   c.SMTP.UseTLS,
		Timeout:  c.SMTP.Timeout,
	}
}
