package channel

import (
	"context"
	"net/smtp"

	"github.com/siteplanhq/notify/internal/config"
)

// Email sends transactional HTML mail over SMTP. Independent of the
// WhatsApp window rules; never used as an automatic WhatsApp fallback.
type Email struct {
	cfg  config.SMTPConfig
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewEmail(cfg config.SMTPConfig) *Email {
	return &Email{cfg: cfg, send: smtp.SendMail}
}

func (e *Email) Send(_ context.Context, to, subject, html string) (Result, error) {
	if !e.cfg.IsConfigured() {
		return notConfigured("email"), nil
	}

	msg := []byte("From: " + e.cfg.From + "\r\n" +
		"To: " + to + "\r\n" +
		"Subject: " + subject + "\r\n" +
		"MIME-Version: 1.0\r\n" +
		"Content-Type: text/html; charset=\"UTF-8\"\r\n" +
		"\r\n" +
		html)

	var auth smtp.Auth
	if e.cfg.Password != "" {
		auth = smtp.PlainAuth("", e.cfg.From, e.cfg.Password, e.cfg.Host)
	}

	if err := e.send(e.cfg.Host+":"+e.cfg.Port, auth, e.cfg.From, []string{to}, msg); err != nil {
		return failed(err.Error()), nil
	}

	// SMTP gives no provider message id back.
	return sent(""), nil
}
