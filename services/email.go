package services

import (
	"fmt"
	"net/smtp"
)

// Mailer sends a plain-text mail. Implementations must be safe to call
// best-effort from request handlers.
type Mailer interface {
	Send(to, subject, body string) error
}

type smtpMailer struct {
	host string
	port string
	from string
	auth smtp.Auth
}

// NewSMTPMailer returns a Mailer backed by net/smtp, or nil when the SMTP
// host is not configured so callers can skip sending.
func NewSMTPMailer(host, port, username, password, from string) Mailer {
	if host == "" {
		return nil
	}
	var auth smtp.Auth
	if username != "" {
		auth = smtp.PlainAuth("", username, password, host)
	}
	return &smtpMailer{host: host, port: port, from: from, auth: auth}
}

func (m *smtpMailer) Send(to, subject, body string) error {
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\r\n", m.from, to, subject, body)
	return smtp.SendMail(m.host+":"+m.port, m.auth, m.from, []string{to}, []byte(msg))
}
