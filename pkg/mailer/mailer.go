package mailer

import (
	"fmt"

	gomail "gopkg.in/gomail.v2"

	"github.com/noah-isme/supervision-portal-api/pkg/config"
)

// Attachment references a file on disk to attach under the given name.
type Attachment struct {
	Path string
	Name string
}

// Message is a single outbound email.
type Message struct {
	To          []string
	Subject     string
	Body        string
	Attachments []Attachment
}

// Sender is the mail dispatch capability consumed by the consolidation workflow.
type Sender interface {
	Send(msg Message) error
}

// SMTPSender delivers messages through an SMTP relay.
type SMTPSender struct {
	dialer *gomail.Dialer
	from   string
}

// NewSMTPSender builds a sender from mail configuration.
func NewSMTPSender(cfg config.MailConfig) *SMTPSender {
	dialer := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	return &SMTPSender{dialer: dialer, from: cfg.From}
}

// Send composes and delivers the message. Transport errors propagate to the
// caller, which translates them into the dispatch failure contract.
func (s *SMTPSender) Send(msg Message) error {
	if len(msg.To) == 0 {
		return fmt.Errorf("message has no recipients")
	}
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", msg.To...)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.Body)
	for _, att := range msg.Attachments {
		if att.Name != "" {
			m.Attach(att.Path, gomail.Rename(att.Name))
		} else {
			m.Attach(att.Path)
		}
	}
	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}
