package mail

import (
	"context"
	"fmt"

	"github.com/mwx2006/blessing-skin-server/internal/config"
	"github.com/mwx2006/blessing-skin-server/internal/models"

	"gopkg.in/gomail.v2"
)

// SMTPSender delivers mail directly over SMTP. Dial and delivery errors
// surface to the caller; there is no retry.
type SMTPSender struct {
	dialer *gomail.Dialer
	from   string
}

func NewSMTP(cfg config.Mail) *SMTPSender {
	from := cfg.From
	if from == "" {
		from = cfg.Username
	}

	return &SMTPSender{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   from,
	}
}

func (s *SMTPSender) Send(_ context.Context, msg models.Message) error {
	const op = "mail.SMTPSender.Send"

	m := gomail.NewMessage()
	m.SetHeader("To", msg.Email)
	m.SetHeader("From", s.from)
	m.SetHeader("Subject", subject(msg.Purpose))
	m.SetBody("text/plain", body(msg))

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func subject(purpose string) string {
	switch purpose {
	case PurposePasswordReset:
		return "Reset your password"
	case PurposeEmailVerification:
		return "Verify your email address"
	default:
		return "Notification"
	}
}

func body(msg models.Message) string {
	switch msg.Purpose {
	case PurposePasswordReset:
		return "Click the link below to reset your password:\n\n" + msg.Link
	case PurposeEmailVerification:
		return "Click the link below to verify your email address:\n\n" + msg.Link
	default:
		return msg.Link
	}
}
