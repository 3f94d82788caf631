package notify

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"time"

	"github.com/codeGROOVE-dev/retry"
	"github.com/jordan-wright/email"

	"github.com/Mantene/tdf-alerts/internal/config"
)

// emailChannel delivers alerts over SMTP with STARTTLS.
type emailChannel struct {
	cfg    config.EmailConfig
	logger *slog.Logger
}

func newEmailChannel(cfg config.EmailConfig, logger *slog.Logger) *emailChannel {
	return &emailChannel{cfg: cfg, logger: logger}
}

func (*emailChannel) Name() string { return "email" }

func (c *emailChannel) Send(ctx context.Context, subject, body string) error {
	return c.SendHTML(ctx, subject, body, "")
}

// SendHTML sends a multipart message with both renderings.
func (c *emailChannel) SendHTML(ctx context.Context, subject, body, htmlBody string) error {
	addr := fmt.Sprintf("%s:%d", c.cfg.SMTPHost, c.cfg.SMTPPort)
	auth := smtp.PlainAuth("", c.cfg.Sender, c.cfg.Password, c.cfg.SMTPHost)

	err := retry.Do(
		func() error {
			e := email.NewEmail()
			e.From = c.cfg.Sender
			e.To = []string{c.cfg.Recipient}
			e.Subject = subject
			e.Text = []byte(body)
			if htmlBody != "" {
				e.HTML = []byte(htmlBody)
			}

			if sendErr := e.Send(addr, auth); sendErr != nil {
				return fmt.Errorf("smtp send: %w", sendErr)
			}
			return nil
		},
		retry.Attempts(3),
		retry.Delay(time.Second),
		retry.MaxDelay(30*time.Second),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, retryErr error) {
			c.logger.Info("Retrying email send after error", "attempt", n, "error", retryErr)
		}),
	)
	if err != nil {
		return fmt.Errorf("after retries: %w", err)
	}

	c.logger.Info("Email sent", "to", c.cfg.Recipient, "via", addr)
	return nil
}
