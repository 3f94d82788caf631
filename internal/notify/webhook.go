package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/codeGROOVE-dev/retry"
	"github.com/go-resty/resty/v2"
)

// webhookChannel posts alerts to a Discord or Slack incoming webhook.
// Both wrap the alert in a code block so the fixed-width layout survives.
type webhookChannel struct {
	client *resty.Client
	kind   string
	url    string
	logger *slog.Logger
}

func newWebhookChannel(kind, url string, logger *slog.Logger) *webhookChannel {
	return &webhookChannel{
		client: resty.New().SetTimeout(30 * time.Second),
		kind:   kind,
		url:    url,
		logger: logger,
	}
}

func (c *webhookChannel) Name() string { return c.kind }

func (c *webhookChannel) Send(ctx context.Context, _, body string) error {
	payload := map[string]string{}
	wrapped := fmt.Sprintf("```\n%s\n```", body)
	if c.kind == "discord" {
		payload["content"] = wrapped
	} else {
		payload["text"] = wrapped
	}

	err := retry.Do(
		func() error {
			resp, postErr := c.client.R().
				SetContext(ctx).
				SetHeader("Content-Type", "application/json").
				SetBody(payload).
				Post(c.url)
			if postErr != nil {
				return fmt.Errorf("post webhook: %w", postErr)
			}
			if code := resp.StatusCode(); code != 200 && code != 204 {
				return fmt.Errorf("%s webhook returned status %d", c.kind, code)
			}
			return nil
		},
		retry.Attempts(3),
		retry.Delay(time.Second),
		retry.MaxDelay(30*time.Second),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, retryErr error) {
			c.logger.Info("Retrying webhook post after error", "channel", c.kind, "attempt", n, "error", retryErr)
		}),
	)
	if err != nil {
		return fmt.Errorf("after retries: %w", err)
	}

	c.logger.Info("Webhook notification sent", "channel", c.kind)
	return nil
}
