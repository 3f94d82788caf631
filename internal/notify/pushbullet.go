package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/codeGROOVE-dev/retry"
	"github.com/go-resty/resty/v2"

	"github.com/Mantene/tdf-alerts/internal/config"
)

const pushbulletURL = "https://api.pushbullet.com/v2/pushes"

// pushbulletChannel pushes alerts as Pushbullet notes.
type pushbulletChannel struct {
	client *resty.Client
	apiKey string
	url    string
	logger *slog.Logger
}

func newPushbulletChannel(cfg config.PushbulletConfig, logger *slog.Logger) *pushbulletChannel {
	return &pushbulletChannel{
		client: resty.New().SetTimeout(30 * time.Second),
		apiKey: cfg.APIKey,
		url:    pushbulletURL,
		logger: logger,
	}
}

func (*pushbulletChannel) Name() string { return "pushbullet" }

func (c *pushbulletChannel) Send(ctx context.Context, subject, body string) error {
	err := retry.Do(
		func() error {
			resp, postErr := c.client.R().
				SetContext(ctx).
				SetHeader("Access-Token", c.apiKey).
				SetHeader("Content-Type", "application/json").
				SetBody(map[string]string{
					"type":  "note",
					"title": subject,
					"body":  body,
				}).
				Post(c.url)
			if postErr != nil {
				return fmt.Errorf("post push: %w", postErr)
			}
			if resp.StatusCode() != 200 {
				return fmt.Errorf("pushbullet API returned status %d", resp.StatusCode())
			}
			return nil
		},
		retry.Attempts(3),
		retry.Delay(time.Second),
		retry.MaxDelay(30*time.Second),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, retryErr error) {
			c.logger.Info("Retrying pushbullet push after error", "attempt", n, "error", retryErr)
		}),
	)
	if err != nil {
		return fmt.Errorf("after retries: %w", err)
	}

	c.logger.Info("Pushbullet notification sent")
	return nil
}
