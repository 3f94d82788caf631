package notify

import (
	"context"
	"fmt"
	"io"
	"log/slog"
)

// Console prints alerts to a writer, normally stdout. Useful for testing
// a configuration before wiring a real channel.
type Console struct {
	Out    io.Writer
	logger *slog.Logger
}

// Name implements Channel.
func (*Console) Name() string { return "console" }

// Send implements Channel.
func (c *Console) Send(_ context.Context, _, body string) error {
	if _, err := fmt.Fprintf(c.Out, "\n%s\n", body); err != nil {
		return fmt.Errorf("write to console: %w", err)
	}
	c.logger.Info("Notification printed to console")
	return nil
}
