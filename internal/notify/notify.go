// Package notify renders availability alerts and delivers them through
// exactly one configured channel.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/Mantene/tdf-alerts/internal/config"
	"github.com/Mantene/tdf-alerts/internal/diff"
	"github.com/Mantene/tdf-alerts/internal/snapshot"
)

// Subject used by channels that carry one (email, pushbullet).
const Subject = "TDF Title Alert"

// Show is one title's alertable availability.
type Show struct {
	Title string
	URL   string
	Dates []string
}

// Payload is the rendered-ready view of a diff result. It is derived,
// never persisted.
type Payload struct {
	GeneratedAt time.Time
	FilterDate  string // rendered filter date, empty when not filtering
	Shows       []Show // sorted by title
}

// BuildPayload converts a non-empty diff result into a payload, taking
// display casing and offering URLs from the snapshot. Dates render in
// chronological order under layout so output is deterministic.
func BuildPayload(res diff.Result, snap snapshot.Snapshot, filterDate, layout string, now time.Time) Payload {
	p := Payload{
		GeneratedAt: now,
		FilterDate:  filterDate,
	}

	for _, key := range res.Titles() {
		show := Show{
			Title: snap.Display[key],
			URL:   snap.URLs[key],
		}
		if show.Title == "" {
			show.Title = key
		}
		for _, d := range res.Dates(key).Sorted() {
			show.Dates = append(show.Dates, d.Format(layout))
		}
		p.Shows = append(p.Shows, show)
	}

	return p
}

// Channel delivers a rendered alert. Implementations own their transport
// and any retry policy; the dispatcher owes them none.
type Channel interface {
	Name() string
	Send(ctx context.Context, subject, body string) error
}

// htmlSender is implemented by channels that can carry an HTML rendering
// alongside the plain-text body.
type htmlSender interface {
	SendHTML(ctx context.Context, subject, body, htmlBody string) error
}

// Dispatcher sends a payload through its single channel.
type Dispatcher struct {
	channel Channel
	logger  *slog.Logger
}

// NewDispatcher creates a dispatcher around one channel.
func NewDispatcher(channel Channel, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{channel: channel, logger: logger}
}

// Name returns the underlying channel's name.
func (d *Dispatcher) Name() string {
	return d.channel.Name()
}

// Dispatch renders the payload and sends it. An empty payload is a no-op.
func (d *Dispatcher) Dispatch(ctx context.Context, p Payload) error {
	if len(p.Shows) == 0 {
		return nil
	}

	body := Render(p)
	var err error
	if h, ok := d.channel.(htmlSender); ok {
		err = h.SendHTML(ctx, Subject, body, RenderHTML(p))
	} else {
		err = d.channel.Send(ctx, Subject, body)
	}
	if err != nil {
		return fmt.Errorf("send via %s: %w", d.channel.Name(), err)
	}

	d.logger.Info("Notification sent", "channel", d.channel.Name(), "titles", len(p.Shows))
	return nil
}

// NewChannel builds the channel selected by cfg.Method. Validation has
// already guaranteed the method-specific settings are present.
func NewChannel(cfg config.NotificationConfig, logger *slog.Logger) (Channel, error) {
	switch cfg.Method {
	case config.MethodConsole:
		return &Console{Out: os.Stdout, logger: logger}, nil
	case config.MethodEmail:
		return newEmailChannel(cfg.Email, logger), nil
	case config.MethodTelegram:
		return newTelegramChannel(cfg.Telegram, logger)
	case config.MethodDiscord:
		return newWebhookChannel(config.MethodDiscord, cfg.Discord.WebhookURL, logger), nil
	case config.MethodSlack:
		return newWebhookChannel(config.MethodSlack, cfg.Slack.WebhookURL, logger), nil
	case config.MethodPushbullet:
		return newPushbulletChannel(cfg.Pushbullet, logger), nil
	default:
		return nil, fmt.Errorf("unknown notification method %q", cfg.Method)
	}
}
