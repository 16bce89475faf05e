// Package notify delivers staging, failure, and suggestion events to the
// owner's configured chat platform. Delivery is best-effort everywhere: a
// failed notification never fails the pipeline run that produced it.
package notify

import (
	"context"
	"fmt"
	"log"

	"github.com/zulandar/inkwell/internal/config"
	"github.com/zulandar/inkwell/internal/models"
)

// Event severities.
const (
	SeverityInfo    = "info"
	SeveritySuccess = "success"
	SeverityError   = "error"
)

// Event is one notification to deliver.
type Event struct {
	Title    string
	Body     string
	Severity string
}

// Notifier delivers events to a chat platform.
type Notifier interface {
	Send(ctx context.Context, ev Event) error
}

// FromConfig builds the configured notifier. An empty platform falls back to
// log-only delivery.
func FromConfig(cfg config.NotifyConfig) (Notifier, error) {
	switch cfg.Platform {
	case "":
		return &LogNotifier{}, nil
	case "slack":
		return NewSlack(cfg.BotToken, cfg.ChannelID), nil
	case "discord":
		return NewDiscord(cfg.BotToken, cfg.ChannelID)
	default:
		return nil, fmt.Errorf("notify: unknown platform %q", cfg.Platform)
	}
}

// LogNotifier writes events to the process log. Default when no chat
// platform is configured.
type LogNotifier struct{}

// Send logs the event.
func (n *LogNotifier) Send(_ context.Context, ev Event) error {
	log.Printf("notify: [%s] %s: %s", ev.Severity, ev.Title, ev.Body)
	return nil
}

// severityColor maps a severity to a sidebar color hint.
func severityColor(severity string) string {
	switch severity {
	case SeveritySuccess:
		return "#36a64f"
	case SeverityError:
		return "#d50200"
	default:
		return "#439fe0"
	}
}

// VersionStaged builds the "draft ready for review" event.
func VersionStaged(d *models.Deliverable, v *models.DeliverableVersion) Event {
	return Event{
		Title:    fmt.Sprintf("%s v%d is ready for review", d.Title, v.VersionNumber),
		Body:     "A new draft has been staged. Review and approve it to send.",
		Severity: SeveritySuccess,
	}
}

// RunFailed builds the "generation failed" event.
func RunFailed(d *models.Deliverable, v *models.DeliverableVersion, err error) Event {
	return Event{
		Title:    fmt.Sprintf("%s v%d failed to generate", d.Title, v.VersionNumber),
		Body:     fmt.Sprintf("The run stopped before staging a draft: %v. The next scheduled run will retry from scratch.", err),
		Severity: SeverityError,
	}
}

// SuggestionCreated builds the "new suggested deliverable" event.
func SuggestionCreated(s *models.SuggestedDeliverable) Event {
	return Event{
		Title:    fmt.Sprintf("Suggested deliverable: %s", s.ProposedTitle),
		Body:     fmt.Sprintf("%s Enable it to start receiving drafts, or dismiss it.", s.DetectionReason),
		Severity: SeverityInfo,
	}
}

// SuggestionIntro builds the one-time explanation sent before any suggestion
// has ever been made for an owner.
func SuggestionIntro() Event {
	return Event{
		Title:    "Inkwell watches for recurring work",
		Body:     "When the same topic keeps coming up across your sessions, Inkwell will suggest turning it into a recurring deliverable. Nothing is created without your approval.",
		Severity: SeverityInfo,
	}
}
