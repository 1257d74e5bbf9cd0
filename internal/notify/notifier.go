// Package notify fans run outcomes out to chat channels. Each sender is
// tried independently and events can be filtered per deployment.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alanyoungcy/lotoqubo/internal/domain"
	"github.com/alanyoungcy/lotoqubo/internal/portfolio"
)

// Event names.
const (
	EventPortfolioReady  = domain.EventPortfolioReady
	EventPortfolioFailed = domain.EventPortfolioFailed
	EventDrawsRefreshed  = domain.EventDrawsRefreshed
)

// Sender delivers one message to one channel.
type Sender interface {
	Send(ctx context.Context, title, message string) error
	Name() string
}

// Notifier dispatches to every sender, optionally limited to a set of events.
type Notifier struct {
	senders []Sender
	events  map[string]bool
	logger  *slog.Logger
}

// NewNotifier creates a Notifier. An empty events list allows every event.
func NewNotifier(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	allowed := make(map[string]bool, len(events))
	for _, e := range events {
		if e = strings.TrimSpace(e); e != "" {
			allowed[e] = true
		}
	}
	return &Notifier{
		senders: senders,
		events:  allowed,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// Enabled reports whether at least one sender is registered.
func (n *Notifier) Enabled() bool {
	return n != nil && len(n.senders) > 0
}

// Notify sends title/message for event unless the event is filtered out.
func (n *Notifier) Notify(ctx context.Context, event, title, message string) error {
	if len(n.events) > 0 && !n.events[event] {
		n.logger.DebugContext(ctx, "event filtered", slog.String("event", event))
		return nil
	}
	return n.dispatch(ctx, title, message)
}

// NotifyRun formats a budget run and sends it as portfolio_ready or
// portfolio_failed depending on its status.
func (n *Notifier) NotifyRun(ctx context.Context, currency string, run domain.PortfolioRun) error {
	event := EventPortfolioReady
	title := fmt.Sprintf("Portfolio ready for %s%.2f", currency, run.Budget)
	if run.Status == domain.RunStatusFailed {
		event = EventPortfolioFailed
		title = fmt.Sprintf("Portfolio failed for %s%.2f", currency, run.Budget)
	}

	var b strings.Builder
	if err := portfolio.Render(&b, currency, run); err != nil {
		return fmt.Errorf("notify: render run %s: %w", run.ID, err)
	}
	return n.Notify(ctx, event, title, b.String())
}

// dispatch sends to every sender; one failure does not stop the rest.
func (n *Notifier) dispatch(ctx context.Context, title, message string) error {
	var errs []error
	for _, s := range n.senders {
		if err := s.Send(ctx, title, message); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		n.logger.DebugContext(ctx, "notification sent",
			slog.String("sender", s.Name()),
			slog.String("title", title),
		)
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("notify: %w", err)
	}
	return nil
}
