package notify

import (
	"context"
	"fmt"

	"github.com/Geldren1/nato-website-2/internal/interfaces"
	"github.com/Geldren1/nato-website-2/internal/models"
	"github.com/ternarybob/arbor"
)

// LogDispatcher writes the run digest to the log. Delivery to subscribers is
// handled outside this module.
type LogDispatcher struct {
	logger arbor.ILogger
}

var _ interfaces.NotificationDispatcher = (*LogDispatcher)(nil)

// NewLogDispatcher creates a dispatcher that logs digests
func NewLogDispatcher(logger arbor.ILogger) *LogDispatcher {
	return &LogDispatcher{logger: logger}
}

// Dispatch logs the change-set of a run
func (d *LogDispatcher) Dispatch(ctx context.Context, result *models.RunResult) error {
	d.logger.Info().
		Str("run_id", result.RunID).
		Str("source", result.Source).
		Int("new", len(result.New)).
		Int("amended", len(result.Amendments)).
		Msg("Change digest\n" + Digest(result))
	return nil
}

// Notifier hands a run's changes to a dispatcher and, once accepted, clears the
// changed-field hints of the postings it reported.
type Notifier struct {
	dispatcher interfaces.NotificationDispatcher
	storage    interfaces.PostingStorage
	logger     arbor.ILogger
}

// NewNotifier creates a notifier
func NewNotifier(dispatcher interfaces.NotificationDispatcher, storage interfaces.PostingStorage, logger arbor.ILogger) *Notifier {
	return &Notifier{dispatcher: dispatcher, storage: storage, logger: logger}
}

// Notify dispatches the result when it carries changes. Returns false when there
// was nothing to send.
func (n *Notifier) Notify(ctx context.Context, result *models.RunResult) (bool, error) {
	if !result.HasChanges() {
		n.logger.Debug().Str("source", result.Source).Msg("No changes detected, skipping notification")
		return false, nil
	}

	if err := n.dispatcher.Dispatch(ctx, result); err != nil {
		return false, fmt.Errorf("failed to dispatch notifications: %w", err)
	}

	codes := make([]string, 0, len(result.New)+len(result.Amendments))
	for _, p := range result.New {
		codes = append(codes, p.Code)
	}
	for _, p := range result.Amendments {
		codes = append(codes, p.Code)
	}

	if err := n.storage.AcknowledgeChanges(ctx, codes); err != nil {
		return true, fmt.Errorf("failed to acknowledge changes: %w", err)
	}
	return true, nil
}
