package pipeline

import (
	"context"
	"log/slog"

	"github.com/couchcryptid/delhiflow-client/internal/domain"
)

// TeeLoader loads into a primary destination and then mirrors the batch to
// secondary ones. Only the primary's error fails the batch.
type TeeLoader struct {
	primary     BatchLoader
	secondaries []BatchLoader
	logger      *slog.Logger
}

// NewTeeLoader creates a TeeLoader.
func NewTeeLoader(primary BatchLoader, logger *slog.Logger, secondaries ...BatchLoader) *TeeLoader {
	return &TeeLoader{primary: primary, secondaries: secondaries, logger: logger}
}

func (t *TeeLoader) LoadBatch(ctx context.Context, events []domain.OutputEvent) error {
	if err := t.primary.LoadBatch(ctx, events); err != nil {
		return err
	}
	for _, s := range t.secondaries {
		if err := s.LoadBatch(ctx, events); err != nil {
			t.logger.Warn("secondary load failed", "error", err, "batch_size", len(events))
		}
	}
	return nil
}
