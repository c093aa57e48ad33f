package seed

import (
	"context"

	"github.com/bongbong-com/modl-panel-sub005/internal/services/moderation/event"
	"github.com/bongbong-com/modl-panel-sub005/internal/services/moderation/projection"
)

// foldBatchSize caps rows drained per outbox pass.
const foldBatchSize = 64

// foldReadModel drains the projection-apply outbox so the panel read model
// matches the seeded ledger without a worker pass. Propagation tasks stay
// queued on purpose: a fresh environment's worker should have visible work.
func (s *Seeder) foldReadModel(ctx context.Context) error {
	folder := projection.NewFolder(s.journal)
	apply := func(ctx context.Context, evt event.Event) error {
		_, err := s.readModel.ApplyEventExactlyOnce(ctx, projection.Consumer, evt, folder.Apply)
		return err
	}
	for {
		processed, err := s.journal.ProcessProjectionApplyOutbox(ctx, s.now, foldBatchSize, apply)
		if err != nil {
			return err
		}
		if processed == 0 {
			return nil
		}
	}
}
