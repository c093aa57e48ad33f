package maintenance

import (
	"context"
	"time"

	"github.com/bongbong-com/modl-panel-sub005/internal/services/moderation/storage"
)

// outboxInspector reads queue depth and rows for both journal-side outboxes.
type outboxInspector interface {
	GetProjectionApplyOutboxSummary(context.Context) (storage.ProjectionApplyOutboxSummary, error)
	ListProjectionApplyOutboxRows(context.Context, string, int) ([]storage.ProjectionApplyOutboxEntry, error)
	GetPropagationOutboxSummary(context.Context) (storage.PropagationOutboxSummary, error)
	ListPropagationTasks(context.Context, string, int) ([]storage.PropagationOutboxEntry, error)
}

// applyOutboxRequeuer transitions dead projection-apply rows back to pending.
type applyOutboxRequeuer interface {
	RequeueProjectionApplyOutboxRow(context.Context, string, uint64, time.Time) (bool, error)
	RequeueProjectionApplyOutboxDeadRows(context.Context, int, time.Time) (int, error)
}

// propagationRequeuer transitions dead propagation tasks back to pending.
type propagationRequeuer interface {
	RequeuePropagationTask(context.Context, string, time.Time) (bool, error)
	RequeueDeadPropagationTasks(context.Context, int, time.Time) (int, error)
}
