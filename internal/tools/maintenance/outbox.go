package maintenance

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/bongbong-com/modl-panel-sub005/internal/services/moderation/storage"
)

type outboxReportDocument struct {
	ProjectionApply applyOutboxSection       `json:"projection_apply"`
	Propagation     propagationOutboxSection `json:"propagation"`
}

type applyOutboxSection struct {
	Summary storage.ProjectionApplyOutboxSummary `json:"summary"`
	Rows    []storage.ProjectionApplyOutboxEntry `json:"rows,omitempty"`
}

type propagationOutboxSection struct {
	Summary storage.PropagationOutboxSummary `json:"summary"`
	Rows    []storage.PropagationOutboxEntry `json:"rows,omitempty"`
}

type requeueResult struct {
	Requeued bool   `json:"requeued"`
	PlayerID string `json:"player_id,omitempty"`
	Seq      uint64 `json:"seq,omitempty"`
	TaskID   string `json:"task_id,omitempty"`
}

type requeueBatchResult struct {
	RequeuedRows int `json:"requeued_rows"`
}

// runOutboxReport prints queue depth and row detail for both durable queues:
// the projection-apply outbox and the propagation task outbox.
func runOutboxReport(ctx context.Context, store outboxInspector, status string, limit int, jsonOutput bool, out io.Writer) error {
	if !validOutboxStatus(status) {
		return fmt.Errorf("unknown outbox status %q (want pending, processing, failed, or dead)", status)
	}

	applySummary, err := store.GetProjectionApplyOutboxSummary(ctx)
	if err != nil {
		return fmt.Errorf("summarize projection apply outbox: %w", err)
	}
	applyRows, err := store.ListProjectionApplyOutboxRows(ctx, status, limit)
	if err != nil {
		return fmt.Errorf("list projection apply outbox rows: %w", err)
	}
	propagationSummary, err := store.GetPropagationOutboxSummary(ctx)
	if err != nil {
		return fmt.Errorf("summarize propagation outbox: %w", err)
	}
	propagationRows, err := store.ListPropagationTasks(ctx, status, limit)
	if err != nil {
		return fmt.Errorf("list propagation tasks: %w", err)
	}

	if jsonOutput {
		return writeJSON(out, outboxReportDocument{
			ProjectionApply: applyOutboxSection{Summary: applySummary, Rows: applyRows},
			Propagation:     propagationOutboxSection{Summary: propagationSummary, Rows: propagationRows},
		})
	}

	fmt.Fprintf(out, "Projection apply outbox: pending=%d processing=%d failed=%d dead=%d\n",
		applySummary.PendingCount, applySummary.ProcessingCount, applySummary.FailedCount, applySummary.DeadCount)
	if applySummary.OldestPendingPlayerID == "" {
		fmt.Fprintln(out, "Oldest pending row: none")
	} else {
		fmt.Fprintf(out, "Oldest pending row: %s/%d next_attempt_at=%s\n",
			applySummary.OldestPendingPlayerID, applySummary.OldestPendingSeq, formatOutboxTime(applySummary.OldestPendingAt))
	}
	for _, row := range applyRows {
		fmt.Fprintf(out, "- %s/%d status=%s attempts=%d next_attempt_at=%s type=%s\n",
			row.PlayerID, row.Seq, row.Status, row.AttemptCount, formatOutboxTime(row.NextAttemptAt), row.EventType)
		if row.LastError != "" {
			fmt.Fprintf(out, "  last_error=%s\n", row.LastError)
		}
	}

	fmt.Fprintf(out, "Propagation outbox: pending=%d processing=%d failed=%d dead=%d\n",
		propagationSummary.PendingCount, propagationSummary.ProcessingCount, propagationSummary.FailedCount, propagationSummary.DeadCount)
	if propagationSummary.OldestPendingID == "" {
		fmt.Fprintln(out, "Oldest pending task: none")
	} else {
		fmt.Fprintf(out, "Oldest pending task: %s next_attempt_at=%s\n",
			propagationSummary.OldestPendingID, formatOutboxTime(propagationSummary.OldestPendingAt))
	}
	for _, row := range propagationRows {
		fmt.Fprintf(out, "- %s status=%s attempts=%d next_attempt_at=%s action=%s player=%s punishment=%s\n",
			row.ID, row.Status, row.AttemptCount, formatOutboxTime(row.NextAttemptAt), row.Action, row.PlayerID, row.PunishmentID)
		if row.LastError != "" {
			fmt.Fprintf(out, "  last_error=%s\n", row.LastError)
		}
	}
	return nil
}

// runOutboxRequeue moves one dead projection-apply row back to pending.
func runOutboxRequeue(ctx context.Context, store applyOutboxRequeuer, playerID string, seq uint64, now time.Time, jsonOutput bool, out io.Writer) error {
	requeued, err := store.RequeueProjectionApplyOutboxRow(ctx, playerID, seq, now)
	if err != nil {
		return fmt.Errorf("requeue outbox row: %w", err)
	}
	if !requeued {
		return fmt.Errorf("dead outbox row not found for %s/%d", playerID, seq)
	}
	if jsonOutput {
		return writeJSON(out, requeueResult{Requeued: true, PlayerID: playerID, Seq: seq})
	}
	fmt.Fprintf(out, "Requeued outbox row %s/%d\n", playerID, seq)
	return nil
}

// runOutboxRequeueDeadRows moves up to limit dead projection-apply rows back
// to pending.
func runOutboxRequeueDeadRows(ctx context.Context, store applyOutboxRequeuer, limit int, now time.Time, jsonOutput bool, out io.Writer) error {
	count, err := store.RequeueProjectionApplyOutboxDeadRows(ctx, limit, now)
	if err != nil {
		return fmt.Errorf("requeue dead outbox rows: %w", err)
	}
	if jsonOutput {
		return writeJSON(out, requeueBatchResult{RequeuedRows: count})
	}
	fmt.Fprintf(out, "Requeued %d dead outbox rows\n", count)
	return nil
}

// runPropagationRequeue moves one dead propagation task back to pending.
func runPropagationRequeue(ctx context.Context, store propagationRequeuer, taskID string, now time.Time, jsonOutput bool, out io.Writer) error {
	requeued, err := store.RequeuePropagationTask(ctx, taskID, now)
	if err != nil {
		return fmt.Errorf("requeue propagation task: %w", err)
	}
	if !requeued {
		return fmt.Errorf("dead propagation task not found: %s", taskID)
	}
	if jsonOutput {
		return writeJSON(out, requeueResult{Requeued: true, TaskID: taskID})
	}
	fmt.Fprintf(out, "Requeued propagation task %s\n", taskID)
	return nil
}

// runPropagationRequeueDeadTasks moves up to limit dead propagation tasks
// back to pending.
func runPropagationRequeueDeadTasks(ctx context.Context, store propagationRequeuer, limit int, now time.Time, jsonOutput bool, out io.Writer) error {
	count, err := store.RequeueDeadPropagationTasks(ctx, limit, now)
	if err != nil {
		return fmt.Errorf("requeue dead propagation tasks: %w", err)
	}
	if jsonOutput {
		return writeJSON(out, requeueBatchResult{RequeuedRows: count})
	}
	fmt.Fprintf(out, "Requeued %d dead propagation tasks\n", count)
	return nil
}

func validOutboxStatus(status string) bool {
	switch status {
	case "", "pending", "processing", "failed", "dead":
		return true
	}
	return false
}

func formatOutboxTime(t time.Time) string {
	if t.IsZero() {
		return "none"
	}
	return t.UTC().Format(time.RFC3339)
}

func writeJSON(out io.Writer, value any) error {
	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	fmt.Fprintln(out, string(encoded))
	return nil
}
