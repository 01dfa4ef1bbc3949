package worker

import (
	"context"
	"errors"
	"testing"

	"yawmiya/internal/amqp"
	"yawmiya/internal/core"
	"yawmiya/internal/ledger"
	"yawmiya/internal/store/memory"
)

type captureWriter struct {
	reports []ledger.FleetSummary
	err     error
}

func (w *captureWriter) WriteMonthReport(_ context.Context, report ledger.FleetSummary) error {
	if w.err != nil {
		return w.err
	}
	w.reports = append(w.reports, report)
	return nil
}

func TestHandleMutationExportsMonth(t *testing.T) {
	records := memory.New()
	svc := ledger.NewService(records)
	writer := &captureWriter{}
	w := NewReportWorker(svc, writer)
	ctx := context.Background()

	u, err := records.CreateUserProfile(ctx, core.UserProfile{Username: "worker", Email: "w@example.com"})
	if err != nil {
		t.Fatalf("user: %v", err)
	}
	if _, err := records.UpsertEntry(ctx, core.DailyEntry{UserID: u.ID, Date: core.NewDate(2025, 6, 1), CashAmount: 100}); err != nil {
		t.Fatalf("entry: %v", err)
	}

	event := amqp.NewMutationEvent(amqp.KindEntryUpserted, u.ID, "2025-06")
	if err := w.HandleMutation(ctx, event); err != nil {
		t.Fatalf("handle: %v", err)
	}

	if len(writer.reports) != 1 {
		t.Fatalf("reports = %d, want 1", len(writer.reports))
	}
	if writer.reports[0].MonthKey != "2025-06" {
		t.Errorf("MonthKey = %q, want 2025-06", writer.reports[0].MonthKey)
	}
	if writer.reports[0].TotalGross != 100 {
		t.Errorf("TotalGross = %v, want 100", writer.reports[0].TotalGross)
	}
}

func TestHandleMutationWithoutWriter(t *testing.T) {
	records := memory.New()
	w := NewReportWorker(ledger.NewService(records), nil)

	event := amqp.NewMutationEvent(amqp.KindEntryUpserted, "u1", "2025-06")
	if err := w.HandleMutation(context.Background(), event); err != nil {
		t.Fatalf("handle without writer: %v", err)
	}
}

func TestHandleMutationBadMonthKeyDropped(t *testing.T) {
	records := memory.New()
	writer := &captureWriter{}
	w := NewReportWorker(ledger.NewService(records), writer)

	// A malformed key must not requeue forever.
	event := amqp.NewMutationEvent(amqp.KindEntryUpserted, "u1", "June 2025")
	if err := w.HandleMutation(context.Background(), event); err != nil {
		t.Fatalf("bad key: %v", err)
	}
	if len(writer.reports) != 0 {
		t.Errorf("bad key produced %d reports", len(writer.reports))
	}
}

func TestHandleMutationWriterFailurePropagates(t *testing.T) {
	records := memory.New()
	writer := &captureWriter{err: errors.New("quota exceeded")}
	w := NewReportWorker(ledger.NewService(records), writer)

	event := amqp.NewMutationEvent(amqp.KindEntryUpserted, "u1", "2025-06")
	if err := w.HandleMutation(context.Background(), event); err == nil {
		t.Fatal("writer failure swallowed; delivery would be acked and lost")
	}
}

func TestHandleMutationResetInvalidatesOnly(t *testing.T) {
	records := memory.New()
	writer := &captureWriter{}
	w := NewReportWorker(ledger.NewService(records), writer)

	event := amqp.NewMutationEvent(amqp.KindScopeReset, "", "")
	if err := w.HandleMutation(context.Background(), event); err != nil {
		t.Fatalf("reset event: %v", err)
	}
	if len(writer.reports) != 0 {
		t.Errorf("reset event exported %d reports", len(writer.reports))
	}
}
