// Package worker consumes mutation events and keeps downstream views in
// sync: it drops stale cached summaries and re-exports the touched month
// to the report target.
package worker

import (
	"context"
	"fmt"
	"log/slog"

	"yawmiya/internal/amqp"
	"yawmiya/internal/core"
	"yawmiya/internal/ledger"
	"yawmiya/internal/sheets"
)

// ReportWorker reacts to mutation events. The reports writer may be nil;
// the worker then only maintains its local caches.
type ReportWorker struct {
	ledger  *ledger.Service
	reports sheets.MonthReportWriter
}

func NewReportWorker(ledger *ledger.Service, reports sheets.MonthReportWriter) *ReportWorker {
	return &ReportWorker{ledger: ledger, reports: reports}
}

// HandleMutation processes one event. Errors requeue the delivery, so
// anything transient (store hiccup, sheets quota) retries; events without
// a month window invalidate everything and skip the export.
func (w *ReportWorker) HandleMutation(ctx context.Context, event amqp.MutationEvent) error {
	slog.InfoContext(ctx, "Processing mutation event",
		"kind", event.Kind,
		"user_id", event.UserID,
		"year_month", event.YearMonth)

	if event.YearMonth == "" {
		// Resets and user deletion touch an unbounded set of windows.
		w.ledger.InvalidateAll()
		return nil
	}

	ym, err := core.ParseYearMonth(event.YearMonth)
	if err != nil {
		// Malformed window key; retrying cannot fix it.
		slog.WarnContext(ctx, "Dropping event with bad month key",
			"kind", event.Kind,
			"year_month", event.YearMonth)
		return nil
	}

	w.ledger.InvalidateWindow(event.UserID, ym)

	if w.reports == nil {
		return nil
	}

	report, err := w.ledger.FleetSummary(ctx, ym)
	if err != nil {
		return fmt.Errorf("summarize month %s: %w", ym, err)
	}
	if err := w.reports.WriteMonthReport(ctx, report); err != nil {
		return fmt.Errorf("export month %s: %w", ym, err)
	}

	slog.InfoContext(ctx, "Month re-exported after mutation",
		"month", ym.String(),
		"kind", event.Kind)
	return nil
}
