package sheets

import (
	"context"

	"yawmiya/internal/ledger"
)

// MonthReportWriter exports a reconciled month to an external report
// target. The worker calls it after mutation events; failures are logged
// and retried on the next event, never surfaced to the mutating user.
type MonthReportWriter interface {
	WriteMonthReport(ctx context.Context, report ledger.FleetSummary) error
}
