package jobs

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"bibliosys-backend/internal/logger"
)

// OverdueReport summarises one pass over the active loans.
type OverdueReport struct {
	At           time.Time
	Count        int
	AccruedFines decimal.Decimal
}

// ReportOverdueLoans logs every active loan past its due time together with
// the fine it would carry if returned now. Nothing is written back.
func (jr *JobRunner) ReportOverdueLoans() {
	jr.runWithRecovery("ReportOverdueLoans", func() {
		if _, err := jr.reportOverdueLoans(context.Background()); err != nil {
			logger.Error("Failed to report overdue loans", "error", err)
		}
	})
}

func (jr *JobRunner) reportOverdueLoans(ctx context.Context) (OverdueReport, error) {
	report := OverdueReport{At: jr.now(), AccruedFines: decimal.Zero}

	loans, err := jr.services.Loans.ListOverdue(ctx, report.At)
	if err != nil {
		return report, err
	}

	policy := jr.services.Loans.Policy()
	for _, loan := range loans {
		fine := loan.FineFor(report.At, policy)
		report.AccruedFines = report.AccruedFines.Add(fine)
		report.Count++
		logger.Warn("Loan overdue",
			"loan_id", loan.ID,
			"item_id", loan.ItemID,
			"borrower_id", loan.BorrowerID,
			"due_at", loan.DueAt,
			"days_late", loan.DaysLate(report.At, policy),
			"accrued_fine", fine.StringFixed(2),
		)
	}

	logger.Info("Overdue loans reported", "count", report.Count, "accrued_fines", report.AccruedFines.StringFixed(2))
	return report, nil
}
