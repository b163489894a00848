package priority

import (
	"sort"

	"github.com/boddenberg/ar-collections-go/internal/domain"

	"github.com/shopspring/decimal"
)

// Rank scores every row, orders them by score descending and assigns 1-based IDs.
// Rows with equal scores keep their upload order. The input slice is not modified.
func Rank(rows []domain.InvoiceRow) *domain.RankedResult {
	scored := make([]domain.ScoredInvoice, len(rows))
	total := decimal.Zero
	for i, row := range rows {
		scored[i] = domain.ScoredInvoice{
			InvoiceRow:    row,
			PriorityScore: Score(row.Amount, row.DaysOverdue),
		}
		total = total.Add(row.Amount)
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].PriorityScore.GreaterThan(scored[j].PriorityScore)
	})

	for i := range scored {
		scored[i].ID = i + 1
	}

	return &domain.RankedResult{
		Invoices:     scored,
		TotalOverdue: total,
		Count:        len(scored),
	}
}
