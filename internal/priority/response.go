package priority

import (
	"math"

	"github.com/boddenberg/ar-collections-go/internal/domain"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
)

// BuildResponse maps a ranked result onto the POST /ar/priority payload.
// It fails when a score or the total cannot be carried as a JSON number.
func BuildResponse(result *domain.RankedResult) (*domain.PriorityResponse, error) {
	invoices := make([]domain.InvoiceView, 0, len(result.Invoices))
	for _, inv := range result.Invoices {
		amount, err := jsonNumber("amount", inv.Amount)
		if err != nil {
			return nil, err
		}
		score, err := jsonNumber("priority_score", inv.PriorityScore)
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, domain.InvoiceView{
			ID:            inv.ID,
			Customer:      inv.Customer,
			Amount:        amount,
			DaysOverdue:   inv.DaysOverdue,
			PriorityScore: score,
			Segment:       inv.Segment,
		})
	}

	total, err := jsonNumber("total_overdue", result.TotalOverdue)
	if err != nil {
		return nil, err
	}

	return &domain.PriorityResponse{
		Invoices:     invoices,
		TotalOverdue: total,
		Count:        result.Count,
	}, nil
}

func jsonNumber(field string, d decimal.Decimal) (float64, error) {
	f := d.InexactFloat64()
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, eris.Errorf("%s %s exceeds the float64 range", field, d.String())
	}
	return f, nil
}
