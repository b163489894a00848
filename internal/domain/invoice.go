package domain

import "github.com/shopspring/decimal"

// ============================================================
// Invoices: ingestion, scoring and ranking
// ============================================================

// Required upload columns, in the order they are reported to clients.
const (
	ColumnCustomer    = "customer"
	ColumnAmount      = "amount"
	ColumnDaysPastDue = "days_past_due"
	ColumnSegment     = "segment"
)

// RequiredColumns lists every header an invoice upload must carry.
var RequiredColumns = []string{ColumnCustomer, ColumnAmount, ColumnDaysPastDue, ColumnSegment}

// Known customer segments. Any other label is treated as "other".
const (
	SegmentEnterprise = "Enterprise"
	SegmentSMB        = "SMB"
	SegmentStartup    = "Startup"
)

// InvoiceRow is one parsed line of an upload. days_past_due is carried as DaysOverdue.
type InvoiceRow struct {
	Customer    string
	Amount      decimal.Decimal
	DaysOverdue int
	Segment     string
}

// ScoredInvoice is an InvoiceRow after ranking. ID is its 1-based rank position.
type ScoredInvoice struct {
	InvoiceRow
	ID            int
	PriorityScore decimal.Decimal
}

// RankedResult is the output of the ranking engine for a single upload.
type RankedResult struct {
	Invoices     []ScoredInvoice
	TotalOverdue decimal.Decimal
	Count        int
}

// ============================================================
// API: POST /ar/priority
// ============================================================

// InvoiceView is a ranked invoice as returned to the frontend.
type InvoiceView struct {
	ID            int     `json:"id"`
	Customer      string  `json:"customer"`
	Amount        float64 `json:"amount"`
	DaysOverdue   int     `json:"days_overdue"`
	PriorityScore float64 `json:"priority_score"`
	Segment       string  `json:"segment"`
}

// PriorityResponse is the body of POST /ar/priority.
type PriorityResponse struct {
	Invoices     []InvoiceView `json:"invoices"`
	TotalOverdue float64       `json:"total_overdue"`
	Count        int           `json:"count"`
}
