package analytics

import (
	"bytes"
	"encoding/csv"
	"strconv"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/bostalabs/lending-ledger-go/ledger"
)

var json = jsoniter.ConfigFastest

const exportDateLayout = "2006-01-02"

var reportHeader = []string{
	"ID",
	"Borrower Name",
	"Borrower Email",
	"Book Title",
	"Book ISBN",
	"Borrowed At",
	"Due Date",
	"Returned At",
	"Status",
}

var statusLabels = map[ledger.Status]string{
	ledger.StatusActive:   "Active",
	ledger.StatusOverdue:  "Overdue",
	ledger.StatusReturned: "Returned",
}

// RenderCSV renders report rows as RFC 4180 CSV with a header line.
// Dates are rendered as the ISO date part only; an open loan leaves the
// Returned At field empty.
func RenderCSV(rows []Row) ([]byte, error) {
	var buf bytes.Buffer

	writer := csv.NewWriter(&buf)

	if err := writer.Write(reportHeader); err != nil {
		return nil, err
	}

	for _, row := range rows {
		returnedAt := ""
		if row.ReturnedAt != nil {
			returnedAt = row.ReturnedAt.Format(exportDateLayout)
		}

		record := []string{
			row.ID.String(),
			row.BorrowerName,
			row.BorrowerEmail,
			row.BookTitle,
			row.BookISBN,
			row.BorrowedAt.Format(exportDateLayout),
			row.DueDate.Format(exportDateLayout),
			returnedAt,
			statusLabels[row.Status],
		}

		if err := writer.Write(record); err != nil {
			return nil, err
		}
	}

	writer.Flush()

	if err := writer.Error(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// RenderSummaryCSV renders a summary as a two-column metric/value CSV.
func RenderSummaryCSV(s Summary) ([]byte, error) {
	var buf bytes.Buffer

	writer := csv.NewWriter(&buf)

	records := [][]string{
		{"Metric", "Value"},
		{"Period Start", s.Window.Start().Format(exportDateLayout)},
		{"Period End", s.Window.End().Format(exportDateLayout)},
		{"Total Borrowings", formatCount(s.Counts.Total)},
		{"Active Borrowings", formatCount(s.Counts.Active)},
		{"Overdue Borrowings", formatCount(s.Counts.Overdue)},
		{"Returned Borrowings", formatCount(s.Counts.Returned)},
	}

	for _, record := range records {
		if err := writer.Write(record); err != nil {
			return nil, err
		}
	}

	writer.Flush()

	if err := writer.Error(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

type exportRow struct {
	ID            string `json:"id"`
	BorrowerName  string `json:"borrowerName"`
	BorrowerEmail string `json:"borrowerEmail"`
	BookTitle     string `json:"bookTitle"`
	BookISBN      string `json:"bookIsbn"`
	BorrowedAt    string `json:"borrowedAt"`
	DueDate       string `json:"dueDate"`
	ReturnedAt    string `json:"returnedAt,omitempty"`
	Status        string `json:"status"`
}

type exportSummary struct {
	PeriodStart        string `json:"periodStart"`
	PeriodEnd          string `json:"periodEnd"`
	GeneratedAt        string `json:"generatedAt"`
	TotalBorrowings    int64  `json:"totalBorrowings"`
	ActiveBorrowings   int64  `json:"activeBorrowings"`
	OverdueBorrowings  int64  `json:"overdueBorrowings"`
	ReturnedBorrowings int64  `json:"returnedBorrowings"`
}

// RenderJSON renders report rows as a JSON array, timestamps in RFC 3339.
func RenderJSON(rows []Row) ([]byte, error) {
	out := make([]exportRow, 0, len(rows))

	for _, row := range rows {
		returnedAt := ""
		if row.ReturnedAt != nil {
			returnedAt = row.ReturnedAt.Format(time.RFC3339)
		}

		out = append(out, exportRow{
			ID:            row.ID.String(),
			BorrowerName:  row.BorrowerName,
			BorrowerEmail: row.BorrowerEmail,
			BookTitle:     row.BookTitle,
			BookISBN:      row.BookISBN,
			BorrowedAt:    row.BorrowedAt.Format(time.RFC3339),
			DueDate:       row.DueDate.Format(time.RFC3339),
			ReturnedAt:    returnedAt,
			Status:        statusLabels[row.Status],
		})
	}

	return json.Marshal(out)
}

// RenderSummaryJSON renders a summary as a JSON object.
func RenderSummaryJSON(s Summary) ([]byte, error) {
	return json.Marshal(exportSummary{
		PeriodStart:        s.Window.Start().Format(exportDateLayout),
		PeriodEnd:          s.Window.End().Format(exportDateLayout),
		GeneratedAt:        s.GeneratedAt.Format(time.RFC3339),
		TotalBorrowings:    s.Counts.Total,
		ActiveBorrowings:   s.Counts.Active,
		OverdueBorrowings:  s.Counts.Overdue,
		ReturnedBorrowings: s.Counts.Returned,
	})
}

func formatCount(n int64) string {
	return strconv.FormatInt(n, 10)
}
