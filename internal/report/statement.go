package report

import (
	"bytes"
	"fmt"
	"time"

	"github.com/expensetracker/apiserver/types"
	"github.com/phpdave11/gofpdf"
)

const dateLayout = "2006-01-02 15:04"

// Statement is the content of a PDF expense statement.
type Statement struct {
	Email       string
	GeneratedAt time.Time
	Summary     types.ExpenseSummary
	Expenses    []types.Expense
}

// BuildPDF renders the statement as an A4 PDF document.
func BuildPDF(st Statement) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Expense Statement", false)
	pdf.SetAuthor("expensetracker", false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, "Expense Statement")
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "", 12)
	pdf.Cell(0, 8, fmt.Sprintf("User: %s", st.Email))
	pdf.Ln(6)
	pdf.Cell(0, 8, fmt.Sprintf("Generated: %s UTC", st.GeneratedAt.UTC().Format(dateLayout)))
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "B", 14)
	pdf.Cell(0, 8, fmt.Sprintf("Total Expense: %.2f (%d entries)", st.Summary.Total, st.Summary.Count))
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "B", 13)
	pdf.Cell(0, 8, "Category Breakdown")
	pdf.Ln(8)

	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(80, 7, "Category", "B", 0, "L", false, 0, "")
	pdf.CellFormat(50, 7, "Amount", "B", 0, "R", false, 0, "")
	pdf.CellFormat(30, 7, "Entries", "B", 1, "R", false, 0, "")

	pdf.SetFont("Helvetica", "", 11)
	for _, c := range st.Summary.Categories {
		pdf.CellFormat(80, 7, c.Category, "", 0, "L", false, 0, "")
		pdf.CellFormat(50, 7, fmt.Sprintf("%.2f", c.Total), "", 0, "R", false, 0, "")
		pdf.CellFormat(30, 7, fmt.Sprintf("%d", c.Count), "", 1, "R", false, 0, "")
	}
	pdf.Ln(6)

	pdf.SetFont("Helvetica", "B", 13)
	pdf.Cell(0, 8, "Expenses")
	pdf.Ln(8)

	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(45, 7, "Date", "B", 0, "L", false, 0, "")
	pdf.CellFormat(85, 7, "Category", "B", 0, "L", false, 0, "")
	pdf.CellFormat(30, 7, "Amount", "B", 1, "R", false, 0, "")

	pdf.SetFont("Helvetica", "", 11)
	if len(st.Expenses) == 0 {
		pdf.Cell(0, 7, "No expenses recorded.")
		pdf.Ln(7)
	}
	for _, e := range st.Expenses {
		pdf.CellFormat(45, 7, e.CreatedAt.UTC().Format(dateLayout), "", 0, "L", false, 0, "")
		pdf.CellFormat(85, 7, e.Category, "", 0, "L", false, 0, "")
		pdf.CellFormat(30, 7, fmt.Sprintf("%.2f", e.Amount), "", 1, "R", false, 0, "")
	}

	if pdf.Err() {
		return nil, fmt.Errorf("render statement: %w", pdf.Error())
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
