// Package statement renders payment statements as Excel workbooks for
// settled invoices.
package statement

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/edudashpro/finance-service/internal/models"
)

// Workbook cell positions
const (
	sheetName = "Statement"

	cellTitle         = "A1"
	cellSchoolName    = "A2"
	cellInvoiceNumber = "B4"
	cellIssueDate     = "B5"
	cellBillToName    = "B6"
	cellBillToEmail   = "B7"
	cellStudentName   = "B8"

	itemHeaderRow = 10
	itemRow       = 11
	totalRow      = 13
	paidRow       = 14
)

// Generator builds statement workbooks for settled invoices. Statement
// generation is best-effort: a failure never blocks the approval that
// requested it.
type Generator struct {
	outputDir  string
	schoolName string
	logger     *zap.Logger
}

// NewGenerator creates a statement generator writing to outputDir
func NewGenerator(outputDir, schoolName string, logger *zap.Logger) *Generator {
	return &Generator{
		outputDir:  outputDir,
		schoolName: schoolName,
		logger:     logger,
	}
}

// Generate renders the statement workbook and returns the written path
func (g *Generator) Generate(invoice *models.Invoice, item *models.InvoiceItem, student *models.Student) (string, error) {
	if err := os.MkdirAll(g.outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create statement directory: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return "", fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		g.logger.Warn("Failed to remove default sheet", zap.Error(err))
	}

	g.setCell(f, cellTitle, "Payment Statement")
	g.setCell(f, cellSchoolName, g.schoolName)

	g.setCell(f, "A4", "Invoice Number")
	g.setCell(f, cellInvoiceNumber, invoice.InvoiceNumber)
	g.setCell(f, "A5", "Issue Date")
	g.setCell(f, cellIssueDate, issueDate(invoice).Format("2006-01-02"))
	g.setCell(f, "A6", "Billed To")
	g.setCell(f, cellBillToName, invoice.BillToName)
	g.setCell(f, "A7", "Email")
	g.setCell(f, cellBillToEmail, invoice.BillToEmail)
	if student != nil {
		g.setCell(f, "A8", "Student")
		g.setCell(f, cellStudentName, student.FullName())
	}

	g.setCell(f, fmt.Sprintf("A%d", itemHeaderRow), "Description")
	g.setCell(f, fmt.Sprintf("B%d", itemHeaderRow), "Qty")
	g.setCell(f, fmt.Sprintf("C%d", itemHeaderRow), "Unit Price")
	g.setCell(f, fmt.Sprintf("D%d", itemHeaderRow), "Amount")

	if item != nil {
		g.setCell(f, fmt.Sprintf("A%d", itemRow), item.Description)
		g.setCell(f, fmt.Sprintf("B%d", itemRow), item.Quantity)
		g.setCell(f, fmt.Sprintf("C%d", itemRow), item.UnitPrice)
		g.setCell(f, fmt.Sprintf("D%d", itemRow), item.Amount)
	}

	g.setCell(f, fmt.Sprintf("C%d", totalRow), "Total")
	g.setCell(f, fmt.Sprintf("D%d", totalRow), invoice.Total)
	g.setCell(f, fmt.Sprintf("C%d", paidRow), "Paid")
	g.setCell(f, fmt.Sprintf("D%d", paidRow), invoice.PaidAmount)

	outputPath := filepath.Join(g.outputDir, invoice.InvoiceNumber+".xlsx")
	if err := f.SaveAs(outputPath); err != nil {
		return "", fmt.Errorf("failed to save statement: %w", err)
	}

	g.logger.Info("Statement generated",
		zap.String("invoice_number", invoice.InvoiceNumber),
		zap.String("output_path", outputPath))

	return outputPath, nil
}

// setCell sets a cell value, logging rather than failing on error
func (g *Generator) setCell(f *excelize.File, cell string, value interface{}) {
	if err := f.SetCellValue(sheetName, cell, value); err != nil {
		g.logger.Warn("Failed to set cell value",
			zap.String("cell", cell),
			zap.Error(err))
	}
}

func issueDate(invoice *models.Invoice) time.Time {
	if invoice.PaidDate != nil {
		return *invoice.PaidDate
	}
	return time.Now().UTC()
}
