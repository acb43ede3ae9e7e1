package statement

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/edudashpro/finance-service/internal/models"
)

func TestGenerate(t *testing.T) {
	outputDir := t.TempDir()
	gen := NewGenerator(outputDir, "Bright Future Academy", zap.NewNop())

	paid := time.Date(2025, 6, 20, 10, 0, 0, 0, time.UTC)
	invoice := &models.Invoice{
		ID:            "inv-1",
		InvoiceNumber: "INV-202506-A1B2",
		BillToName:    "N. Dlamini",
		BillToEmail:   "guardian@example.com",
		Subtotal:      1200,
		Total:         1200,
		PaidAmount:    1200,
		Status:        models.InvoiceStatusPaid,
		PaidDate:      &paid,
	}
	item := &models.InvoiceItem{
		Description: "June 2025 School Fees - Sipho Dlamini",
		Quantity:    1,
		UnitPrice:   1200,
		Amount:      1200,
	}
	student := &models.Student{FirstName: "Sipho", LastName: "Dlamini"}

	path, err := gen.Generate(invoice, item, student)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(outputDir, "INV-202506-A1B2.xlsx"), path)
	assert.FileExists(t, path)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	got := func(cell string) string {
		v, err := f.GetCellValue(sheetName, cell)
		require.NoError(t, err)
		return v
	}

	assert.Equal(t, "Payment Statement", got(cellTitle))
	assert.Equal(t, "Bright Future Academy", got(cellSchoolName))
	assert.Equal(t, "INV-202506-A1B2", got(cellInvoiceNumber))
	assert.Equal(t, "2025-06-20", got(cellIssueDate))
	assert.Equal(t, "N. Dlamini", got(cellBillToName))
	assert.Equal(t, "Sipho Dlamini", got(cellStudentName))
	assert.Equal(t, "June 2025 School Fees - Sipho Dlamini", got("A11"))
	assert.Equal(t, "1200", got("D13"))
	assert.Equal(t, "1200", got("D14"))
}

func TestGenerate_WithoutStudent(t *testing.T) {
	gen := NewGenerator(t.TempDir(), "Bright Future Academy", zap.NewNop())

	invoice := &models.Invoice{
		InvoiceNumber: "INV-202507-C3D4",
		Total:         450,
		PaidAmount:    450,
	}

	path, err := gen.Generate(invoice, nil, nil)
	require.NoError(t, err)
	assert.FileExists(t, path)
}
