package extract

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestParseHints(t *testing.T) {
	tests := []struct {
		name          string
		text          string
		wantReference string
		wantAmount    float64
	}{
		{
			name:          "bank transfer receipt",
			text:          "Payment Confirmation\nReference: EFT-20250610-001\nAmount: R 1,200.00\nDate: 2025-06-10",
			wantReference: "EFT-20250610-001",
			wantAmount:    1200,
		},
		{
			name:          "abbreviated ref label",
			text:          "Ref No. TXN99887\nTotal ZAR 450.50",
			wantReference: "TXN99887",
			wantAmount:    450.5,
		},
		{
			name:          "lowercase labels",
			text:          "reference: abc-123456\npaid: $75.00",
			wantReference: "ABC-123456",
			wantAmount:    75,
		},
		{
			name:       "amount only",
			text:       "Amount: 300.00",
			wantAmount: 300,
		},
		{
			name: "nothing recognizable",
			text: "thank you for your payment",
		},
		{
			name: "amount without decimals not matched",
			text: "Amount: 300",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hints := ParseHints(tt.text)
			assert.Equal(t, tt.wantReference, hints.Reference)
			assert.Equal(t, tt.wantAmount, hints.Amount)
		})
	}
}

func TestReadHints_MissingFile(t *testing.T) {
	r := NewReceiptReader(zap.NewNop())
	_, err := r.ReadHints("/nonexistent/receipt.pdf")
	assert.Error(t, err)
}

func TestReadHints_NonPDFYieldsEmptyHints(t *testing.T) {
	r := NewReceiptReader(zap.NewNop())

	path := filepath.Join(t.TempDir(), "receipt.jpg")
	require.NoError(t, os.WriteFile(path, []byte("not a pdf"), 0644))

	hints, err := r.ReadHints(path)
	assert.NoError(t, err)
	assert.Empty(t, hints.Reference)
	assert.Zero(t, hints.Amount)
}
