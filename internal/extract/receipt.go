// Package extract pulls payment hints out of uploaded receipt documents.
// Extraction is best-effort: hints pre-fill the review screen for admins
// but never gate a submission.
package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/gen2brain/go-fitz"
	"go.uber.org/zap"
)

// Hints holds payment details recognized in a receipt document. Zero
// values mean the field was not found.
type Hints struct {
	Reference string  `json:"reference,omitempty"`
	Amount    float64 `json:"amount,omitempty"`
}

// ReceiptReader extracts text from PDF receipts and scans it for
// payment references and amounts.
type ReceiptReader struct {
	logger *zap.Logger
}

// NewReceiptReader creates a new receipt reader
func NewReceiptReader(logger *zap.Logger) *ReceiptReader {
	return &ReceiptReader{logger: logger}
}

// Patterns for common bank receipt layouts. References are alphanumeric
// codes following a "Reference"/"Ref" label; amounts follow an
// "Amount"/"Total" label or a currency marker.
var (
	referencePattern = regexp.MustCompile(`(?i)ref(?:erence)?\s*(?:no\.?|number|#)?\s*[:.]?\s*([A-Z0-9][A-Z0-9\-/]{3,29})`)
	amountPattern    = regexp.MustCompile(`(?i)(?:amount|total|paid)\s*[:.]?\s*(?:[A-Z]{3}|R|\$)?\s*([\d,]+\.\d{2})`)
)

// ReadHints extracts text from the document at path and scans it for
// payment hints. Non-PDF files yield empty hints without error.
func (r *ReceiptReader) ReadHints(path string) (*Hints, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("receipt file not found: %s", path)
	}

	if strings.ToLower(filepath.Ext(path)) != ".pdf" {
		return &Hints{}, nil
	}

	text, err := r.extractText(path)
	if err != nil {
		return nil, err
	}

	hints := ParseHints(text)
	r.logger.Debug("Receipt hints extracted",
		zap.String("path", path),
		zap.String("reference", hints.Reference),
		zap.Float64("amount", hints.Amount))
	return hints, nil
}

// extractText concatenates the text of every PDF page
func (r *ReceiptReader) extractText(path string) (string, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return "", fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	var sb strings.Builder
	for pageNum := 0; pageNum < doc.NumPage(); pageNum++ {
		text, err := doc.Text(pageNum)
		if err != nil {
			r.logger.Warn("Failed to extract page text",
				zap.String("path", path),
				zap.Int("page", pageNum),
				zap.Error(err))
			continue
		}
		sb.WriteString(text)
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

// ParseHints scans extracted text for a payment reference and amount
func ParseHints(text string) *Hints {
	hints := &Hints{}

	if matches := referencePattern.FindStringSubmatch(text); len(matches) > 1 {
		hints.Reference = strings.ToUpper(matches[1])
	}

	if matches := amountPattern.FindStringSubmatch(text); len(matches) > 1 {
		amountStr := strings.ReplaceAll(matches[1], ",", "")
		if amount, err := strconv.ParseFloat(amountStr, 64); err == nil {
			hints.Amount = amount
		}
	}

	return hints
}
