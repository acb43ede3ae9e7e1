package assistant

import (
	"encoding/json"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/edudashpro/finance-service/internal/repository"
)

// Tool names exposed to the model
const (
	toolOutstandingFees = "get_outstanding_fees"
	toolPaymentSummary  = "get_payment_summary"
)

// Catalog returns the fixed tool catalog. Built once at startup; the
// model cannot reach anything outside these read-only queries.
func Catalog() []openai.Tool {
	return []openai.Tool{
		{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        toolOutstandingFees,
				Description: "List a student's unpaid fees and their total outstanding amount",
				Parameters: json.RawMessage(`{
					"type": "object",
					"properties": {
						"student_id": {"type": "string", "description": "The student's identifier"}
					},
					"required": ["student_id"]
				}`),
			},
		},
		{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        toolPaymentSummary,
				Description: "Summarize payments received by the school over the last N days",
				Parameters: json.RawMessage(`{
					"type": "object",
					"properties": {
						"days": {"type": "integer", "description": "Look-back window in days, default 30"}
					}
				}`),
			},
		},
	}
}

// Tools executes tool calls against the read-only repository queries.
// Every query is scoped to the requesting organization.
type Tools struct {
	fees     *repository.FeeRepository
	payments *repository.PaymentRepository
	logger   *zap.Logger
}

// NewTools creates the tool executor
func NewTools(fees *repository.FeeRepository, payments *repository.PaymentRepository, logger *zap.Logger) *Tools {
	return &Tools{
		fees:     fees,
		payments: payments,
		logger:   logger,
	}
}

// Execute runs one tool call and returns its JSON result
func (t *Tools) Execute(organizationID, name, arguments string) (string, error) {
	t.logger.Debug("Executing assistant tool",
		zap.String("tool", name),
		zap.String("organization_id", organizationID))

	switch name {
	case toolOutstandingFees:
		return t.outstandingFees(organizationID, arguments)
	case toolPaymentSummary:
		return t.paymentSummary(organizationID, arguments)
	default:
		return "", fmt.Errorf("unknown tool: %s", name)
	}
}

func (t *Tools) outstandingFees(organizationID, arguments string) (string, error) {
	var args struct {
		StudentID string `json:"student_id"`
	}
	if err := json.Unmarshal([]byte(arguments), &args); err != nil {
		return "", fmt.Errorf("invalid tool arguments: %w", err)
	}
	if args.StudentID == "" {
		return "", fmt.Errorf("student_id is required")
	}

	total, err := t.fees.OutstandingTotal(organizationID, args.StudentID)
	if err != nil {
		return "", err
	}
	fees, err := t.fees.ListByStudent(organizationID, args.StudentID)
	if err != nil {
		return "", err
	}

	type feeLine struct {
		Description string  `json:"description"`
		DueDate     string  `json:"due_date"`
		Status      string  `json:"status"`
		Outstanding float64 `json:"amount_outstanding"`
	}
	result := struct {
		TotalOutstanding float64   `json:"total_outstanding"`
		Fees             []feeLine `json:"fees"`
	}{TotalOutstanding: total, Fees: []feeLine{}}

	for _, fee := range fees {
		if fee.AmountOutstanding <= 0 {
			continue
		}
		result.Fees = append(result.Fees, feeLine{
			Description: fee.Description,
			DueDate:     fee.DueDate.Format("2006-01-02"),
			Status:      fee.Status,
			Outstanding: fee.AmountOutstanding,
		})
	}

	out, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("failed to encode tool result: %w", err)
	}
	return string(out), nil
}

func (t *Tools) paymentSummary(organizationID, arguments string) (string, error) {
	var args struct {
		Days int `json:"days"`
	}
	if arguments != "" {
		if err := json.Unmarshal([]byte(arguments), &args); err != nil {
			return "", fmt.Errorf("invalid tool arguments: %w", err)
		}
	}
	if args.Days <= 0 {
		args.Days = 30
	}

	since := time.Now().UTC().AddDate(0, 0, -args.Days)
	count, total, err := t.payments.Summary(organizationID, since)
	if err != nil {
		return "", err
	}

	out, err := json.Marshal(struct {
		Days         int     `json:"days"`
		PaymentCount int64   `json:"payment_count"`
		TotalAmount  float64 `json:"total_amount"`
	}{Days: args.Days, PaymentCount: count, TotalAmount: total})
	if err != nil {
		return "", fmt.Errorf("failed to encode tool result: %w", err)
	}
	return string(out), nil
}
