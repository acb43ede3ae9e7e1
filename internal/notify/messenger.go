package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/edudashpro/finance-service/internal/models"
)

const sendTimeout = 10 * time.Second

// Messenger builds and dispatches admin notifications. Implements the
// reconciliation engine's Notifier interface.
type Messenger struct {
	client *Client
	logger *zap.Logger
}

// NewMessenger creates a new messenger
func NewMessenger(client *Client, logger *zap.Logger) *Messenger {
	return &Messenger{
		client: client,
		logger: logger,
	}
}

// UploadSubmitted announces a new pending upload to the admin chat
func (m *Messenger) UploadSubmitted(upload *models.POPUpload) {
	amount := ""
	if upload.PaymentAmount != nil {
		amount = fmt.Sprintf(" of %.2f", *upload.PaymentAmount)
	}
	text := fmt.Sprintf("New proof of payment%s submitted for student %s (%s). Awaiting review.",
		amount, upload.StudentID, upload.FileName)
	m.send(upload.ID, text)
}

// UploadReviewed announces an approval or rejection outcome
func (m *Messenger) UploadReviewed(upload *models.POPUpload, approved bool) {
	var text string
	if approved {
		text = fmt.Sprintf("Proof of payment for student %s approved by %s.",
			upload.StudentID, upload.ReviewedBy)
	} else {
		text = fmt.Sprintf("Proof of payment for student %s rejected by %s.",
			upload.StudentID, upload.ReviewedBy)
		if upload.ReviewNote != "" {
			text += " Reason: " + upload.ReviewNote
		}
	}
	m.send(upload.ID, text)
}

// send dispatches the message in the background; failures are only logged
func (m *Messenger) send(uploadID, text string) {
	content, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		m.logger.Warn("Failed to encode notification", zap.Error(err))
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()

		if _, err := m.client.SendToAdminChat(ctx, string(content)); err != nil {
			m.logger.Warn("Admin notification failed",
				zap.String("upload_id", uploadID),
				zap.Error(err))
		}
	}()
}
