package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/edudashpro/finance-service/internal/extract"
	"github.com/edudashpro/finance-service/internal/models"
	"github.com/edudashpro/finance-service/pkg/utils"
)

// Response is the standard JSON envelope
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Code    string      `json:"code,omitempty"`
}

// UploadRequest is the metadata half of the multipart submission; the
// file itself arrives as the "file" part.
type UploadRequest struct {
	StudentID        string  `form:"student_id" binding:"required"`
	UploadedBy       string  `form:"uploaded_by" binding:"required"`
	UploadType       string  `form:"upload_type" binding:"required,oneof=payment_proof progress_picture"`
	PaymentAmount    float64 `form:"payment_amount"`
	PaymentMethod    string  `form:"payment_method" binding:"omitempty,payment_method"`
	PaymentDate      string  `form:"payment_date"` // YYYY-MM-DD
	PaymentReference string  `form:"payment_reference"`
}

// UploadResponse echoes the created row plus extraction hints
type UploadResponse struct {
	Upload *models.POPUpload `json:"upload"`
	Hints  *extract.Hints    `json:"hints,omitempty"`
}

// ReviewRequest carries the admin's review action metadata
type ReviewRequest struct {
	ReviewerID string `json:"reviewer_id" binding:"required"`
	Note       string `json:"note"`
}

// ListUploadsRequest holds list filters
type ListUploadsRequest struct {
	Status    string `form:"status" binding:"omitempty,oneof=pending approved rejected"`
	StudentID string `form:"student_id"`
	Limit     int    `form:"limit"`
	Offset    int    `form:"offset"`
}

// ChatRequest is one assistant message
type ChatRequest struct {
	ConversationID string `json:"conversation_id" binding:"required"`
	Action         string `json:"action" binding:"omitempty,oneof=chat query_database"`
	Message        string `json:"message" binding:"required"`
}

// ChatResponse carries the assistant's reply
type ChatResponse struct {
	ConversationID string `json:"conversation_id"`
	Reply          string `json:"reply"`
}

// MemberRequest creates an organization membership
type MemberRequest struct {
	UserID string `json:"user_id" binding:"required"`
	Role   string `json:"role" binding:"omitempty,oneof=admin teacher parent"`
}

// HealthResponse is the health check payload
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// RegisterValidations installs custom binding rules on gin's validator
func RegisterValidations() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("payment_method", func(fl validator.FieldLevel) bool {
			return utils.ValidatePaymentMethod(fl.Field().String()) == nil
		})
	}
}

// parsePaymentDate accepts a date-only payment date
func parsePaymentDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation("2006-01-02", s, time.UTC)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func fail(c *gin.Context, status int, msg string) {
	c.JSON(status, Response{Success: false, Error: msg})
}

func ok(c *gin.Context, status int, data interface{}) {
	c.JSON(status, Response{Success: true, Data: data})
}
