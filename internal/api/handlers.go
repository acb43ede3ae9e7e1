package api

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/edudashpro/finance-service/internal/assistant"
	"github.com/edudashpro/finance-service/internal/extract"
	"github.com/edudashpro/finance-service/internal/membership"
	"github.com/edudashpro/finance-service/internal/models"
	"github.com/edudashpro/finance-service/internal/popvalidator"
	"github.com/edudashpro/finance-service/internal/reconcile"
	"github.com/edudashpro/finance-service/internal/repository"
	"github.com/edudashpro/finance-service/internal/storage"
	"github.com/edudashpro/finance-service/pkg/utils"
)

// Uploaded proof files above this size are rejected
const maxUploadBytes = 10 << 20

// SubmissionNotifier announces new pending uploads to admins. Optional.
type SubmissionNotifier interface {
	UploadSubmitted(upload *models.POPUpload)
}

// Handlers contains all HTTP request handlers
type Handlers struct {
	validator  *popvalidator.Validator
	store      *storage.ProofStore
	uploads    *repository.UploadRepository
	fees       *repository.FeeRepository
	engine     *reconcile.Engine
	assistant  *assistant.Service
	membership *membership.Service
	receipts   *extract.ReceiptReader
	notifier   SubmissionNotifier
	logger     *zap.Logger
}

// NewHandlers creates the handler set. receipts and notifier may be nil.
func NewHandlers(
	validator *popvalidator.Validator,
	store *storage.ProofStore,
	uploads *repository.UploadRepository,
	fees *repository.FeeRepository,
	engine *reconcile.Engine,
	assistantSvc *assistant.Service,
	membershipSvc *membership.Service,
	receipts *extract.ReceiptReader,
	notifier SubmissionNotifier,
	logger *zap.Logger,
) *Handlers {
	return &Handlers{
		validator:  validator,
		store:      store,
		uploads:    uploads,
		fees:       fees,
		engine:     engine,
		assistant:  assistantSvc,
		membership: membershipSvc,
		receipts:   receipts,
		notifier:   notifier,
		logger:     logger,
	}
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	ok(c, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   "1.0.0",
	})
}

// SubmitUpload handles POST /api/v1/uploads. Order matters: business-rule
// validation runs before the file is persisted, and the database row is
// only created after a successful transfer.
func (h *Handlers) SubmitUpload(c *gin.Context) {
	orgID := organizationID(c)

	var req UploadRequest
	if err := c.ShouldBind(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid upload metadata: "+err.Error())
		return
	}

	paymentDate, err := parsePaymentDate(req.PaymentDate)
	if err != nil {
		fail(c, http.StatusBadRequest, "invalid payment_date, expected YYYY-MM-DD")
		return
	}

	var paymentAmount *float64
	if req.UploadType == models.UploadTypePaymentProof {
		if err := utils.ValidateAmount(req.PaymentAmount); err != nil {
			fail(c, http.StatusBadRequest, err.Error())
			return
		}
		paymentAmount = &req.PaymentAmount
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		fail(c, http.StatusBadRequest, "file part is required")
		return
	}
	if fileHeader.Size > maxUploadBytes {
		fail(c, http.StatusRequestEntityTooLarge, "file exceeds maximum size")
		return
	}

	reference := utils.SanitizeString(req.PaymentReference)

	submission := &popvalidator.Submission{
		OrganizationID:   orgID,
		StudentID:        req.StudentID,
		UploadType:       req.UploadType,
		PaymentAmount:    paymentAmount,
		PaymentDate:      paymentDate,
		PaymentReference: reference,
	}
	if err := h.validator.CheckSubmission(submission); err != nil {
		var rej *popvalidator.RejectionError
		if errors.As(err, &rej) {
			c.JSON(http.StatusConflict, Response{Success: false, Error: rej.Message, Code: rej.Code})
			return
		}
		fail(c, http.StatusInternalServerError, "validation failed")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		h.logger.Error("Failed to open uploaded file", zap.Error(err))
		fail(c, http.StatusBadRequest, "failed to read uploaded file")
		return
	}
	content, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	file.Close()
	if err != nil {
		h.logger.Error("Failed to read uploaded file", zap.Error(err))
		fail(c, http.StatusBadRequest, "failed to read uploaded file")
		return
	}

	stored, err := h.store.Save(orgID, req.UploadedBy, req.UploadType, req.StudentID, fileHeader.Filename, content)
	if err != nil {
		h.logger.Error("Failed to store proof file", zap.Error(err))
		fail(c, http.StatusInternalServerError, "failed to store file")
		return
	}

	upload := &models.POPUpload{
		ID:               uuid.NewString(),
		OrganizationID:   orgID,
		StudentID:        req.StudentID,
		UploadedBy:       req.UploadedBy,
		UploadType:       req.UploadType,
		PaymentAmount:    paymentAmount,
		PaymentMethod:    req.PaymentMethod,
		PaymentDate:      paymentDate,
		PaymentReference: reference,
		FilePath:         stored.Path,
		FileName:         stored.Name,
		FileSize:         stored.Size,
		FileType:         stored.MimeType,
	}
	if err := h.uploads.Create(nil, upload); err != nil {
		// The stored file would be orphaned; remove it now rather than
		// waiting for the reaper.
		if delErr := h.store.Delete(stored.Path); delErr != nil {
			h.logger.Warn("Failed to clean up stored file after insert failure",
				zap.String("path", stored.Path),
				zap.Error(delErr))
		}
		fail(c, http.StatusInternalServerError, "failed to record upload")
		return
	}

	if h.notifier != nil {
		h.notifier.UploadSubmitted(upload)
	}

	ok(c, http.StatusCreated, UploadResponse{
		Upload: upload,
		Hints:  h.extractHints(upload),
	})
}

// extractHints runs best-effort receipt extraction; failures degrade to nil
func (h *Handlers) extractHints(upload *models.POPUpload) *extract.Hints {
	if h.receipts == nil || !upload.IsPaymentProof() {
		return nil
	}
	hints, err := h.receipts.ReadHints(upload.FilePath)
	if err != nil {
		h.logger.Debug("Receipt hint extraction failed",
			zap.String("upload_id", upload.ID),
			zap.Error(err))
		return nil
	}
	return hints
}

// ListUploads handles GET /api/v1/uploads
func (h *Handlers) ListUploads(c *gin.Context) {
	var req ListUploadsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid query parameters")
		return
	}
	if req.Limit <= 0 || req.Limit > 100 {
		req.Limit = 20
	}
	if req.Offset < 0 {
		req.Offset = 0
	}

	uploads, err := h.uploads.List(organizationID(c), req.Status, req.StudentID, req.Limit, req.Offset)
	if err != nil {
		fail(c, http.StatusInternalServerError, "failed to list uploads")
		return
	}
	if uploads == nil {
		uploads = []*models.POPUpload{}
	}
	ok(c, http.StatusOK, uploads)
}

// GetUpload handles GET /api/v1/uploads/:id
func (h *Handlers) GetUpload(c *gin.Context) {
	upload, err := h.uploads.GetByID(organizationID(c), c.Param("id"))
	if err != nil {
		fail(c, http.StatusInternalServerError, "failed to get upload")
		return
	}
	if upload == nil {
		fail(c, http.StatusNotFound, "upload not found")
		return
	}
	ok(c, http.StatusOK, upload)
}

// ApproveUpload handles POST /api/v1/uploads/:id/approve
func (h *Handlers) ApproveUpload(c *gin.Context) {
	var req ReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid review request: "+err.Error())
		return
	}

	outcome, err := h.engine.Approve(organizationID(c), c.Param("id"), req.ReviewerID, req.Note)
	if err != nil {
		h.reviewError(c, err)
		return
	}
	ok(c, http.StatusOK, outcome)
}

// RejectUpload handles POST /api/v1/uploads/:id/reject
func (h *Handlers) RejectUpload(c *gin.Context) {
	var req ReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid review request: "+err.Error())
		return
	}

	outcome, err := h.engine.Reject(organizationID(c), c.Param("id"), req.ReviewerID, req.Note)
	if err != nil {
		h.reviewError(c, err)
		return
	}
	ok(c, http.StatusOK, outcome)
}

func (h *Handlers) reviewError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, reconcile.ErrUploadNotFound):
		fail(c, http.StatusNotFound, "upload not found")
	case errors.Is(err, reconcile.ErrUploadRejected), errors.Is(err, reconcile.ErrUploadApproved):
		fail(c, http.StatusConflict, err.Error())
	default:
		h.logger.Error("Review action failed", zap.Error(err))
		fail(c, http.StatusInternalServerError, "review action failed")
	}
}

// ListStudentFees handles GET /api/v1/students/:id/fees
func (h *Handlers) ListStudentFees(c *gin.Context) {
	fees, err := h.fees.ListByStudent(organizationID(c), c.Param("id"))
	if err != nil {
		fail(c, http.StatusInternalServerError, "failed to list fees")
		return
	}
	if fees == nil {
		fees = []*models.StudentFee{}
	}
	ok(c, http.StatusOK, fees)
}

// Chat handles POST /api/v1/assistant/chat
func (h *Handlers) Chat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid chat request: "+err.Error())
		return
	}

	reply, err := h.assistant.Send(c.Request.Context(), &assistant.Request{
		ConversationID: req.ConversationID,
		OrganizationID: organizationID(c),
		Action:         req.Action,
		Message:        req.Message,
	})
	if err != nil {
		h.logger.Error("Assistant request failed",
			zap.String("conversation_id", req.ConversationID),
			zap.Error(err))
		fail(c, http.StatusBadGateway, "assistant request failed")
		return
	}

	ok(c, http.StatusOK, ChatResponse{ConversationID: req.ConversationID, Reply: reply})
}

// CreateMember handles POST /api/v1/members
func (h *Handlers) CreateMember(c *gin.Context) {
	var req MemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid member request: "+err.Error())
		return
	}

	member, err := h.membership.CreateMember(c.Request.Context(), organizationID(c), req.UserID, req.Role)
	if err != nil {
		fail(c, http.StatusInternalServerError, "failed to create membership")
		return
	}
	ok(c, http.StatusCreated, member)
}
