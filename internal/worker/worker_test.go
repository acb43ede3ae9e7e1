package worker

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/edudashpro/finance-service/internal/models"
	"github.com/edudashpro/finance-service/internal/repository"
	"github.com/edudashpro/finance-service/internal/storage"
	"github.com/edudashpro/finance-service/pkg/database"
)

func newTestDB(t *testing.T) *database.DB {
	t.Helper()
	logger := zap.NewNop()

	db, err := database.New(database.Config{
		Path:         ":memory:",
		MaxOpenConns: 1,
		MaxIdleConns: 1,
	}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, database.NewMigrator(db, logger).Run("../../migrations"))

	// Seed the student the fee and upload rows reference; pop_uploads and
	// student_fees carry a foreign key to students.
	students := repository.NewStudentRepository(db.DB, logger)
	require.NoError(t, students.Create(nil, &models.Student{
		ID:             "s-1",
		OrganizationID: "org-1",
		FirstName:      "Test",
	}))
	return db
}

func TestOrphanReaper_ReapOnce(t *testing.T) {
	logger := zap.NewNop()
	db := newTestDB(t)
	uploads := repository.NewUploadRepository(db.DB, logger)
	store := storage.NewProofStore(t.TempDir(), logger)

	// Referenced file: upload row points at it.
	referenced, err := store.Save("org-1", "parent-1", "payment_proof", "s-1", "a.pdf", []byte("data"))
	require.NoError(t, err)
	amount := 100.0
	require.NoError(t, uploads.Create(nil, &models.POPUpload{
		ID:             uuid.NewString(),
		OrganizationID: "org-1",
		StudentID:      "s-1",
		UploadedBy:     "parent-1",
		UploadType:     models.UploadTypePaymentProof,
		PaymentAmount:  &amount,
		FilePath:       referenced.Path,
		FileName:       "a.pdf",
	}))

	// Orphaned file: no row references it.
	orphan, err := store.Save("org-1", "parent-1", "payment_proof", "s-1", "b.pdf", []byte("data"))
	require.NoError(t, err)

	// Fresh file: orphaned but inside the grace period.
	fresh, err := store.Save("org-1", "parent-1", "payment_proof", "s-1", "c.pdf", []byte("data"))
	require.NoError(t, err)

	// Age everything but the fresh file past the grace period.
	old := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(referenced.Path, old, old))
	require.NoError(t, os.Chtimes(orphan.Path, old, old))

	reaper := NewOrphanReaper(uploads, store, time.Hour, time.Hour, logger)
	removed, err := reaper.ReapOnce()
	require.NoError(t, err)

	assert.Equal(t, 1, removed)
	assert.FileExists(t, referenced.Path)
	assert.NoFileExists(t, orphan.Path)
	assert.FileExists(t, fresh.Path)
}

func TestOverdueMarker_MarkOnce(t *testing.T) {
	logger := zap.NewNop()
	db := newTestDB(t)
	fees := repository.NewFeeRepository(db.DB, logger)

	pastDue := &models.StudentFee{
		ID:                uuid.NewString(),
		OrganizationID:    "org-1",
		StudentID:         "s-1",
		Description:       "May Tuition",
		DueDate:           time.Now().UTC().AddDate(0, 0, -10),
		Amount:            500,
		Status:            models.FeeStatusPending,
		AmountOutstanding: 500,
	}
	require.NoError(t, fees.Create(nil, pastDue))

	future := &models.StudentFee{
		ID:                uuid.NewString(),
		OrganizationID:    "org-1",
		StudentID:         "s-1",
		Description:       "Next Month Tuition",
		DueDate:           time.Now().UTC().AddDate(0, 0, 10),
		Amount:            500,
		Status:            models.FeeStatusPending,
		AmountOutstanding: 500,
	}
	require.NoError(t, fees.Create(nil, future))

	alreadyPaid := &models.StudentFee{
		ID:             uuid.NewString(),
		OrganizationID: "org-1",
		StudentID:      "s-1",
		Description:    "April Tuition",
		DueDate:        time.Now().UTC().AddDate(0, 0, -40),
		Amount:         500,
		Status:         models.FeeStatusPaid,
		AmountPaid:     500,
	}
	require.NoError(t, fees.Create(nil, alreadyPaid))

	marker := NewOverdueMarker(fees, time.Hour, logger)
	count := marker.MarkOnce()
	assert.Equal(t, int64(1), count)

	flipped, err := fees.GetByID(pastDue.ID)
	require.NoError(t, err)
	assert.Equal(t, models.FeeStatusOverdue, flipped.Status)

	untouched, err := fees.GetByID(future.ID)
	require.NoError(t, err)
	assert.Equal(t, models.FeeStatusPending, untouched.Status)

	paid, err := fees.GetByID(alreadyPaid.ID)
	require.NoError(t, err)
	assert.Equal(t, models.FeeStatusPaid, paid.Status)
}

func TestManager_Lifecycle(t *testing.T) {
	logger := zap.NewNop()
	m := NewManager(logger)

	db := newTestDB(t)
	fees := repository.NewFeeRepository(db.DB, logger)
	uploads := repository.NewUploadRepository(db.DB, logger)
	store := storage.NewProofStore(t.TempDir(), logger)

	m.Register(NewOverdueMarker(fees, time.Hour, logger))
	m.Register(NewOrphanReaper(uploads, store, time.Hour, time.Hour, logger))
	assert.Equal(t, 2, m.Count())

	require.NoError(t, m.StartAll(context.Background()))
	m.StopAll()
}

func TestOrphanReaper_DoubleStart(t *testing.T) {
	logger := zap.NewNop()
	db := newTestDB(t)
	uploads := repository.NewUploadRepository(db.DB, logger)
	store := storage.NewProofStore(t.TempDir(), logger)

	reaper := NewOrphanReaper(uploads, store, time.Hour, time.Hour, logger)
	require.NoError(t, reaper.Start(context.Background()))
	defer reaper.Stop()

	assert.Error(t, reaper.Start(context.Background()))
}
