package storage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestProofStore_Save(t *testing.T) {
	tempDir := t.TempDir()
	store := NewProofStore(tempDir, zap.NewNop())

	t.Run("stores file under keyed path", func(t *testing.T) {
		content := []byte("%PDF-1.4 proof of payment")
		stored, err := store.Save("org-1", "parent-9", "payment_proof", "student-3", "june-proof.pdf", content)

		require.NoError(t, err)
		assert.FileExists(t, stored.Path)
		assert.Equal(t, "june-proof.pdf", stored.Name)
		assert.Equal(t, int64(len(content)), stored.Size)

		rel, err := filepath.Rel(tempDir, stored.Path)
		require.NoError(t, err)
		parts := strings.Split(rel, string(filepath.Separator))
		require.Len(t, parts, 5)
		assert.Equal(t, []string{"org-1", "parent-9", "payment_proof", "student-3"}, parts[:4])

		saved, err := os.ReadFile(stored.Path)
		require.NoError(t, err)
		assert.Equal(t, content, saved)
	})

	t.Run("sniffs mime type from content", func(t *testing.T) {
		png := []byte("\x89PNG\r\n\x1a\n0000000000")
		stored, err := store.Save("org-1", "parent-9", "progress_picture", "student-3", "pic", png)

		require.NoError(t, err)
		assert.Equal(t, "image/png", stored.MimeType)
		assert.True(t, strings.HasSuffix(stored.Path, ".png"))
	})

	t.Run("rejects empty content", func(t *testing.T) {
		_, err := store.Save("org-1", "parent-9", "payment_proof", "student-3", "x.pdf", nil)
		assert.Error(t, err)
	})

	t.Run("sanitizes traversal attempts in identifiers", func(t *testing.T) {
		stored, err := store.Save("../../etc", "parent", "payment_proof", "student", "f.pdf", []byte("data"))
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(stored.Path, tempDir))
	})
}

func TestProofStore_Delete(t *testing.T) {
	tempDir := t.TempDir()
	store := NewProofStore(tempDir, zap.NewNop())

	stored, err := store.Save("org-1", "u", "payment_proof", "s", "f.pdf", []byte("data"))
	require.NoError(t, err)

	require.NoError(t, store.Delete(stored.Path))
	assert.NoFileExists(t, stored.Path)

	t.Run("refuses paths outside base", func(t *testing.T) {
		err := store.Delete("/etc/passwd")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "escapes base directory")
	})
}

func TestProofStore_ListOlderThan(t *testing.T) {
	tempDir := t.TempDir()
	store := NewProofStore(tempDir, zap.NewNop())

	stored, err := store.Save("org-1", "u", "payment_proof", "s", "f.pdf", []byte("data"))
	require.NoError(t, err)

	old := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(stored.Path, old, old))

	paths, err := store.ListOlderThan(time.Now().Add(-24 * time.Hour))
	require.NoError(t, err)
	assert.Equal(t, []string{stored.Path}, paths)

	paths, err = store.ListOlderThan(time.Now().Add(-72 * time.Hour))
	require.NoError(t, err)
	assert.Empty(t, paths)
}
