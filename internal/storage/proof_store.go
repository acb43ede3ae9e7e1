// Package storage moves proof-of-payment files to durable storage and
// reports the metadata the upload record needs.
package storage

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// StoredFile describes a successfully persisted proof file
type StoredFile struct {
	Path     string // full path on disk; recorded on the upload row
	Name     string // original file name as submitted
	Size     int64
	MimeType string
}

// ProofStore persists proof files under a path keyed by organization,
// uploader, upload type and student. A failed save is fatal to the
// submission: the upload row is only created after Save returns.
type ProofStore struct {
	baseDir string
	logger  *zap.Logger
}

// NewProofStore creates a new proof store rooted at baseDir
func NewProofStore(baseDir string, logger *zap.Logger) *ProofStore {
	return &ProofStore{
		baseDir: baseDir,
		logger:  logger,
	}
}

// BaseDir returns the storage root
func (s *ProofStore) BaseDir() string {
	return s.baseDir
}

// Save writes the file content and returns the stored path plus inferred
// metadata. The mime type is sniffed from content; the extension falls
// back to the submitted file name when sniffing yields none.
func (s *ProofStore) Save(organizationID, uploaderID, uploadType, studentID, originalName string, content []byte) (*StoredFile, error) {
	if len(content) == 0 {
		return nil, fmt.Errorf("empty file content")
	}

	mtype := mimetype.Detect(content)
	ext := mtype.Extension()
	if ext == "" {
		ext = strings.ToLower(filepath.Ext(originalName))
	}

	dir := filepath.Join(s.baseDir,
		sanitizeSegment(organizationID),
		sanitizeSegment(uploaderID),
		sanitizeSegment(uploadType),
		sanitizeSegment(studentID),
	)
	fullPath := filepath.Join(dir, uuid.NewString()+ext)

	if err := s.validatePath(fullPath); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		s.logger.Error("Failed to create proof directory",
			zap.String("dir", dir),
			zap.Error(err))
		return nil, fmt.Errorf("failed to create directories: %w", err)
	}

	if err := os.WriteFile(fullPath, content, 0644); err != nil {
		s.logger.Error("Failed to write proof file",
			zap.String("path", fullPath),
			zap.Error(err))
		return nil, fmt.Errorf("failed to write file: %w", err)
	}

	s.logger.Debug("Proof file saved",
		zap.String("path", fullPath),
		zap.Int("size", len(content)),
		zap.String("mime_type", mtype.String()))

	return &StoredFile{
		Path:     fullPath,
		Name:     filepath.Base(originalName),
		Size:     int64(len(content)),
		MimeType: mtype.String(),
	}, nil
}

// Delete removes a stored file. Used by the orphan reaper.
func (s *ProofStore) Delete(path string) error {
	if err := s.validatePath(path); err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// ListOlderThan returns stored file paths whose modification time is
// before the cutoff.
func (s *ProofStore) ListOlderThan(cutoff time.Time) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(s.baseDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		if info.ModTime().Before(cutoff) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk proof storage: %w", err)
	}
	return paths, nil
}

// validatePath checks that the path resolves inside the base directory
func (s *ProofStore) validatePath(fullPath string) error {
	absPath, err := filepath.Abs(fullPath)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}
	absBase, err := filepath.Abs(s.baseDir)
	if err != nil {
		return fmt.Errorf("failed to resolve base path: %w", err)
	}
	if !strings.HasPrefix(absPath, absBase+string(filepath.Separator)) && absPath != absBase {
		return fmt.Errorf("path escapes base directory: %s", fullPath)
	}
	return nil
}

var unsafeSegmentChars = regexp.MustCompile(`[^a-zA-Z0-9._\-]`)

// sanitizeSegment makes an identifier safe to use as a path component
func sanitizeSegment(segment string) string {
	segment = strings.ReplaceAll(segment, "..", "")
	segment = unsafeSegmentChars.ReplaceAllString(segment, "_")
	if segment == "" {
		segment = "unknown"
	}
	return segment
}
