package filestore

import (
	"crypto/rand"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"timecapsule/internal/errors"
)

// allowedExtensions are the image formats accepted from the picker.
var allowedExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
}

// Store owns the images root: one subdirectory per capsule id, filenames
// {imageID}_{orderIndex}{ext}. All access goes through the capsule repository.
type Store struct {
	root     string
	maxBytes int64
	log      *slog.Logger
}

// CopiedImage describes one durably copied image file.
type CopiedImage struct {
	ID         string
	FilePath   string
	OrderIndex int
}

// New creates a Store rooted at root. maxBytes caps a single source file.
func New(root string, maxBytes int64, log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{root: root, maxBytes: maxBytes, log: log}
}

// CapsuleDir returns the per-capsule image directory.
func (s *Store) CapsuleDir(capsuleID string) string {
	return filepath.Join(s.root, capsuleID)
}

// CopyImages materializes up to three picker-provided source files into the
// capsule's directory, preserving input order as the order index. On any
// failure mid-copy, everything copied in this call is removed (best-effort)
// before the error propagates: a partial image set must never survive.
func (s *Store) CopyImages(capsuleID string, sources []string) ([]CopiedImage, error) {
	if len(sources) == 0 {
		return nil, nil
	}

	dir := s.CapsuleDir(capsuleID)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, errors.NewIOFailure(fmt.Errorf("failed to create image directory: %w", err))
	}

	copied := make([]CopiedImage, 0, len(sources))
	for i, src := range sources {
		img, err := s.copyOne(dir, src, i)
		if err != nil {
			s.rollback(capsuleID, copied)
			return nil, err
		}
		copied = append(copied, img)
	}

	return copied, nil
}

// copyOne validates and copies a single source file.
func (s *Store) copyOne(dir, src string, index int) (CopiedImage, error) {
	info, err := os.Stat(src)
	if err != nil {
		if os.IsNotExist(err) {
			return CopiedImage{}, errors.NewValidationField("images",
				fmt.Sprintf("Image source does not exist: %s", src))
		}
		return CopiedImage{}, errors.NewIOFailure(fmt.Errorf("failed to stat image source: %w", err))
	}

	ext := strings.ToLower(filepath.Ext(src))
	if !allowedExtensions[ext] {
		return CopiedImage{}, errors.NewValidationField("images",
			fmt.Sprintf("Image must be a .jpg, .jpeg, or .png file: %s", src))
	}

	if info.Size() > s.maxBytes {
		return CopiedImage{}, errors.NewValidationField("images",
			fmt.Sprintf("Image exceeds maximum size of %d bytes: %s", s.maxBytes, src))
	}

	id := newImageID()
	dst := filepath.Join(dir, fmt.Sprintf("%s_%d%s", id, index, ext))
	if err := copyFile(src, dst); err != nil {
		return CopiedImage{}, errors.NewIOFailure(fmt.Errorf("failed to copy image: %w", err))
	}

	return CopiedImage{ID: id, FilePath: dst, OrderIndex: index}, nil
}

// rollback removes files copied so far in a failed CopyImages call.
func (s *Store) rollback(capsuleID string, copied []CopiedImage) {
	for _, img := range copied {
		if err := os.Remove(img.FilePath); err != nil && !os.IsNotExist(err) {
			s.log.Warn("failed to remove partially copied image",
				"capsule_id", capsuleID, "path", img.FilePath, "error", err)
		}
	}
	// Directory may still hold nothing; removing it is also best-effort.
	if err := os.Remove(s.CapsuleDir(capsuleID)); err != nil && !os.IsNotExist(err) {
		s.log.Warn("failed to remove image directory after rollback",
			"capsule_id", capsuleID, "error", err)
	}
}

// DeleteAll removes the capsule's entire image directory. A missing directory
// is not an error. Used standalone the failure is surfaced; during capsule
// deletion use DeleteAllCollect instead.
func (s *Store) DeleteAll(capsuleID string) error {
	if err := os.RemoveAll(s.CapsuleDir(capsuleID)); err != nil {
		return errors.NewIOFailure(fmt.Errorf("failed to delete image directory: %w", err))
	}
	return nil
}

// DeleteAllCollect removes the given image files and the capsule directory,
// collecting per-item failures into a warning list instead of failing. The
// database row removal is the authoritative deletion signal; a dangling file
// is a self-healing leak, not a correctness violation.
func (s *Store) DeleteAllCollect(capsuleID string, paths []string) []string {
	var warnings []string

	for _, p := range paths {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			warnings = append(warnings, fmt.Sprintf("failed to delete image file %s: %v", p, err))
		}
	}
	if err := os.RemoveAll(s.CapsuleDir(capsuleID)); err != nil {
		warnings = append(warnings, fmt.Sprintf("failed to delete image directory for %s: %v", capsuleID, err))
	}

	if len(warnings) > 0 {
		s.log.Warn("capsule image cleanup left dangling files",
			"capsule_id", capsuleID, "warnings", len(warnings))
	}

	return warnings
}

// DeleteRoot removes the entire images root. Development tooling only, the
// counterpart of the storage engine's destructive reset.
func (s *Store) DeleteRoot() error {
	if err := os.RemoveAll(s.root); err != nil {
		return errors.NewIOFailure(fmt.Errorf("failed to delete images root: %w", err))
	}
	return nil
}

// Exists reports whether the backing file for an image row is still on disk.
// Rows whose file has vanished are filtered out of read results.
func (s *Store) Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// copyFile copies src to dst, fsyncing the destination.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	if err := out.Sync(); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	return out.Close()
}

// newImageID generates a ULID for an image file. ULIDs sort by creation time,
// which keeps directory listings in capture order.
func newImageID() string {
	entropy := ulid.Monotonic(rand.Reader, 0)
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}
