package ops

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"timecapsule/internal/capsule"
	"timecapsule/internal/db"
	"timecapsule/internal/errors"
	"timecapsule/internal/filestore"
)

// CreateInput contains parameters for the Create operation.
type CreateInput struct {
	Type               capsule.Type
	Content            string
	ReflectionQuestion *string   // required unless Type is memory
	UnlockAt           time.Time // must be at least 1 minute in the future
	ImagePaths         []string  // 0-3 picker-provided source files
}

// Create validates input, then creates a locked capsule and its copied images
// in one transaction. Validation failures never touch storage. If anything
// fails after the row insert, the transaction is rolled back and any files
// already copied for this capsule are removed: no orphaned files survive a
// failed create. Returns the capsule re-read from storage.
func Create(ctx context.Context, database *sql.DB, files *filestore.Store, input CreateInput) (*CapsuleView, error) {
	if !capsule.ValidType(input.Type) {
		return nil, errors.NewValidationField("type", "Type must be one of: emotion, goal, memory, decision")
	}

	content, err := capsule.ValidateContent(input.Content)
	if err != nil {
		return nil, err
	}

	if err := capsule.ValidateReflectionQuestion(input.Type, input.ReflectionQuestion); err != nil {
		return nil, err
	}

	now := capsule.NowMillis()
	unlockAt := input.UnlockAt.UnixMilli()
	if err := capsule.ValidateUnlockAt(unlockAt, now); err != nil {
		return nil, err
	}

	if err := capsule.ValidateImageCount(len(input.ImagePaths)); err != nil {
		return nil, err
	}

	c := &capsule.Capsule{
		ID:        uuid.NewString(),
		Type:      input.Type,
		Status:    capsule.StatusLocked,
		Content:   content,
		CreatedAt: now,
		UnlockAt:  unlockAt,
		UpdatedAt: now,
	}
	if input.Type.RequiresReflection() {
		c.ReflectionQuestion = input.ReflectionQuestion
	}

	tx, err := database.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.NewStorageUnavailable(err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := db.InsertCapsule(ctx, tx, c); err != nil {
		return nil, err
	}

	// CopyImages removes its own partial copies on failure; the insert above
	// dies with the rollback.
	copied, err := files.CopyImages(c.ID, input.ImagePaths)
	if err != nil {
		return nil, err
	}

	for _, img := range copied {
		row := &capsule.Image{
			ID:         img.ID,
			CapsuleID:  c.ID,
			FilePath:   img.FilePath,
			OrderIndex: img.OrderIndex,
			CreatedAt:  now,
		}
		if err := db.InsertImage(ctx, tx, row); err != nil {
			cleanupCopied(files, c.ID, copied)
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		cleanupCopied(files, c.ID, copied)
		return nil, errors.NewStorageUnavailable(err)
	}

	// Re-read from storage rather than echoing the input, to catch any
	// storage-level coercion.
	return loadView(ctx, database, files, c.ID)
}

// cleanupCopied is the compensating file cleanup for a failed create.
func cleanupCopied(files *filestore.Store, capsuleID string, copied []filestore.CopiedImage) {
	paths := make([]string, 0, len(copied))
	for _, img := range copied {
		paths = append(paths, img.FilePath)
	}
	files.DeleteAllCollect(capsuleID, paths)
}
