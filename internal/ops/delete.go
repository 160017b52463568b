package ops

import (
	"context"
	"database/sql"

	"timecapsule/internal/capsule"
	"timecapsule/internal/db"
	"timecapsule/internal/errors"
	"timecapsule/internal/filestore"
)

// DeleteOutput contains the result of the Delete operation. Warnings lists
// image files that could not be removed; the database deletion already
// committed, so these are leaks, not failures.
type DeleteOutput struct {
	Deleted  bool     `json:"deleted"`
	ID       string   `json:"id"`
	Warnings []string `json:"warnings,omitempty"`
}

// Delete permanently removes an opened capsule: the row (image rows cascade)
// inside a transaction, then the image files best-effort. Capsules still
// pending their unlock experience cannot be deleted.
func Delete(ctx context.Context, database *sql.DB, files *filestore.Store, id string) (*DeleteOutput, error) {
	c, err := db.GetByID(ctx, database, id)
	if err != nil {
		return nil, err
	}
	if c.Status != capsule.StatusOpened {
		return nil, errors.NewIllegalState("Only opened capsules can be deleted")
	}

	// Fetch the image list before the row disappears; the cascade would
	// otherwise take the file paths with it.
	images, err := db.ListImages(ctx, database, id)
	if err != nil {
		return nil, err
	}

	tx, err := database.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.NewStorageUnavailable(err)
	}
	defer tx.Rollback() //nolint:errcheck

	ok, err := db.DeleteOpened(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.NewIllegalState("Only opened capsules can be deleted")
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.NewStorageUnavailable(err)
	}

	paths := make([]string, 0, len(images))
	for _, img := range images {
		paths = append(paths, img.FilePath)
	}
	warnings := files.DeleteAllCollect(id, paths)

	return &DeleteOutput{
		Deleted:  true,
		ID:       id,
		Warnings: warnings,
	}, nil
}
