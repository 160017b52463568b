package ops

import (
	"context"
	"database/sql"

	"timecapsule/internal/errors"
	"timecapsule/internal/filestore"
)

// Get returns the capsule with the given id, or nil when it does not exist.
// Absence is not an error on the read path.
func Get(ctx context.Context, database *sql.DB, files *filestore.Store, id string) (*CapsuleView, error) {
	view, err := loadView(ctx, database, files, id)
	if errors.Is(err, errors.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return view, nil
}
