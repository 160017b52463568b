package ops

import (
	"context"
	"database/sql"

	"timecapsule/internal/capsule"
	"timecapsule/internal/db"
	"timecapsule/internal/filestore"
)

// ListUpcoming returns locked and ready capsules ordered by unlock time,
// ascending, capped at limit (the home-screen capacity; pass 0 for the
// default of 6).
func ListUpcoming(ctx context.Context, database *sql.DB, files *filestore.Store, limit int) ([]*CapsuleView, error) {
	if limit <= 0 {
		limit = DefaultUpcomingLimit
	}

	capsules, err := db.ListUpcoming(ctx, database, limit)
	if err != nil {
		return nil, err
	}

	return attachImages(ctx, database, files, capsules)
}

// ListOpened returns opened capsules, most recently opened first.
func ListOpened(ctx context.Context, database *sql.DB, files *filestore.Store) ([]*CapsuleView, error) {
	capsules, err := db.ListOpened(ctx, database)
	if err != nil {
		return nil, err
	}

	return attachImages(ctx, database, files, capsules)
}

// attachImages loads image rows for each capsule, filtering out rows whose
// backing file has vanished, and converts to views.
func attachImages(ctx context.Context, database *sql.DB, files *filestore.Store, capsules []*capsule.Capsule) ([]*CapsuleView, error) {
	views := make([]*CapsuleView, 0, len(capsules))
	for _, c := range capsules {
		images, err := db.ListImages(ctx, database, c.ID)
		if err != nil {
			return nil, err
		}
		for _, img := range images {
			if files != nil && !files.Exists(img.FilePath) {
				continue
			}
			c.Images = append(c.Images, img)
		}
		views = append(views, NewCapsuleView(c))
	}
	return views, nil
}
