package ops

import (
	"context"
	"database/sql"

	"timecapsule/internal/capsule"
	"timecapsule/internal/db"
)

// UpdatePending promotes every locked capsule whose unlock time has passed to
// ready, in a single bulk statement, and returns the count promoted. Safe to
// call redundantly: an immediate second call returns 0.
func UpdatePending(ctx context.Context, database *sql.DB) (int64, error) {
	return db.PromotePending(ctx, database, capsule.NowMillis())
}

// ListDueForNotification returns locked capsules whose unlock time has
// passed, i.e. those about to be promoted, for handoff to the notification
// collaborator.
func ListDueForNotification(ctx context.Context, database *sql.DB) ([]*capsule.Capsule, error) {
	return db.ListDue(ctx, database, capsule.NowMillis())
}
