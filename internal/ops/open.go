package ops

import (
	"context"
	"database/sql"

	"timecapsule/internal/capsule"
	"timecapsule/internal/db"
	"timecapsule/internal/errors"
	"timecapsule/internal/filestore"
)

// SubmitAnswer performs the ready -> opened transition for capsules with a
// reflection: validates the answer against the type's vocabulary, writes it,
// sets opened_at, and returns the refreshed capsule.
//
// Re-submitting the same answer to an already-opened capsule is an idempotent
// no-op (tolerates UI double-taps); a different answer is rejected, since an
// opened capsule is terminal.
func SubmitAnswer(ctx context.Context, database *sql.DB, files *filestore.Store, id, answer string) (*CapsuleView, error) {
	tx, err := database.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.NewStorageUnavailable(err)
	}
	defer tx.Rollback() //nolint:errcheck

	c, err := db.GetByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	if c.Status == capsule.StatusOpened {
		if c.ReflectionAnswer != nil && *c.ReflectionAnswer == answer {
			// Read through the open transaction: a pool capped at one
			// connection would never hand out a second one here.
			return loadView(ctx, tx, files, id)
		}
		return nil, errors.NewIllegalState("Capsule is already opened")
	}
	if c.Status != capsule.StatusReady {
		return nil, errors.NewIllegalState("Capsule is not ready to open")
	}

	if err := capsule.ValidateAnswer(c.Type, answer); err != nil {
		return nil, err
	}

	now := capsule.NowMillis()
	ok, err := db.MarkOpened(ctx, tx, id, &answer, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.NewIllegalState("Capsule is not ready to open")
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.NewStorageUnavailable(err)
	}

	return loadView(ctx, database, files, id)
}

// MarkOpened performs the ready -> opened transition for memory capsules,
// which carry no reflection and therefore no answer. Calling it on an
// already-opened memory capsule is an idempotent no-op.
func MarkOpened(ctx context.Context, database *sql.DB, files *filestore.Store, id string) (*CapsuleView, error) {
	tx, err := database.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.NewStorageUnavailable(err)
	}
	defer tx.Rollback() //nolint:errcheck

	c, err := db.GetByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	if c.Type.RequiresReflection() {
		return nil, errors.NewIllegalState("Capsule requires a reflection answer to open")
	}

	if c.Status == capsule.StatusOpened {
		// Same single-connection-pool rule as SubmitAnswer: reuse the
		// transaction's connection for the re-read.
		return loadView(ctx, tx, files, id)
	}
	if c.Status != capsule.StatusReady {
		return nil, errors.NewIllegalState("Capsule is not ready to open")
	}

	now := capsule.NowMillis()
	ok, err := db.MarkOpened(ctx, tx, id, nil, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.NewIllegalState("Capsule is not ready to open")
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.NewStorageUnavailable(err)
	}

	return loadView(ctx, database, files, id)
}
