package db

import (
	"context"
	"database/sql"
	"fmt"

	"timecapsule/internal/capsule"
	"timecapsule/internal/errors"
)

// Queryer abstracts *sql.DB and *sql.Tx so the same statements run inside and
// outside a transaction.
type Queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const capsuleColumns = `id, type, status, content, reflection_question,
	reflection_answer, created_at, unlock_at, opened_at, updated_at`

// InsertCapsule stores a new capsule row.
func InsertCapsule(ctx context.Context, q Queryer, c *capsule.Capsule) error {
	query := `
		INSERT INTO capsule (
			id, type, status, content, reflection_question,
			reflection_answer, created_at, unlock_at, opened_at, updated_at
		) VALUES (?, ?, ?, ?, ?, NULL, ?, ?, NULL, ?)
	`

	_, err := q.ExecContext(ctx, query,
		c.ID, string(c.Type), string(c.Status), c.Content, toNullString(c.ReflectionQuestion),
		c.CreatedAt, c.UnlockAt, c.UpdatedAt,
	)
	if err != nil {
		return errors.NewStorageUnavailable(fmt.Errorf("insert capsule: %w", err))
	}

	return nil
}

// InsertImage stores an image row for a capsule.
func InsertImage(ctx context.Context, q Queryer, img *capsule.Image) error {
	query := `
		INSERT INTO capsule_image (id, capsule_id, file_path, order_index, created_at)
		VALUES (?, ?, ?, ?, ?)
	`

	_, err := q.ExecContext(ctx, query,
		img.ID, img.CapsuleID, img.FilePath, img.OrderIndex, img.CreatedAt,
	)
	if err != nil {
		return errors.NewStorageUnavailable(fmt.Errorf("insert image: %w", err))
	}

	return nil
}

// GetByID retrieves a capsule row by its UUID. Images are loaded separately
// via ListImages. Returns ErrNotFound if no row exists.
func GetByID(ctx context.Context, q Queryer, id string) (*capsule.Capsule, error) {
	query := `SELECT ` + capsuleColumns + ` FROM capsule WHERE id = ?`

	row := q.QueryRowContext(ctx, query, id)
	c, err := scanCapsuleFields(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound(id)
	}
	if err != nil {
		return nil, err
	}

	return c, nil
}

// ListImages returns a capsule's image rows in selection order.
func ListImages(ctx context.Context, q Queryer, capsuleID string) ([]capsule.Image, error) {
	query := `
		SELECT id, capsule_id, file_path, order_index, created_at
		FROM capsule_image
		WHERE capsule_id = ?
		ORDER BY order_index ASC
	`

	rows, err := q.QueryContext(ctx, query, capsuleID)
	if err != nil {
		return nil, errors.NewStorageUnavailable(fmt.Errorf("list images: %w", err))
	}
	defer rows.Close()

	var images []capsule.Image
	for rows.Next() {
		var img capsule.Image
		if err := rows.Scan(&img.ID, &img.CapsuleID, &img.FilePath, &img.OrderIndex, &img.CreatedAt); err != nil {
			return nil, errors.NewIOFailure(fmt.Errorf("scan image row: %w", err))
		}
		images = append(images, img)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewStorageUnavailable(fmt.Errorf("list images: %w", err))
	}

	return images, nil
}

// ListUpcoming returns locked and ready capsules ordered by unlock time, capped
// at limit.
func ListUpcoming(ctx context.Context, q Queryer, limit int) ([]*capsule.Capsule, error) {
	query := `
		SELECT ` + capsuleColumns + `
		FROM capsule
		WHERE status IN ('locked','ready')
		ORDER BY unlock_at ASC
		LIMIT ?
	`
	return queryCapsules(ctx, q, query, limit)
}

// ListOpened returns opened capsules, most recently opened first.
func ListOpened(ctx context.Context, q Queryer) ([]*capsule.Capsule, error) {
	query := `
		SELECT ` + capsuleColumns + `
		FROM capsule
		WHERE status = 'opened'
		ORDER BY opened_at DESC
	`
	return queryCapsules(ctx, q, query)
}

// MarkOpened performs the ready -> opened transition: writes the answer (nil
// for memory capsules), sets opened_at if not already set, and refreshes
// updated_at. Returns false when no row was in ready state with the given id.
func MarkOpened(ctx context.Context, q Queryer, id string, answer *string, now int64) (bool, error) {
	query := `
		UPDATE capsule
		SET status = 'opened',
		    reflection_answer = ?,
		    opened_at = COALESCE(opened_at, ?),
		    updated_at = ?
		WHERE id = ? AND status = 'ready'
	`

	result, err := q.ExecContext(ctx, query, toNullString(answer), now, now, id)
	if err != nil {
		return false, errors.NewStorageUnavailable(fmt.Errorf("mark opened: %w", err))
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, errors.NewStorageUnavailable(err)
	}

	return rowsAffected > 0, nil
}

// DeleteOpened removes a capsule row, guarded to opened status. Image rows
// cascade via the foreign key. Returns false when no opened row matched.
func DeleteOpened(ctx context.Context, q Queryer, id string) (bool, error) {
	result, err := q.ExecContext(ctx, `DELETE FROM capsule WHERE id = ? AND status = 'opened'`, id)
	if err != nil {
		return false, errors.NewStorageUnavailable(fmt.Errorf("delete capsule: %w", err))
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, errors.NewStorageUnavailable(err)
	}

	return rowsAffected > 0, nil
}

// PromotePending is the bulk locked -> ready reconciliation: one statement, no
// per-row loop, so a time-boxed background run stays cheap. Returns the number
// of rows promoted; calling it again immediately yields 0.
func PromotePending(ctx context.Context, q Queryer, now int64) (int64, error) {
	query := `
		UPDATE capsule
		SET status = 'ready', updated_at = ?
		WHERE status = 'locked' AND unlock_at <= ?
	`

	result, err := q.ExecContext(ctx, query, now, now)
	if err != nil {
		return 0, errors.NewStorageUnavailable(fmt.Errorf("promote pending: %w", err))
	}

	count, err := result.RowsAffected()
	if err != nil {
		return 0, errors.NewStorageUnavailable(err)
	}

	return count, nil
}

// ListDue returns locked capsules whose unlock time has passed, for the
// reconciliation scheduler to hand to the notification collaborator.
func ListDue(ctx context.Context, q Queryer, now int64) ([]*capsule.Capsule, error) {
	query := `
		SELECT ` + capsuleColumns + `
		FROM capsule
		WHERE status = 'locked' AND unlock_at <= ?
		ORDER BY unlock_at ASC
	`
	return queryCapsules(ctx, q, query, now)
}

// queryCapsules runs a multi-row capsule query.
func queryCapsules(ctx context.Context, q Queryer, query string, args ...any) ([]*capsule.Capsule, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.NewStorageUnavailable(fmt.Errorf("query capsules: %w", err))
	}
	defer rows.Close()

	var capsules []*capsule.Capsule
	for rows.Next() {
		c, err := scanCapsuleFields(rows)
		if err != nil {
			return nil, err
		}
		capsules = append(capsules, c)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewStorageUnavailable(fmt.Errorf("query capsules: %w", err))
	}

	return capsules, nil
}

// scanner covers *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// scanCapsuleFields scans one row into a Capsule struct. Enum columns are
// re-checked at the boundary; a row that does not match the schema surfaces
// as an IO_FAILURE instead of leaking a malformed value.
func scanCapsuleFields(s scanner) (*capsule.Capsule, error) {
	var (
		c        capsule.Capsule
		typ      string
		status   string
		question sql.NullString
		answer   sql.NullString
		openedAt sql.NullInt64
	)

	err := s.Scan(
		&c.ID, &typ, &status, &c.Content, &question,
		&answer, &c.CreatedAt, &c.UnlockAt, &openedAt, &c.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, errors.NewIOFailure(fmt.Errorf("scan capsule row: %w", err))
	}

	c.Type = capsule.Type(typ)
	c.Status = capsule.Status(status)
	if !capsule.ValidType(c.Type) {
		return nil, errors.NewIOFailure(fmt.Errorf("row %s has unknown type %q", c.ID, typ))
	}
	if !capsule.ValidStatus(c.Status) {
		return nil, errors.NewIOFailure(fmt.Errorf("row %s has unknown status %q", c.ID, status))
	}

	c.ReflectionQuestion = fromNullString(question)
	c.ReflectionAnswer = fromNullString(answer)
	if openedAt.Valid {
		c.OpenedAt = &openedAt.Int64
	}

	return &c, nil
}

// toNullString converts a *string to sql.NullString.
func toNullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// fromNullString converts a sql.NullString to *string.
func fromNullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}
