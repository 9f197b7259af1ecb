package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/xid"

	"github.com/sakif/station-comments/internal/apperror"
	"github.com/sakif/station-comments/internal/model"
	"github.com/sakif/station-comments/internal/repository"
)

var _ repository.Store = (*DB)(nil)

// Create inserts a comment, assigning its ID and CreatedAt.
// PostgreSQL keeps microseconds, so CreatedAt is truncated to match what a
// later read returns.
func (db *DB) Create(ctx context.Context, c *model.Comment) error {
	c.ID = xid.New().String()
	c.CreatedAt = time.Now().UTC().Truncate(time.Microsecond)

	_, err := db.pool.Exec(ctx,
		`INSERT INTO comments (id, station_id, user_id, username, comment, parent_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		c.ID, c.StationID, c.UserID, c.Username, c.Comment, c.ParentID, c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: creating comment: %w", err)
	}
	return nil
}

func (db *DB) GetByID(ctx context.Context, id string) (*model.Comment, error) {
	var c model.Comment
	err := db.pool.QueryRow(ctx,
		`SELECT id, station_id, user_id, username, comment, parent_id, created_at
		 FROM comments
		 WHERE id = $1`,
		id,
	).Scan(&c.ID, &c.StationID, &c.UserID, &c.Username, &c.Comment, &c.ParentID, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.NotFound("comment", id)
		}
		return nil, fmt.Errorf("postgres: getting comment %s: %w", id, err)
	}
	c.CreatedAt = c.CreatedAt.UTC()
	return &c, nil
}

func (db *DB) ListByStation(ctx context.Context, stationID string) ([]model.Comment, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, username, comment, parent_id, created_at
		 FROM comments
		 WHERE station_id = $1
		 ORDER BY created_at DESC, id DESC`,
		stationID,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: listing comments for station %s: %w", stationID, err)
	}

	comments, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Comment, error) {
		var c model.Comment
		err := row.Scan(&c.ID, &c.Username, &c.Comment, &c.ParentID, &c.CreatedAt)
		c.CreatedAt = c.CreatedAt.UTC()
		return c, err
	})
	if err != nil {
		return nil, fmt.Errorf("postgres: reading comments: %w", err)
	}
	return nonNil(comments), nil
}

func (db *DB) ListByUser(ctx context.Context, userID string) ([]model.Comment, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, station_id, user_id, username, comment, parent_id, created_at
		 FROM comments
		 WHERE user_id = $1
		 ORDER BY created_at DESC, id DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: listing comments for user %s: %w", userID, err)
	}

	comments, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Comment, error) {
		var c model.Comment
		err := row.Scan(&c.ID, &c.StationID, &c.UserID, &c.Username, &c.Comment, &c.ParentID, &c.CreatedAt)
		c.CreatedAt = c.CreatedAt.UTC()
		return c, err
	})
	if err != nil {
		return nil, fmt.Errorf("postgres: reading comments: %w", err)
	}
	return nonNil(comments), nil
}

func (db *DB) UpdateText(ctx context.Context, id, text string) (int64, error) {
	tag, err := db.pool.Exec(ctx, `UPDATE comments SET comment = $1 WHERE id = $2`, text, id)
	if err != nil {
		return 0, fmt.Errorf("postgres: updating comment %s: %w", id, err)
	}
	return tag.RowsAffected(), nil
}

func (db *DB) Delete(ctx context.Context, id string) (int64, error) {
	tag, err := db.pool.Exec(ctx, `DELETE FROM comments WHERE id = $1`, id)
	if err != nil {
		return 0, fmt.Errorf("postgres: deleting comment %s: %w", id, err)
	}
	return tag.RowsAffected(), nil
}

// CollectRows returns nil for an empty result set.
func nonNil(comments []model.Comment) []model.Comment {
	if comments == nil {
		return []model.Comment{}
	}
	return comments
}
