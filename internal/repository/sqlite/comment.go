package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/station-comments/internal/apperror"
	"github.com/sakif/station-comments/internal/model"
	"github.com/sakif/station-comments/internal/repository"
)

var _ repository.Store = (*DB)(nil)

// Create inserts a new comment. The ID and CreatedAt are assigned here and
// written back into the caller's struct.
//
// xid IDs start with a timestamp, so ordering by id breaks ties between
// comments created within the same clock tick.
func (db *DB) Create(ctx context.Context, c *model.Comment) error {
	c.ID = xid.New().String()
	c.CreatedAt = time.Now().UTC()

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO comments (id, station_id, user_id, username, comment, parent_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID,
		c.StationID,
		c.UserID,
		c.Username,
		c.Comment,
		nullString(c.ParentID),
		c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating comment: %w", err)
	}

	return nil
}

// GetByID returns one comment with every column populated.
func (db *DB) GetByID(ctx context.Context, id string) (*model.Comment, error) {
	var (
		c        model.Comment
		parentID sql.NullString
	)

	err := db.conn.QueryRowContext(ctx,
		`SELECT id, station_id, user_id, username, comment, parent_id, created_at
		 FROM comments
		 WHERE id = ?`,
		id,
	).Scan(&c.ID, &c.StationID, &c.UserID, &c.Username, &c.Comment, &parentID, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("comment", id)
		}
		return nil, fmt.Errorf("sqlite: getting comment %s: %w", id, err)
	}

	c.ParentID = stringPtr(parentID)
	return &c, nil
}

// ListByStation returns the station's comments, newest first. Only the
// public projection is read: station_id and user_id stay empty.
func (db *DB) ListByStation(ctx context.Context, stationID string) ([]model.Comment, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, username, comment, parent_id, created_at
		 FROM comments
		 WHERE station_id = ?
		 ORDER BY created_at DESC, id DESC`,
		stationID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing comments for station %s: %w", stationID, err)
	}
	defer rows.Close()

	comments := make([]model.Comment, 0)
	for rows.Next() {
		var (
			c        model.Comment
			parentID sql.NullString
		)
		if err := rows.Scan(&c.ID, &c.Username, &c.Comment, &parentID, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scanning comment row: %w", err)
		}
		c.ParentID = stringPtr(parentID)
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating comments: %w", err)
	}

	return comments, nil
}

// ListByUser returns every column of the user's comments, newest first.
func (db *DB) ListByUser(ctx context.Context, userID string) ([]model.Comment, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, station_id, user_id, username, comment, parent_id, created_at
		 FROM comments
		 WHERE user_id = ?
		 ORDER BY created_at DESC, id DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing comments for user %s: %w", userID, err)
	}
	defer rows.Close()

	comments := make([]model.Comment, 0)
	for rows.Next() {
		var (
			c        model.Comment
			parentID sql.NullString
		)
		if err := rows.Scan(
			&c.ID, &c.StationID, &c.UserID, &c.Username,
			&c.Comment, &parentID, &c.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scanning comment row: %w", err)
		}
		c.ParentID = stringPtr(parentID)
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating comments: %w", err)
	}

	return comments, nil
}

// UpdateText replaces a comment's body. Zero rows affected is not an error.
func (db *DB) UpdateText(ctx context.Context, id, text string) (int64, error) {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE comments SET comment = ? WHERE id = ?`,
		text, id,
	)
	if err != nil {
		return 0, fmt.Errorf("sqlite: updating comment %s: %w", id, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	return n, nil
}

// Delete removes a comment by id. Zero rows affected is not an error.
// Replies to the deleted comment are left in place.
func (db *DB) Delete(ctx context.Context, id string) (int64, error) {
	result, err := db.conn.ExecContext(ctx,
		`DELETE FROM comments WHERE id = ?`,
		id,
	)
	if err != nil {
		return 0, fmt.Errorf("sqlite: deleting comment %s: %w", id, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	return n, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
