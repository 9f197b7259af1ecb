// Package repository declares the storage contracts the service layer
// depends on. Implementations live in the sqlite and postgres subpackages.
package repository

import (
	"context"

	"github.com/sakif/station-comments/internal/model"
)

// CommentRepository stores station comments.
//
// UpdateText and Delete report the number of rows they touched instead of
// failing on a missing id: a no-op write is not an error at this layer.
// GetByID is the only method that returns apperror.ErrNotFound.
type CommentRepository interface {
	Create(ctx context.Context, comment *model.Comment) error
	GetByID(ctx context.Context, id string) (*model.Comment, error)
	ListByStation(ctx context.Context, stationID string) ([]model.Comment, error)
	ListByUser(ctx context.Context, userID string) ([]model.Comment, error)
	UpdateText(ctx context.Context, id, text string) (int64, error)
	Delete(ctx context.Context, id string) (int64, error)
}

// Store is a CommentRepository that owns a connection pool.
type Store interface {
	CommentRepository
	Close() error
}
