// Package service contains the business logic layer of the application.
//
//	Handler (HTTP)  → CommentService (validation, auth) → CommentRepository (SQL)
//	                                 ↘ TokenVerifier (JWT)
//
// The service knows nothing about HTTP. Every method returns either a value
// or an *apperror.AppError whose kind the handler maps to a status code.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/sakif/station-comments/internal/apperror"
	"github.com/sakif/station-comments/internal/auth"
	"github.com/sakif/station-comments/internal/model"
	"github.com/sakif/station-comments/internal/repository"
)

// TokenVerifier turns a bearer token into a caller identity.
// *auth.TokenService satisfies it.
type TokenVerifier interface {
	Verify(token string) (*auth.Identity, error)
}

// CommentService implements the comment operations.
type CommentService struct {
	repo             repository.CommentRepository
	tokens           TokenVerifier
	logger           *slog.Logger
	enforceOwnership bool
}

// Option configures optional CommentService behaviour.
type Option func(*CommentService)

// WithOwnershipCheck makes Edit and Delete load the comment first and reject
// callers who did not write it.
func WithOwnershipCheck(enabled bool) Option {
	return func(s *CommentService) { s.enforceOwnership = enabled }
}

func NewCommentService(
	repo repository.CommentRepository,
	tokens TokenVerifier,
	logger *slog.Logger,
	opts ...Option,
) *CommentService {
	s := &CommentService{
		repo:   repo,
		tokens: tokens,
		logger: logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type CreateInput struct {
	Token     string
	StationID string
	Comment   string
	ParentID  string // optional; empty means a top-level comment
}

type EditInput struct {
	Token   string
	ID      string
	Comment string
}

type DeleteInput struct {
	Token string
	ID    string
}

// Create validates the input, verifies the token and stores a new comment
// owned by the token's identity.
//
// Presence checks run before the token is looked at, so a request missing
// fields gets a validation error even when its token is also bad.
// Whitespace-only text counts as missing, but the stored text is exactly
// what the caller sent.
func (s *CommentService) Create(ctx context.Context, in CreateInput) (*model.Comment, error) {
	token := strings.TrimSpace(in.Token)
	stationID := strings.TrimSpace(in.StationID)
	text := strings.TrimSpace(in.Comment)

	if token == "" || stationID == "" || text == "" {
		return nil, apperror.ValidationFailed(missingField(
			field{"token", token}, field{"station_id", stationID}, field{"comment", text},
		), "token, station_id and comment are required")
	}
	if err := checkLength(in.Comment); err != nil {
		return nil, err
	}

	who, err := s.verify(token)
	if err != nil {
		return nil, err
	}

	c := &model.Comment{
		StationID: stationID,
		UserID:    who.ID,
		Username:  who.Username,
		Comment:   in.Comment,
	}
	if parent := strings.TrimSpace(in.ParentID); parent != "" {
		c.ParentID = &parent
	}

	if err := s.repo.Create(ctx, c); err != nil {
		s.logger.Error("failed to create comment",
			slog.String("station_id", stationID),
			slog.String("user_id", who.ID),
			slog.String("error", err.Error()),
		)
		return nil, apperror.Internal("failed to create comment", err)
	}

	s.logger.Info("comment created",
		slog.String("id", c.ID),
		slog.String("station_id", c.StationID),
		slog.String("user_id", c.UserID),
	)
	return c, nil
}

// ListByStation returns a station's comments, newest first. No token needed.
func (s *CommentService) ListByStation(ctx context.Context, stationID string) ([]model.Comment, error) {
	stationID = strings.TrimSpace(stationID)
	if stationID == "" {
		return nil, apperror.ValidationFailed("station_id", "station_id is required")
	}

	comments, err := s.repo.ListByStation(ctx, stationID)
	if err != nil {
		s.logger.Error("failed to list station comments",
			slog.String("station_id", stationID),
			slog.String("error", err.Error()),
		)
		return nil, apperror.Internal("failed to get comments", err)
	}
	return comments, nil
}

// Edit replaces a comment's text. Editing an id that does not exist
// succeeds unless the ownership check is on.
func (s *CommentService) Edit(ctx context.Context, in EditInput) error {
	token := strings.TrimSpace(in.Token)
	id := strings.TrimSpace(in.ID)
	text := strings.TrimSpace(in.Comment)

	if token == "" || text == "" {
		return apperror.ValidationFailed(missingField(
			field{"token", token}, field{"comment", text},
		), "token and comment are required")
	}
	if id == "" {
		return apperror.ValidationFailed("id", "comment id is required")
	}
	if err := checkLength(in.Comment); err != nil {
		return err
	}

	who, err := s.verify(token)
	if err != nil {
		return err
	}
	if err := s.checkOwner(ctx, id, who); err != nil {
		return err
	}

	n, err := s.repo.UpdateText(ctx, id, in.Comment)
	if err != nil {
		s.logger.Error("failed to edit comment",
			slog.String("id", id),
			slog.String("error", err.Error()),
		)
		return apperror.Internal("failed to edit comment", err)
	}
	if n == 0 {
		s.logger.Debug("edit matched no comment", slog.String("id", id))
		return nil
	}

	s.logger.Info("comment edited",
		slog.String("id", id),
		slog.String("user_id", who.ID),
	)
	return nil
}

// Delete removes a comment. Like Edit, a missing id is not an error unless
// the ownership check is on.
func (s *CommentService) Delete(ctx context.Context, in DeleteInput) error {
	token := strings.TrimSpace(in.Token)
	id := strings.TrimSpace(in.ID)

	if token == "" {
		return apperror.ValidationFailed("token", "token is required")
	}
	if id == "" {
		return apperror.ValidationFailed("id", "comment id is required")
	}

	who, err := s.verify(token)
	if err != nil {
		return err
	}
	if err := s.checkOwner(ctx, id, who); err != nil {
		return err
	}

	n, err := s.repo.Delete(ctx, id)
	if err != nil {
		s.logger.Error("failed to delete comment",
			slog.String("id", id),
			slog.String("error", err.Error()),
		)
		return apperror.Internal("failed to delete comment", err)
	}
	if n == 0 {
		s.logger.Debug("delete matched no comment", slog.String("id", id))
		return nil
	}

	s.logger.Info("comment deleted",
		slog.String("id", id),
		slog.String("user_id", who.ID),
	)
	return nil
}

// ListByUser returns the caller's own comments, identified by the bearer
// token in an Authorization header value.
func (s *CommentService) ListByUser(ctx context.Context, authorization string) ([]model.Comment, error) {
	token, err := auth.BearerToken(authorization)
	if err != nil {
		if errors.Is(err, auth.ErrMissingAuthorization) {
			return nil, apperror.Unauthorized("authorization header not provided")
		}
		s.logger.Warn("malformed authorization header")
		return nil, apperror.Unauthorized("invalid token")
	}

	who, err := s.verify(token)
	if err != nil {
		return nil, err
	}

	comments, err := s.repo.ListByUser(ctx, who.ID)
	if err != nil {
		s.logger.Error("failed to list user comments",
			slog.String("user_id", who.ID),
			slog.String("error", err.Error()),
		)
		return nil, apperror.Internal("failed to get user comments", err)
	}
	return comments, nil
}

func (s *CommentService) verify(token string) (*auth.Identity, error) {
	who, err := s.tokens.Verify(token)
	if err != nil {
		s.logger.Warn("token rejected", slog.String("error", err.Error()))
		return nil, apperror.Unauthorized("invalid token")
	}
	return who, nil
}

// checkOwner is a no-op unless ownership enforcement is enabled.
func (s *CommentService) checkOwner(ctx context.Context, id string, who *auth.Identity) error {
	if !s.enforceOwnership {
		return nil
	}

	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return err
		}
		s.logger.Error("failed to load comment",
			slog.String("id", id),
			slog.String("error", err.Error()),
		)
		return apperror.Internal("failed to load comment", err)
	}

	if existing.UserID != who.ID {
		s.logger.Warn("ownership check failed",
			slog.String("id", id),
			slog.String("owner", existing.UserID),
			slog.String("caller", who.ID),
		)
		return apperror.Forbidden("you can only change your own comments")
	}
	return nil
}

func checkLength(text string) error {
	if utf8.RuneCountInString(text) > model.MaxCommentLength {
		return apperror.ValidationFailed("comment",
			fmt.Sprintf("comment must be %d characters or less", model.MaxCommentLength))
	}
	return nil
}

type field struct{ name, value string }

// missingField names the first empty field, for AppError.Field.
func missingField(fields ...field) string {
	for _, f := range fields {
		if f.value == "" {
			return f.name
		}
	}
	return ""
}
