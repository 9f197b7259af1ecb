package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/station-comments/internal/apperror"
	"github.com/sakif/station-comments/internal/auth"
	"github.com/sakif/station-comments/internal/service"
)

// maxBodyBytes bounds request bodies. A full-length comment plus a token
// fits with plenty of room.
const maxBodyBytes = 64 << 10

// CommentHandler adapts CommentService to HTTP.
type CommentHandler struct {
	comments *service.CommentService
	logger   *slog.Logger
}

func NewCommentHandler(comments *service.CommentService, logger *slog.Logger) *CommentHandler {
	return &CommentHandler{comments: comments, logger: logger}
}

// createRequest is the create body. Station and parent ids come from other
// systems and may be JSON numbers ("parent_id": 12) as well as strings.
type createRequest struct {
	Token     string   `json:"token"`
	StationID idString `json:"station_id"`
	Comment   string   `json:"comment"`
	ParentID  idString `json:"parent_id"`
}

// idString decodes a JSON string, number or null into its string form.
type idString string

func (s *idString) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*s = ""
		return nil
	}
	var str string
	if err := json.Unmarshal(b, &str); err == nil {
		*s = idString(str)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*s = idString(n.String())
	return nil
}

type editRequest struct {
	Token   string `json:"token"`
	Comment string `json:"comment"`
}

type deleteRequest struct {
	Token string `json:"token"`
}

// HandleCreate adds a comment to a station.
//
// HTTP: POST /api/comments
// REQUEST BODY: {"token": "...", "station_id": "...", "comment": "...", "parent_id": "..."}
func (h *CommentHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if !h.decode(w, r, &req) {
		return
	}

	c, err := h.comments.Create(r.Context(), service.CreateInput{
		Token:     tokenFrom(req.Token, r),
		StationID: string(req.StationID),
		Comment:   req.Comment,
		ParentID:  string(req.ParentID),
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, MessageResponse{Message: "comment created", ID: c.ID})
}

// HandleListByStation returns a station's comments, newest first.
//
// HTTP: GET /api/stations/{stationID}/comments
func (h *CommentHandler) HandleListByStation(w http.ResponseWriter, r *http.Request) {
	comments, err := h.comments.ListByStation(r.Context(), chi.URLParam(r, "stationID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, comments)
}

// HandleListByUser returns the caller's comments.
//
// HTTP: GET /api/comments/user
// HEADER: Authorization: <scheme> <token>, usually "Bearer"
func (h *CommentHandler) HandleListByUser(w http.ResponseWriter, r *http.Request) {
	comments, err := h.comments.ListByUser(r.Context(), r.Header.Get("Authorization"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, comments)
}

// HandleEdit replaces a comment's text.
//
// HTTP: PUT /api/comments/{id}
// REQUEST BODY: {"token": "...", "comment": "..."}
func (h *CommentHandler) HandleEdit(w http.ResponseWriter, r *http.Request) {
	var req editRequest
	if !h.decode(w, r, &req) {
		return
	}

	err := h.comments.Edit(r.Context(), service.EditInput{
		Token:   tokenFrom(req.Token, r),
		ID:      chi.URLParam(r, "id"),
		Comment: req.Comment,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{Message: "comment updated"})
}

// HandleDelete removes a comment. The body may be empty when the token is
// sent in the Authorization header.
//
// HTTP: DELETE /api/comments/{id}
func (h *CommentHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	var req deleteRequest
	if !h.decode(w, r, &req) {
		return
	}

	err := h.comments.Delete(r.Context(), service.DeleteInput{
		Token: tokenFrom(req.Token, r),
		ID:    chi.URLParam(r, "id"),
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{Message: "comment deleted"})
}

// decode reads a JSON body into dst. An empty body leaves dst zeroed, so
// missing fields surface as validation errors from the service. It writes
// the error response itself and reports whether the handler should go on.
func (h *CommentHandler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}

	h.logger.Warn("invalid request body", slog.String("error", err.Error()))

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(w, apperror.ValidationFailed("body", "request body too large"))
		return false
	}
	writeError(w, apperror.ValidationFailed("body", "invalid JSON body"))
	return false
}

// tokenFrom prefers the token in the body and falls back to the
// Authorization header.
func tokenFrom(bodyToken string, r *http.Request) string {
	if bodyToken != "" {
		return bodyToken
	}
	token, err := auth.BearerToken(r.Header.Get("Authorization"))
	if err != nil {
		return ""
	}
	return token
}
