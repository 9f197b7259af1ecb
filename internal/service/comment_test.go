package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/station-comments/internal/apperror"
	"github.com/sakif/station-comments/internal/auth"
	"github.com/sakif/station-comments/internal/model"
)

// =========================================================================
// FAKES
// =========================================================================

// fakeRepo is an in-memory CommentRepository. Setting err makes every
// method fail with it.
type fakeRepo struct {
	comments map[string]*model.Comment
	nextID   int
	err      error
	calls    []string
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{comments: make(map[string]*model.Comment)}
}

func (f *fakeRepo) Create(_ context.Context, c *model.Comment) error {
	f.calls = append(f.calls, "Create")
	if f.err != nil {
		return f.err
	}
	f.nextID++
	c.ID = fmt.Sprintf("c-%03d", f.nextID)
	c.CreatedAt = time.Date(2026, 1, 1, 0, 0, f.nextID, 0, time.UTC)
	stored := *c
	f.comments[c.ID] = &stored
	return nil
}

func (f *fakeRepo) GetByID(_ context.Context, id string) (*model.Comment, error) {
	f.calls = append(f.calls, "GetByID")
	if f.err != nil {
		return nil, f.err
	}
	c, ok := f.comments[id]
	if !ok {
		return nil, apperror.NotFound("comment", id)
	}
	out := *c
	return &out, nil
}

func (f *fakeRepo) list(match func(*model.Comment) bool) []model.Comment {
	out := make([]model.Comment, 0)
	for _, c := range f.comments {
		if match(c) {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

func (f *fakeRepo) ListByStation(_ context.Context, stationID string) ([]model.Comment, error) {
	f.calls = append(f.calls, "ListByStation")
	if f.err != nil {
		return nil, f.err
	}
	return f.list(func(c *model.Comment) bool { return c.StationID == stationID }), nil
}

func (f *fakeRepo) ListByUser(_ context.Context, userID string) ([]model.Comment, error) {
	f.calls = append(f.calls, "ListByUser")
	if f.err != nil {
		return nil, f.err
	}
	return f.list(func(c *model.Comment) bool { return c.UserID == userID }), nil
}

func (f *fakeRepo) UpdateText(_ context.Context, id, text string) (int64, error) {
	f.calls = append(f.calls, "UpdateText")
	if f.err != nil {
		return 0, f.err
	}
	c, ok := f.comments[id]
	if !ok {
		return 0, nil
	}
	c.Comment = text
	return 1, nil
}

func (f *fakeRepo) Delete(_ context.Context, id string) (int64, error) {
	f.calls = append(f.calls, "Delete")
	if f.err != nil {
		return 0, f.err
	}
	if _, ok := f.comments[id]; !ok {
		return 0, nil
	}
	delete(f.comments, id)
	return 1, nil
}

// fakeVerifier accepts exactly the tokens in its map.
type fakeVerifier map[string]auth.Identity

func (v fakeVerifier) Verify(token string) (*auth.Identity, error) {
	id, ok := v[token]
	if !ok {
		return nil, auth.ErrInvalidToken
	}
	return &id, nil
}

var testTokens = fakeVerifier{
	"tok-ana": {ID: "42", Username: "dj_ana"},
	"tok-bob": {ID: "7", Username: "bob"},
}

func newTestService(t *testing.T, opts ...Option) (*CommentService, *fakeRepo) {
	t.Helper()
	repo := newFakeRepo()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewCommentService(repo, testTokens, logger, opts...), repo
}

func assertKind(t *testing.T, err error, kind error) {
	t.Helper()
	require.Error(t, err)
	assert.True(t, errors.Is(err, kind), "error %q is not %v", err, kind)
}

// =========================================================================
// CREATE TESTS
// =========================================================================

func TestCreate(t *testing.T) {
	svc, repo := newTestService(t)

	c, err := svc.Create(context.Background(), CreateInput{
		Token:     "tok-ana",
		StationID: "station-1",
		Comment:   "  great set  ",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, c.ID)
	assert.Equal(t, "station-1", c.StationID)
	assert.Equal(t, "42", c.UserID)
	assert.Equal(t, "dj_ana", c.Username)
	assert.Equal(t, "  great set  ", c.Comment, "comment text is stored as supplied")
	assert.Nil(t, c.ParentID)
	assert.Len(t, repo.comments, 1)
}

func TestCreate_WithParent(t *testing.T) {
	svc, _ := newTestService(t)

	c, err := svc.Create(context.Background(), CreateInput{
		Token: "tok-ana", StationID: "s", Comment: "reply", ParentID: "c-001",
	})
	require.NoError(t, err)
	require.NotNil(t, c.ParentID)
	assert.Equal(t, "c-001", *c.ParentID)
}

func TestCreate_BlankParentIsNull(t *testing.T) {
	svc, _ := newTestService(t)

	c, err := svc.Create(context.Background(), CreateInput{
		Token: "tok-ana", StationID: "s", Comment: "hi", ParentID: "   ",
	})
	require.NoError(t, err)
	assert.Nil(t, c.ParentID)
}

func TestCreate_MissingFields(t *testing.T) {
	tests := []struct {
		name      string
		in        CreateInput
		wantField string
	}{
		{"no token", CreateInput{StationID: "s", Comment: "c"}, "token"},
		{"no station", CreateInput{Token: "tok-ana", Comment: "c"}, "station_id"},
		{"no comment", CreateInput{Token: "tok-ana", StationID: "s"}, "comment"},
		{"blank comment", CreateInput{Token: "tok-ana", StationID: "s", Comment: " \t "}, "comment"},
		// Presence is checked before the token, so a bad token still yields 400.
		{"bad token and no comment", CreateInput{Token: "garbage", StationID: "s"}, "comment"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, repo := newTestService(t)

			_, err := svc.Create(context.Background(), tt.in)
			assertKind(t, err, apperror.ErrValidation)

			var appErr *apperror.AppError
			require.True(t, errors.As(err, &appErr))
			assert.Equal(t, tt.wantField, appErr.Field)
			assert.Empty(t, repo.calls, "no store call on validation failure")
		})
	}
}

func TestCreate_TooLong(t *testing.T) {
	svc, repo := newTestService(t)

	_, err := svc.Create(context.Background(), CreateInput{
		Token: "tok-ana", StationID: "s", Comment: strings.Repeat("a", model.MaxCommentLength+1),
	})
	assertKind(t, err, apperror.ErrValidation)
	assert.Empty(t, repo.comments)
}

func TestCreate_MaxLengthCountsCharacters(t *testing.T) {
	svc, _ := newTestService(t)

	// Multi-byte runes: 2000 characters, well over 2000 bytes.
	_, err := svc.Create(context.Background(), CreateInput{
		Token: "tok-ana", StationID: "s", Comment: strings.Repeat("é", model.MaxCommentLength),
	})
	assert.NoError(t, err)
}

func TestCreate_InvalidToken(t *testing.T) {
	svc, repo := newTestService(t)

	_, err := svc.Create(context.Background(), CreateInput{
		Token: "forged", StationID: "s", Comment: "c",
	})
	assertKind(t, err, apperror.ErrUnauthorized)
	assert.Empty(t, repo.calls, "no insert for an invalid token")
}

func TestCreate_StoreFailure(t *testing.T) {
	svc, repo := newTestService(t)
	repo.err = errors.New("database is locked")

	_, err := svc.Create(context.Background(), CreateInput{
		Token: "tok-ana", StationID: "s", Comment: "c",
	})
	assertKind(t, err, apperror.ErrInternal)

	var appErr *apperror.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "database is locked", appErr.Detail)
}

// =========================================================================
// LIST TESTS
// =========================================================================

func TestListByStation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	for _, in := range []CreateInput{
		{Token: "tok-ana", StationID: "station-1", Comment: "first"},
		{Token: "tok-bob", StationID: "station-2", Comment: "elsewhere"},
		{Token: "tok-bob", StationID: "station-1", Comment: "second"},
	} {
		_, err := svc.Create(ctx, in)
		require.NoError(t, err)
	}

	got, err := svc.ListByStation(ctx, "station-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "second", got[0].Comment)
	assert.Equal(t, "first", got[1].Comment)
}

func TestListByStation_Empty(t *testing.T) {
	svc, _ := newTestService(t)

	got, err := svc.ListByStation(context.Background(), "quiet-station")
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestListByStation_MissingStation(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.ListByStation(context.Background(), " ")
	assertKind(t, err, apperror.ErrValidation)
}

func TestListByStation_StoreFailure(t *testing.T) {
	svc, repo := newTestService(t)
	repo.err = errors.New("no such table: comments")

	_, err := svc.ListByStation(context.Background(), "s")
	assertKind(t, err, apperror.ErrInternal)
}

func TestListByUser(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateInput{Token: "tok-ana", StationID: "s1", Comment: "mine"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, CreateInput{Token: "tok-bob", StationID: "s1", Comment: "bob's"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, CreateInput{Token: "tok-ana", StationID: "s2", Comment: "also mine"})
	require.NoError(t, err)

	got, err := svc.ListByUser(ctx, "Bearer tok-ana")
	require.NoError(t, err)
	require.Len(t, got, 2)
	for _, c := range got {
		assert.Equal(t, "42", c.UserID)
	}
	assert.Equal(t, "also mine", got[0].Comment)
}

func TestListByUser_AnyScheme(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	seed(t, svc, "tok-ana")

	for _, header := range []string{"JWT tok-ana", "Token tok-ana", "bearer tok-ana trailing"} {
		got, err := svc.ListByUser(ctx, header)
		require.NoError(t, err, header)
		assert.Len(t, got, 1, header)
	}
}

func TestListByUser_Unauthorized(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   string
	}{
		{"no header", "", "authorization header not provided"},
		{"no token part", "Bearer", "invalid token"},
		{"unknown token", "Bearer forged", "invalid token"},
		{"token without scheme", "tok-ana", "invalid token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, repo := newTestService(t)

			_, err := svc.ListByUser(context.Background(), tt.header)
			assertKind(t, err, apperror.ErrUnauthorized)
			assert.Equal(t, tt.want, err.Error())
			assert.Empty(t, repo.calls)
		})
	}
}

func TestListByUser_StoreFailure(t *testing.T) {
	svc, repo := newTestService(t)
	repo.err = errors.New("connection reset")

	_, err := svc.ListByUser(context.Background(), "Bearer tok-ana")
	assertKind(t, err, apperror.ErrInternal)
}

// =========================================================================
// EDIT TESTS
// =========================================================================

func seed(t *testing.T, svc *CommentService, token string) *model.Comment {
	t.Helper()
	c, err := svc.Create(context.Background(), CreateInput{Token: token, StationID: "s", Comment: "original"})
	require.NoError(t, err)
	return c
}

func TestEdit(t *testing.T) {
	svc, repo := newTestService(t)
	c := seed(t, svc, "tok-ana")

	err := svc.Edit(context.Background(), EditInput{Token: "tok-ana", ID: c.ID, Comment: "edited"})
	require.NoError(t, err)
	assert.Equal(t, "edited", repo.comments[c.ID].Comment)
}

func TestEdit_KeepsSurroundingWhitespace(t *testing.T) {
	svc, repo := newTestService(t)
	c := seed(t, svc, "tok-ana")

	err := svc.Edit(context.Background(), EditInput{Token: "tok-ana", ID: c.ID, Comment: "  padded text\n"})
	require.NoError(t, err)
	assert.Equal(t, "  padded text\n", repo.comments[c.ID].Comment)
}

func TestEdit_AnyValidTokenByDefault(t *testing.T) {
	svc, repo := newTestService(t)
	c := seed(t, svc, "tok-ana")

	err := svc.Edit(context.Background(), EditInput{Token: "tok-bob", ID: c.ID, Comment: "bob was here"})
	require.NoError(t, err)
	assert.Equal(t, "bob was here", repo.comments[c.ID].Comment)
}

func TestEdit_NonexistentSucceeds(t *testing.T) {
	svc, _ := newTestService(t)

	err := svc.Edit(context.Background(), EditInput{Token: "tok-ana", ID: "nope", Comment: "x"})
	assert.NoError(t, err)
}

func TestEdit_Validation(t *testing.T) {
	tests := []struct {
		name string
		in   EditInput
	}{
		{"no token", EditInput{ID: "c-001", Comment: "x"}},
		{"no comment", EditInput{Token: "tok-ana", ID: "c-001"}},
		{"no id", EditInput{Token: "tok-ana", Comment: "x"}},
		{"too long", EditInput{Token: "tok-ana", ID: "c-001", Comment: strings.Repeat("x", model.MaxCommentLength+1)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, repo := newTestService(t)

			err := svc.Edit(context.Background(), tt.in)
			assertKind(t, err, apperror.ErrValidation)
			assert.Empty(t, repo.calls)
		})
	}
}

func TestEdit_InvalidToken(t *testing.T) {
	svc, repo := newTestService(t)
	c := seed(t, svc, "tok-ana")

	err := svc.Edit(context.Background(), EditInput{Token: "forged", ID: c.ID, Comment: "hacked"})
	assertKind(t, err, apperror.ErrUnauthorized)
	assert.Equal(t, "original", repo.comments[c.ID].Comment)
}

func TestEdit_StoreFailure(t *testing.T) {
	svc, repo := newTestService(t)
	repo.err = errors.New("disk I/O error")

	err := svc.Edit(context.Background(), EditInput{Token: "tok-ana", ID: "c-001", Comment: "x"})
	assertKind(t, err, apperror.ErrInternal)
}

// =========================================================================
// DELETE TESTS
// =========================================================================

func TestDelete(t *testing.T) {
	svc, repo := newTestService(t)
	c := seed(t, svc, "tok-ana")

	require.NoError(t, svc.Delete(context.Background(), DeleteInput{Token: "tok-ana", ID: c.ID}))
	assert.NotContains(t, repo.comments, c.ID)
}

func TestDelete_NonexistentSucceeds(t *testing.T) {
	svc, _ := newTestService(t)

	assert.NoError(t, svc.Delete(context.Background(), DeleteInput{Token: "tok-ana", ID: "nope"}))
}

func TestDelete_Validation(t *testing.T) {
	svc, repo := newTestService(t)

	assertKind(t, svc.Delete(context.Background(), DeleteInput{ID: "c-001"}), apperror.ErrValidation)
	assertKind(t, svc.Delete(context.Background(), DeleteInput{Token: "tok-ana"}), apperror.ErrValidation)
	assert.Empty(t, repo.calls)
}

func TestDelete_InvalidToken(t *testing.T) {
	svc, repo := newTestService(t)
	c := seed(t, svc, "tok-ana")

	err := svc.Delete(context.Background(), DeleteInput{Token: "forged", ID: c.ID})
	assertKind(t, err, apperror.ErrUnauthorized)
	assert.Contains(t, repo.comments, c.ID)
}

func TestDelete_StoreFailure(t *testing.T) {
	svc, repo := newTestService(t)
	repo.err = errors.New("disk I/O error")

	err := svc.Delete(context.Background(), DeleteInput{Token: "tok-ana", ID: "c-001"})
	assertKind(t, err, apperror.ErrInternal)
}

// =========================================================================
// OWNERSHIP TESTS
// =========================================================================

func TestOwnership_OwnerMayEditAndDelete(t *testing.T) {
	svc, repo := newTestService(t, WithOwnershipCheck(true))
	c := seed(t, svc, "tok-ana")

	require.NoError(t, svc.Edit(context.Background(), EditInput{Token: "tok-ana", ID: c.ID, Comment: "mine"}))
	assert.Equal(t, "mine", repo.comments[c.ID].Comment)

	require.NoError(t, svc.Delete(context.Background(), DeleteInput{Token: "tok-ana", ID: c.ID}))
	assert.NotContains(t, repo.comments, c.ID)
}

func TestOwnership_OtherUserForbidden(t *testing.T) {
	svc, repo := newTestService(t, WithOwnershipCheck(true))
	c := seed(t, svc, "tok-ana")

	err := svc.Edit(context.Background(), EditInput{Token: "tok-bob", ID: c.ID, Comment: "not yours"})
	assertKind(t, err, apperror.ErrForbidden)
	assert.Equal(t, "original", repo.comments[c.ID].Comment)

	err = svc.Delete(context.Background(), DeleteInput{Token: "tok-bob", ID: c.ID})
	assertKind(t, err, apperror.ErrForbidden)
	assert.Contains(t, repo.comments, c.ID)
}

func TestOwnership_MissingCommentNotFound(t *testing.T) {
	svc, _ := newTestService(t, WithOwnershipCheck(true))

	err := svc.Edit(context.Background(), EditInput{Token: "tok-ana", ID: "nope", Comment: "x"})
	assertKind(t, err, apperror.ErrNotFound)

	err = svc.Delete(context.Background(), DeleteInput{Token: "tok-ana", ID: "nope"})
	assertKind(t, err, apperror.ErrNotFound)
}

func TestOwnership_LookupFailure(t *testing.T) {
	svc, repo := newTestService(t, WithOwnershipCheck(true))
	repo.err = errors.New("database is locked")

	err := svc.Delete(context.Background(), DeleteInput{Token: "tok-ana", ID: "c-001"})
	assertKind(t, err, apperror.ErrInternal)
	assert.Equal(t, []string{"GetByID"}, repo.calls)
}
