package posts

import (
	"context"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alphabot-ai/chirp/internal/store/sqlite"
)

func newTestService(t *testing.T) (*Service, *sqlite.Store) {
	t.Helper()
	st, err := sqlite.Open(fmt.Sprintf("file:posts_%s?mode=memory&cache=shared", t.Name()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return NewService(st, func(ref string) string {
		if ref == "" {
			return ""
		}
		return "http://cdn.test/uploads/" + ref
	}), st
}

func TestPagination(t *testing.T) {
	tests := []struct {
		page, limit         int
		wantPage, wantLimit int
	}{
		{0, 0, 1, DefaultPageSize},
		{-3, 5, 1, 5},
		{2, 500, 2, MaxPageSize},
		{4, 20, 4, 20},
		{math.MaxInt, MaxPageSize, MaxPage, MaxPageSize},
	}
	for _, tt := range tests {
		page, limit := Pagination(tt.page, tt.limit)
		assert.Equal(t, tt.wantPage, page)
		assert.Equal(t, tt.wantLimit, limit)
		assert.GreaterOrEqual(t, (page-1)*limit, 0)
	}
}

func TestListHugePageIsEmpty(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()

	uid, err := st.InsertPasswordUser(ctx, "dave", "hash")
	require.NoError(t, err)
	_, err = svc.Create(ctx, uid, "only post", "")
	require.NoError(t, err)

	page, err := svc.List(ctx, math.MaxInt, 0)
	require.NoError(t, err)
	assert.Empty(t, page.Posts)
	assert.Equal(t, MaxPage, page.CurrentPage)
	assert.Equal(t, 1, page.TotalPosts)
}

func TestCreateAndList(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()

	uid, err := st.InsertPasswordUser(ctx, "alice", "hash")
	require.NoError(t, err)

	for i := range 5 {
		_, err := svc.Create(ctx, uid, fmt.Sprintf("post %d", i), "")
		require.NoError(t, err)
	}
	withImage, err := svc.Create(ctx, uid, "", "post-image-abc.png")
	require.NoError(t, err)
	assert.Equal(t, "http://cdn.test/uploads/post-image-abc.png", withImage.ImageURL)
	assert.Equal(t, "alice", withImage.Username)

	page, err := svc.List(ctx, 1, 4)
	require.NoError(t, err)
	assert.Equal(t, 6, page.TotalPosts)
	assert.Equal(t, 2, page.TotalPages)
	assert.Equal(t, 1, page.CurrentPage)
	require.Len(t, page.Posts, 4)
	assert.Equal(t, withImage.ID, page.Posts[0].ID, "newest first")

	page, err = svc.List(ctx, 2, 4)
	require.NoError(t, err)
	assert.Len(t, page.Posts, 2)

	byUser, err := svc.ListByUser(ctx, uid, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 6, byUser.TotalPosts)
	assert.Equal(t, 1, byUser.TotalPages)

	empty, err := svc.ListByUser(ctx, uid+100, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 0, empty.TotalPages)
	assert.Empty(t, empty.Posts)
}

func TestCreateValidation(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()
	uid, err := st.InsertPasswordUser(ctx, "alice", "hash")
	require.NoError(t, err)

	_, err = svc.Create(ctx, uid, "   ", "")
	assert.ErrorIs(t, err, ErrEmpty)

	long := make([]byte, MaxContentLen+1)
	for i := range long {
		long[i] = 'a'
	}
	_, err = svc.Create(ctx, uid, string(long), "")
	assert.ErrorIs(t, err, ErrContentTooLong)
}

func TestGetAndDelete(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()
	alice, err := st.InsertPasswordUser(ctx, "alice", "hash")
	require.NoError(t, err)
	bob, err := st.InsertPasswordUser(ctx, "bob", "hash")
	require.NoError(t, err)

	p, err := svc.Create(ctx, alice, "hello", "")
	require.NoError(t, err)

	got, err := svc.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "hello", got.Content)
	assert.Empty(t, got.ImageURL)

	assert.ErrorIs(t, svc.Delete(ctx, p.ID, bob), ErrForbidden)
	require.NoError(t, svc.Delete(ctx, p.ID, alice))
	assert.ErrorIs(t, svc.Delete(ctx, p.ID, alice), ErrForbidden)

	_, err = svc.Get(ctx, p.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}
