package users

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alphabot-ai/chirp/internal/auth"
	"github.com/alphabot-ai/chirp/internal/store/sqlite"
)

func newTestService(t *testing.T) (*Service, *sqlite.Store) {
	t.Helper()
	st, err := sqlite.Open(fmt.Sprintf("file:users_%s?mode=memory&cache=shared", t.Name()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return NewService(st, func(ref string) string {
		if ref == "" {
			return ""
		}
		return "http://cdn.test/uploads/" + ref
	}), st
}

func TestGet(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()

	id, err := st.InsertPasswordUser(ctx, "alice", "hash")
	require.NoError(t, err)

	u, err := svc.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "alice", u.Username)
	assert.Empty(t, u.Avatar)

	_, err = svc.Get(ctx, id+1)
	assert.ErrorIs(t, err, auth.ErrUserNotFound)
}

func TestUpdatePasswordAccount(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()

	id, err := st.InsertPasswordUser(ctx, "alice", "hash")
	require.NoError(t, err)
	_, err = st.InsertPasswordUser(ctx, "taken", "hash")
	require.NoError(t, err)

	u, err := svc.UpdateProfile(ctx, id, ProfileUpdate{Username: "alicia"})
	require.NoError(t, err)
	assert.Equal(t, "alicia", u.Username)

	u, err = svc.UpdateProfile(ctx, id, ProfileUpdate{Avatar: "avatar-1.png"})
	require.NoError(t, err)
	assert.Equal(t, "alicia", u.Username)
	assert.Equal(t, "http://cdn.test/uploads/avatar-1.png", u.Avatar)

	_, err = svc.UpdateProfile(ctx, id, ProfileUpdate{Username: "taken"})
	assert.ErrorIs(t, err, auth.ErrUsernameTaken)

	_, err = svc.UpdateProfile(ctx, id, ProfileUpdate{Username: strings.Repeat("x", MaxUsernameLen+1)})
	assert.ErrorIs(t, err, ErrUsernameTooLong)

	_, err = svc.UpdateProfile(ctx, id+100, ProfileUpdate{Username: "ghost"})
	assert.ErrorIs(t, err, auth.ErrUserNotFound)
}

func TestWalletAccountKeepsUsername(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()

	id, err := st.InsertWalletUser(ctx, "user_abcdef", "0xabcdef0123456789abcdef0123456789abcdef01")
	require.NoError(t, err)

	_, err = svc.UpdateProfile(ctx, id, ProfileUpdate{Username: "vanity"})
	assert.ErrorIs(t, err, auth.ErrWalletUsernameImmutable)
	assert.Equal(t, auth.KindValidation, auth.KindOf(err))

	u, err := svc.UpdateProfile(ctx, id, ProfileUpdate{Username: "user_abcdef", Avatar: "avatar-2.gif"})
	require.NoError(t, err)
	assert.Equal(t, "user_abcdef", u.Username)
	assert.Equal(t, "http://cdn.test/uploads/avatar-2.gif", u.Avatar)
}
