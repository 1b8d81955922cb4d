package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alphabot-ai/chirp/internal/model"
	"github.com/alphabot-ai/chirp/internal/store"
)

var userCols = []string{"id", "username", "password_hash", "wallet_address", "avatar", "created_at", "updated_at"}

func ptr(s string) *string { return &s }

func newMock(t *testing.T) (pgxmock.PgxPoolIface, *Store) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err, "failed to create mock")
	t.Cleanup(mock.Close)
	return mock, New(mock)
}

func TestFindUserByWallet(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	tests := []struct {
		name      string
		setupMock func(mock pgxmock.PgxPoolIface)
		want      model.User
		wantErr   error
	}{
		{
			name: "found",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`SELECT .+ FROM users WHERE wallet_address = \$1`).
					WithArgs("0xabc").
					WillReturnRows(pgxmock.NewRows(userCols).
						AddRow(int64(7), "user_abc", nil, ptr("0xabc"), nil, now, now))
			},
			want: model.User{ID: 7, Username: "user_abc", WalletAddress: "0xabc", CreatedAt: now, UpdatedAt: now},
		},
		{
			name: "not found",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`SELECT .+ FROM users WHERE wallet_address = \$1`).
					WithArgs("0xabc").
					WillReturnRows(pgxmock.NewRows(userCols))
			},
			wantErr: store.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, s := newMock(t)
			tt.setupMock(mock)

			got, err := s.FindUserByWallet(context.Background(), "0xABC")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
			assert.NoError(t, mock.ExpectationsWereMet(), "unfulfilled expectations")
		})
	}
}

func TestInsertWalletUserConflicts(t *testing.T) {
	tests := []struct {
		name       string
		constraint string
		wantErr    error
	}{
		{name: "wallet", constraint: constraintWallet, wantErr: store.ErrDuplicateWallet},
		{name: "username", constraint: constraintUsername, wantErr: store.ErrDuplicateName},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, s := newMock(t)
			mock.ExpectQuery(`INSERT INTO users \(username, wallet_address\)`).
				WithArgs("user_abc", "0xabc").
				WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: tt.constraint})

			_, err := s.InsertWalletUser(context.Background(), "user_abc", "0xABC")
			assert.ErrorIs(t, err, tt.wantErr)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestInsertPasswordUser(t *testing.T) {
	mock, s := newMock(t)
	mock.ExpectQuery(`INSERT INTO users \(username, password_hash\)`).
		WithArgs("alice", "hash").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(3)))

	id, err := s.InsertPasswordUser(context.Background(), "alice", "hash")
	require.NoError(t, err)
	assert.Equal(t, int64(3), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertPasswordUserOtherFailure(t *testing.T) {
	mock, s := newMock(t)
	mock.ExpectQuery(`INSERT INTO users`).
		WithArgs("alice", "hash").
		WillReturnError(errors.New("connection reset"))

	_, err := s.InsertPasswordUser(context.Background(), "alice", "hash")
	require.Error(t, err)
	assert.NotErrorIs(t, err, store.ErrDuplicateName)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestUpdateUserProfile(t *testing.T) {
	mock, s := newMock(t)
	mock.ExpectExec(`UPDATE users SET username = \$1, avatar = \$2`).
		WithArgs("bob", nil, int64(1)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`UPDATE users SET username = \$1, avatar = \$2`).
		WithArgs("bob", "a.png", int64(2)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	require.NoError(t, s.UpdateUserProfile(context.Background(), 1, "bob", ""))
	assert.ErrorIs(t, s.UpdateUserProfile(context.Background(), 2, "bob", "a.png"), store.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListPosts(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	mock, s := newMock(t)
	cols := []string{"id", "user_id", "username", "avatar", "content", "image_url", "created_at"}
	mock.ExpectQuery(`FROM posts p\s+JOIN users u ON u.id = p.user_id\s+ORDER BY`).
		WithArgs(10, 20).
		WillReturnRows(pgxmock.NewRows(cols).
			AddRow(int64(2), int64(1), "alice", nil, ptr("second"), ptr("post-image-x.png"), now).
			AddRow(int64(1), int64(1), "alice", nil, ptr("first"), nil, now))

	posts, err := s.ListPosts(context.Background(), 10, 20)
	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Equal(t, "second", posts[0].Content)
	assert.Equal(t, "post-image-x.png", posts[0].ImageURL)
	assert.Empty(t, posts[1].ImageURL)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCountAndDeletePosts(t *testing.T) {
	mock, s := newMock(t)
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM posts WHERE user_id = \$1`).
		WithArgs(int64(1)).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(4))
	mock.ExpectExec(`DELETE FROM posts WHERE id = \$1 AND user_id = \$2`).
		WithArgs(int64(9), int64(2)).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	n, err := s.CountPostsByUser(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	assert.ErrorIs(t, s.DeletePost(context.Background(), 9, 2), store.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrateWrapsFailure(t *testing.T) {
	orig := gooseUp
	t.Cleanup(func() { gooseUp = orig })
	gooseUp = func(context.Context, *sql.DB) error {
		return errors.New("boom")
	}

	err := Migrate(context.Background(), "postgres://invalid")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestMigrateRunsGoose(t *testing.T) {
	orig := gooseUp
	t.Cleanup(func() { gooseUp = orig })
	var called bool
	gooseUp = func(context.Context, *sql.DB) error {
		called = true
		return nil
	}

	require.NoError(t, Migrate(context.Background(), "postgres://localhost/chirp"))
	assert.True(t, called)
}
