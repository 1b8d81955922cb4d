// Package postgres implements store.Store on PostgreSQL via pgx.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/samber/oops"

	"github.com/alphabot-ai/chirp/internal/model"
	"github.com/alphabot-ai/chirp/internal/store"
	"github.com/alphabot-ai/chirp/internal/store/postgres/migrations"
)

// Unique constraint names from the initial migration.
const (
	constraintUsername = "users_username_key"
	constraintWallet   = "users_wallet_address_key"
)

// querier is the subset of *pgxpool.Pool the store needs. pgxmock pools
// satisfy it too.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Store struct {
	db    querier
	close func()
}

// Open runs pending migrations and connects a pool to dsn.
func Open(ctx context.Context, dsn string) (*Store, error) {
	if err := Migrate(ctx, dsn); err != nil {
		return nil, err
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, oops.Code("STORE_CONNECT_FAILED").Wrap(err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, oops.Code("STORE_CONNECT_FAILED").Wrap(err)
	}
	return &Store{db: pool, close: pool.Close}, nil
}

// New wraps an existing connection.
func New(db querier) *Store {
	return &Store{db: db, close: func() {}}
}

func (s *Store) Close() error {
	s.close()
	return nil
}

// gooseUp is swapped in tests.
var gooseUp = func(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	return goose.UpContext(ctx, db, ".")
}

// Migrate applies the embedded goose migrations through database/sql.
func Migrate(ctx context.Context, dsn string) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return oops.Code("STORE_MIGRATE_FAILED").Wrap(err)
	}
	defer db.Close()
	if err := gooseUp(ctx, db); err != nil {
		return oops.Code("STORE_MIGRATE_FAILED").Wrap(err)
	}
	return nil
}

const userColumns = `id, username, password_hash, wallet_address, avatar, created_at, updated_at`

func (s *Store) FindUserByID(ctx context.Context, id int64) (model.User, error) {
	return scanUser(s.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (s *Store) FindUserByUsername(ctx context.Context, username string) (model.User, error) {
	return scanUser(s.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username))
}

func (s *Store) FindUserByWallet(ctx context.Context, address string) (model.User, error) {
	return scanUser(s.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE wallet_address = $1`, strings.ToLower(address)))
}

func (s *Store) InsertPasswordUser(ctx context.Context, username, passwordHash string) (int64, error) {
	var id int64
	err := s.db.QueryRow(ctx, `
		INSERT INTO users (username, password_hash) VALUES ($1, $2) RETURNING id
	`, username, passwordHash).Scan(&id)
	if err != nil {
		return 0, mapWriteError(err)
	}
	return id, nil
}

func (s *Store) InsertWalletUser(ctx context.Context, username, address string) (int64, error) {
	var id int64
	err := s.db.QueryRow(ctx, `
		INSERT INTO users (username, wallet_address) VALUES ($1, $2) RETURNING id
	`, username, strings.ToLower(address)).Scan(&id)
	if err != nil {
		return 0, mapWriteError(err)
	}
	return id, nil
}

func (s *Store) UpdateUserProfile(ctx context.Context, id int64, username, avatar string) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE users SET username = $1, avatar = $2, updated_at = now() WHERE id = $3
	`, username, nullIfEmpty(avatar), id)
	if err != nil {
		return mapWriteError(err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

const postSelect = `
	SELECT p.id, p.user_id, u.username, u.avatar, p.content, p.image_url, p.created_at
	FROM posts p
	JOIN users u ON u.id = p.user_id
`

func (s *Store) CreatePost(ctx context.Context, post *model.Post) (int64, error) {
	if post.CreatedAt.IsZero() {
		post.CreatedAt = time.Now().UTC()
	}
	var id int64
	err := s.db.QueryRow(ctx, `
		INSERT INTO posts (user_id, content, image_url, created_at) VALUES ($1, $2, $3, $4) RETURNING id
	`, post.UserID, nullIfEmpty(post.Content), nullIfEmpty(post.ImageURL), post.CreatedAt).Scan(&id)
	if err != nil {
		return 0, oops.Code("POST_CREATE_FAILED").With("user_id", post.UserID).Wrap(err)
	}
	return id, nil
}

func (s *Store) GetPost(ctx context.Context, id int64) (model.Post, error) {
	return scanPost(s.db.QueryRow(ctx, postSelect+` WHERE p.id = $1`, id))
}

func (s *Store) ListPosts(ctx context.Context, limit, offset int) ([]model.Post, error) {
	rows, err := s.db.Query(ctx, postSelect+` ORDER BY p.created_at DESC, p.id DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, oops.With("operation", "list posts").Wrap(err)
	}
	return collectPosts(rows)
}

func (s *Store) ListPostsByUser(ctx context.Context, userID int64, limit, offset int) ([]model.Post, error) {
	rows, err := s.db.Query(ctx, postSelect+` WHERE p.user_id = $1 ORDER BY p.created_at DESC, p.id DESC LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, oops.With("operation", "list posts by user").With("user_id", userID).Wrap(err)
	}
	return collectPosts(rows)
}

func (s *Store) CountPosts(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM posts`).Scan(&n); err != nil {
		return 0, oops.With("operation", "count posts").Wrap(err)
	}
	return n, nil
}

func (s *Store) CountPostsByUser(ctx context.Context, userID int64) (int, error) {
	var n int
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM posts WHERE user_id = $1`, userID).Scan(&n); err != nil {
		return 0, oops.With("operation", "count posts by user").With("user_id", userID).Wrap(err)
	}
	return n, nil
}

func (s *Store) DeletePost(ctx context.Context, id, userID int64) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM posts WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return oops.With("operation", "delete post").With("post_id", id).Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func scanUser(row pgx.Row) (model.User, error) {
	var (
		u                            model.User
		passwordHash, wallet, avatar *string
	)
	err := row.Scan(&u.ID, &u.Username, &passwordHash, &wallet, &avatar, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.User{}, store.ErrNotFound
	}
	if err != nil {
		return model.User{}, oops.With("operation", "scan user").Wrap(err)
	}
	u.PasswordHash = deref(passwordHash)
	u.WalletAddress = deref(wallet)
	u.Avatar = deref(avatar)
	return u, nil
}

func scanPost(row pgx.Row) (model.Post, error) {
	var (
		p                         model.Post
		avatar, content, imageURL *string
	)
	err := row.Scan(&p.ID, &p.UserID, &p.Username, &avatar, &content, &imageURL, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Post{}, store.ErrNotFound
	}
	if err != nil {
		return model.Post{}, oops.With("operation", "scan post").Wrap(err)
	}
	p.Avatar = deref(avatar)
	p.Content = deref(content)
	p.ImageURL = deref(imageURL)
	return p, nil
}

func collectPosts(rows pgx.Rows) ([]model.Post, error) {
	defer rows.Close()
	var posts []model.Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.With("operation", "iterate posts").Wrap(err)
	}
	return posts, nil
}

// mapWriteError turns a unique violation into the store sentinel for the
// constraint that fired.
func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		switch pgErr.ConstraintName {
		case constraintWallet:
			return store.ErrDuplicateWallet
		case constraintUsername:
			return store.ErrDuplicateName
		}
	}
	return oops.Code("STORE_WRITE_FAILED").Wrap(err)
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
