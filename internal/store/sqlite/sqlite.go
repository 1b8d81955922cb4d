package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/alphabot-ai/chirp/internal/model"
	"github.com/alphabot-ai/chirp/internal/store"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON;"); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := applySchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// migrations is an ordered list of SQL migrations.
// Each migration runs exactly once, tracked by schema_version table.
var migrations = []string{
	// Migration 1: users and posts
	`
CREATE TABLE IF NOT EXISTS users (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	username TEXT NOT NULL,
	password_hash TEXT,
	wallet_address TEXT,
	avatar TEXT,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL,
	CHECK (password_hash IS NOT NULL OR wallet_address IS NOT NULL)
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_users_username ON users(username);
CREATE UNIQUE INDEX IF NOT EXISTS idx_users_wallet_address ON users(wallet_address);

CREATE TABLE IF NOT EXISTS posts (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id INTEGER NOT NULL,
	content TEXT,
	image_url TEXT,
	created_at INTEGER NOT NULL,
	FOREIGN KEY(user_id) REFERENCES users(id)
);
CREATE INDEX IF NOT EXISTS idx_posts_created_at ON posts(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_posts_user_id ON posts(user_id);
`,
}

func applySchema(db *sql.DB) error {
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY
		)
	`); err != nil {
		return err
	}

	var currentVersion int
	row := db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_version`)
	if err := row.Scan(&currentVersion); err != nil {
		return err
	}

	for i := currentVersion; i < len(migrations); i++ {
		if _, err := db.Exec(migrations[i]); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
		if _, err := db.Exec(`INSERT INTO schema_version (version) VALUES (?)`, i+1); err != nil {
			return fmt.Errorf("failed to record migration %d: %w", i+1, err)
		}
	}

	return nil
}

const userColumns = `id, username, password_hash, wallet_address, avatar, created_at, updated_at`

func (s *Store) FindUserByID(ctx context.Context, id int64) (model.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return scanUser(row)
}

func (s *Store) FindUserByUsername(ctx context.Context, username string) (model.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE username = ?`, username)
	return scanUser(row)
}

func (s *Store) FindUserByWallet(ctx context.Context, address string) (model.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE wallet_address = ?`, strings.ToLower(address))
	return scanUser(row)
}

func (s *Store) InsertPasswordUser(ctx context.Context, username, passwordHash string) (int64, error) {
	now := time.Now().Unix()
	res, err := s.db.ExecContext(ctx, `
INSERT INTO users (username, password_hash, created_at, updated_at)
VALUES (?, ?, ?, ?)
`, username, passwordHash, now, now)
	if err != nil {
		return 0, mapInsertError(err)
	}
	return res.LastInsertId()
}

func (s *Store) InsertWalletUser(ctx context.Context, username, address string) (int64, error) {
	now := time.Now().Unix()
	res, err := s.db.ExecContext(ctx, `
INSERT INTO users (username, wallet_address, created_at, updated_at)
VALUES (?, ?, ?, ?)
`, username, strings.ToLower(address), now, now)
	if err != nil {
		return 0, mapInsertError(err)
	}
	return res.LastInsertId()
}

func (s *Store) UpdateUserProfile(ctx context.Context, id int64, username, avatar string) error {
	res, err := s.db.ExecContext(ctx, `
UPDATE users SET username = ?, avatar = ?, updated_at = ? WHERE id = ?
`, username, nullIfEmpty(avatar), time.Now().Unix(), id)
	if err != nil {
		return mapInsertError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
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
		post.CreatedAt = time.Now()
	}
	res, err := s.db.ExecContext(ctx, `
INSERT INTO posts (user_id, content, image_url, created_at)
VALUES (?, ?, ?, ?)
`, post.UserID, nullIfEmpty(post.Content), nullIfEmpty(post.ImageURL), post.CreatedAt.Unix())
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *Store) GetPost(ctx context.Context, id int64) (model.Post, error) {
	row := s.db.QueryRowContext(ctx, postSelect+`WHERE p.id = ?`, id)
	return scanPost(row)
}

func (s *Store) ListPosts(ctx context.Context, limit, offset int) ([]model.Post, error) {
	rows, err := s.db.QueryContext(ctx, postSelect+`ORDER BY p.created_at DESC, p.id DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	return collectPosts(rows)
}

func (s *Store) ListPostsByUser(ctx context.Context, userID int64, limit, offset int) ([]model.Post, error) {
	rows, err := s.db.QueryContext(ctx, postSelect+`WHERE p.user_id = ? ORDER BY p.created_at DESC, p.id DESC LIMIT ? OFFSET ?`, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	return collectPosts(rows)
}

func (s *Store) CountPosts(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM posts`).Scan(&n)
	return n, err
}

func (s *Store) CountPostsByUser(ctx context.Context, userID int64) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM posts WHERE user_id = ?`, userID).Scan(&n)
	return n, err
}

func (s *Store) DeletePost(ctx context.Context, id, userID int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM posts WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func scanUser(scanner interface{ Scan(dest ...any) error }) (model.User, error) {
	var (
		u                    model.User
		passwordHash, wallet sql.NullString
		avatar               sql.NullString
		createdAt, updatedAt int64
	)
	err := scanner.Scan(&u.ID, &u.Username, &passwordHash, &wallet, &avatar, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, store.ErrNotFound
		}
		return model.User{}, err
	}
	u.PasswordHash = passwordHash.String
	u.WalletAddress = wallet.String
	u.Avatar = avatar.String
	u.CreatedAt = time.Unix(createdAt, 0)
	u.UpdatedAt = time.Unix(updatedAt, 0)
	return u, nil
}

func scanPost(scanner interface{ Scan(dest ...any) error }) (model.Post, error) {
	var (
		p                         model.Post
		avatar, content, imageURL sql.NullString
		createdAt                 int64
	)
	err := scanner.Scan(&p.ID, &p.UserID, &p.Username, &avatar, &content, &imageURL, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Post{}, store.ErrNotFound
		}
		return model.Post{}, err
	}
	p.Avatar = avatar.String
	p.Content = content.String
	p.ImageURL = imageURL.String
	p.CreatedAt = time.Unix(createdAt, 0)
	return p, nil
}

func collectPosts(rows *sql.Rows) ([]model.Post, error) {
	defer rows.Close()
	var posts []model.Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// mapInsertError turns a unique index violation into the store sentinel for
// the column that collided.
func mapInsertError(err error) error {
	if !isUniqueViolation(err) {
		return err
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "users.wallet_address"):
		return store.ErrDuplicateWallet
	case strings.Contains(msg, "users.username"):
		return store.ErrDuplicateName
	}
	return err
}

func isUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
