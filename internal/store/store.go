package store

import (
	"context"
	"errors"

	"github.com/alphabot-ai/chirp/internal/model"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrDuplicateName   = errors.New("duplicate username")
	ErrDuplicateWallet = errors.New("duplicate wallet address")
)

type Store interface {
	UserStore
	PostStore
	Close() error
}

// UserStore never conflates "not found" and "constraint violated": lookups
// return ErrNotFound, inserts return ErrDuplicateName or ErrDuplicateWallet.
type UserStore interface {
	FindUserByID(ctx context.Context, id int64) (model.User, error)
	FindUserByUsername(ctx context.Context, username string) (model.User, error)
	FindUserByWallet(ctx context.Context, address string) (model.User, error)
	InsertPasswordUser(ctx context.Context, username, passwordHash string) (int64, error)
	InsertWalletUser(ctx context.Context, username, address string) (int64, error)
	UpdateUserProfile(ctx context.Context, id int64, username, avatar string) error
}

type PostStore interface {
	CreatePost(ctx context.Context, post *model.Post) (int64, error)
	GetPost(ctx context.Context, id int64) (model.Post, error)
	ListPosts(ctx context.Context, limit, offset int) ([]model.Post, error)
	ListPostsByUser(ctx context.Context, userID int64, limit, offset int) ([]model.Post, error)
	CountPosts(ctx context.Context) (int, error)
	CountPostsByUser(ctx context.Context, userID int64) (int, error)
	// DeletePost removes the post only when it belongs to userID.
	DeletePost(ctx context.Context, id, userID int64) error
}
