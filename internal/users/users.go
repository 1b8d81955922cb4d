// Package users serves profile reads and updates.
package users

import (
	"context"
	"errors"
	"strings"

	"github.com/samber/oops"

	"github.com/alphabot-ai/chirp/internal/auth"
	"github.com/alphabot-ai/chirp/internal/model"
	"github.com/alphabot-ai/chirp/internal/store"
)

const MaxUsernameLen = auth.MaxUsernameLen

var ErrUsernameTooLong = auth.ErrUsernameTooLong

type Service struct {
	users store.UserStore
	url   func(ref string) string
}

func NewService(users store.UserStore, url func(ref string) string) *Service {
	if url == nil {
		url = func(ref string) string { return ref }
	}
	return &Service{users: users, url: url}
}

func (s *Service) Get(ctx context.Context, id int64) (model.User, error) {
	u, err := s.users.FindUserByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return model.User{}, auth.ErrUserNotFound
	}
	if err != nil {
		return model.User{}, oops.Code("USER_GET_FAILED").With("user_id", id).Wrap(err)
	}
	u.Avatar = s.url(u.Avatar)
	return u, nil
}

// ProfileUpdate fields left empty keep their current value.
type ProfileUpdate struct {
	Username string
	Avatar   string
}

// UpdateProfile applies upd to user id. Wallet accounts keep their
// generated username.
func (s *Service) UpdateProfile(ctx context.Context, id int64, upd ProfileUpdate) (model.User, error) {
	current, err := s.users.FindUserByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return model.User{}, auth.ErrUserNotFound
	}
	if err != nil {
		return model.User{}, oops.Code("USER_GET_FAILED").With("user_id", id).Wrap(err)
	}

	username := strings.TrimSpace(upd.Username)
	if username == "" {
		username = current.Username
	}
	if len(username) > MaxUsernameLen {
		return model.User{}, ErrUsernameTooLong
	}
	if current.HasWallet() && username != current.Username {
		return model.User{}, auth.ErrWalletUsernameImmutable
	}

	avatar := upd.Avatar
	if avatar == "" {
		avatar = current.Avatar
	}

	err = s.users.UpdateUserProfile(ctx, id, username, avatar)
	switch {
	case errors.Is(err, store.ErrDuplicateName):
		return model.User{}, auth.ErrUsernameTaken
	case errors.Is(err, store.ErrNotFound):
		return model.User{}, auth.ErrUserNotFound
	case err != nil:
		return model.User{}, oops.Code("USER_UPDATE_FAILED").With("user_id", id).Wrap(err)
	}
	return s.Get(ctx, id)
}
