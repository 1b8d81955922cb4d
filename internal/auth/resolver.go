package auth

import (
	"context"
	"errors"
	"time"

	"github.com/alphabot-ai/chirp/internal/model"
	"github.com/alphabot-ai/chirp/internal/store"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// WalletUsernamePrefix prefixes usernames generated for wallet accounts.
const WalletUsernamePrefix = "user_"

// walletFragments are the address fragment lengths tried, in order, when a
// generated username collides with an existing one.
var walletFragments = []int{6, 10, 40}

// IdentityResolver maps verified credentials to User records. The store's
// unique indexes are the source of truth: a conflicting insert means another
// request created the identity first, and the resolver re-reads it.
type IdentityResolver struct {
	users   store.UserStore
	backoff func() retry.Backoff
}

func NewIdentityResolver(users store.UserStore) *IdentityResolver {
	return &IdentityResolver{
		users: users,
		backoff: func() retry.Backoff {
			return retry.WithMaxRetries(3, retry.NewConstant(25*time.Millisecond))
		},
	}
}

// WalletUsername is the deterministic username for a new wallet account.
func WalletUsername(address string, fragment int) string {
	end := 2 + fragment
	if end > len(address) {
		end = len(address)
	}
	return WalletUsernamePrefix + address[2:end]
}

// FindOrCreateByWallet returns the user bound to address, creating it on
// first use. created reports whether this call inserted the row.
func (r *IdentityResolver) FindOrCreateByWallet(ctx context.Context, address string) (user model.User, created bool, err error) {
	canonical, err := NormalizeAddress(address)
	if err != nil {
		return model.User{}, false, err
	}

	user, err = r.users.FindUserByWallet(ctx, canonical)
	if err == nil {
		return user, false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return model.User{}, false, internalError("AUTH_STORE_FAILED", "find user by wallet", err)
	}

	for _, fragment := range walletFragments {
		username := WalletUsername(canonical, fragment)
		id, err := r.users.InsertWalletUser(ctx, username, canonical)
		switch {
		case err == nil:
			user, err := r.users.FindUserByID(ctx, id)
			if err != nil {
				return model.User{}, false, internalError("AUTH_STORE_FAILED", "read created wallet user", err)
			}
			return user, true, nil
		case errors.Is(err, store.ErrDuplicateWallet):
			user, err := r.rereadWallet(ctx, canonical)
			return user, false, err
		case errors.Is(err, store.ErrDuplicateName):
			// The name may belong to a concurrent insert for this same address.
			if user, err := r.users.FindUserByWallet(ctx, canonical); err == nil {
				return user, false, nil
			}
		default:
			return model.User{}, false, internalError("AUTH_STORE_FAILED", "insert wallet user", err)
		}
	}
	return model.User{}, false, oops.Code("AUTH_WALLET_USERNAME_EXHAUSTED").
		With("address", canonical).
		Errorf("no free username for wallet address")
}

func (r *IdentityResolver) rereadWallet(ctx context.Context, address string) (model.User, error) {
	var user model.User
	err := retry.Do(ctx, r.backoff(), func(ctx context.Context) error {
		u, err := r.users.FindUserByWallet(ctx, address)
		if errors.Is(err, store.ErrNotFound) {
			return retry.RetryableError(err)
		}
		if err != nil {
			return err
		}
		user = u
		return nil
	})
	if err != nil {
		return model.User{}, internalError("AUTH_STORE_FAILED", "re-read wallet user after conflict", err)
	}
	return user, nil
}

func (r *IdentityResolver) FindByUsername(ctx context.Context, username string) (model.User, error) {
	user, err := r.users.FindUserByUsername(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		return model.User{}, ErrUserNotFound
	}
	if err != nil {
		return model.User{}, internalError("AUTH_STORE_FAILED", "find user by username", err)
	}
	return user, nil
}

func (r *IdentityResolver) FindByID(ctx context.Context, id int64) (model.User, error) {
	user, err := r.users.FindUserByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return model.User{}, ErrUserNotFound
	}
	if err != nil {
		return model.User{}, internalError("AUTH_STORE_FAILED", "find user by id", err)
	}
	return user, nil
}

// CreatePasswordUser inserts a password account. A concurrent insert of the
// same username surfaces as ErrUsernameTaken.
func (r *IdentityResolver) CreatePasswordUser(ctx context.Context, username, passwordHash string) (model.User, error) {
	id, err := r.users.InsertPasswordUser(ctx, username, passwordHash)
	if errors.Is(err, store.ErrDuplicateName) {
		return model.User{}, ErrUsernameTaken
	}
	if err != nil {
		return model.User{}, internalError("AUTH_STORE_FAILED", "insert password user", err)
	}
	return r.FindByID(ctx, id)
}
