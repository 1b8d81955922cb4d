package auth

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/alphabot-ai/chirp/internal/model"
	"github.com/alphabot-ai/chirp/internal/store"
)

// memUsers is an in-memory UserStore with the same uniqueness rules as the
// SQL schemas.
type memUsers struct {
	mu     sync.Mutex
	nextID int64
	byID   map[int64]model.User

	// hideWalletReads makes the next N FindUserByWallet calls miss, which
	// mimics a reader that has not yet seen a concurrent commit.
	hideWalletReads int
	walletReads     int
}

func newMemUsers() *memUsers {
	return &memUsers{byID: map[int64]model.User{}}
}

func (m *memUsers) FindUserByID(_ context.Context, id int64) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return model.User{}, store.ErrNotFound
	}
	return u, nil
}

func (m *memUsers) FindUserByUsername(_ context.Context, username string) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if u.Username == username {
			return u, nil
		}
	}
	return model.User{}, store.ErrNotFound
}

func (m *memUsers) FindUserByWallet(_ context.Context, address string) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.walletReads++
	if m.hideWalletReads > 0 {
		m.hideWalletReads--
		return model.User{}, store.ErrNotFound
	}
	address = strings.ToLower(address)
	for _, u := range m.byID {
		if u.WalletAddress != "" && u.WalletAddress == address {
			return u, nil
		}
	}
	return model.User{}, store.ErrNotFound
}

func (m *memUsers) InsertPasswordUser(_ context.Context, username, passwordHash string) (int64, error) {
	return m.insert(model.User{Username: username, PasswordHash: passwordHash})
}

func (m *memUsers) InsertWalletUser(_ context.Context, username, address string) (int64, error) {
	return m.insert(model.User{Username: username, WalletAddress: strings.ToLower(address)})
}

func (m *memUsers) insert(u model.User) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.byID {
		if u.WalletAddress != "" && existing.WalletAddress == u.WalletAddress {
			return 0, store.ErrDuplicateWallet
		}
		if existing.Username == u.Username {
			return 0, store.ErrDuplicateName
		}
	}
	m.nextID++
	u.ID = m.nextID
	u.CreatedAt = time.Now().UTC()
	u.UpdatedAt = u.CreatedAt
	m.byID[u.ID] = u
	return u.ID, nil
}

func (m *memUsers) UpdateUserProfile(_ context.Context, id int64, username, avatar string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return store.ErrNotFound
	}
	for _, existing := range m.byID {
		if existing.ID != id && existing.Username == username {
			return store.ErrDuplicateName
		}
	}
	u.Username = username
	u.Avatar = avatar
	m.byID[id] = u
	return nil
}

func (m *memUsers) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byID)
}
