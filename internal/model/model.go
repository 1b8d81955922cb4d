package model

import "time"

type User struct {
	ID            int64
	Username      string
	PasswordHash  string
	WalletAddress string
	Avatar        string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// HasPassword reports whether the account can sign in with a password.
func (u User) HasPassword() bool {
	return u.PasswordHash != ""
}

// HasWallet reports whether the account is bound to a wallet address.
func (u User) HasWallet() bool {
	return u.WalletAddress != ""
}

type Post struct {
	ID        int64
	UserID    int64
	Username  string
	Avatar    string
	Content   string
	ImageURL  string
	CreatedAt time.Time
}

type PostPage struct {
	Posts       []Post
	TotalPages  int
	CurrentPage int
	TotalPosts  int
}

// Challenge is never stored server-side; Token carries Address and Message.
type Challenge struct {
	Address   string
	Message   string
	Token     string
	ExpiresAt time.Time
}

type SessionToken struct {
	Token     string
	ExpiresAt time.Time
}
