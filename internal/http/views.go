package httpapp

import (
	"time"

	"github.com/alphabot-ai/chirp/internal/auth"
	"github.com/alphabot-ai/chirp/internal/model"
)

type userView struct {
	ID            int64     `json:"id"`
	Username      string    `json:"username"`
	WalletAddress string    `json:"walletAddress,omitempty"`
	Avatar        string    `json:"avatar,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

type postView struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Username  string    `json:"username"`
	Avatar    string    `json:"avatar,omitempty"`
	Content   string    `json:"content"`
	ImageURL  string    `json:"image_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type pageView struct {
	Posts       []postView `json:"posts"`
	TotalPages  int        `json:"totalPages"`
	CurrentPage int        `json:"currentPage"`
	TotalPosts  int        `json:"totalPosts"`
}

type sessionView struct {
	Message      string            `json:"message,omitempty"`
	User         userView          `json:"user"`
	AccessToken  string            `json:"accessToken"`
	ExpiresAt    time.Time         `json:"expiresAt"`
	Verification *verificationView `json:"verification,omitempty"`
}

type verificationView struct {
	Method  auth.Method `json:"method"`
	Created bool        `json:"created"`
}

type challengeView struct {
	Message   string    `json:"message"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// toUserView expects Avatar to be absolute already when url is nil.
func toUserView(u model.User, url func(string) string) userView {
	avatar := u.Avatar
	if url != nil {
		avatar = url(avatar)
	}
	return userView{
		ID:            u.ID,
		Username:      u.Username,
		WalletAddress: u.WalletAddress,
		Avatar:        avatar,
		CreatedAt:     u.CreatedAt.UTC(),
	}
}

func toPostView(p model.Post) postView {
	return postView{
		ID:        p.ID,
		UserID:    p.UserID,
		Username:  p.Username,
		Avatar:    p.Avatar,
		Content:   p.Content,
		ImageURL:  p.ImageURL,
		CreatedAt: p.CreatedAt.UTC(),
	}
}

func toPageView(page model.PostPage) pageView {
	out := pageView{
		Posts:       make([]postView, 0, len(page.Posts)),
		TotalPages:  page.TotalPages,
		CurrentPage: page.CurrentPage,
		TotalPosts:  page.TotalPosts,
	}
	for _, p := range page.Posts {
		out.Posts = append(out.Posts, toPostView(p))
	}
	return out
}

func toSessionView(res auth.AuthResult, url func(string) string) sessionView {
	return sessionView{
		User:        toUserView(res.User, url),
		AccessToken: res.Session.Token,
		ExpiresAt:   res.Session.ExpiresAt.UTC(),
	}
}
