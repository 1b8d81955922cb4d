// Package posts is the feed: paginated listing, creation and owner-only
// deletion of posts.
package posts

import (
	"context"
	"errors"
	"strings"

	"github.com/samber/oops"

	"github.com/alphabot-ai/chirp/internal/model"
	"github.com/alphabot-ai/chirp/internal/store"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
	MaxContentLen   = 5000
	// MaxPage keeps (page-1)*limit far from overflowing into a negative offset.
	MaxPage = 1_000_000
)

var (
	ErrNotFound       = errors.New("post not found")
	ErrEmpty          = errors.New("the content of the post cannot be empty")
	ErrContentTooLong = errors.New("post content is too long")
	// ErrForbidden covers both a missing post and someone else's post.
	ErrForbidden = errors.New("no permission to delete this post or the post does not exist")
)

// URLFunc turns a stored image reference into a public URL.
type URLFunc func(ref string) string

type Service struct {
	store store.PostStore
	url   URLFunc
}

func NewService(s store.PostStore, url URLFunc) *Service {
	if url == nil {
		url = func(ref string) string { return ref }
	}
	return &Service{store: s, url: url}
}

// Pagination normalizes page and limit query values.
func Pagination(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if page > MaxPage {
		page = MaxPage
	}
	if limit < 1 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	return page, limit
}

func (s *Service) List(ctx context.Context, page, limit int) (model.PostPage, error) {
	page, limit = Pagination(page, limit)
	total, err := s.store.CountPosts(ctx)
	if err != nil {
		return model.PostPage{}, oops.Code("POST_LIST_FAILED").Wrap(err)
	}
	posts, err := s.store.ListPosts(ctx, limit, (page-1)*limit)
	if err != nil {
		return model.PostPage{}, oops.Code("POST_LIST_FAILED").Wrap(err)
	}
	return s.page(posts, total, page, limit), nil
}

func (s *Service) ListByUser(ctx context.Context, userID int64, page, limit int) (model.PostPage, error) {
	page, limit = Pagination(page, limit)
	total, err := s.store.CountPostsByUser(ctx, userID)
	if err != nil {
		return model.PostPage{}, oops.Code("POST_LIST_FAILED").With("user_id", userID).Wrap(err)
	}
	posts, err := s.store.ListPostsByUser(ctx, userID, limit, (page-1)*limit)
	if err != nil {
		return model.PostPage{}, oops.Code("POST_LIST_FAILED").With("user_id", userID).Wrap(err)
	}
	return s.page(posts, total, page, limit), nil
}

func (s *Service) Get(ctx context.Context, id int64) (model.Post, error) {
	p, err := s.store.GetPost(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return model.Post{}, ErrNotFound
	}
	if err != nil {
		return model.Post{}, oops.Code("POST_GET_FAILED").With("post_id", id).Wrap(err)
	}
	return s.present(p), nil
}

// Create stores a post. imageRef is the stored upload name, or empty.
func (s *Service) Create(ctx context.Context, userID int64, content, imageRef string) (model.Post, error) {
	content = strings.TrimSpace(content)
	if content == "" && imageRef == "" {
		return model.Post{}, ErrEmpty
	}
	if len(content) > MaxContentLen {
		return model.Post{}, ErrContentTooLong
	}
	p := model.Post{UserID: userID, Content: content, ImageURL: imageRef}
	id, err := s.store.CreatePost(ctx, &p)
	if err != nil {
		return model.Post{}, oops.Code("POST_CREATE_FAILED").With("user_id", userID).Wrap(err)
	}
	return s.Get(ctx, id)
}

func (s *Service) Delete(ctx context.Context, id, userID int64) error {
	err := s.store.DeletePost(ctx, id, userID)
	if errors.Is(err, store.ErrNotFound) {
		return ErrForbidden
	}
	if err != nil {
		return oops.Code("POST_DELETE_FAILED").With("post_id", id).Wrap(err)
	}
	return nil
}

func (s *Service) page(posts []model.Post, total, page, limit int) model.PostPage {
	out := make([]model.Post, 0, len(posts))
	for _, p := range posts {
		out = append(out, s.present(p))
	}
	return model.PostPage{
		Posts:       out,
		TotalPages:  (total + limit - 1) / limit,
		CurrentPage: page,
		TotalPosts:  total,
	}
}

func (s *Service) present(p model.Post) model.Post {
	p.ImageURL = s.url(p.ImageURL)
	p.Avatar = s.url(p.Avatar)
	return p
}
