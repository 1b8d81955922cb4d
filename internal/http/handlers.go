package httpapp

import (
	"errors"
	"net/http"

	"github.com/alphabot-ai/chirp/internal/auth"
	"github.com/alphabot-ai/chirp/internal/posts"
	"github.com/alphabot-ai/chirp/internal/users"
)

// multipartSlack covers form fields and boundaries around an uploaded file.
const multipartSlack = 1 << 20

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if !s.allowRateLimit(w, r, "auth:register") {
		return
	}
	var req credentialsRequest
	if err := readJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.auth.Register(r.Context(), req.Username, req.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	view := toSessionView(res, s.uploads.URL)
	view.Message = "User registration successful"
	writeJSON(w, http.StatusCreated, view)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !s.allowRateLimit(w, r, "auth:login") {
		return
	}
	var req credentialsRequest
	if err := readJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.auth.Login(r.Context(), req.Username, req.Password)
	if errors.Is(err, auth.ErrUserNotFound) || errors.Is(err, auth.ErrInvalidPassword) {
		err = errInvalidLogin
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionView(res, s.uploads.URL))
}

type walletMessageRequest struct {
	Address string `json:"address"`
}

func (s *Server) handleWalletMessage(w http.ResponseWriter, r *http.Request) {
	if !s.allowRateLimit(w, r, "auth:challenge") {
		return
	}
	var req walletMessageRequest
	if err := readJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	c, err := s.auth.IssueChallenge(r.Context(), req.Address)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, challengeView{
		Message:   c.Message,
		Token:     c.Token,
		ExpiresAt: c.ExpiresAt.UTC(),
	})
}

type walletVerifyRequest struct {
	Signature string `json:"signature"`
	Token     string `json:"token"`
}

func (s *Server) handleWalletVerify(w http.ResponseWriter, r *http.Request) {
	if !s.allowRateLimit(w, r, "auth:verify") {
		return
	}
	var req walletVerifyRequest
	if err := readJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.auth.VerifyChallenge(r.Context(), req.Token, req.Signature)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	view := toSessionView(res, s.uploads.URL)
	view.Verification = &verificationView{Method: res.Method, Created: res.Created}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleListPosts(w http.ResponseWriter, r *http.Request) {
	page := parseIntDefault(r.URL.Query().Get("page"), 1)
	limit := parseIntDefault(r.URL.Query().Get("limit"), posts.DefaultPageSize)
	result, err := s.posts.List(r.Context(), page, limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPageView(result))
}

func (s *Server) handleGetPost(w http.ResponseWriter, r *http.Request, rawID string) {
	id, err := parseID(rawID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	p, err := s.posts.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPostView(p))
}

type createPostRequest struct {
	Content string `json:"content"`
}

// handleCreatePost accepts JSON {"content"} or a multipart form with a
// "content" field and an optional "image" file.
func (s *Server) handleCreatePost(w http.ResponseWriter, r *http.Request) {
	var content, imageRef string
	if isMultipart(r) {
		var err error
		content, imageRef, err = s.readPostForm(w, r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
	} else {
		var req createPostRequest
		if err := readJSON(w, r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
		content = req.Content
	}

	p, err := s.posts.Create(r.Context(), subject(r), content, imageRef)
	if err != nil {
		if imageRef != "" {
			_ = s.uploads.Remove(imageRef)
		}
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "Post created",
		"post":    toPostView(p),
	})
}

func (s *Server) readPostForm(w http.ResponseWriter, r *http.Request) (string, string, error) {
	if err := s.parseMultipart(w, r); err != nil {
		return "", "", err
	}
	content := r.FormValue("content")
	file, _, err := r.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		return content, "", nil
	}
	if err != nil {
		return "", "", errBadRequest("invalid image field")
	}
	defer file.Close()

	if len(content) > posts.MaxContentLen {
		return "", "", posts.ErrContentTooLong
	}
	name, err := s.uploads.Save("post-image", file)
	if err != nil {
		return "", "", err
	}
	return content, name, nil
}

func (s *Server) handleDeletePost(w http.ResponseWriter, r *http.Request, rawID string) {
	id, err := parseID(rawID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.posts.Delete(r.Context(), id, subject(r)); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Post deleted"})
}

func (s *Server) handleGetMe(w http.ResponseWriter, r *http.Request) {
	u, err := s.users.Get(r.Context(), subject(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserView(u, nil))
}

type updateProfileRequest struct {
	Username string `json:"username"`
}

// handleUpdateMe accepts JSON {"username"} or a multipart form with a
// "username" field and an optional "avatar" file.
func (s *Server) handleUpdateMe(w http.ResponseWriter, r *http.Request) {
	var upd users.ProfileUpdate
	if isMultipart(r) {
		if err := s.parseMultipart(w, r); err != nil {
			s.writeError(w, r, err)
			return
		}
		upd.Username = r.FormValue("username")
		file, _, err := r.FormFile("avatar")
		switch {
		case errors.Is(err, http.ErrMissingFile):
		case err != nil:
			s.writeError(w, r, errBadRequest("invalid avatar field"))
			return
		default:
			defer file.Close()
			name, err := s.uploads.Save("avatar", file)
			if err != nil {
				s.writeError(w, r, err)
				return
			}
			upd.Avatar = name
		}
	} else {
		var req updateProfileRequest
		if err := readJSON(w, r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
		upd.Username = req.Username
	}

	u, err := s.users.UpdateProfile(r.Context(), subject(r), upd)
	if err != nil {
		if upd.Avatar != "" {
			_ = s.uploads.Remove(upd.Avatar)
		}
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Profile updated",
		"user":    toUserView(u, nil),
	})
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request, rawID string) {
	id, err := parseID(rawID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	u, err := s.users.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserView(u, nil))
}

func (s *Server) handleUserPosts(w http.ResponseWriter, r *http.Request, rawID string) {
	id, err := parseID(rawID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if _, err := s.users.Get(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	page := parseIntDefault(r.URL.Query().Get("page"), 1)
	limit := parseIntDefault(r.URL.Query().Get("limit"), posts.DefaultPageSize)
	result, err := s.posts.ListByUser(r.Context(), id, page, limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPageView(result))
}

func (s *Server) parseMultipart(w http.ResponseWriter, r *http.Request) error {
	limit := s.uploads.MaxBytes() + multipartSlack
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(limit); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return err
		}
		return errBadRequest("invalid multipart form")
	}
	return nil
}
