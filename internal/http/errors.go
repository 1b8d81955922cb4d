package httpapp

import (
	"errors"
	"net/http"

	"github.com/samber/oops"

	"github.com/alphabot-ai/chirp/internal/auth"
	"github.com/alphabot-ai/chirp/internal/logging"
	"github.com/alphabot-ai/chirp/internal/posts"
	"github.com/alphabot-ai/chirp/internal/upload"
	"github.com/alphabot-ai/chirp/internal/users"
)

// badRequest is a malformed request the services never saw.
type badRequest struct{ msg string }

func (e badRequest) Error() string { return e.msg }

func errBadRequest(msg string) error { return badRequest{msg: msg} }

// errInvalidLogin replaces both "no such user" and "wrong password" so login
// does not reveal which usernames exist.
var errInvalidLogin = errors.New("invalid username or password")

const (
	kindForbidden   = "forbidden"
	kindTooLarge    = "too_large"
	kindRateLimited = "rate_limited"
)

// classify maps an error to a status, a kind label, and a client message.
func classify(err error) (int, string, string) {
	var br badRequest
	switch {
	case errors.As(err, &br):
		return http.StatusBadRequest, string(auth.KindValidation), br.msg
	case errors.Is(err, errInvalidLogin):
		return http.StatusUnauthorized, string(auth.KindInvalidCredential), err.Error()
	case errors.Is(err, posts.ErrNotFound):
		return http.StatusNotFound, string(auth.KindNotFound), err.Error()
	case errors.Is(err, posts.ErrForbidden):
		return http.StatusForbidden, kindForbidden, err.Error()
	case errors.Is(err, posts.ErrEmpty), errors.Is(err, posts.ErrContentTooLong),
		errors.Is(err, users.ErrUsernameTooLong),
		errors.Is(err, upload.ErrUnsupportedType), errors.Is(err, upload.ErrEmpty):
		return http.StatusBadRequest, string(auth.KindValidation), err.Error()
	case errors.Is(err, upload.ErrTooLarge):
		return http.StatusRequestEntityTooLarge, kindTooLarge, err.Error()
	}

	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return http.StatusRequestEntityTooLarge, kindTooLarge, "request body too large"
	}

	kind := auth.KindOf(err)
	switch kind {
	case auth.KindValidation:
		return http.StatusBadRequest, string(kind), err.Error()
	case auth.KindNotFound:
		return http.StatusNotFound, string(kind), err.Error()
	case auth.KindInvalidCredential, auth.KindTokenInvalid, auth.KindTokenExpired:
		return http.StatusUnauthorized, string(kind), err.Error()
	case auth.KindNoCredential:
		return http.StatusForbidden, string(kind), err.Error()
	case auth.KindConflict:
		return http.StatusConflict, string(kind), err.Error()
	}
	return http.StatusInternalServerError, string(auth.KindInternal), "internal server error"
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, kind, msg := classify(err)
	body := map[string]any{"error": msg, "kind": kind}

	if status >= http.StatusInternalServerError {
		logging.LogError(r.Context(), s.logger, "request failed", err,
			"method", r.Method,
			"path", r.URL.Path,
		)
	}
	if s.cfg.DevMode {
		details := map[string]any{"cause": err.Error()}
		if oopsErr, ok := oops.AsOops(err); ok {
			if code := oopsErr.Code(); code != nil {
				details["code"] = code
			}
			if ctx := oopsErr.Context(); len(ctx) > 0 {
				details["context"] = ctx
			}
		}
		body["details"] = details
	}
	writeJSON(w, status, body)
}
