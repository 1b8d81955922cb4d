package httpapp

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"time"

	"github.com/alphabot-ai/chirp/internal/auth"
	"github.com/alphabot-ai/chirp/internal/config"
	"github.com/alphabot-ai/chirp/internal/posts"
	"github.com/alphabot-ai/chirp/internal/rate"
	"github.com/alphabot-ai/chirp/internal/upload"
	"github.com/alphabot-ai/chirp/internal/users"
)

const maxJSONBody = 1 << 20

// Deps are the services the API is built on.
type Deps struct {
	Auth    *auth.Service
	Posts   *posts.Service
	Users   *users.Service
	Uploads *upload.Store
	Limiter rate.Limiter
	Logger  *slog.Logger
	// Metrics serves /metrics when set.
	Metrics http.Handler
}

type Server struct {
	auth    *auth.Service
	guard   *auth.SessionGuard
	posts   *posts.Service
	users   *users.Service
	uploads *upload.Store
	limiter rate.Limiter
	logger  *slog.Logger
	metrics http.Handler
	files   http.Handler
	trusted []netip.Prefix
	cfg     config.Config
}

func NewServer(deps Deps, cfg config.Config) (*Server, error) {
	if deps.Auth == nil || deps.Posts == nil || deps.Users == nil || deps.Uploads == nil {
		return nil, errors.New("httpapp: auth, posts, users and uploads are required")
	}
	if deps.Limiter == nil {
		deps.Limiter = rate.NewMemory()
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	trusted, err := cfg.TrustedProxyPrefixes()
	if err != nil {
		return nil, fmt.Errorf("httpapp: %w", err)
	}
	return &Server{
		auth:    deps.Auth,
		guard:   deps.Auth.Guard(),
		posts:   deps.Posts,
		users:   deps.Users,
		uploads: deps.Uploads,
		limiter: deps.Limiter,
		logger:  deps.Logger,
		metrics: deps.Metrics,
		files:   http.StripPrefix("/uploads/", http.FileServer(http.Dir(deps.Uploads.Dir()))),
		trusted: trusted,
		cfg:     cfg,
	}, nil
}

// Handler returns the server wrapped with panic recovery and access logs.
func (s *Server) Handler() http.Handler {
	return s.recoverPanics(s.logRequests(s))
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case strings.HasPrefix(r.URL.Path, "/api/"):
		s.handleAPI(w, r)
	case strings.HasPrefix(r.URL.Path, "/uploads/") && r.Method == http.MethodGet:
		s.files.ServeHTTP(w, r)
	case r.URL.Path == "/healthz":
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
	case r.URL.Path == "/metrics" && s.metrics != nil:
		s.metrics.ServeHTTP(w, r)
	default:
		notFound(w)
	}
}

func (s *Server) handleAPI(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api")
	segments := splitPath(path)

	switch {
	case len(segments) == 2 && segments[0] == "auth" && segments[1] == "register":
		if r.Method == http.MethodPost {
			s.handleRegister(w, r)
			return
		}
		methodNotAllowed(w)
		return
	case len(segments) == 2 && segments[0] == "auth" && segments[1] == "login":
		if r.Method == http.MethodPost {
			s.handleLogin(w, r)
			return
		}
		methodNotAllowed(w)
		return
	case len(segments) == 3 && segments[0] == "auth" && segments[1] == "metamask" && segments[2] == "message":
		if r.Method == http.MethodPost {
			s.handleWalletMessage(w, r)
			return
		}
		methodNotAllowed(w)
		return
	case len(segments) == 3 && segments[0] == "auth" && segments[1] == "metamask" && segments[2] == "verify":
		if r.Method == http.MethodPost {
			s.handleWalletVerify(w, r)
			return
		}
		methodNotAllowed(w)
		return
	case len(segments) == 1 && segments[0] == "posts":
		switch r.Method {
		case http.MethodGet:
			s.handleListPosts(w, r)
		case http.MethodPost:
			s.withAuth(s.handleCreatePost)(w, r)
		default:
			methodNotAllowed(w)
		}
		return
	case len(segments) == 2 && segments[0] == "posts":
		switch r.Method {
		case http.MethodGet:
			s.handleGetPost(w, r, segments[1])
		case http.MethodDelete:
			s.withAuth(func(w http.ResponseWriter, r *http.Request) {
				s.handleDeletePost(w, r, segments[1])
			})(w, r)
		default:
			methodNotAllowed(w)
		}
		return
	case len(segments) == 2 && segments[0] == "users" && segments[1] == "me":
		switch r.Method {
		case http.MethodGet:
			s.withAuth(s.handleGetMe)(w, r)
		case http.MethodPut:
			s.withAuth(s.handleUpdateMe)(w, r)
		default:
			methodNotAllowed(w)
		}
		return
	case len(segments) == 2 && segments[0] == "users":
		if r.Method == http.MethodGet {
			s.handleGetUser(w, r, segments[1])
			return
		}
		methodNotAllowed(w)
		return
	case len(segments) == 3 && segments[0] == "users" && segments[2] == "posts":
		if r.Method == http.MethodGet {
			s.handleUserPosts(w, r, segments[1])
			return
		}
		methodNotAllowed(w)
		return
	}

	notFound(w)
}

// withAuth rejects requests without a valid session and puts the subject id
// on the request context.
func (s *Server) withAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if strings.TrimSpace(header) == "" {
			header = r.Header.Get("X-Access-Token")
		}
		id, err := s.guard.Authenticate(header)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		next(w, r.WithContext(auth.WithSubject(r.Context(), id)))
	}
}

func subject(r *http.Request) int64 {
	id, _ := auth.SubjectFrom(r.Context())
	return id
}

func (s *Server) allowRateLimit(w http.ResponseWriter, r *http.Request, action string) bool {
	limit := s.cfg.AuthRatePerMinute
	if limit <= 0 {
		return true
	}
	key := fmt.Sprintf("%s:ip:%s", action, s.clientIP(r))
	if ok, retry := s.limiter.Allow(key, limit, time.Minute); !ok {
		writeRateLimit(w, retry)
		return false
	}
	return true
}

// clientIP is the TCP peer unless that peer is a trusted proxy. Then it is
// the right-most X-Forwarded-For hop that is not itself trusted; hops left of
// it were written by the client and are ignored.
func (s *Server) clientIP(r *http.Request) string {
	peer := r.RemoteAddr
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		peer = host
	}
	addr, err := netip.ParseAddr(peer)
	if err != nil || !s.isTrusted(addr) {
		return peer
	}

	var hops []string
	for _, header := range r.Header.Values("X-Forwarded-For") {
		hops = append(hops, strings.Split(header, ",")...)
	}
	client := addr.Unmap().String()
	for i := len(hops) - 1; i >= 0; i-- {
		hop, err := netip.ParseAddr(strings.TrimSpace(hops[i]))
		if err != nil {
			break
		}
		client = hop.Unmap().String()
		if !s.isTrusted(hop) {
			break
		}
	}
	return client
}

func (s *Server) isTrusted(addr netip.Addr) bool {
	addr = addr.Unmap()
	for _, prefix := range s.trusted {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

func readJSON(w http.ResponseWriter, r *http.Request, dest any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dest); err != nil {
		if errors.Is(err, io.EOF) {
			return errBadRequest("request body is empty")
		}
		return errBadRequest("invalid JSON body: " + err.Error())
	}
	return nil
}

func isMultipart(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeRateLimit(w http.ResponseWriter, retry time.Duration) {
	secs := int(retry.Round(time.Second).Seconds())
	w.Header().Set("Retry-After", strconv.Itoa(secs))
	writeJSON(w, http.StatusTooManyRequests, map[string]any{
		"error":       "rate limit exceeded",
		"kind":        kindRateLimited,
		"retry_after": secs,
	})
}

func notFound(w http.ResponseWriter) {
	writeJSON(w, http.StatusNotFound, map[string]any{"error": "not found", "kind": string(auth.KindNotFound)})
}

func methodNotAllowed(w http.ResponseWriter) {
	writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"error": "method not allowed", "kind": "method_not_allowed"})
}

func parseIntDefault(value string, def int) int {
	if value == "" {
		return def
	}
	if n, err := strconv.Atoi(value); err == nil {
		return n
	}
	return def
}

func parseID(value string) (int64, error) {
	id, err := strconv.ParseInt(value, 10, 64)
	if err != nil || id <= 0 {
		return 0, errBadRequest("invalid id")
	}
	return id, nil
}

func splitPath(path string) []string {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}
