package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alphabot-ai/chirp/internal/model"
	"github.com/alphabot-ai/chirp/internal/store"
)

const DefaultSessionTTL = 24 * time.Hour

// Config holds the tunables of the auth service.
type Config struct {
	AppName      string
	SessionTTL   time.Duration
	ChallengeTTL time.Duration
}

// AuthResult is returned by every operation that establishes a session.
type AuthResult struct {
	User    model.User
	Session model.SessionToken
	// Method and Created are only set by VerifyChallenge.
	Method  Method
	Created bool
}

// Service orchestrates password and wallet authentication. It is the only
// auth component that talks to the user store.
type Service struct {
	codec      *Codec
	hasher     PasswordHasher
	resolver   *IdentityResolver
	challenges *ChallengeIssuer
	verifier   *SignatureVerifier
	sessionTTL time.Duration
	logger     *slog.Logger
	dummyHash  string
}

type Option func(*Service)

func WithHasher(h PasswordHasher) Option {
	return func(s *Service) { s.hasher = h }
}

func WithVerifier(v *SignatureVerifier) Option {
	return func(s *Service) { s.verifier = v }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func NewService(users store.UserStore, codec *Codec, cfg Config, opts ...Option) (*Service, error) {
	if codec == nil {
		return nil, ErrMissingSecret
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = DefaultSessionTTL
	}
	if cfg.AppName == "" {
		cfg.AppName = "chirp"
	}
	s := &Service{
		codec:      codec,
		resolver:   NewIdentityResolver(users),
		challenges: NewChallengeIssuer(codec, cfg.AppName, cfg.ChallengeTTL),
		sessionTTL: cfg.SessionTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.hasher == nil {
		s.hasher = NewBcryptHasher(DefaultBcryptCost)
	}
	if s.verifier == nil {
		s.verifier = NewSignatureVerifier(Secp256k1Recoverer, FallbackReject, s.logger)
	}

	// Compared against on unknown usernames so that both login failures cost
	// one hash comparison.
	dummy, err := s.hasher.Hash("chirp-timing-equalizer")
	if err != nil {
		return nil, err
	}
	s.dummyHash = dummy
	return s, nil
}

// Resolver exposes the identity resolver to the profile subsystem.
func (s *Service) Resolver() *IdentityResolver {
	return s.resolver
}

// Guard returns a SessionGuard sharing this service's codec.
func (s *Service) Guard() *SessionGuard {
	return NewSessionGuard(s.codec)
}

func (s *Service) Register(ctx context.Context, username, password string) (res AuthResult, err error) {
	defer func() { recordAttempt("register", err) }()

	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return AuthResult{}, ErrMissingFields
	}
	if len(username) > MaxUsernameLen {
		return AuthResult{}, ErrUsernameTooLong
	}

	if _, err := s.resolver.FindByUsername(ctx, username); err == nil {
		return AuthResult{}, ErrUsernameTaken
	} else if !errors.Is(err, ErrUserNotFound) {
		return AuthResult{}, err
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return AuthResult{}, err
	}
	user, err := s.resolver.CreatePasswordUser(ctx, username, hash)
	if err != nil {
		return AuthResult{}, err
	}
	return s.establish(user)
}

func (s *Service) Login(ctx context.Context, username, password string) (res AuthResult, err error) {
	defer func() { recordAttempt("login", err) }()

	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return AuthResult{}, ErrMissingFields
	}

	user, err := s.resolver.FindByUsername(ctx, username)
	if errors.Is(err, ErrUserNotFound) {
		s.hasher.Verify(password, s.dummyHash)
		return AuthResult{}, ErrUserNotFound
	}
	if err != nil {
		return AuthResult{}, err
	}

	if !user.HasPassword() {
		s.hasher.Verify(password, s.dummyHash)
		return AuthResult{}, ErrInvalidPassword
	}
	if !s.hasher.Verify(password, user.PasswordHash) {
		return AuthResult{}, ErrInvalidPassword
	}
	return s.establish(user)
}

func (s *Service) IssueChallenge(ctx context.Context, address string) (c model.Challenge, err error) {
	defer func() { recordAttempt("issue_challenge", err) }()
	return s.challenges.IssueChallenge(address)
}

func (s *Service) VerifyChallenge(ctx context.Context, challengeToken, signature string) (res AuthResult, err error) {
	defer func() { recordAttempt("verify_challenge", err) }()

	challengeToken = strings.TrimSpace(challengeToken)
	signature = strings.TrimSpace(signature)
	if challengeToken == "" || signature == "" {
		return AuthResult{}, ErrMissingFields
	}

	claims, err := s.codec.VerifyChallenge(challengeToken)
	if err != nil {
		return AuthResult{}, err
	}

	verdict := s.verifier.Verify(ctx, claims.Message, signature, claims.Address)
	if !verdict.Verified {
		s.logger.InfoContext(ctx, "wallet signature rejected",
			"address", claims.Address,
			"method", string(verdict.Method),
			"reason", verdict.Err,
		)
		return AuthResult{}, fmt.Errorf("%w (%s)", ErrSignatureInvalid, verdict.Method)
	}
	if verdict.Method == MethodFallback {
		s.logger.WarnContext(ctx, "wallet login accepted without cryptographic proof",
			"address", claims.Address,
		)
	}

	user, created, err := s.resolver.FindOrCreateByWallet(ctx, claims.Address)
	if err != nil {
		return AuthResult{}, err
	}
	if created {
		s.logger.InfoContext(ctx, "wallet account created", "user_id", user.ID, "address", user.WalletAddress)
	}

	res, err = s.establish(user)
	if err != nil {
		return AuthResult{}, err
	}
	res.Method = verdict.Method
	res.Created = created
	return res, nil
}

func (s *Service) establish(user model.User) (AuthResult, error) {
	session, err := s.codec.IssueSession(user.ID, s.sessionTTL)
	if err != nil {
		return AuthResult{}, err
	}
	return AuthResult{User: user, Session: session}, nil
}
