package auth

import (
	"errors"
	"strconv"
	"time"

	"github.com/alphabot-ai/chirp/internal/model"
	"github.com/golang-jwt/jwt/v5"
)

// Audiences keep the two token shapes apart: a challenge token is never
// accepted where a session token is expected, and the reverse.
const (
	AudienceSession   = "session"
	AudienceChallenge = "wallet-challenge"

	SubjectKindUser = "user"
)

// SessionClaims identify a logged-in subject.
type SessionClaims struct {
	SubjectKind string
	SubjectID   int64
	IssuedAt    time.Time
	ExpiresAt   time.Time
}

// ChallengeClaims carry a pending wallet challenge.
type ChallengeClaims struct {
	Address   string
	Message   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type sessionJWT struct {
	jwt.RegisteredClaims
	Kind string `json:"kind"`
}

type challengeJWT struct {
	jwt.RegisteredClaims
	Address string `json:"address"`
	Message string `json:"message"`
}

// Codec signs and verifies self-expiring HS256 tokens with a server secret.
type Codec struct {
	secret []byte
	now    func() time.Time
}

type CodecOption func(*Codec)

// WithClock replaces time.Now for issuance and expiry checks.
func WithClock(now func() time.Time) CodecOption {
	return func(c *Codec) {
		c.now = now
	}
}

func NewCodec(secret string, opts ...CodecOption) (*Codec, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}
	c := &Codec{secret: []byte(secret), now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Codec) IssueSession(subjectID int64, ttl time.Duration) (model.SessionToken, error) {
	issuedAt, expiresAt := c.window(ttl)
	claims := sessionJWT{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(subjectID, 10),
			Audience:  jwt.ClaimStrings{AudienceSession},
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Kind: SubjectKindUser,
	}
	token, err := c.sign(claims)
	if err != nil {
		return model.SessionToken{}, err
	}
	return model.SessionToken{Token: token, ExpiresAt: expiresAt}, nil
}

func (c *Codec) IssueChallenge(address, message string, ttl time.Duration) (string, time.Time, error) {
	issuedAt, expiresAt := c.window(ttl)
	claims := challengeJWT{
		RegisteredClaims: jwt.RegisteredClaims{
			Audience:  jwt.ClaimStrings{AudienceChallenge},
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Address: address,
		Message: message,
	}
	token, err := c.sign(claims)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

func (c *Codec) VerifySession(token string) (SessionClaims, error) {
	var claims sessionJWT
	if err := c.parse(token, AudienceSession, &claims); err != nil {
		return SessionClaims{}, err
	}
	if claims.Kind != SubjectKindUser {
		return SessionClaims{}, ErrTokenInvalid
	}
	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || id <= 0 {
		return SessionClaims{}, ErrTokenInvalid
	}
	return SessionClaims{
		SubjectKind: claims.Kind,
		SubjectID:   id,
		IssuedAt:    claims.IssuedAt.Time,
		ExpiresAt:   claims.ExpiresAt.Time,
	}, nil
}

func (c *Codec) VerifyChallenge(token string) (ChallengeClaims, error) {
	var claims challengeJWT
	if err := c.parse(token, AudienceChallenge, &claims); err != nil {
		return ChallengeClaims{}, err
	}
	if claims.Address == "" || claims.Message == "" {
		return ChallengeClaims{}, ErrTokenInvalid
	}
	return ChallengeClaims{
		Address:   claims.Address,
		Message:   claims.Message,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// window truncates to whole seconds so that the returned expiry equals what
// the token's NumericDate claims decode to.
func (c *Codec) window(ttl time.Duration) (time.Time, time.Time) {
	issuedAt := c.now().Truncate(time.Second)
	return issuedAt, issuedAt.Add(ttl).Truncate(time.Second)
}

func (c *Codec) sign(claims jwt.Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := token.SignedString(c.secret)
	if err != nil {
		return "", internalError("AUTH_TOKEN_SIGN_FAILED", "sign token", err)
	}
	return s, nil
}

func (c *Codec) parse(token, audience string, claims jwt.Claims) error {
	if token == "" {
		return ErrTokenInvalid
	}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(audience),
		// iat is not validated; exp alone bounds a token's lifetime.
		jwt.WithExpirationRequired(),
		jwt.WithStrictDecoding(),
		jwt.WithTimeFunc(c.now),
	)
	if err == nil {
		return nil
	}
	if errors.Is(err, jwt.ErrTokenExpired) {
		return ErrTokenExpired
	}
	return ErrTokenInvalid
}
