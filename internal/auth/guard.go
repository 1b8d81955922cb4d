package auth

import (
	"context"
	"strings"
)

const bearerScheme = "Bearer"

// SessionGuard turns an inbound credential header into a subject id.
type SessionGuard struct {
	codec *Codec
}

func NewSessionGuard(codec *Codec) *SessionGuard {
	return &SessionGuard{codec: codec}
}

// Authenticate accepts a bare token or "Bearer <token>".
func (g *SessionGuard) Authenticate(rawHeader string) (int64, error) {
	token := strings.TrimSpace(rawHeader)
	if scheme, rest, ok := strings.Cut(token, " "); ok && strings.EqualFold(scheme, bearerScheme) {
		token = strings.TrimSpace(rest)
	} else if strings.EqualFold(token, bearerScheme) {
		token = ""
	}
	if token == "" {
		return 0, ErrNoCredential
	}
	claims, err := g.codec.VerifySession(token)
	if err != nil {
		return 0, err
	}
	return claims.SubjectID, nil
}

type subjectKey struct{}

// WithSubject attaches an authenticated subject id to ctx.
func WithSubject(ctx context.Context, subjectID int64) context.Context {
	return context.WithValue(ctx, subjectKey{}, subjectID)
}

// SubjectFrom returns the subject attached by WithSubject.
func SubjectFrom(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(subjectKey{}).(int64)
	return id, ok
}
