package auth

import (
	"fmt"
	"time"

	"github.com/alphabot-ai/chirp/internal/model"
	"github.com/google/uuid"
)

const DefaultChallengeTTL = 5 * time.Minute

// ChallengeIssuer builds wallet login challenges. The returned token is the
// only copy of the challenge; nothing is stored server-side.
type ChallengeIssuer struct {
	codec   *Codec
	appName string
	ttl     time.Duration
	nonce   func() string
}

func NewChallengeIssuer(codec *Codec, appName string, ttl time.Duration) *ChallengeIssuer {
	if ttl <= 0 {
		ttl = DefaultChallengeTTL
	}
	return &ChallengeIssuer{codec: codec, appName: appName, ttl: ttl, nonce: uuid.NewString}
}

func (i *ChallengeIssuer) IssueChallenge(address string) (model.Challenge, error) {
	canonical, err := NormalizeAddress(address)
	if err != nil {
		return model.Challenge{}, err
	}
	message := fmt.Sprintf("Login to %s %s - Address: %s", i.appName, i.nonce(), canonical)
	token, expiresAt, err := i.codec.IssueChallenge(canonical, message, i.ttl)
	if err != nil {
		return model.Challenge{}, err
	}
	return model.Challenge{
		Address:   canonical,
		Message:   message,
		Token:     token,
		ExpiresAt: expiresAt,
	}, nil
}
