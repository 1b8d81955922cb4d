package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Method records how a wallet signature was judged.
type Method string

const (
	// MethodStrong means the signer address was recovered cryptographically.
	MethodStrong Method = "strong"
	// MethodFallback means recovery could not run and the fallback policy
	// decided the outcome. It proves nothing about the signer.
	MethodFallback Method = "fallback"
)

// FallbackPolicy decides the outcome when signature recovery cannot run.
type FallbackPolicy string

const (
	FallbackReject FallbackPolicy = "reject"
	// FallbackTrust accepts the claimed address without proof.
	FallbackTrust FallbackPolicy = "trust"
)

func ParseFallbackPolicy(s string) (FallbackPolicy, error) {
	switch p := FallbackPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case FallbackReject, FallbackTrust:
		return p, nil
	}
	return "", fmt.Errorf("unknown fallback policy %q", s)
}

// ErrRecoveryUnavailable is returned by a Recoverer that could not run at
// all, as opposed to one that ran and rejected the signature.
var ErrRecoveryUnavailable = errors.New("signature recovery unavailable")

// Recoverer derives the signer address from a personal-message signature.
type Recoverer interface {
	Recover(message, signature string) (string, error)
}

type RecovererFunc func(message, signature string) (string, error)

func (f RecovererFunc) Recover(message, signature string) (string, error) {
	return f(message, signature)
}

// Secp256k1Recoverer is the primary recoverer.
var Secp256k1Recoverer = RecovererFunc(RecoverPersonalSigner)

// Result is the tagged outcome of a signature check.
type Result struct {
	Verified  bool
	Method    Method
	Recovered string
	// Err explains a negative result, or the recovery failure that triggered
	// the fallback.
	Err error
}

type SignatureVerifier struct {
	recoverer Recoverer
	policy    FallbackPolicy
	logger    *slog.Logger
}

func NewSignatureVerifier(recoverer Recoverer, policy FallbackPolicy, logger *slog.Logger) *SignatureVerifier {
	if recoverer == nil {
		recoverer = Secp256k1Recoverer
	}
	if policy == "" {
		policy = FallbackReject
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SignatureVerifier{recoverer: recoverer, policy: policy, logger: logger}
}

// Verify checks that signature over message was produced by expectedAddress.
func (v *SignatureVerifier) Verify(ctx context.Context, message, signature, expectedAddress string) Result {
	recovered, err := v.recover(message, signature)
	if err != nil {
		if errors.Is(err, ErrRecoveryUnavailable) {
			return v.fallback(ctx, expectedAddress, err)
		}
		recordWalletVerification(MethodStrong, false)
		return Result{Method: MethodStrong, Err: err}
	}

	if !strings.EqualFold(recovered, expectedAddress) {
		recordWalletVerification(MethodStrong, false)
		return Result{
			Method:    MethodStrong,
			Recovered: recovered,
			Err:       fmt.Errorf("recovered %s, expected %s", recovered, strings.ToLower(expectedAddress)),
		}
	}
	recordWalletVerification(MethodStrong, true)
	return Result{Verified: true, Method: MethodStrong, Recovered: recovered}
}

func (v *SignatureVerifier) recover(message, signature string) (addr string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: recoverer panicked: %v", ErrRecoveryUnavailable, r)
		}
	}()
	return v.recoverer.Recover(message, signature)
}

func (v *SignatureVerifier) fallback(ctx context.Context, expectedAddress string, cause error) Result {
	trusted := v.policy == FallbackTrust
	recordWalletVerification(MethodFallback, trusted)
	v.logger.WarnContext(ctx, "wallet signature recovery unavailable, applying fallback policy",
		"address", strings.ToLower(expectedAddress),
		"policy", string(v.policy),
		"trusted", trusted,
		"error", cause,
	)
	res := Result{Verified: trusted, Method: MethodFallback, Err: cause}
	if trusted {
		res.Recovered = strings.ToLower(expectedAddress)
	}
	return res
}
