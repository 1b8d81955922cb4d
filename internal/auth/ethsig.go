package auth

import (
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"golang.org/x/crypto/sha3"
)

// compactSigMagicOffset is the recovery-code offset used by both Ethereum
// (v = 27/28) and secp256k1 compact signatures for uncompressed keys.
const compactSigMagicOffset = 27

var addressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

var errMalformedSignature = errors.New("malformed signature")

// NormalizeAddress validates a hex wallet address and returns its lower-cased form.
func NormalizeAddress(address string) (string, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return "", ErrMissingAddress
	}
	if !addressPattern.MatchString(address) {
		return "", ErrInvalidAddress
	}
	return strings.ToLower(address), nil
}

// PersonalMessageHash is the hash signed by personal_sign wallets.
func PersonalMessageHash(msg []byte) []byte {
	prefix := fmt.Sprintf("\x19Ethereum Signed Message:\n%d", len(msg))
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(prefix))
	h.Write(msg)
	return h.Sum(nil)
}

// AddressFromPublicKey derives the lower-cased 0x address of a public key.
func AddressFromPublicKey(pub *secp256k1.PublicKey) string {
	uncompressed := pub.SerializeUncompressed()
	h := sha3.NewLegacyKeccak256()
	h.Write(uncompressed[1:])
	sum := h.Sum(nil)
	return "0x" + hex.EncodeToString(sum[12:])
}

// RecoverPersonalSigner recovers the address that produced an r||s||v
// personal-message signature over message.
func RecoverPersonalSigner(message, signature string) (string, error) {
	sig, err := decodeHex(signature)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errMalformedSignature, err)
	}
	if len(sig) != 65 {
		return "", fmt.Errorf("%w: expected 65 bytes, got %d", errMalformedSignature, len(sig))
	}
	v := sig[64]
	if v >= compactSigMagicOffset {
		v -= compactSigMagicOffset
	}
	if v > 1 {
		return "", fmt.Errorf("%w: invalid recovery id %d", errMalformedSignature, sig[64])
	}

	compact := make([]byte, 65)
	compact[0] = compactSigMagicOffset + v
	copy(compact[1:], sig[:64])

	pub, _, err := ecdsa.RecoverCompact(compact, PersonalMessageHash([]byte(message)))
	if err != nil {
		return "", fmt.Errorf("%w: %v", errMalformedSignature, err)
	}
	return AddressFromPublicKey(pub), nil
}

// SignPersonalMessage produces the 0x-prefixed r||s||v signature a browser
// wallet would return for message. The server never calls it; it backs the
// developer CLI and tests.
func SignPersonalMessage(priv *secp256k1.PrivateKey, message string) string {
	compact := ecdsa.SignCompact(priv, PersonalMessageHash([]byte(message)), false)
	sig := make([]byte, 65)
	copy(sig, compact[1:])
	sig[64] = compact[0]
	return "0x" + hex.EncodeToString(sig)
}

// ParsePrivateKey decodes a hex secp256k1 private key.
func ParsePrivateKey(s string) (*secp256k1.PrivateKey, error) {
	b, err := decodeHex(s)
	if err != nil {
		return nil, err
	}
	if len(b) != 32 {
		return nil, errors.New("private key must be 32 bytes")
	}
	return secp256k1.PrivKeyFromBytes(b), nil
}

func decodeHex(input string) ([]byte, error) {
	clean := strings.TrimPrefix(strings.TrimSpace(input), "0x")
	return hex.DecodeString(clean)
}
