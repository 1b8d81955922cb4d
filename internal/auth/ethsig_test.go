package auth

import (
	"strings"
	"testing"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	vectorKey     = "0x4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"
	vectorAddress = "0x2c7536e3605d9c16a7a3d7b1898e529396a65c23"
)

func TestNormalizeAddress(t *testing.T) {
	got, err := NormalizeAddress("  0x2C7536E3605D9C16a7a3D7b1898e529396a65c23 ")
	require.NoError(t, err)
	assert.Equal(t, vectorAddress, got)

	_, err = NormalizeAddress("")
	assert.ErrorIs(t, err, ErrMissingAddress)

	for _, bad := range []string{"2c7536e3605d9c16a7a3d7b1898e529396a65c23", "0x1234", "0xzz7536e3605d9c16a7a3d7b1898e529396a65c23"} {
		_, err = NormalizeAddress(bad)
		assert.ErrorIs(t, err, ErrInvalidAddress, bad)
	}
}

func TestAddressFromKnownKey(t *testing.T) {
	priv, err := ParsePrivateKey(vectorKey)
	require.NoError(t, err)
	assert.Equal(t, vectorAddress, AddressFromPublicKey(priv.PubKey()))
}

func TestRecoverKnownSignature(t *testing.T) {
	sig := "0xb91467e570a6466aa9e9876cbcd013baba02900b8979d43fe208a4a4f339f5fd6007e74cd82e037b800186422fc2da167c747ef045e5d18a5f5d4300f8e1a0291c"
	got, err := RecoverPersonalSigner("Some data", sig)
	require.NoError(t, err)
	assert.Equal(t, vectorAddress, got)
}

func TestSignAndRecover(t *testing.T) {
	priv, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)
	addr := AddressFromPublicKey(priv.PubKey())

	sig := SignPersonalMessage(priv, "Login to chirp nonce - Address: "+addr)
	assert.True(t, strings.HasPrefix(sig, "0x"))
	assert.Len(t, sig, 2+130)

	got, err := RecoverPersonalSigner("Login to chirp nonce - Address: "+addr, sig)
	require.NoError(t, err)
	assert.Equal(t, addr, got)

	// A different message recovers some other key.
	other, err := RecoverPersonalSigner("Login to chirp other - Address: "+addr, sig)
	if err == nil {
		assert.NotEqual(t, addr, other)
	}
}

func TestRecoverAcceptsZeroBasedRecoveryID(t *testing.T) {
	priv, err := ParsePrivateKey(vectorKey)
	require.NoError(t, err)

	sig := SignPersonalMessage(priv, "hello")
	raw := []byte(sig)
	// Rewrite v from 27/28 to 0/1.
	v := sig[len(sig)-2:]
	switch v {
	case "1b":
		copy(raw[len(raw)-2:], "00")
	case "1c":
		copy(raw[len(raw)-2:], "01")
	default:
		t.Fatalf("unexpected v %s", v)
	}

	got, err := RecoverPersonalSigner("hello", string(raw))
	require.NoError(t, err)
	assert.Equal(t, vectorAddress, got)
}

func TestRecoverRejectsMalformedSignature(t *testing.T) {
	cases := map[string]string{
		"not hex":   "0xnothex",
		"too short": "0x1234",
		"bad v":     "0x" + strings.Repeat("11", 64) + "05",
	}
	for name, sig := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := RecoverPersonalSigner("hello", sig)
			assert.ErrorIs(t, err, errMalformedSignature)
		})
	}
}
