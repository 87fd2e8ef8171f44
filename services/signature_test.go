package services

import (
	"crypto/ed25519"
	"crypto/rand"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signMessage(t *testing.T, message []byte) (signatureB58, publicKeyB58 string, priv ed25519.PrivateKey) {
	t.Helper()

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	sig := ed25519.Sign(priv, message)
	return base58.Encode(sig), base58.Encode(pub), priv
}

func TestSignatureVerifier_ValidSignature(t *testing.T) {
	verifier := NewSignatureVerifier()
	message := []byte("gate-challenge-v1:deadbeef")

	sig, pub, _ := signMessage(t, message)

	assert.True(t, verifier.Verify(message, sig, pub))
}

func TestSignatureVerifier_WrongKey(t *testing.T) {
	verifier := NewSignatureVerifier()
	message := []byte("gate-challenge-v1:deadbeef")

	sig, _, _ := signMessage(t, message)
	_, otherPub, _ := signMessage(t, message)

	assert.False(t, verifier.Verify(message, sig, otherPub))
}

func TestSignatureVerifier_WrongMessage(t *testing.T) {
	verifier := NewSignatureVerifier()

	sig, pub, _ := signMessage(t, []byte("message one"))

	assert.False(t, verifier.Verify([]byte("message two"), sig, pub))
}

func TestSignatureVerifier_MalformedInputs(t *testing.T) {
	verifier := NewSignatureVerifier()
	message := []byte("gate-challenge-v1:deadbeef")
	sig, pub, _ := signMessage(t, message)

	// Invalid base58 characters.
	assert.False(t, verifier.Verify(message, "0OIl-not-base58", pub))
	assert.False(t, verifier.Verify(message, sig, "0OIl-not-base58"))

	// Valid base58 but wrong length.
	assert.False(t, verifier.Verify(message, base58.Encode([]byte("short")), pub))
	assert.False(t, verifier.Verify(message, sig, base58.Encode([]byte("short"))))

	// Empty inputs.
	assert.False(t, verifier.Verify(message, "", ""))
}
