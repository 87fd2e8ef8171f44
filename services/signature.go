package services

import (
	"crypto/ed25519"

	"github.com/mr-tron/base58"
)

// SignatureVerifier checks ed25519 signatures over canonical challenge
// messages. Keys and signatures arrive in the ledger's native base58
// encoding.
type SignatureVerifier struct{}

func NewSignatureVerifier() *SignatureVerifier {
	return &SignatureVerifier{}
}

// Verify reports whether signature is a valid ed25519 signature of message
// by the claimed public key. Malformed inputs count as a failed
// verification, not an error.
func (v *SignatureVerifier) Verify(message []byte, signatureB58, publicKeyB58 string) bool {
	sig, err := base58.Decode(signatureB58)
	if err != nil || len(sig) != ed25519.SignatureSize {
		return false
	}

	pub, err := base58.Decode(publicKeyB58)
	if err != nil || len(pub) != ed25519.PublicKeySize {
		return false
	}

	return ed25519.Verify(ed25519.PublicKey(pub), message, sig)
}
