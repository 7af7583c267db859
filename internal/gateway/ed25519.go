package gateway

import "crypto/ed25519"

// Ed25519Verifier verifies ed25519 signature blobs. It is the verification
// capability the CLIs wire in at the composition root; deployments with a
// different scheme supply their own Verifier.
type Ed25519Verifier struct{}

func (Ed25519Verifier) Verify(publicKey, message, signature []byte) bool {
	if len(publicKey) != ed25519.PublicKeySize || len(signature) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(publicKey), message, signature)
}
