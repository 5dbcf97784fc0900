// Package identity binds signal factories to sender identities.
//
// Each sender identity owns an HKDF-derived signing secret. Signal factories
// use the identity to produce the signature field of every signal they emit;
// the transport verifies sender tokens minted by the governance layer when an
// endpoint registers. The core never mints identities on its own.
package identity

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

var (
	// ErrEmptySenderID is returned when an identity is requested without an ID.
	ErrEmptySenderID = errors.New("identity: sender id must not be empty")
	// ErrShortRootKey is returned when the root key material is too weak.
	ErrShortRootKey = errors.New("identity: root key must be at least 16 bytes")
)

// hkdfInfo namespaces derived keys so the same root key can serve other
// subsystems without cross-protocol reuse.
const hkdfInfo = "nlp-c/sender-signing/v1"

// SenderIdentity holds the signing material for one logical sender.
// The secret never leaves the struct; callers only see signatures.
type SenderIdentity struct {
	id     string
	secret []byte
}

// NewSenderIdentity derives a per-sender signing secret from the root key.
// Derivation is deterministic: the same (rootKey, senderID) pair always
// yields the same secret, so identities can be re-derived after restart.
func NewSenderIdentity(senderID string, rootKey []byte) (*SenderIdentity, error) {
	if senderID == "" {
		return nil, ErrEmptySenderID
	}
	if len(rootKey) < 16 {
		return nil, ErrShortRootKey
	}

	r := hkdf.New(sha256.New, rootKey, []byte(senderID), []byte(hkdfInfo))
	secret := make([]byte, 32)
	if _, err := io.ReadFull(r, secret); err != nil {
		return nil, fmt.Errorf("identity: key derivation failed: %w", err)
	}

	return &SenderIdentity{id: senderID, secret: secret}, nil
}

// ID returns the sender identifier.
func (s *SenderIdentity) ID() string { return s.id }

// Sign produces an HMAC-SHA256 signature over the payload, hex encoded.
func (s *SenderIdentity) Sign(payload string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether signature is a valid signature over payload.
func (s *SenderIdentity) Verify(payload, signature string) bool {
	want := s.Sign(payload)
	return hmac.Equal([]byte(want), []byte(signature))
}
