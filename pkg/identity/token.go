package identity

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const tokenIssuer = "neurofabric/identity"

// ErrInvalidToken is returned when a sender token fails validation.
var ErrInvalidToken = errors.New("identity: invalid sender token")

// SenderClaims extends standard JWT claims with fabric-specific fields.
type SenderClaims struct {
	jwt.RegisteredClaims
	Protocol string   `json:"protocol"`
	Scopes   []string `json:"scopes,omitempty"`
}

// TokenManager mints and validates sender tokens. The governance layer holds
// the only minting TokenManager; transports hold verifying copies built from
// the same root key.
type TokenManager struct {
	key []byte
}

// NewTokenManager derives the token signing key from the root key.
func NewTokenManager(rootKey []byte) (*TokenManager, error) {
	if len(rootKey) < 16 {
		return nil, ErrShortRootKey
	}
	// Reuse HKDF derivation with a token-specific sender id so the token key
	// is distinct from every sender signing secret.
	ident, err := NewSenderIdentity("::token-authority", rootKey)
	if err != nil {
		return nil, err
	}
	return &TokenManager{key: ident.secret}, nil
}

// Mint creates a signed sender token for the given sender and protocol.
func (tm *TokenManager) Mint(senderID, protocol string, ttl time.Duration, scopes ...string) (string, error) {
	if senderID == "" {
		return "", ErrEmptySenderID
	}
	now := time.Now().UTC()
	claims := SenderClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   senderID,
			Issuer:    tokenIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Protocol: protocol,
		Scopes:   scopes,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(tm.key)
}

// Verify parses and validates a sender token, returning its claims.
func (tm *TokenManager) Verify(tokenString string) (*SenderClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &SenderClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return tm.key, nil
	}, jwt.WithIssuer(tokenIssuer), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := token.Claims.(*SenderClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
