// internal/auth/session.go
package auth

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrMalformedTicket is returned when a verified ticket lacks its name or group.
var ErrMalformedTicket = errors.New("ticket is missing name or group")

// Tickets signs and verifies rejoin tickets. A ticket is an EdDSA JWT whose
// "sub" is the player name and "grp" the group, so a client that lost its
// socket can rejoin as the same player.
type Tickets struct {
	privateKey ed25519.PrivateKey
	publicKey  ed25519.PublicKey
	ttl        time.Duration // 0 => never expires
}

// ParseTTL reads a ticket lifetime. "never", "0" and "" mean no expiry.
func ParseTTL(s string) (time.Duration, error) {
	if s == "never" || s == "0" || s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("failed to parse ticket ttl: %w", err)
	}
	return d, nil
}

// NewTickets generates a fresh ed25519 key pair at runtime.
func NewTickets(ttl time.Duration) (*Tickets, error) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to generate ed25519 key pair: %w", err)
	}
	return &Tickets{privateKey: priv, publicKey: pub, ttl: ttl}, nil
}

// NewTicketsFromPath reads raw ed25519 private/public keys from file.
func NewTicketsFromPath(privatePath, publicPath string, ttl time.Duration) (*Tickets, error) {
	privateKeyData, err := os.ReadFile(privatePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read private key file: %w", err)
	}
	publicKeyData, err := os.ReadFile(publicPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read public key file: %w", err)
	}
	if len(privateKeyData) != ed25519.PrivateKeySize || len(publicKeyData) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("unexpected ed25519 key sizes %d/%d", len(privateKeyData), len(publicKeyData))
	}
	return &Tickets{
		privateKey: ed25519.PrivateKey(privateKeyData),
		publicKey:  ed25519.PublicKey(publicKeyData),
		ttl:        ttl,
	}, nil
}

// Issue signs a ticket for name in group.
func (t *Tickets) Issue(name, group string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": name,
		"grp": group,
		"iat": now.Unix(),
	}
	if t.ttl > 0 {
		claims["exp"] = now.Add(t.ttl).Unix()
	}

	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	return token.SignedString(t.privateKey)
}

// Parse verifies a ticket and returns the player name and group it names.
func (t *Tickets) Parse(ticket string) (string, string, error) {
	tok, err := jwt.Parse(ticket, func(tok *jwt.Token) (interface{}, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodEd25519); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", tok.Header["alg"])
		}
		return t.publicKey, nil
	})
	if err != nil {
		return "", "", fmt.Errorf("jwt parse error: %w", err)
	}
	if !tok.Valid {
		return "", "", fmt.Errorf("invalid token")
	}

	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return "", "", fmt.Errorf("invalid jwt claims")
	}
	name, _ := claims["sub"].(string)
	group, _ := claims["grp"].(string)
	if name == "" || group == "" {
		return "", "", ErrMalformedTicket
	}
	return name, group, nil
}
