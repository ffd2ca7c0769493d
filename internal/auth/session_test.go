// internal/auth/session_test.go
package auth

import (
	"crypto/ed25519"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTicketRoundTrip(t *testing.T) {
	tickets, err := NewTickets(time.Hour)
	require.NoError(t, err)

	tok, err := tickets.Issue("ann", "party")
	require.NoError(t, err)

	name, group, err := tickets.Parse(tok)
	require.NoError(t, err)
	assert.Equal(t, "ann", name)
	assert.Equal(t, "party", group)
}

func TestTicketFromOtherKeyRejected(t *testing.T) {
	a, err := NewTickets(0)
	require.NoError(t, err)
	b, err := NewTickets(0)
	require.NoError(t, err)

	tok, err := a.Issue("ann", "party")
	require.NoError(t, err)
	_, _, err = b.Parse(tok)
	assert.Error(t, err)

	_, _, err = a.Parse("not-a-jwt")
	assert.Error(t, err)
}

func TestExpiredTicketRejected(t *testing.T) {
	tickets, err := NewTickets(time.Hour)
	require.NoError(t, err)

	claims := jwt.MapClaims{"sub": "ann", "grp": "party", "exp": time.Now().Add(-time.Minute).Unix()}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims).SignedString(tickets.privateKey)
	require.NoError(t, err)

	_, _, err = tickets.Parse(tok)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestTicketMissingGroup(t *testing.T) {
	tickets, err := NewTickets(0)
	require.NoError(t, err)
	tok, err := jwt.NewWithClaims(jwt.SigningMethodEdDSA, jwt.MapClaims{"sub": "ann"}).SignedString(tickets.privateKey)
	require.NoError(t, err)

	_, _, err = tickets.Parse(tok)
	assert.ErrorIs(t, err, ErrMalformedTicket)
}

func TestParseTTL(t *testing.T) {
	for _, s := range []string{"", "0", "never"} {
		d, err := ParseTTL(s)
		require.NoError(t, err)
		assert.Zero(t, d)
	}
	d, err := ParseTTL("72h")
	require.NoError(t, err)
	assert.Equal(t, 72*time.Hour, d)

	_, err = ParseTTL("soon")
	assert.Error(t, err)
}

func TestNewTicketsFromPath(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	dir := t.TempDir()
	privPath := filepath.Join(dir, "key")
	pubPath := filepath.Join(dir, "key.pub")
	require.NoError(t, os.WriteFile(privPath, priv, 0o600))
	require.NoError(t, os.WriteFile(pubPath, pub, 0o644))

	tickets, err := NewTicketsFromPath(privPath, pubPath, 0)
	require.NoError(t, err)
	tok, err := tickets.Issue("bob", "g")
	require.NoError(t, err)
	name, _, err := tickets.Parse(tok)
	require.NoError(t, err)
	assert.Equal(t, "bob", name)

	_, err = NewTicketsFromPath(filepath.Join(dir, "missing"), pubPath, 0)
	assert.Error(t, err)
}
