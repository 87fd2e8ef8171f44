package services

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gate-service/internal/status"
)

func TestChallengeService_IssueAndVerify(t *testing.T) {
	svc := NewChallengeService("test-secret", 120*time.Second)

	token, expiresAt, err := svc.Issue("TKT-001", "8xGzPq2wFullMint")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.WithinDuration(t, time.Now().Add(120*time.Second), expiresAt, 2*time.Second)

	payload, err := svc.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "TKT-001", payload.TicketID)
	assert.Equal(t, "8xGzPq2wFullMint", payload.AssetRef)
	assert.NotEmpty(t, payload.Nonce)
	assert.WithinDuration(t, expiresAt, payload.ExpiresAt, time.Second)
}

func TestChallengeService_NoncesDiffer(t *testing.T) {
	svc := NewChallengeService("test-secret", 120*time.Second)

	first, _, err := svc.Issue("TKT-001", "mint")
	require.NoError(t, err)
	second, _, err := svc.Issue("TKT-001", "mint")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestChallengeService_ExpiredChallenge(t *testing.T) {
	svc := NewChallengeService("test-secret", -1*time.Second)

	token, _, err := svc.Issue("TKT-001", "mint")
	require.NoError(t, err)

	_, err = svc.Verify(token)
	assert.ErrorIs(t, err, status.ErrInvalidOrExpiredChallenge)
}

func TestChallengeService_TamperedToken(t *testing.T) {
	svc := NewChallengeService("test-secret", 120*time.Second)

	token, _, err := svc.Issue("TKT-001", "mint")
	require.NoError(t, err)

	// Flip a character in the claims section.
	parts := strings.SplitN(token, ".", 3)
	require.Len(t, parts, 3)
	claims := []byte(parts[1])
	if claims[0] == 'A' {
		claims[0] = 'B'
	} else {
		claims[0] = 'A'
	}
	tampered := parts[0] + "." + string(claims) + "." + parts[2]

	_, err = svc.Verify(tampered)
	assert.ErrorIs(t, err, status.ErrInvalidOrExpiredChallenge)
}

func TestChallengeService_WrongSecret(t *testing.T) {
	issuer := NewChallengeService("secret-a", 120*time.Second)
	verifier := NewChallengeService("secret-b", 120*time.Second)

	token, _, err := issuer.Issue("TKT-001", "mint")
	require.NoError(t, err)

	_, err = verifier.Verify(token)
	assert.ErrorIs(t, err, status.ErrInvalidOrExpiredChallenge)
}

func TestChallengeService_CanonicalMessage(t *testing.T) {
	svc := NewChallengeService("test-secret", 120*time.Second)

	token, _, err := svc.Issue("TKT-001", "mint")
	require.NoError(t, err)

	first := svc.CanonicalMessage(token)
	second := svc.CanonicalMessage(token)
	assert.Equal(t, first, second)
	assert.True(t, strings.HasPrefix(string(first), canonicalPrefix))

	other, _, err := svc.Issue("TKT-002", "mint")
	require.NoError(t, err)
	assert.NotEqual(t, first, svc.CanonicalMessage(other))
}
