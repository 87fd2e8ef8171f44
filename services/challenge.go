package services

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"gate-service/internal/status"
	"gate-service/utils"
)

// canonicalPrefix versions the message format presenters sign. The message
// is derived from the exact issued token, so a signature always covers the
// whole challenge.
const canonicalPrefix = "gate-challenge-v1:"

// ChallengePayload is the decoded content of a valid challenge token.
type ChallengePayload struct {
	TicketID  string
	AssetRef  string
	Nonce     string
	ExpiresAt time.Time
}

// ChallengeService issues and verifies the short-lived signed challenges
// that bind a ticket to a verification attempt.
type ChallengeService struct {
	secret []byte
	ttl    time.Duration
}

func NewChallengeService(secret string, ttl time.Duration) *ChallengeService {
	return &ChallengeService{
		secret: []byte(secret),
		ttl:    ttl,
	}
}

// TTL returns the challenge lifetime.
func (s *ChallengeService) TTL() time.Duration {
	return s.ttl
}

// Issue creates a signed challenge token for the given ticket and asset.
func (s *ChallengeService) Issue(ticketID, assetRef string) (string, time.Time, error) {
	nonce, err := utils.GenerateCode(8)
	if err != nil {
		return "", time.Time{}, err
	}

	now := time.Now()
	expiresAt := now.Add(s.ttl)

	claims := jwt.MapClaims{
		"tid":   ticketID,
		"ast":   assetRef,
		"nonce": nonce,
		"iat":   jwt.NewNumericDate(now),
		"exp":   jwt.NewNumericDate(expiresAt),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}

	return token, expiresAt, nil
}

// Verify checks token integrity and expiry and extracts the challenge
// payload. Tampered and expired tokens are deliberately not distinguished.
func (s *ChallengeService) Verify(token string) (*ChallengePayload, error) {
	parsed, err := jwt.Parse(
		token,
		func(t *jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !parsed.Valid {
		return nil, status.ErrInvalidOrExpiredChallenge
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, status.ErrInvalidOrExpiredChallenge
	}

	ticketID, _ := claims["tid"].(string)
	assetRef, _ := claims["ast"].(string)
	if ticketID == "" || assetRef == "" {
		return nil, status.ErrInvalidChallengePayload
	}

	payload := &ChallengePayload{
		TicketID: ticketID,
		AssetRef: assetRef,
	}
	if nonce, ok := claims["nonce"].(string); ok {
		payload.Nonce = nonce
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		payload.ExpiresAt = exp.Time
	}

	return payload, nil
}

// CanonicalMessage returns the exact bytes the presenting wallet must sign
// for the given token.
func (s *ChallengeService) CanonicalMessage(token string) []byte {
	sum := sha256.Sum256([]byte(token))
	return []byte(canonicalPrefix + hex.EncodeToString(sum[:]))
}
