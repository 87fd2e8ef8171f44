// Package qr decodes scanned ticket QR payloads into a normalized struct.
// Everything past Decode works on models.QRPayload; the loosely-typed JSON
// object never leaves this package (it is only carried verbatim for audit).
package qr

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"gate-service/internal/status"
	"gate-service/models"
)

// compactPrefix marks the compact base64url encoding produced by the
// ticket issuance pipeline.
const compactPrefix = "tix:"

// supportedVersion is the only payload format version accepted when a
// version field is present.
const supportedVersion = 1

// Decode parses a scanned string into a normalized payload. It accepts the
// compact prefixed base64url form, URL-escaped JSON and raw JSON. Payloads
// with an issuance timestamp older than maxAge are rejected as stale; this
// is a coarse anti-staleness check, replay prevention lives in the
// challenge expiry.
func Decode(raw string, maxAge time.Duration) (*models.QRPayload, error) {
	text, err := decodeText(strings.TrimSpace(raw))
	if err != nil {
		return nil, err
	}

	var obj map[string]any
	if err := json.Unmarshal([]byte(text), &obj); err != nil {
		return nil, status.ErrInvalidQRFormat
	}

	payload := mapFields(obj)

	if payload.TicketID == "" && payload.TicketNumber == 0 && payload.AssetRef == "" {
		return nil, status.ErrQRMissingFields
	}

	if v, ok := obj["v"]; ok {
		version, isNumber := v.(float64)
		if !isNumber || int(version) != supportedVersion {
			return nil, status.ErrUnsupportedQRVersion
		}
		payload.Version = int(version)
	}

	if payload.IssuedAt > 0 {
		age := time.Now().Unix() - payload.IssuedAt
		if age > int64(maxAge.Seconds()) {
			return nil, status.ErrQRExpired
		}
	}

	return payload, nil
}

// decodeText undoes the outer transport encoding and returns the JSON text.
func decodeText(raw string) (string, error) {
	if strings.HasPrefix(raw, compactPrefix) {
		encoded := strings.TrimRight(raw[len(compactPrefix):], "=")
		decoded, err := base64.RawURLEncoding.DecodeString(encoded)
		if err != nil {
			return "", status.ErrInvalidQRFormat
		}
		return string(decoded), nil
	}

	// Tolerate URL-escaped payloads; fall back to the raw string.
	if unescaped, err := url.QueryUnescape(raw); err == nil {
		return unescaped, nil
	}
	return raw, nil
}

// mapFields maps the generator's short field names and their long-form
// aliases onto the normalized payload.
//
//	t|ticketId          ticket reference (string id or numeric ticket number)
//	m|mint|mintPubkey   full asset pubkey
//	a                   asset pubkey prefix
//	e|eventId           event id
//	ts                  issuance unix timestamp
//	c                   integrity checksum
func mapFields(obj map[string]any) *models.QRPayload {
	payload := &models.QRPayload{Raw: obj}

	switch t := pick(obj, "t", "ticketId").(type) {
	case string:
		payload.TicketID = t
		if n, err := strconv.ParseInt(t, 10, 64); err == nil {
			payload.TicketNumber = n
		}
	case float64:
		payload.TicketNumber = int64(t)
	}

	if mint, ok := pick(obj, "m", "mint", "mintPubkey").(string); ok {
		payload.FullMint = strings.TrimSpace(mint)
		payload.AssetRef = payload.FullMint
	} else if prefix, ok := obj["a"].(string); ok {
		payload.AssetRef = strings.TrimSpace(prefix)
	}

	if eventID, ok := pick(obj, "e", "eventId").(string); ok {
		payload.EventID = eventID
	}
	if ts, ok := obj["ts"].(float64); ok {
		payload.IssuedAt = int64(ts)
	}
	if checksum, ok := obj["c"].(string); ok {
		payload.Checksum = checksum
	}

	return payload
}

func pick(obj map[string]any, keys ...string) any {
	for _, key := range keys {
		if v, ok := obj[key]; ok && v != nil {
			return v
		}
	}
	return nil
}

// Checksum computes the integrity checksum the QR generator embeds: the
// first 4 hex chars of sha256 over "eventID:ticketNumber:assetRef:ts".
// The server side always feeds it the full asset pubkey from the ticket
// record, never the payload's own asset value.
func Checksum(eventID string, ticketNumber int64, assetRef string, ts int64) string {
	data := fmt.Sprintf("%s:%d:%s:%d", eventID, ticketNumber, assetRef, ts)
	sum := sha256.Sum256([]byte(data))
	return hex.EncodeToString(sum[:])[:4]
}
