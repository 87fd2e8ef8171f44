package models

import (
	"time"
)

// Ticket statuses. USED and CANCELLED are terminal.
const (
	TicketStatusActive    = "ACTIVE"
	TicketStatusUsed      = "USED"
	TicketStatusCancelled = "CANCELLED"
)

// GateVerification statuses.
const (
	VerificationStatusPending  = "PENDING"
	VerificationStatusVerified = "VERIFIED"
)

type Ticket struct {
	TicketID     string     `json:"ticket_id"`
	EventID      string     `json:"event_id"`
	MintPubkey   string     `json:"mint_pubkey"`
	TicketNumber int64      `json:"ticket_number"`
	Status       string     `json:"status"` // ACTIVE, USED, CANCELLED
	CreatedAt    time.Time  `json:"created_at"`
	UsedAt       *time.Time `json:"used_at,omitempty"`
}

// GateVerification is the audit record for one verification attempt.
// Many records may reference one ticket (re-scans, retries); at most one
// ever reaches VERIFIED.
type GateVerification struct {
	VerificationID string         `json:"verification_id"`
	EventID        string         `json:"event_id"`
	TicketID       string         `json:"ticket_id"`
	VerifierPubkey string         `json:"verifier_pubkey"`
	Status         string         `json:"status"` // PENDING, VERIFIED
	CreatedAt      time.Time      `json:"created_at"`
	VerifiedAt     *time.Time     `json:"verified_at,omitempty"`
	Location       string         `json:"location,omitempty"`
	SignerPubkey   string         `json:"signer_pubkey,omitempty"`
	Meta           map[string]any `json:"meta,omitempty"`
}

// QRPayload is the normalized form of a scanned QR string. Loosely-typed
// JSON never crosses out of the qr package; everything downstream works
// on this struct. Raw keeps the decoded object verbatim for audit meta.
type QRPayload struct {
	TicketID     string
	TicketNumber int64
	AssetRef     string // any asset alias, possibly a prefix
	FullMint     string // set only when a full-mint field was present
	EventID      string
	IssuedAt     int64 // unix seconds, 0 when absent
	Checksum     string
	Version      int // 0 when absent
	Raw          map[string]any
}

type ScanRequest struct {
	QRString string `json:"qr_string"`
	StaffID  string `json:"staff_id,omitempty"`
	GateID   string `json:"gate_id,omitempty"`
}

type ScanResponse struct {
	OK               bool    `json:"ok"`
	ChallengeToken   string  `json:"challenge_token"`
	MessageToSign    string  `json:"message_to_sign"`
	ExpiresInSeconds int     `json:"expires_in_seconds"`
	TicketID         string  `json:"ticket_id"`
	EventID          string  `json:"event_id"`
	VerificationID   *string `json:"verification_id"` // null when audit persistence failed
}

type VerifyRequest struct {
	ChallengeToken string `json:"challenge_token"`
	Signature      string `json:"signature"`     // base58
	SignerPubkey   string `json:"signer_pubkey"` // base58
	StaffID        string `json:"staff_id,omitempty"`
	GateID         string `json:"gate_id,omitempty"`
	VerificationID string `json:"verification_id,omitempty"`
}

type VerifyResponse struct {
	OK             bool   `json:"ok"`
	Message        string `json:"message"`
	TicketID       string `json:"ticket_id"`
	VerificationID string `json:"verification_id"`
}
