package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	pubnub "github.com/pubnub/go"

	"gate-service/config"
	"gate-service/internal/status"
	"gate-service/models"
	"gate-service/monitoring"
	"gate-service/qr"
	"gate-service/repository"
)

// GateService implements the two-phase gate verification protocol: Scan
// issues a short-lived challenge for a ticket located from an untrusted QR
// payload, Verify proves wallet ownership and atomically redeems the
// ticket.
type GateService struct {
	repo       repository.TicketRepository
	challenges *ChallengeService
	signatures *SignatureVerifier
	oracle     OwnershipOracle
	pubnub     *pubnub.PubNub
	monitor    *monitoring.Monitor
	cfg        *config.Config
}

func NewGateService(
	repo repository.TicketRepository,
	challenges *ChallengeService,
	signatures *SignatureVerifier,
	oracle OwnershipOracle,
	pn *pubnub.PubNub,
	monitor *monitoring.Monitor,
	cfg *config.Config,
) *GateService {
	return &GateService{
		repo:       repo,
		challenges: challenges,
		signatures: signatures,
		oracle:     oracle,
		pubnub:     pn,
		monitor:    monitor,
		cfg:        cfg,
	}
}

// Scan is phase 1: decode the QR payload, resolve and validate the ticket
// and hand back a challenge for the wallet to sign. Ticket state is never
// mutated here, so a scan is always safe to repeat.
func (s *GateService) Scan(ctx context.Context, req models.ScanRequest) (*models.ScanResponse, error) {
	resp, err := s.scan(ctx, req)
	if err != nil {
		s.monitor.TrackScan(status.FromError(err).Code)
		return nil, err
	}
	s.monitor.TrackScan("success")
	return resp, nil
}

func (s *GateService) scan(ctx context.Context, req models.ScanRequest) (*models.ScanResponse, error) {
	payload, err := qr.Decode(req.QRString, s.cfg.QRMaxAge)
	if err != nil {
		return nil, err
	}

	ticket, err := s.resolveTicket(ctx, payload)
	if err != nil {
		return nil, err
	}

	// Integrity check: recompute the checksum with the full asset pubkey
	// from the ticket record, never the payload's own value. Only the
	// issuer and the datastore know the full pubkey, so a matching
	// checksum rules out tampering with any covered field.
	if payload.Checksum != "" && payload.IssuedAt > 0 && ticket.MintPubkey != "" {
		eventID := payload.EventID
		if eventID == "" {
			eventID = ticket.EventID
		}
		expected := qr.Checksum(eventID, payload.TicketNumber, ticket.MintPubkey, payload.IssuedAt)
		if payload.Checksum != expected {
			log.Printf("tampered QR payload for ticket %s (gate %s)", ticket.TicketID, req.GateID)
			return nil, status.ErrQRTampered
		}
	}

	// Defensive cross-check when the payload carried a full mint pubkey.
	if payload.FullMint != "" && ticket.MintPubkey != "" && payload.FullMint != ticket.MintPubkey {
		log.Printf("mint mismatch for ticket %s (gate %s)", ticket.TicketID, req.GateID)
		return nil, status.ErrMintMismatch
	}

	if ticket.Status != models.TicketStatusActive {
		return nil, status.ErrTicketNotActive.WithState(ticket.Status)
	}

	token, expiresAt, err := s.challenges.Issue(ticket.TicketID, ticket.MintPubkey)
	if err != nil {
		return nil, err
	}
	message := s.challenges.CanonicalMessage(token)
	expiresIn := int(time.Until(expiresAt).Round(time.Second).Seconds())

	eventID := payload.EventID
	if eventID == "" {
		eventID = ticket.EventID
	}

	// Best-effort audit row. The challenge is valid on its own, so a
	// failed insert degrades to a null verification id instead of failing
	// the scan.
	var verificationID *string
	verifierPubkey := req.StaffID
	if verifierPubkey == "" {
		verifierPubkey = "unknown-staff"
	}
	id, err := s.repo.CreateVerification(ctx, &models.GateVerification{
		EventID:        eventID,
		TicketID:       ticket.TicketID,
		VerifierPubkey: verifierPubkey,
		Status:         models.VerificationStatusPending,
		Location:       req.GateID,
		Meta: map[string]any{
			"challenge":          token,
			"message_to_sign":    string(message),
			"expires_in_seconds": expiresIn,
			"issued_at":          time.Now().UTC().Format(time.RFC3339),
			"gate_id":            req.GateID,
			"staff_id":           req.StaffID,
			"raw_qr_payload":     payload.Raw,
		},
	})
	if err != nil {
		log.Printf("failed to create gate verification row at scan time: %v", err)
	} else {
		verificationID = &id
	}

	s.publish(eventID, map[string]any{
		"type":      "gate_scan",
		"ticket_id": ticket.TicketID,
		"gate_id":   req.GateID,
	})

	return &models.ScanResponse{
		OK:               true,
		ChallengeToken:   token,
		MessageToSign:    string(message),
		ExpiresInSeconds: expiresIn,
		TicketID:         ticket.TicketID,
		EventID:          eventID,
		VerificationID:   verificationID,
	}, nil
}

// resolveTicket prefers an exact ticket-id lookup and falls back to the
// asset reference (exact or prefix, decided by the repository).
func (s *GateService) resolveTicket(ctx context.Context, payload *models.QRPayload) (*models.Ticket, error) {
	if payload.TicketID != "" {
		ticket, err := s.repo.FindByTicketID(ctx, payload.TicketID)
		if err == nil {
			return ticket, nil
		}
		if !errors.Is(err, status.ErrTicketNotFound) {
			return nil, err
		}
	}

	if payload.AssetRef != "" {
		return s.repo.FindByAssetRef(ctx, payload.AssetRef)
	}

	return nil, status.ErrTicketNotFound
}

// Verify is phase 2: validate the challenge, the wallet's signature and
// current on-ledger ownership, then atomically redeem the ticket and
// finalize the audit record.
func (s *GateService) Verify(ctx context.Context, req models.VerifyRequest) (*models.VerifyResponse, error) {
	resp, err := s.verify(ctx, req)
	if err != nil {
		s.monitor.TrackVerify(status.FromError(err).Code)
		return nil, err
	}
	s.monitor.TrackVerify("success")
	return resp, nil
}

func (s *GateService) verify(ctx context.Context, req models.VerifyRequest) (*models.VerifyResponse, error) {
	challenge, err := s.challenges.Verify(req.ChallengeToken)
	if err != nil {
		return nil, err
	}

	message := s.challenges.CanonicalMessage(req.ChallengeToken)
	if !s.signatures.Verify(message, req.Signature, req.SignerPubkey) {
		return nil, status.ErrInvalidSignature
	}

	owns, err := s.oracle.OwnsAsset(ctx, req.SignerPubkey, challenge.AssetRef)
	if err != nil {
		return nil, err
	}
	if !owns {
		return nil, status.ErrWalletDoesNotOwnMint
	}

	result, err := s.repo.Redeem(ctx, repository.RedeemParams{
		TicketID:       challenge.TicketID,
		VerificationID: req.VerificationID,
		VerifierPubkey: req.StaffID,
		SignerPubkey:   req.SignerPubkey,
		Location:       req.GateID,
		Meta: map[string]any{
			"challenge":     req.ChallengeToken,
			"signature":     req.Signature,
			"signer_pubkey": req.SignerPubkey,
			"gate_id":       req.GateID,
			"staff_id":      req.StaffID,
			"verified_at":   time.Now().UTC().Format(time.RFC3339),
		},
	})
	if err != nil {
		return nil, err
	}

	s.monitor.TrackRedemption(result.EventID)
	s.publish(result.EventID, map[string]any{
		"type":            "ticket_verified",
		"ticket_id":       result.TicketID,
		"verification_id": result.VerificationID,
		"gate_id":         req.GateID,
	})

	return &models.VerifyResponse{
		OK:             true,
		Message:        "verified_and_used",
		TicketID:       result.TicketID,
		VerificationID: result.VerificationID,
	}, nil
}

// publish fans a gate event out to the event's staff dashboard channel.
// Strictly best-effort.
func (s *GateService) publish(eventID string, message map[string]any) {
	if s.pubnub == nil || eventID == "" {
		return
	}

	channel := fmt.Sprintf("gate-%s", eventID)
	s.pubnub.Publish().
		Channel(channel).
		Message(message).
		Execute()
}
