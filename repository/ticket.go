// Package repository provides transactional access to tickets and gate
// verification records.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/tools/types"

	"gate-service/internal/status"
	"gate-service/models"
)

// RedeemParams carries everything the atomic redeem transaction needs.
// VerificationID is optional: when set, that record is finalized; when
// empty, a fresh VERIFIED record is created (verify-without-prior-scan).
type RedeemParams struct {
	TicketID       string
	VerificationID string
	VerifierPubkey string
	SignerPubkey   string
	Location       string
	Meta           map[string]any
}

type RedeemResult struct {
	TicketID       string
	EventID        string
	VerificationID string
}

// TicketRepository is the gate protocol's view of the datastore. Redeem is
// the only mutation of ticket state and must serialize concurrent attempts
// to exactly one winner.
type TicketRepository interface {
	FindByTicketID(ctx context.Context, ticketID string) (*models.Ticket, error)
	FindByAssetRef(ctx context.Context, assetRef string) (*models.Ticket, error)
	CreateVerification(ctx context.Context, v *models.GateVerification) (string, error)
	Redeem(ctx context.Context, params RedeemParams) (*RedeemResult, error)
}

// PocketBaseRepository implements TicketRepository on the app's database.
type PocketBaseRepository struct {
	app core.App

	// asset refs at or below this length are treated as prefixes
	prefixThreshold int
}

func NewPocketBaseRepository(app core.App, prefixThreshold int) *PocketBaseRepository {
	return &PocketBaseRepository{
		app:             app,
		prefixThreshold: prefixThreshold,
	}
}

type ticketRow struct {
	TicketID     string         `db:"ticket_id"`
	EventID      string         `db:"event_id"`
	MintPubkey   string         `db:"mint_pubkey"`
	TicketNumber int64          `db:"ticket_number"`
	Status       string         `db:"status"`
	Created      types.DateTime `db:"created"`
	UsedAt       types.DateTime `db:"used_at"`
}

var ticketColumns = []string{"ticket_id", "event_id", "mint_pubkey", "ticket_number", "status", "created", "used_at"}

func (row *ticketRow) toModel() *models.Ticket {
	ticket := &models.Ticket{
		TicketID:     row.TicketID,
		EventID:      row.EventID,
		MintPubkey:   row.MintPubkey,
		TicketNumber: row.TicketNumber,
		Status:       row.Status,
		CreatedAt:    row.Created.Time(),
	}
	if !row.UsedAt.IsZero() {
		usedAt := row.UsedAt.Time()
		ticket.UsedAt = &usedAt
	}
	return ticket
}

func (r *PocketBaseRepository) FindByTicketID(ctx context.Context, ticketID string) (*models.Ticket, error) {
	var row ticketRow
	err := r.app.DB().
		Select(ticketColumns...).
		From("tickets").
		Where(dbx.HashExp{"ticket_id": ticketID}).
		Limit(1).
		One(&row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, status.ErrTicketNotFound
	}
	if err != nil {
		return nil, err
	}
	return row.toModel(), nil
}

// FindByAssetRef resolves a ticket by its asset pubkey. Short values are
// treated as prefixes (the QR generator embeds a truncated pubkey to keep
// payloads small); a prefix matching more than one ticket fails closed.
func (r *PocketBaseRepository) FindByAssetRef(ctx context.Context, assetRef string) (*models.Ticket, error) {
	if len(assetRef) <= r.prefixThreshold {
		var rows []ticketRow
		err := r.app.DB().
			Select(ticketColumns...).
			From("tickets").
			Where(dbx.Like("mint_pubkey", assetRef).Match(false, true)).
			Limit(2).
			All(&rows)
		if err != nil {
			return nil, err
		}
		switch len(rows) {
		case 0:
			return nil, status.ErrTicketNotFound
		case 1:
			return rows[0].toModel(), nil
		default:
			return nil, status.ErrAmbiguousAssetRef
		}
	}

	var row ticketRow
	err := r.app.DB().
		Select(ticketColumns...).
		From("tickets").
		Where(dbx.HashExp{"mint_pubkey": assetRef}).
		Limit(1).
		One(&row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, status.ErrTicketNotFound
	}
	if err != nil {
		return nil, err
	}
	return row.toModel(), nil
}

func (r *PocketBaseRepository) CreateVerification(ctx context.Context, v *models.GateVerification) (string, error) {
	record, err := newVerificationRecord(r.app, v)
	if err != nil {
		return "", err
	}
	if err := r.app.Save(record); err != nil {
		return "", err
	}
	return record.Id, nil
}

// Redeem atomically flips the ticket ACTIVE -> USED and finalizes the
// verification record in one transaction. The conditional UPDATE is a
// single statement, so under concurrent attempts exactly one observes a
// row count of 1; everyone else gets ErrAlreadyRedeemed.
func (r *PocketBaseRepository) Redeem(ctx context.Context, params RedeemParams) (*RedeemResult, error) {
	var result RedeemResult

	err := r.app.RunInTransaction(func(txApp core.App) error {
		res, err := txApp.DB().
			Update(
				"tickets",
				dbx.Params{"status": models.TicketStatusUsed, "used_at": types.NowDateTime()},
				dbx.HashExp{"ticket_id": params.TicketID, "status": models.TicketStatusActive},
			).
			Execute()
		if err != nil {
			return err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return status.ErrAlreadyRedeemed
		}

		var eventID string
		err = txApp.DB().
			Select("event_id").
			From("tickets").
			Where(dbx.HashExp{"ticket_id": params.TicketID}).
			Limit(1).
			Row(&eventID)
		if err != nil {
			return err
		}

		verificationID, err := finalizeVerification(txApp, params, eventID)
		if err != nil {
			return err
		}

		result = RedeemResult{
			TicketID:       params.TicketID,
			EventID:        eventID,
			VerificationID: verificationID,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &result, nil
}

// finalizeVerification marks the supplied verification record VERIFIED or
// creates a fresh one. Existing meta is preserved and overlaid with the
// verify-phase fields, never replaced.
func finalizeVerification(txApp core.App, params RedeemParams, eventID string) (string, error) {
	if params.VerificationID == "" {
		now := time.Now()
		verification := &models.GateVerification{
			EventID:        eventID,
			TicketID:       params.TicketID,
			VerifierPubkey: params.VerifierPubkey,
			Status:         models.VerificationStatusVerified,
			VerifiedAt:     &now,
			Location:       params.Location,
			SignerPubkey:   params.SignerPubkey,
			Meta:           params.Meta,
		}
		record, err := newVerificationRecord(txApp, verification)
		if err != nil {
			return "", err
		}
		if err := txApp.Save(record); err != nil {
			return "", err
		}
		return record.Id, nil
	}

	record, err := txApp.FindRecordById("gate_verifications", params.VerificationID)
	if err != nil {
		return "", status.ErrVerificationNotFound
	}
	if record.GetString("ticket_id") != params.TicketID {
		return "", status.ErrVerificationTicketMismatch
	}

	meta := map[string]any{}
	if err := record.UnmarshalJSONField("meta", &meta); err != nil {
		meta = map[string]any{}
	}
	for k, v := range params.Meta {
		meta[k] = v
	}

	record.Set("status", models.VerificationStatusVerified)
	record.Set("verified_at", types.NowDateTime())
	record.Set("signer_pubkey", params.SignerPubkey)
	record.Set("meta", meta)
	if params.VerifierPubkey != "" {
		record.Set("verifier_pubkey", params.VerifierPubkey)
	}
	if params.Location != "" {
		record.Set("location", params.Location)
	}

	if err := txApp.Save(record); err != nil {
		return "", err
	}
	return record.Id, nil
}

func newVerificationRecord(app core.App, v *models.GateVerification) (*core.Record, error) {
	collection, err := app.FindCollectionByNameOrId("gate_verifications")
	if err != nil {
		return nil, err
	}

	record := core.NewRecord(collection)
	record.Set("event_id", v.EventID)
	record.Set("ticket_id", v.TicketID)
	record.Set("verifier_pubkey", v.VerifierPubkey)
	record.Set("status", v.Status)
	record.Set("location", v.Location)
	record.Set("signer_pubkey", v.SignerPubkey)
	record.Set("meta", v.Meta)
	if v.VerifiedAt != nil {
		record.Set("verified_at", *v.VerifiedAt)
	}
	return record, nil
}
