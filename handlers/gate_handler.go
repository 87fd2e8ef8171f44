package handlers

import (
	"net/http"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/core"

	"gate-service/internal/status"
	"gate-service/models"
	"gate-service/services"
)

type GateHandler struct {
	app         *pocketbase.PocketBase
	gateService *services.GateService
}

func NewGateHandler(app *pocketbase.PocketBase, gateService *services.GateService) *GateHandler {
	return &GateHandler{
		app:         app,
		gateService: gateService,
	}
}

// Scan handles phase 1: QR payload in, challenge out.
func (h *GateHandler) Scan(e *core.RequestEvent) error {
	var req models.ScanRequest
	if err := e.BindBody(&req); err != nil {
		return e.JSON(http.StatusBadRequest, map[string]any{
			"ok":    false,
			"error": "invalid_json",
		})
	}

	if req.QRString == "" {
		return e.JSON(http.StatusBadRequest, map[string]any{
			"ok":    false,
			"error": "missing_fields",
		})
	}

	resp, err := h.gateService.Scan(e.Request.Context(), req)
	if err != nil {
		return h.fail(e, err)
	}

	return e.JSON(http.StatusOK, resp)
}

// Verify handles phase 2: signed challenge in, redeemed ticket out.
func (h *GateHandler) Verify(e *core.RequestEvent) error {
	var req models.VerifyRequest
	if err := e.BindBody(&req); err != nil {
		return e.JSON(http.StatusBadRequest, map[string]any{
			"ok":    false,
			"error": "invalid_json",
		})
	}

	if req.ChallengeToken == "" || req.Signature == "" || req.SignerPubkey == "" {
		return e.JSON(http.StatusBadRequest, map[string]any{
			"ok":    false,
			"error": "missing_fields",
		})
	}

	resp, err := h.gateService.Verify(e.Request.Context(), req)
	if err != nil {
		return h.fail(e, err)
	}

	return e.JSON(http.StatusOK, resp)
}

// fail maps business errors to their wire code and status; anything
// unknown collapses to a generic server error.
func (h *GateHandler) fail(e *core.RequestEvent, err error) error {
	ge := status.FromError(err)

	body := map[string]any{
		"ok":    false,
		"error": ge.Code,
	}
	if ge.TicketState != "" {
		body["status"] = ge.TicketState
	}

	return e.JSON(ge.Status, body)
}
