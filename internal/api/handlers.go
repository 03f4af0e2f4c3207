package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/punchamoorthee/dealledger/internal/models"
)

const maxBodyBytes = 1 << 20

func (h *Handler) HealthCheckHandler(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) CreateDealHandler(w http.ResponseWriter, r *http.Request) {
	var req models.CreateDealRequest
	if !decodeBody(w, r, &req) {
		return
	}

	deal, err := h.service.CreateDeal(r.Context(), actorFrom(r.Context()), req)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	w.Header().Set("Location", fmt.Sprintf("/api/v1/deals/%d", deal.ID))
	respondWithJSON(w, http.StatusCreated, deal)
}

func (h *Handler) GetDealHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt64(w, r, "id")
	if !ok {
		return
	}

	deal, err := h.service.GetDeal(r.Context(), actorFrom(r.Context()), id)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, deal)
}

func (h *Handler) ListInvestmentsHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt64(w, r, "id")
	if !ok {
		return
	}

	invs, err := h.service.ListInvestments(r.Context(), actorFrom(r.Context()), id)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, invs)
}

func (h *Handler) AdvanceStageHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt64(w, r, "id")
	if !ok {
		return
	}
	var req models.StageRequest
	if !decodeBody(w, r, &req) {
		return
	}
	req.DealID = id

	resp, err := h.service.AdvanceStage(r.Context(), actorFrom(r.Context()), req)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, resp)
}

func (h *Handler) CancelDealHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt64(w, r, "id")
	if !ok {
		return
	}

	resp, err := h.service.CancelDeal(r.Context(), actorFrom(r.Context()), id)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, resp)
}

func (h *Handler) InvestHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt64(w, r, "id")
	if !ok {
		return
	}
	var req models.InvestRequest
	if !decodeBody(w, r, &req) {
		return
	}
	req.DealID = id
	req.IdempotencyKey = idempotencyKey(r, req.IdempotencyKey)

	resp, replayed, err := h.service.Invest(r.Context(), actorFrom(r.Context()), req)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	if replayed {
		w.Header().Set(replayHeader, "true")
		respondWithJSON(w, http.StatusOK, resp)
		return
	}
	respondWithJSON(w, http.StatusCreated, resp)
}

func (h *Handler) ReleasePayoutHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt64(w, r, "id")
	if !ok {
		return
	}
	var req models.ReleasePayoutRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.DealID != 0 && req.DealID != id {
		respondWithError(w, http.StatusBadRequest, "dealId does not match path")
		return
	}
	req.DealID = id
	req.IdempotencyKey = idempotencyKey(r, req.IdempotencyKey)

	resp, replayed, err := h.service.ReleasePayout(r.Context(), actorFrom(r.Context()), req)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	if replayed {
		w.Header().Set(replayHeader, "true")
	}
	respondWithJSON(w, http.StatusOK, resp)
}

func (h *Handler) AdjustWalletHandler(w http.ResponseWriter, r *http.Request) {
	var req models.WalletAdjustmentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	userID := mux.Vars(r)["userId"]
	if req.UserID != "" && req.UserID != userID {
		respondWithError(w, http.StatusBadRequest, "userId does not match path")
		return
	}
	req.UserID = userID
	req.IdempotencyKey = idempotencyKey(r, req.IdempotencyKey)

	resp, replayed, err := h.service.AdjustWallet(r.Context(), actorFrom(r.Context()), req)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	if replayed {
		w.Header().Set(replayHeader, "true")
	}
	respondWithJSON(w, http.StatusOK, resp)
}

func (h *Handler) BalanceHandler(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.Balance(r.Context(), actorFrom(r.Context()), mux.Vars(r)["id"])
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, resp)
}

func (h *Handler) GetApprovalHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r)
	if !ok {
		return
	}

	req, err := h.service.GetApproval(r.Context(), actorFrom(r.Context()), id)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, req)
}

func (h *Handler) ApproveHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r)
	if !ok {
		return
	}

	resp, err := h.service.Approve(r.Context(), actorFrom(r.Context()), id)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, resp)
}

func (h *Handler) RejectHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r)
	if !ok {
		return
	}

	resp, err := h.service.Reject(r.Context(), actorFrom(r.Context()), id)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, resp)
}

func (h *Handler) ScanAlertsHandler(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.ScanAlerts(r.Context(), actorFrom(r.Context()))
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, res)
}

func (h *Handler) ListAlertsHandler(w http.ResponseWriter, r *http.Request) {
	alerts, err := h.service.OpenAlerts(r.Context(), actorFrom(r.Context()))
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, alerts)
}

func (h *Handler) AuditTrailHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	entries, err := h.service.AuditTrail(r.Context(), actorFrom(r.Context()), vars["entityType"], vars["entityId"])
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, entries)
}

// decodeBody reads a JSON body into dst, writing a 400 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			respondWithError(w, http.StatusBadRequest, "Request body required")
			return false
		}
		respondWithError(w, http.StatusBadRequest, "Malformed JSON body")
		return false
	}
	return true
}

// idempotencyKey prefers the key in the body and falls back to the
// Idempotency-Key header.
func idempotencyKey(r *http.Request, fromBody string) string {
	if fromBody != "" {
		return fromBody
	}
	return r.Header.Get("Idempotency-Key")
}

func pathInt64(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)[name], 10, 64)
	if err != nil || id <= 0 {
		respondWithError(w, http.StatusBadRequest, "Invalid "+name)
		return 0, false
	}
	return id, true
}

func pathUUID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid id")
		return uuid.Nil, false
	}
	return id, true
}
