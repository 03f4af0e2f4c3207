package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/punchamoorthee/dealledger/internal/domain"
	"github.com/punchamoorthee/dealledger/internal/models"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_http_requests_total",
		Help: "Total HTTP requests processed, labeled by status code",
	}, []string{"method", "endpoint", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ledger_http_request_duration_seconds",
		Help:    "Latency distribution of HTTP requests",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}, []string{"method", "endpoint"})
)

// SettlementService is the surface the HTTP layer drives.
type SettlementService interface {
	CreateDeal(ctx context.Context, actor domain.Actor, req models.CreateDealRequest) (domain.Deal, error)
	GetDeal(ctx context.Context, actor domain.Actor, id int64) (domain.Deal, error)
	ListInvestments(ctx context.Context, actor domain.Actor, dealID int64) ([]domain.Investment, error)
	AdvanceStage(ctx context.Context, actor domain.Actor, req models.StageRequest) (models.StageResponse, error)
	CancelDeal(ctx context.Context, actor domain.Actor, dealID int64) (models.StageResponse, error)
	Invest(ctx context.Context, actor domain.Actor, req models.InvestRequest) (models.InvestResponse, bool, error)
	ReleasePayout(ctx context.Context, actor domain.Actor, req models.ReleasePayoutRequest) (models.PayoutResponse, bool, error)
	AdjustWallet(ctx context.Context, actor domain.Actor, req models.WalletAdjustmentRequest) (models.WalletAdjustmentResponse, bool, error)
	Balance(ctx context.Context, actor domain.Actor, userID string) (models.BalanceResponse, error)
	GetApproval(ctx context.Context, actor domain.Actor, id uuid.UUID) (domain.ApprovalRequest, error)
	Approve(ctx context.Context, actor domain.Actor, id uuid.UUID) (models.ApprovalDecisionResponse, error)
	Reject(ctx context.Context, actor domain.Actor, id uuid.UUID) (models.ApprovalDecisionResponse, error)
	ScanAlerts(ctx context.Context, actor domain.Actor) (models.ScanResult, error)
	OpenAlerts(ctx context.Context, actor domain.Actor) ([]domain.SystemAlert, error)
	AuditTrail(ctx context.Context, actor domain.Actor, entityType, entityID string) ([]domain.AuditLogEntry, error)
}

type Handler struct {
	service SettlementService
	logger  *slog.Logger
}

func NewHandler(svc SettlementService, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: svc, logger: logger}
}

// replayHeader marks a response served from a stored idempotent result.
const replayHeader = "Idempotent-Replayed"

// respondServiceError maps the domain taxonomy to a status code. Anything
// unrecognised is logged and hidden behind a 500.
func (h *Handler) respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var approvalErr *domain.ApprovalRequiredError
	var transitionErr *domain.TransitionError

	switch {
	case errors.As(err, &approvalErr):
		respondWithJSON(w, http.StatusConflict, models.ApprovalRequiredResponse{
			Error:     "Approval required",
			RequestID: approvalErr.RequestID,
		})
	case errors.As(err, &transitionErr):
		respondWithError(w, http.StatusBadRequest, transitionErr.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		respondWithError(w, http.StatusUnauthorized, "Unauthorized")
	case errors.Is(err, domain.ErrSelfApproval):
		respondWithError(w, http.StatusForbidden, "Requester cannot approve or reject their own request")
	case errors.Is(err, domain.ErrForbidden):
		respondWithError(w, http.StatusForbidden, "Forbidden")
	case errors.Is(err, domain.ErrNotFound):
		respondWithError(w, http.StatusNotFound, "Not found")
	case errors.Is(err, domain.ErrConflict):
		respondWithError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrNotPending):
		respondWithError(w, http.StatusBadRequest, "Not pending")
	case errors.Is(err, domain.ErrAlreadySettled),
		errors.Is(err, domain.ErrDealNotReleased),
		errors.Is(err, domain.ErrNoInvestments),
		errors.Is(err, domain.ErrInsufficientFunds),
		errors.Is(err, domain.ErrFundingExceeded),
		errors.Is(err, domain.ErrValidation):
		respondWithError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error("request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Any("error", err))
		respondWithError(w, http.StatusInternalServerError, "Internal Server Error")
	}
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload != nil {
		json.NewEncoder(w).Encode(payload)
	}
}
