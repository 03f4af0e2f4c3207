package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/punchamoorthee/dealledger/internal/domain"
)

// NewRouter wires the public routes. Everything under /api/v1 requires the
// service token and an actor identity.
func NewRouter(h *Handler, authToken string, logger *slog.Logger) http.Handler {
	r := mux.NewRouter()
	r.Use(middleware.RequestID, RequestLogger(logger), middleware.Recoverer, Instrument)

	r.Handle("/metrics", promhttp.Handler())
	r.HandleFunc("/health", h.HealthCheckHandler).Methods(http.MethodGet)

	v1 := r.PathPrefix("/api/v1").Subrouter()
	v1.Use(Authenticate(authToken))

	admin := RequireRole(domain.RoleAdmin)
	readers := RequireRole(domain.RoleAdmin, domain.RoleAuditor)
	investors := RequireRole(domain.RoleAdmin, domain.RoleInvestor)
	wallets := RequireRole(domain.RoleAdmin, domain.RoleAuditor, domain.RoleInvestor)

	v1.Handle("/deals", admin(http.HandlerFunc(h.CreateDealHandler))).Methods(http.MethodPost)
	v1.Handle("/deals/{id}", readers(http.HandlerFunc(h.GetDealHandler))).Methods(http.MethodGet)
	v1.Handle("/deals/{id}/investments", readers(http.HandlerFunc(h.ListInvestmentsHandler))).Methods(http.MethodGet)
	v1.Handle("/deals/{id}/investments", investors(http.HandlerFunc(h.InvestHandler))).Methods(http.MethodPost)
	v1.Handle("/deals/{id}/stage", admin(http.HandlerFunc(h.AdvanceStageHandler))).Methods(http.MethodPost)
	v1.Handle("/deals/{id}/cancel", admin(http.HandlerFunc(h.CancelDealHandler))).Methods(http.MethodPost)
	v1.Handle("/deals/{id}/payout", admin(http.HandlerFunc(h.ReleasePayoutHandler))).Methods(http.MethodPost)

	v1.Handle("/wallets/{userId}/adjustments", admin(http.HandlerFunc(h.AdjustWalletHandler))).Methods(http.MethodPost)
	v1.Handle("/users/{id}/balance", wallets(http.HandlerFunc(h.BalanceHandler))).Methods(http.MethodGet)

	v1.Handle("/approvals/{id}", readers(http.HandlerFunc(h.GetApprovalHandler))).Methods(http.MethodGet)
	v1.Handle("/approvals/{id}/approve", admin(http.HandlerFunc(h.ApproveHandler))).Methods(http.MethodPost)
	v1.Handle("/approvals/{id}/reject", admin(http.HandlerFunc(h.RejectHandler))).Methods(http.MethodPost)

	v1.Handle("/admin/alerts/scan", admin(http.HandlerFunc(h.ScanAlertsHandler))).Methods(http.MethodPost)
	v1.Handle("/alerts", readers(http.HandlerFunc(h.ListAlertsHandler))).Methods(http.MethodGet)
	v1.Handle("/audit/{entityType}/{entityId}", readers(http.HandlerFunc(h.AuditTrailHandler))).Methods(http.MethodGet)

	return r
}
