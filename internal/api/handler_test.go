package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/punchamoorthee/dealledger/internal/domain"
	"github.com/punchamoorthee/dealledger/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testToken = "test-token"

var (
	admin    = domain.Actor{ID: "admin-1", Role: domain.RoleAdmin}
	auditor  = domain.Actor{ID: "auditor-1", Role: domain.RoleAuditor}
	investor = domain.Actor{ID: "alice", Role: domain.RoleInvestor}
)

func newTestServer(t *testing.T) (*mockService, *httptest.Server) {
	t.Helper()
	svc := new(mockService)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := httptest.NewServer(NewRouter(NewHandler(svc, logger), testToken, logger))
	t.Cleanup(func() {
		srv.Close()
		svc.AssertExpectations(t)
	})
	return svc, srv
}

func do(t *testing.T, srv *httptest.Server, actor domain.Actor, method, path, body string) *http.Response {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, srv.URL+path, rdr)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+testToken)
	req.Header.Set("X-Actor-ID", actor.ID)
	req.Header.Set("X-Actor-Role", string(actor.Role))
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestHealthNeedsNoAuth(t *testing.T) {
	_, srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, map[string]string{"status": "ok"}, decode[map[string]string](t, resp))
}

func TestAuthentication(t *testing.T) {
	_, srv := newTestServer(t)

	tests := []struct {
		name    string
		headers map[string]string
	}{
		{"no token", map[string]string{"X-Actor-ID": "a", "X-Actor-Role": "admin"}},
		{"wrong token", map[string]string{"Authorization": "Bearer nope", "X-Actor-ID": "a", "X-Actor-Role": "admin"}},
		{"missing actor", map[string]string{"Authorization": "Bearer " + testToken, "X-Actor-Role": "admin"}},
		{"unknown role", map[string]string{"Authorization": "Bearer " + testToken, "X-Actor-ID": "a", "X-Actor-Role": "root"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/v1/alerts", nil)
			require.NoError(t, err)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		})
	}
}

func TestRoleEnforcedBeforeService(t *testing.T) {
	_, srv := newTestServer(t)

	resp := do(t, srv, auditor, http.MethodPost, "/api/v1/deals/1/payout", `{"grossAmount":10,"idempotencyKey":"k"}`)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = do(t, srv, investor, http.MethodGet, "/api/v1/deals/1", "")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestCreateDeal(t *testing.T) {
	svc, srv := newTestServer(t)

	req := models.CreateDealRequest{Title: "Coffee lot 7", FundingTarget: 100_000}
	svc.On("CreateDeal", mock.Anything, admin, req).
		Return(domain.Deal{ID: 42, Title: req.Title, FundingTarget: req.FundingTarget, Status: domain.StatusFunding}, nil)

	resp := do(t, srv, admin, http.MethodPost, "/api/v1/deals", `{"title":"Coffee lot 7","fundingTarget":100000}`)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "/api/v1/deals/42", resp.Header.Get("Location"))

	body := decode[map[string]any](t, resp)
	assert.Equal(t, "Funding", body["status"])
	assert.Equal(t, float64(100_000), body["fundingTarget"])
	assert.Contains(t, body, "raisedAmount")
	assert.Contains(t, body, "createdAt")
	assert.NotContains(t, body, "funding_target")
}

func TestAdvanceStage(t *testing.T) {
	t.Run("accepted", func(t *testing.T) {
		svc, srv := newTestServer(t)
		svc.On("AdvanceStage", mock.Anything, admin, models.StageRequest{DealID: 7, TargetStage: domain.StatusInTransit}).
			Return(models.StageResponse{ID: 7, Status: domain.StatusInTransit}, nil)

		resp := do(t, srv, admin, http.MethodPost, "/api/v1/deals/7/stage", `{"targetStage":"InTransit"}`)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, map[string]any{"id": float64(7), "status": "InTransit"}, decode[map[string]any](t, resp))
	})

	t.Run("invalid transition", func(t *testing.T) {
		svc, srv := newTestServer(t)
		svc.On("AdvanceStage", mock.Anything, admin, models.StageRequest{DealID: 7, TargetStage: domain.StatusArrived}).
			Return(models.StageResponse{}, &domain.TransitionError{From: domain.StatusFunding, To: domain.StatusArrived})

		resp := do(t, srv, admin, http.MethodPost, "/api/v1/deals/7/stage", `{"targetStage":"Arrived"}`)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "Invalid transition: Funding → Arrived", decode[map[string]string](t, resp)["error"])
	})

	t.Run("bad path id", func(t *testing.T) {
		_, srv := newTestServer(t)
		resp := do(t, srv, admin, http.MethodPost, "/api/v1/deals/abc/stage", `{"targetStage":"Arrived"}`)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestReleasePayout(t *testing.T) {
	payout := models.PayoutResponse{
		DealID:    3,
		Reference: "payout:01J",
		PerInvestorAmounts: []domain.Share{
			{InvestorID: "carol", Principal: 650, Amount: 650},
			{InvestorID: "bob", Principal: 250, Amount: 250},
			{InvestorID: "alice", Principal: 100, Amount: 99},
		},
		TotalDistributed: 999,
	}
	want := models.ReleasePayoutRequest{DealID: 3, GrossAmount: 999, IdempotencyKey: "k1"}

	t.Run("first call", func(t *testing.T) {
		svc, srv := newTestServer(t)
		svc.On("ReleasePayout", mock.Anything, admin, want).Return(payout, false, nil)

		resp := do(t, srv, admin, http.MethodPost, "/api/v1/deals/3/payout", `{"grossAmount":999,"idempotencyKey":"k1"}`)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Empty(t, resp.Header.Get(replayHeader))
		got := decode[models.PayoutResponse](t, resp)
		assert.Equal(t, payout, got)
	})

	t.Run("replay is marked", func(t *testing.T) {
		svc, srv := newTestServer(t)
		svc.On("ReleasePayout", mock.Anything, admin, want).Return(payout, true, nil)

		resp := do(t, srv, admin, http.MethodPost, "/api/v1/deals/3/payout", `{"grossAmount":999,"idempotencyKey":"k1"}`)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "true", resp.Header.Get(replayHeader))
	})

	t.Run("key from header", func(t *testing.T) {
		svc, srv := newTestServer(t)
		svc.On("ReleasePayout", mock.Anything, admin, want).Return(payout, false, nil)

		req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/v1/deals/3/payout", strings.NewReader(`{"grossAmount":999}`))
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+testToken)
		req.Header.Set("X-Actor-ID", admin.ID)
		req.Header.Set("X-Actor-Role", "admin")
		req.Header.Set("Idempotency-Key", "k1")
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("approval required", func(t *testing.T) {
		svc, srv := newTestServer(t)
		id := uuid.New()
		svc.On("ReleasePayout", mock.Anything, admin, want).
			Return(models.PayoutResponse{}, false, &domain.ApprovalRequiredError{RequestID: id})

		resp := do(t, srv, admin, http.MethodPost, "/api/v1/deals/3/payout", `{"grossAmount":999,"idempotencyKey":"k1"}`)
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
		got := decode[models.ApprovalRequiredResponse](t, resp)
		assert.Equal(t, id, got.RequestID)
	})

	t.Run("mismatched deal id", func(t *testing.T) {
		_, srv := newTestServer(t)
		resp := do(t, srv, admin, http.MethodPost, "/api/v1/deals/3/payout", `{"dealId":4,"grossAmount":999,"idempotencyKey":"k1"}`)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("malformed body", func(t *testing.T) {
		_, srv := newTestServer(t)
		resp := do(t, srv, admin, http.MethodPost, "/api/v1/deals/3/payout", `{"grossAmount":`)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "Malformed JSON body", decode[map[string]string](t, resp)["error"])
	})
}

func TestInvestStatusCodes(t *testing.T) {
	req := models.InvestRequest{DealID: 5, InvestorID: "alice", Amount: 100, IdempotencyKey: "inv-1"}
	body := `{"investorId":"alice","amount":100,"idempotencyKey":"inv-1"}`

	t.Run("created", func(t *testing.T) {
		svc, srv := newTestServer(t)
		svc.On("Invest", mock.Anything, investor, req).Return(models.InvestResponse{Raised: 100}, false, nil)
		resp := do(t, srv, investor, http.MethodPost, "/api/v1/deals/5/investments", body)
		assert.Equal(t, http.StatusCreated, resp.StatusCode)
	})

	t.Run("replayed", func(t *testing.T) {
		svc, srv := newTestServer(t)
		svc.On("Invest", mock.Anything, investor, req).Return(models.InvestResponse{Raised: 100}, true, nil)
		resp := do(t, srv, investor, http.MethodPost, "/api/v1/deals/5/investments", body)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "true", resp.Header.Get(replayHeader))
	})
}

func TestServiceErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		msg    string
	}{
		{"not found", domain.ErrNotFound, http.StatusNotFound, "Not found"},
		{"key reuse", domain.Conflict(domain.ReasonKeyReuse), http.StatusConflict, "conflict: key reuse with different request"},
		{"in progress", domain.Conflict(domain.ReasonInProgress), http.StatusConflict, "conflict: already in progress"},
		{"already settled", domain.ErrAlreadySettled, http.StatusBadRequest, "deal already settled"},
		{"not released", fmt.Errorf("%w: deal 3 is Arrived", domain.ErrDealNotReleased), http.StatusBadRequest, "deal not released: deal 3 is Arrived"},
		{"no investments", domain.ErrNoInvestments, http.StatusBadRequest, "deal has no investments"},
		{"validation", domain.Validation("grossAmount", "must be positive"), http.StatusBadRequest, "grossAmount: must be positive"},
		{"forbidden", domain.ErrForbidden, http.StatusForbidden, "Forbidden"},
		{"internal", errors.New("pool exhausted at 10.0.0.3"), http.StatusInternalServerError, "Internal Server Error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, srv := newTestServer(t)
			svc.On("ReleasePayout", mock.Anything, admin, mock.Anything).Return(models.PayoutResponse{}, false, tt.err)

			resp := do(t, srv, admin, http.MethodPost, "/api/v1/deals/3/payout", `{"grossAmount":1,"idempotencyKey":"k"}`)
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Equal(t, tt.msg, decode[map[string]string](t, resp)["error"])
		})
	}
}

func TestApprovalDecisions(t *testing.T) {
	id := uuid.New()

	t.Run("self approval", func(t *testing.T) {
		svc, srv := newTestServer(t)
		svc.On("Approve", mock.Anything, admin, id).Return(models.ApprovalDecisionResponse{}, domain.ErrSelfApproval)

		resp := do(t, srv, admin, http.MethodPost, "/api/v1/approvals/"+id.String()+"/approve", "")
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("not pending", func(t *testing.T) {
		svc, srv := newTestServer(t)
		svc.On("Reject", mock.Anything, admin, id).Return(models.ApprovalDecisionResponse{}, domain.ErrNotPending)

		resp := do(t, srv, admin, http.MethodPost, "/api/v1/approvals/"+id.String()+"/reject", "")
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "Not pending", decode[map[string]string](t, resp)["error"])
	})

	t.Run("bad id", func(t *testing.T) {
		_, srv := newTestServer(t)
		resp := do(t, srv, admin, http.MethodPost, "/api/v1/approvals/not-a-uuid/approve", "")
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestReadEndpoints(t *testing.T) {
	svc, srv := newTestServer(t)

	svc.On("OpenAlerts", mock.Anything, auditor).Return([]domain.SystemAlert{{Key: "kyc_stale:alice", Type: "kyc_stale"}}, nil)
	svc.On("AuditTrail", mock.Anything, auditor, "deal", "9").Return([]domain.AuditLogEntry{{ID: 1, Action: "deal.created"}}, nil)
	svc.On("Balance", mock.Anything, auditor, "alice").Return(models.BalanceResponse{UserID: "alice", Balance: 1200}, nil)

	resp := do(t, srv, auditor, http.MethodGet, "/api/v1/alerts", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]domain.SystemAlert](t, resp), 1)

	resp = do(t, srv, auditor, http.MethodGet, "/api/v1/audit/deal/9", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "deal.created", decode[[]domain.AuditLogEntry](t, resp)[0].Action)

	resp = do(t, srv, auditor, http.MethodGet, "/api/v1/users/alice/balance", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int64(1200), decode[models.BalanceResponse](t, resp).Balance)
}

func TestScanAlerts(t *testing.T) {
	svc, srv := newTestServer(t)
	svc.On("ScanAlerts", mock.Anything, admin).Return(models.ScanResult{Raised: 2, Refreshed: 1, Resolved: 1}, nil)

	resp := do(t, srv, admin, http.MethodPost, "/api/v1/admin/alerts/scan", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, models.ScanResult{Raised: 2, Refreshed: 1, Resolved: 1}, decode[models.ScanResult](t, resp))
}
