package api

import (
	"context"

	"github.com/google/uuid"
	"github.com/punchamoorthee/dealledger/internal/domain"
	"github.com/punchamoorthee/dealledger/internal/models"
	"github.com/stretchr/testify/mock"
)

type mockService struct {
	mock.Mock
}

var _ SettlementService = (*mockService)(nil)

func (m *mockService) CreateDeal(ctx context.Context, actor domain.Actor, req models.CreateDealRequest) (domain.Deal, error) {
	args := m.Called(ctx, actor, req)
	return args.Get(0).(domain.Deal), args.Error(1)
}

func (m *mockService) GetDeal(ctx context.Context, actor domain.Actor, id int64) (domain.Deal, error) {
	args := m.Called(ctx, actor, id)
	return args.Get(0).(domain.Deal), args.Error(1)
}

func (m *mockService) ListInvestments(ctx context.Context, actor domain.Actor, dealID int64) ([]domain.Investment, error) {
	args := m.Called(ctx, actor, dealID)
	return args.Get(0).([]domain.Investment), args.Error(1)
}

func (m *mockService) AdvanceStage(ctx context.Context, actor domain.Actor, req models.StageRequest) (models.StageResponse, error) {
	args := m.Called(ctx, actor, req)
	return args.Get(0).(models.StageResponse), args.Error(1)
}

func (m *mockService) CancelDeal(ctx context.Context, actor domain.Actor, dealID int64) (models.StageResponse, error) {
	args := m.Called(ctx, actor, dealID)
	return args.Get(0).(models.StageResponse), args.Error(1)
}

func (m *mockService) Invest(ctx context.Context, actor domain.Actor, req models.InvestRequest) (models.InvestResponse, bool, error) {
	args := m.Called(ctx, actor, req)
	return args.Get(0).(models.InvestResponse), args.Bool(1), args.Error(2)
}

func (m *mockService) ReleasePayout(ctx context.Context, actor domain.Actor, req models.ReleasePayoutRequest) (models.PayoutResponse, bool, error) {
	args := m.Called(ctx, actor, req)
	return args.Get(0).(models.PayoutResponse), args.Bool(1), args.Error(2)
}

func (m *mockService) AdjustWallet(ctx context.Context, actor domain.Actor, req models.WalletAdjustmentRequest) (models.WalletAdjustmentResponse, bool, error) {
	args := m.Called(ctx, actor, req)
	return args.Get(0).(models.WalletAdjustmentResponse), args.Bool(1), args.Error(2)
}

func (m *mockService) Balance(ctx context.Context, actor domain.Actor, userID string) (models.BalanceResponse, error) {
	args := m.Called(ctx, actor, userID)
	return args.Get(0).(models.BalanceResponse), args.Error(1)
}

func (m *mockService) GetApproval(ctx context.Context, actor domain.Actor, id uuid.UUID) (domain.ApprovalRequest, error) {
	args := m.Called(ctx, actor, id)
	return args.Get(0).(domain.ApprovalRequest), args.Error(1)
}

func (m *mockService) Approve(ctx context.Context, actor domain.Actor, id uuid.UUID) (models.ApprovalDecisionResponse, error) {
	args := m.Called(ctx, actor, id)
	return args.Get(0).(models.ApprovalDecisionResponse), args.Error(1)
}

func (m *mockService) Reject(ctx context.Context, actor domain.Actor, id uuid.UUID) (models.ApprovalDecisionResponse, error) {
	args := m.Called(ctx, actor, id)
	return args.Get(0).(models.ApprovalDecisionResponse), args.Error(1)
}

func (m *mockService) ScanAlerts(ctx context.Context, actor domain.Actor) (models.ScanResult, error) {
	args := m.Called(ctx, actor)
	return args.Get(0).(models.ScanResult), args.Error(1)
}

func (m *mockService) OpenAlerts(ctx context.Context, actor domain.Actor) ([]domain.SystemAlert, error) {
	args := m.Called(ctx, actor)
	return args.Get(0).([]domain.SystemAlert), args.Error(1)
}

func (m *mockService) AuditTrail(ctx context.Context, actor domain.Actor, entityType, entityID string) ([]domain.AuditLogEntry, error) {
	args := m.Called(ctx, actor, entityType, entityID)
	return args.Get(0).([]domain.AuditLogEntry), args.Error(1)
}
