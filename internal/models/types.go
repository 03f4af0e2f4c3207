package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/punchamoorthee/dealledger/internal/domain"
)

// CreateDealRequest is the payload for opening a new deal in Funding.
type CreateDealRequest struct {
	Title             string     `json:"title"`
	FundingTarget     int64      `json:"fundingTarget"`
	ExpectedArrivalAt *time.Time `json:"expectedArrivalAt,omitempty"`
	MaturityAt        *time.Time `json:"maturityAt,omitempty"`
}

// StageRequest asks the lifecycle state machine for the next stage.
type StageRequest struct {
	DealID      int64         `json:"dealId"`
	TargetStage domain.Status `json:"targetStage"`
}

// StageResponse is returned after an accepted transition.
type StageResponse struct {
	ID     int64         `json:"id"`
	Status domain.Status `json:"status"`
}

// InvestRequest commits principal into a deal while it is Funding.
type InvestRequest struct {
	DealID         int64  `json:"dealId"`
	InvestorID     string `json:"investorId"`
	Amount         int64  `json:"amount"`
	IdempotencyKey string `json:"idempotencyKey"`
}

// InvestResponse is the canonical response for a committed investment.
type InvestResponse struct {
	Investment domain.Investment  `json:"investment"`
	Entry      domain.LedgerEntry `json:"entry"`
	Deal       StageResponse      `json:"deal"`
	Raised     int64              `json:"raisedAmount"`
}

// ReleasePayoutRequest is the payload for distributing a deal's proceeds.
type ReleasePayoutRequest struct {
	DealID         int64  `json:"dealId"`
	GrossAmount    int64  `json:"grossAmount"`
	IdempotencyKey string `json:"idempotencyKey"`
}

// PayoutResponse is the canonical response for a completed distribution.
type PayoutResponse struct {
	DealID             int64          `json:"dealId"`
	Reference          string         `json:"reference"`
	PerInvestorAmounts []domain.Share `json:"perInvestorAmounts"`
	TotalDistributed   int64          `json:"totalDistributed"`
}

// WalletAdjustmentRequest credits (positive) or debits (negative) a wallet.
type WalletAdjustmentRequest struct {
	UserID         string `json:"userId"`
	Amount         int64  `json:"amount"`
	Reason         string `json:"reason"`
	IdempotencyKey string `json:"idempotencyKey"`
}

// WalletAdjustmentResponse echoes the written entry and the new balance.
type WalletAdjustmentResponse struct {
	Entry   domain.LedgerEntry `json:"entry"`
	Balance int64              `json:"balance"`
}

// BalanceResponse is a derived projection over completed ledger entries.
type BalanceResponse struct {
	UserID  string               `json:"userId"`
	Balance int64                `json:"balance"`
	Entries []domain.LedgerEntry `json:"entries"`
}

// ApprovalRequiredResponse is returned with 409 when an action is parked.
type ApprovalRequiredResponse struct {
	Error     string    `json:"error"`
	RequestID uuid.UUID `json:"requestId"`
}

// ApprovalDecisionResponse reports the approval outcome and, for approvals,
// the replayed action's response.
type ApprovalDecisionResponse struct {
	Request domain.ApprovalRequest `json:"request"`
	Result  any                    `json:"result,omitempty"`
}

// ScanResult counts alert upserts from one scanner sweep.
type ScanResult struct {
	Raised    int `json:"raised"`
	Refreshed int `json:"refreshed"`
	Resolved  int `json:"resolved"`
}
