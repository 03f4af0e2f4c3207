package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Role is the coarse permission level supplied by the identity collaborator.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleAuditor  Role = "auditor"
	RoleInvestor Role = "investor"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleAuditor, RoleInvestor:
		return true
	}
	return false
}

// Actor is the authenticated caller of a core operation.
type Actor struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
}

// Deal is a commodity shipment raising pooled capital.
// Status is only ever changed through the lifecycle state machine.
type Deal struct {
	ID                int64      `json:"id"`
	Title             string     `json:"title"`
	FundingTarget     int64      `json:"fundingTarget"`
	RaisedAmount      int64      `json:"raisedAmount"`
	Status            Status     `json:"status"`
	ExpectedArrivalAt *time.Time `json:"expectedArrivalAt,omitempty"`
	MaturityAt        *time.Time `json:"maturityAt,omitempty"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`
}

// Investment is one commitment of principal by an investor into a deal.
type Investment struct {
	ID         int64     `json:"id"`
	DealID     int64     `json:"dealId"`
	InvestorID string    `json:"investorId"`
	Principal  int64     `json:"principal"`
	Settled    bool      `json:"settled"`
	CreatedAt  time.Time `json:"createdAt"`
}

type EntryKind string

const (
	KindDeposit    EntryKind = "deposit"
	KindWithdrawal EntryKind = "withdrawal"
	KindInvestment EntryKind = "investment"
	KindPayout     EntryKind = "payout"
)

type EntryStatus string

const (
	EntryPending   EntryStatus = "pending"
	EntryCompleted EntryStatus = "completed"
	EntryFailed    EntryStatus = "failed"
)

// LedgerEntry records one monetary movement for a user.
// Amount is signed: deposits and payouts credit the wallet, withdrawals and
// investments debit it. Balances are the sum of completed entries.
type LedgerEntry struct {
	ID        int64       `json:"id"`
	UserID    string      `json:"userId"`
	DealID    *int64      `json:"dealId,omitempty"`
	Kind      EntryKind   `json:"kind"`
	Amount    int64       `json:"amount"`
	Status    EntryStatus `json:"status"`
	Reference string      `json:"reference"`
	CreatedAt time.Time   `json:"createdAt"`
}

type IdempotencyStatus string

const (
	IdempotencyInProgress IdempotencyStatus = "in_progress"
	IdempotencyCompleted  IdempotencyStatus = "completed"
	IdempotencyFailed     IdempotencyStatus = "failed"
)

// IdempotencyRecord holds the state of a request key for exactly-once delivery.
type IdempotencyRecord struct {
	ActorID     string            `json:"actorId"`
	Scope       string            `json:"scope"`
	Key         string            `json:"key"`
	RequestHash string            `json:"requestHash"`
	Status      IdempotencyStatus `json:"status"`
	Response    json.RawMessage   `json:"response,omitempty"`
	LastError   string            `json:"lastError,omitempty"`
	CreatedAt   time.Time         `json:"createdAt"`
	UpdatedAt   time.Time         `json:"updatedAt"`
}

type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

// Actions that can be held behind the two-person approval gate.
const (
	ActionReleasePayout    = "release_payout"
	ActionWalletAdjustment = "wallet_adjustment"
)

// ApprovalRequest parks a high-value action until a second admin signs off.
type ApprovalRequest struct {
	ID             uuid.UUID       `json:"id"`
	Action         string          `json:"action"`
	Scope          string          `json:"scope"`
	Payload        json.RawMessage `json:"payload"`
	RequestHash    string          `json:"-"`
	IdempotencyKey string          `json:"idempotencyKey"`
	Magnitude      int64           `json:"magnitude"`
	Status         ApprovalStatus  `json:"status"`
	RequestedBy    string          `json:"requestedBy"`
	ApprovedBy     *string         `json:"approvedBy,omitempty"`
	RejectedBy     *string         `json:"rejectedBy,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
	ResolvedAt     *time.Time      `json:"resolvedAt,omitempty"`
}

// AuditLogEntry is written once per committed state change and never updated.
type AuditLogEntry struct {
	ID         int64           `json:"id"`
	ActorID    string          `json:"actorId"`
	Action     string          `json:"action"`
	EntityType string          `json:"entityType"`
	EntityID   string          `json:"entityId"`
	Changes    json.RawMessage `json:"changes"`
	CreatedAt  time.Time       `json:"createdAt"`
}

type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// SystemAlert is keyed by a stable business key, not a surrogate id.
type SystemAlert struct {
	Key        string     `json:"key"`
	Severity   Severity   `json:"severity"`
	Type       string     `json:"type"`
	Title      string     `json:"title"`
	Message    string     `json:"message"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
	ResolvedAt *time.Time `json:"resolvedAt,omitempty"`
}

type KYCStatus string

const (
	KYCPending  KYCStatus = "pending"
	KYCVerified KYCStatus = "verified"
	KYCRejected KYCStatus = "rejected"
)

// User is the identity snapshot the alert scanner inspects.
type User struct {
	ID             string    `json:"id"`
	KYCStatus      KYCStatus `json:"kycStatus"`
	KYCSubmittedAt time.Time `json:"kycSubmittedAt"`
}
