package service

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/punchamoorthee/dealledger/internal/domain"
	"github.com/punchamoorthee/dealledger/internal/models"
	"github.com/punchamoorthee/dealledger/internal/store"
)

const recentEntries = 50

type adjustmentPayload struct {
	UserID string `json:"userId"`
	Amount int64  `json:"amount"`
	Reason string `json:"reason"`
}

func adjustmentScope(userID string) string { return "wallet_adjustment:" + userID }

// AdjustWallet credits or debits a wallet by a manual entry. Large
// adjustments go through the approval gate; debits never take a wallet
// negative.
func (s *Service) AdjustWallet(ctx context.Context, actor domain.Actor, req models.WalletAdjustmentRequest) (models.WalletAdjustmentResponse, bool, error) {
	return s.adjustWallet(ctx, actor, req, nil)
}

func (s *Service) adjustWallet(ctx context.Context, actor domain.Actor, req models.WalletAdjustmentRequest, approved *approval) (models.WalletAdjustmentResponse, bool, error) {
	if err := requireRole(actor, domain.RoleAdmin); err != nil {
		return models.WalletAdjustmentResponse{}, false, err
	}
	req.Reason = strings.TrimSpace(req.Reason)
	if req.UserID == "" {
		return models.WalletAdjustmentResponse{}, false, domain.Validation("userId", "is required")
	}
	if req.Amount == 0 {
		return models.WalletAdjustmentResponse{}, false, domain.Validation("amount", "must not be zero")
	}
	if req.Amount == math.MinInt64 {
		return models.WalletAdjustmentResponse{}, false, domain.Validation("amount", "out of range")
	}
	if req.Reason == "" {
		return models.WalletAdjustmentResponse{}, false, domain.Validation("reason", "is required")
	}
	if err := requireKey(req.IdempotencyKey); err != nil {
		return models.WalletAdjustmentResponse{}, false, err
	}

	magnitude := req.Amount
	if magnitude < 0 {
		magnitude = -magnitude
	}
	if approved == nil {
		d, err := s.gate.Guard(ctx, GuardRequest{
			ActorID:        actor.ID,
			Action:         domain.ActionWalletAdjustment,
			Scope:          adjustmentScope(req.UserID),
			Magnitude:      magnitude,
			IdempotencyKey: req.IdempotencyKey,
			Payload:        req,
		})
		if err != nil {
			return models.WalletAdjustmentResponse{}, false, err
		}
		if !d.Direct {
			return models.WalletAdjustmentResponse{}, false, &domain.ApprovalRequiredError{RequestID: d.RequestID}
		}
	}

	payload := adjustmentPayload{UserID: req.UserID, Amount: req.Amount, Reason: req.Reason}
	res, err := s.idem.Execute(ctx, Request{
		ActorID: actor.ID,
		Scope:   adjustmentScope(req.UserID),
		Key:     req.IdempotencyKey,
		Payload: payload,
		Before:  approved.before(),
	}, func(ctx context.Context, q *store.Queries) (any, error) {
		return s.adjust(ctx, q, actor.ID, payload)
	})
	if err != nil {
		return models.WalletAdjustmentResponse{}, false, err
	}

	out, err := Decode[models.WalletAdjustmentResponse](res)
	if err != nil {
		return models.WalletAdjustmentResponse{}, false, err
	}
	if !res.Replayed {
		s.logger.Info("wallet adjusted",
			slog.String("user_id", req.UserID),
			slog.Int64("amount", req.Amount),
			slog.String("actor", actor.ID))
	}
	return out, res.Replayed, nil
}

func (s *Service) adjust(ctx context.Context, q *store.Queries, actorID string, p adjustmentPayload) (models.WalletAdjustmentResponse, error) {
	if err := q.LockWallet(ctx, p.UserID); err != nil {
		return models.WalletAdjustmentResponse{}, fmt.Errorf("lock wallet: %w", err)
	}
	balance, err := q.Balance(ctx, p.UserID)
	if err != nil {
		return models.WalletAdjustmentResponse{}, fmt.Errorf("read balance: %w", err)
	}
	if p.Amount < 0 && -p.Amount > balance {
		return models.WalletAdjustmentResponse{}, domain.ErrInsufficientFunds
	}
	if p.Amount > 0 && p.Amount > math.MaxInt64-balance {
		return models.WalletAdjustmentResponse{}, domain.Validation("amount", "would overflow the wallet balance")
	}

	kind := domain.KindDeposit
	if p.Amount < 0 {
		kind = domain.KindWithdrawal
	}
	entries, err := q.AppendEntries(ctx, []store.NewEntry{{
		UserID:    p.UserID,
		Kind:      kind,
		Amount:    p.Amount,
		Reference: newReference("adjustment"),
	}})
	if err != nil {
		return models.WalletAdjustmentResponse{}, fmt.Errorf("append adjustment: %w", err)
	}
	_, err = q.AppendAudit(ctx, actorID, "wallet.adjusted", "user", p.UserID, map[string]any{
		"entryId": entries[0].ID,
		"amount":  p.Amount,
		"reason":  p.Reason,
	})
	if err != nil {
		return models.WalletAdjustmentResponse{}, err
	}
	return models.WalletAdjustmentResponse{Entry: entries[0], Balance: balance + p.Amount}, nil
}

// Balance derives a wallet balance from completed entries. Investors may
// read only their own wallet.
func (s *Service) Balance(ctx context.Context, actor domain.Actor, userID string) (models.BalanceResponse, error) {
	if err := requireRole(actor, domain.RoleAdmin, domain.RoleAuditor, domain.RoleInvestor); err != nil {
		return models.BalanceResponse{}, err
	}
	if actor.Role == domain.RoleInvestor && actor.ID != userID {
		return models.BalanceResponse{}, domain.ErrForbidden
	}

	balance, err := s.store.Balance(ctx, userID)
	if err != nil {
		return models.BalanceResponse{}, fmt.Errorf("read balance: %w", err)
	}
	entries, err := s.store.ListEntries(ctx, userID, recentEntries)
	if err != nil {
		return models.BalanceResponse{}, fmt.Errorf("list entries: %w", err)
	}
	if entries == nil {
		entries = []domain.LedgerEntry{}
	}
	return models.BalanceResponse{UserID: userID, Balance: balance, Entries: entries}, nil
}
