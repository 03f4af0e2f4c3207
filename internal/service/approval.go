package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/punchamoorthee/dealledger/internal/config"
	"github.com/punchamoorthee/dealledger/internal/domain"
	"github.com/punchamoorthee/dealledger/internal/models"
	"github.com/punchamoorthee/dealledger/internal/store"
)

// Decision is the gate's verdict on one action.
type Decision struct {
	Direct    bool
	RequestID uuid.UUID
}

// GuardRequest describes an action about to run.
type GuardRequest struct {
	ActorID string
	Action  string
	// Scope is the idempotency scope the action will run under.
	Scope          string
	Magnitude      int64
	IdempotencyKey string
	// Payload is stored on the approval request and re-executed on approval.
	Payload any
}

// ApprovalGate holds actions at or above their configured threshold until a
// second admin approves them.
type ApprovalGate struct {
	store  *store.Store
	policy config.Policy
	logger *slog.Logger
}

func NewApprovalGate(st *store.Store, policy config.Policy, logger *slog.Logger) *ApprovalGate {
	return &ApprovalGate{store: st, policy: policy, logger: logger}
}

// Requires reports whether magnitude needs a second approver for action.
func (g *ApprovalGate) Requires(action string, magnitude int64) bool {
	threshold, ok := g.policy.Threshold(action)
	return ok && magnitude >= threshold
}

// Guard lets below-threshold actions through and parks the rest. Filing the
// same (requester, scope, key) again returns the existing request; one that
// was already approved passes through so the caller replays its result.
func (g *ApprovalGate) Guard(ctx context.Context, req GuardRequest) (Decision, error) {
	if !g.Requires(req.Action, req.Magnitude) {
		return Decision{Direct: true}, nil
	}

	hash, err := HashPayload(req.Payload)
	if err != nil {
		return Decision{}, err
	}
	body, err := json.Marshal(req.Payload)
	if err != nil {
		return Decision{}, fmt.Errorf("marshal approval payload: %w", err)
	}

	var a domain.ApprovalRequest
	var created bool
	err = g.store.InTx(ctx, func(q *store.Queries) error {
		var err error
		a, created, err = q.UpsertApproval(ctx, store.NewApproval{
			Action:         req.Action,
			Scope:          req.Scope,
			Payload:        body,
			RequestHash:    hash,
			IdempotencyKey: req.IdempotencyKey,
			Magnitude:      req.Magnitude,
			RequestedBy:    req.ActorID,
		})
		if err != nil {
			return fmt.Errorf("file approval request: %w", err)
		}
		if !created {
			return nil
		}
		_, err = q.AppendAudit(ctx, req.ActorID, "approval.requested", "approval_request", a.ID.String(), map[string]any{
			"action":    a.Action,
			"magnitude": a.Magnitude,
		})
		return err
	})
	if err != nil {
		if store.IsContention(err) {
			return Decision{}, domain.Conflict(domain.ReasonConcurrentUpdate)
		}
		return Decision{}, err
	}

	if !created {
		if a.RequestHash != hash {
			return Decision{}, domain.Conflict(domain.ReasonKeyReuse)
		}
		switch a.Status {
		case domain.ApprovalApproved:
			return Decision{Direct: true}, nil
		case domain.ApprovalRejected:
			return Decision{}, domain.Conflict(domain.ReasonApprovalRejected)
		}
		return Decision{RequestID: a.ID}, nil
	}

	approvalEvents.WithLabelValues(req.Action, "requested").Inc()
	g.logger.Info("action held for approval",
		slog.String("request_id", a.ID.String()),
		slog.String("action", a.Action),
		slog.Int64("magnitude", a.Magnitude),
		slog.String("requestedBy", a.RequestedBy))
	return Decision{RequestID: a.ID}, nil
}

// approval is passed to an action that runs on behalf of an approved
// request. A nil *approval means the action came straight from its requester.
type approval struct {
	id         uuid.UUID
	approverID string
}

// claim locks the request and marks it approved inside the action's
// transaction, so the approval, its audit row and the action commit together.
func (a *approval) claim(ctx context.Context, q *store.Queries) error {
	req, err := q.LockApproval(ctx, a.id)
	if err != nil {
		return err
	}
	if req.RequestedBy == a.approverID {
		return domain.ErrSelfApproval
	}
	if req.Status != domain.ApprovalPending {
		return domain.ErrNotPending
	}
	if _, err := q.ResolveApproval(ctx, a.id, domain.ApprovalApproved, a.approverID); err != nil {
		return err
	}
	_, err = q.AppendAudit(ctx, a.approverID, "approval.approved", "approval_request", a.id.String(), map[string]any{
		"action":      req.Action,
		"requestedBy": req.RequestedBy,
	})
	return err
}

// before adapts claim to an idempotent request's Before hook.
func (a *approval) before() func(ctx context.Context, q *store.Queries) error {
	if a == nil {
		return nil
	}
	return a.claim
}

func (s *Service) GetApproval(ctx context.Context, actor domain.Actor, id uuid.UUID) (domain.ApprovalRequest, error) {
	if err := requireRole(actor, domain.RoleAdmin, domain.RoleAuditor); err != nil {
		return domain.ApprovalRequest{}, err
	}
	return s.store.GetApproval(ctx, id)
}

// Approve executes the parked action with the approver as second signer.
// The requester cannot approve their own request.
func (s *Service) Approve(ctx context.Context, actor domain.Actor, id uuid.UUID) (models.ApprovalDecisionResponse, error) {
	if err := requireRole(actor, domain.RoleAdmin); err != nil {
		return models.ApprovalDecisionResponse{}, err
	}
	req, err := s.store.GetApproval(ctx, id)
	if err != nil {
		return models.ApprovalDecisionResponse{}, err
	}
	if req.RequestedBy == actor.ID {
		return models.ApprovalDecisionResponse{}, domain.ErrSelfApproval
	}
	if req.Status != domain.ApprovalPending {
		return models.ApprovalDecisionResponse{}, domain.ErrNotPending
	}

	grant := &approval{id: req.ID, approverID: actor.ID}
	requester := domain.Actor{ID: req.RequestedBy, Role: domain.RoleAdmin}

	var result any
	switch req.Action {
	case domain.ActionReleasePayout:
		var p models.ReleasePayoutRequest
		if err := json.Unmarshal(req.Payload, &p); err != nil {
			return models.ApprovalDecisionResponse{}, fmt.Errorf("decode approval payload: %w", err)
		}
		out, _, err := s.releasePayout(ctx, requester, p, grant)
		if err != nil {
			return models.ApprovalDecisionResponse{}, err
		}
		result = out
	case domain.ActionWalletAdjustment:
		var p models.WalletAdjustmentRequest
		if err := json.Unmarshal(req.Payload, &p); err != nil {
			return models.ApprovalDecisionResponse{}, fmt.Errorf("decode approval payload: %w", err)
		}
		out, _, err := s.adjustWallet(ctx, requester, p, grant)
		if err != nil {
			return models.ApprovalDecisionResponse{}, err
		}
		result = out
	default:
		return models.ApprovalDecisionResponse{}, fmt.Errorf("approval %s: unsupported action %q", req.ID, req.Action)
	}

	resolved, err := s.store.GetApproval(ctx, id)
	if err != nil {
		return models.ApprovalDecisionResponse{}, err
	}
	approvalEvents.WithLabelValues(req.Action, "approved").Inc()
	s.logger.Info("approval granted",
		slog.String("request_id", id.String()),
		slog.String("action", req.Action),
		slog.String("approved_by", actor.ID))
	return models.ApprovalDecisionResponse{Request: resolved, Result: result}, nil
}

// Reject closes a pending request without running its action.
func (s *Service) Reject(ctx context.Context, actor domain.Actor, id uuid.UUID) (models.ApprovalDecisionResponse, error) {
	if err := requireRole(actor, domain.RoleAdmin); err != nil {
		return models.ApprovalDecisionResponse{}, err
	}

	var resolved domain.ApprovalRequest
	err := s.inTx(ctx, func(ctx context.Context, q *store.Queries) error {
		req, err := q.LockApproval(ctx, id)
		if err != nil {
			return err
		}
		if req.RequestedBy == actor.ID {
			return domain.ErrSelfApproval
		}
		if req.Status != domain.ApprovalPending {
			return domain.ErrNotPending
		}
		resolved, err = q.ResolveApproval(ctx, id, domain.ApprovalRejected, actor.ID)
		if err != nil {
			return err
		}
		_, err = q.AppendAudit(ctx, actor.ID, "approval.rejected", "approval_request", id.String(), map[string]any{
			"action":      req.Action,
			"requestedBy": req.RequestedBy,
		})
		return err
	})
	if err != nil {
		return models.ApprovalDecisionResponse{}, err
	}

	approvalEvents.WithLabelValues(resolved.Action, "rejected").Inc()
	s.logger.Info("approval rejected",
		slog.String("request_id", id.String()),
		slog.String("action", resolved.Action),
		slog.String("rejected_by", actor.ID))
	return models.ApprovalDecisionResponse{Request: resolved}, nil
}
