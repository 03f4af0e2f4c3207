package store

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/punchamoorthee/dealledger/internal/domain"
)

const approvalColumns = `id, action, scope, payload, request_hash, idempotency_key, magnitude, status, requested_by, approved_by, rejected_by, created_at, resolved_at`

func scanApproval(row pgx.Row) (domain.ApprovalRequest, error) {
	var a domain.ApprovalRequest
	var status string
	var payload []byte
	err := row.Scan(&a.ID, &a.Action, &a.Scope, &payload, &a.RequestHash, &a.IdempotencyKey, &a.Magnitude, &status,
		&a.RequestedBy, &a.ApprovedBy, &a.RejectedBy, &a.CreatedAt, &a.ResolvedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ApprovalRequest{}, domain.ErrNotFound
		}
		return domain.ApprovalRequest{}, err
	}
	a.Status = domain.ApprovalStatus(status)
	a.Payload = json.RawMessage(payload)
	return a, nil
}

// NewApproval is an approval request not yet written.
type NewApproval struct {
	Action         string
	Scope          string
	Payload        json.RawMessage
	RequestHash    string
	IdempotencyKey string
	Magnitude      int64
	RequestedBy    string
}

// UpsertApproval creates a pending request, or returns the one already filed
// for the same (requester, scope, idempotency key). Scope matches the
// idempotency scope of the held action, so one key can be reused across deals.
func (q *Queries) UpsertApproval(ctx context.Context, n NewApproval) (domain.ApprovalRequest, bool, error) {
	a, err := scanApproval(q.db.QueryRow(ctx, `
		INSERT INTO approval_requests (id, action, scope, payload, request_hash, idempotency_key, magnitude, status, requested_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (requested_by, scope, idempotency_key) DO NOTHING
		RETURNING `+approvalColumns,
		uuid.New(), n.Action, n.Scope, []byte(n.Payload), n.RequestHash, n.IdempotencyKey, n.Magnitude,
		string(domain.ApprovalPending), n.RequestedBy))
	if err == nil {
		return a, true, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return domain.ApprovalRequest{}, false, err
	}

	a, err = scanApproval(q.db.QueryRow(ctx, `
		SELECT `+approvalColumns+` FROM approval_requests
		WHERE requested_by = $1 AND scope = $2 AND idempotency_key = $3`,
		n.RequestedBy, n.Scope, n.IdempotencyKey))
	return a, false, err
}

func (q *Queries) GetApproval(ctx context.Context, id uuid.UUID) (domain.ApprovalRequest, error) {
	return scanApproval(q.db.QueryRow(ctx, `SELECT `+approvalColumns+` FROM approval_requests WHERE id = $1`, id))
}

// LockApproval reads the request FOR UPDATE. Only valid inside a transaction.
func (q *Queries) LockApproval(ctx context.Context, id uuid.UUID) (domain.ApprovalRequest, error) {
	return scanApproval(q.db.QueryRow(ctx, `SELECT `+approvalColumns+` FROM approval_requests WHERE id = $1 FOR UPDATE`, id))
}

// ResolveApproval moves a pending request to approved or rejected.
func (q *Queries) ResolveApproval(ctx context.Context, id uuid.UUID, status domain.ApprovalStatus, actorID string) (domain.ApprovalRequest, error) {
	column := "approved_by"
	if status == domain.ApprovalRejected {
		column = "rejected_by"
	}
	a, err := scanApproval(q.db.QueryRow(ctx, `
		UPDATE approval_requests
		SET status = $2, `+column+` = $3, resolved_at = now()
		WHERE id = $1 AND status = 'pending'
		RETURNING `+approvalColumns,
		id, string(status), actorID))
	if errors.Is(err, domain.ErrNotFound) {
		return domain.ApprovalRequest{}, domain.ErrNotPending
	}
	return a, err
}
