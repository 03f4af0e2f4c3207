package store

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/punchamoorthee/dealledger/internal/domain"
)

// IdemKey identifies one idempotency record.
type IdemKey struct {
	ActorID string
	Scope   string
	Key     string
}

const idemColumns = `actor_id, scope, key, request_hash, status, response_body, last_error, created_at, updated_at`

func scanIdem(row pgx.Row) (domain.IdempotencyRecord, error) {
	var r domain.IdempotencyRecord
	var status string
	var lastErr *string
	var response []byte
	err := row.Scan(&r.ActorID, &r.Scope, &r.Key, &r.RequestHash, &status, &response, &lastErr, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return domain.IdempotencyRecord{}, err
	}
	r.Status = domain.IdempotencyStatus(status)
	r.Response = response
	if lastErr != nil {
		r.LastError = *lastErr
	}
	return r, nil
}

// ReserveKey is the atomic create-or-read of an idempotency record.
//
// It inserts the record in_progress; if the key already exists it returns the
// existing row locked FOR UPDATE instead. created reports which happened. A
// concurrent uncommitted insert of the same key blocks here until that
// transaction finishes, so two first attempts can never both proceed.
func (q *Queries) ReserveKey(ctx context.Context, k IdemKey, requestHash string) (rec domain.IdempotencyRecord, created bool, err error) {
	rec, err = scanIdem(q.db.QueryRow(ctx, `
		INSERT INTO idempotency_keys (actor_id, scope, key, request_hash, status)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (actor_id, scope, key) DO NOTHING
		RETURNING `+idemColumns,
		k.ActorID, k.Scope, k.Key, requestHash, string(domain.IdempotencyInProgress)))
	if err == nil {
		return rec, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return domain.IdempotencyRecord{}, false, err
	}

	rec, err = scanIdem(q.db.QueryRow(ctx, `
		SELECT `+idemColumns+` FROM idempotency_keys
		WHERE actor_id = $1 AND scope = $2 AND key = $3
		FOR UPDATE`, k.ActorID, k.Scope, k.Key))
	if err != nil {
		return domain.IdempotencyRecord{}, false, err
	}
	return rec, false, nil
}

// ReclaimKey moves a failed record back to in_progress for a retry.
func (q *Queries) ReclaimKey(ctx context.Context, k IdemKey) error {
	_, err := q.db.Exec(ctx, `
		UPDATE idempotency_keys
		SET status = $4, last_error = NULL, updated_at = now()
		WHERE actor_id = $1 AND scope = $2 AND key = $3`,
		k.ActorID, k.Scope, k.Key, string(domain.IdempotencyInProgress))
	return err
}

// CompleteKey stores the response and marks the record completed.
func (q *Queries) CompleteKey(ctx context.Context, k IdemKey, response json.RawMessage) error {
	_, err := q.db.Exec(ctx, `
		UPDATE idempotency_keys
		SET status = $4, response_body = $5, last_error = NULL, updated_at = now()
		WHERE actor_id = $1 AND scope = $2 AND key = $3`,
		k.ActorID, k.Scope, k.Key, string(domain.IdempotencyCompleted), []byte(response))
	return err
}

// FailKey records a failed attempt after its transaction rolled back. It
// never downgrades a completed record nor touches a record that belongs to a
// different request payload.
func (q *Queries) FailKey(ctx context.Context, k IdemKey, requestHash, reason string) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO idempotency_keys (actor_id, scope, key, request_hash, status, last_error)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (actor_id, scope, key) DO UPDATE
		SET status = EXCLUDED.status, last_error = EXCLUDED.last_error, updated_at = now()
		WHERE idempotency_keys.status <> 'completed'
		  AND idempotency_keys.request_hash = EXCLUDED.request_hash`,
		k.ActorID, k.Scope, k.Key, requestHash, string(domain.IdempotencyFailed), reason)
	return err
}

func (q *Queries) GetKey(ctx context.Context, k IdemKey) (domain.IdempotencyRecord, error) {
	rec, err := scanIdem(q.db.QueryRow(ctx, `
		SELECT `+idemColumns+` FROM idempotency_keys
		WHERE actor_id = $1 AND scope = $2 AND key = $3`, k.ActorID, k.Scope, k.Key))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.IdempotencyRecord{}, domain.ErrNotFound
	}
	return rec, err
}
