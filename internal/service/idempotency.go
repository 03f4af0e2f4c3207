package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/punchamoorthee/dealledger/internal/domain"
	"github.com/punchamoorthee/dealledger/internal/store"
)

// Operation is the side-effecting body of an idempotent request. It runs in
// the same transaction as the idempotency record, and its return value is
// stored as the response for later replays.
type Operation func(ctx context.Context, q *store.Queries) (any, error)

// Request scopes one idempotent execution.
type Request struct {
	ActorID string
	Scope   string
	Key     string
	Payload any

	// Before runs first in the transaction, ahead of the key reservation, and
	// also on replays. It is where row locks that must precede the record
	// lock are taken.
	Before func(ctx context.Context, q *store.Queries) error
}

// Result is the stored response and whether it came from an earlier run.
type Result struct {
	Response json.RawMessage
	Replayed bool
}

type IdempotencyManager struct {
	store     *store.Store
	logger    *slog.Logger
	txTimeout time.Duration
}

func NewIdempotencyManager(st *store.Store, logger *slog.Logger, txTimeout time.Duration) *IdempotencyManager {
	return &IdempotencyManager{store: st, logger: logger, txTimeout: txTimeout}
}

// HashPayload is the hex SHA-256 of the payload's JSON encoding. Struct
// fields encode in declaration order and map keys sorted, so equal payloads
// hash equally.
func HashPayload(payload any) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("hash payload: %w", err)
	}
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:]), nil
}

// Execute runs op at most once per (actor, scope, key).
//
// A completed record with the same payload hash replays the stored response.
// A record with a different hash, or one still in progress, is a conflict.
// A failed record is reclaimed and op runs again. The record and op's writes
// commit together; on error everything rolls back and the key is marked
// failed separately so the client can retry.
func (m *IdempotencyManager) Execute(ctx context.Context, req Request, op Operation) (Result, error) {
	if err := requireKey(req.Key); err != nil {
		return Result{}, err
	}
	hash, err := HashPayload(req.Payload)
	if err != nil {
		return Result{}, err
	}
	key := store.IdemKey{ActorID: req.ActorID, Scope: req.Scope, Key: req.Key}
	label := scopeLabel(req.Scope)

	txCtx, cancel := detach(ctx, m.txTimeout)
	defer cancel()

	var res Result
	ran := false
	err = m.store.InTx(txCtx, func(q *store.Queries) error {
		if req.Before != nil {
			if err := req.Before(txCtx, q); err != nil {
				return err
			}
		}

		rec, created, err := q.ReserveKey(txCtx, key, hash)
		if err != nil {
			return fmt.Errorf("reserve idempotency key: %w", err)
		}
		if !created {
			if rec.RequestHash != hash {
				return domain.Conflict(domain.ReasonKeyReuse)
			}
			switch rec.Status {
			case domain.IdempotencyCompleted:
				res = Result{Response: rec.Response, Replayed: true}
				return nil
			case domain.IdempotencyInProgress:
				return domain.Conflict(domain.ReasonInProgress)
			case domain.IdempotencyFailed:
				if err := q.ReclaimKey(txCtx, key); err != nil {
					return fmt.Errorf("reclaim idempotency key: %w", err)
				}
			}
		}

		ran = true
		out, err := op(txCtx, q)
		if err != nil {
			return err
		}
		body, err := json.Marshal(out)
		if err != nil {
			return fmt.Errorf("marshal response: %w", err)
		}
		if err := q.CompleteKey(txCtx, key, body); err != nil {
			return fmt.Errorf("complete idempotency key: %w", err)
		}
		res = Result{Response: body}
		return nil
	})

	if err != nil {
		if store.IsContention(err) {
			err = domain.Conflict(domain.ReasonConcurrentUpdate)
		}
		if ran {
			m.markFailed(ctx, key, hash, err)
		}
		outcome := "failed"
		if errors.Is(err, domain.ErrConflict) {
			outcome = "conflict"
		}
		idempotencyOutcomes.WithLabelValues(label, outcome).Inc()
		return Result{}, err
	}

	if res.Replayed {
		idempotencyOutcomes.WithLabelValues(label, "replayed").Inc()
	} else {
		idempotencyOutcomes.WithLabelValues(label, "executed").Inc()
	}
	return res, nil
}

func (m *IdempotencyManager) markFailed(ctx context.Context, key store.IdemKey, hash string, cause error) {
	failCtx, cancel := detach(ctx, m.txTimeout)
	defer cancel()

	if err := m.store.FailKey(failCtx, key, hash, cause.Error()); err != nil {
		m.logger.Error("record idempotency failure",
			slog.String("scope", key.Scope),
			slog.String("actor", key.ActorID),
			slog.Any("cause", cause),
			slog.Any("error", err))
	}
}

// Decode unmarshals a stored response into T.
func Decode[T any](res Result) (T, error) {
	var out T
	if err := json.Unmarshal(res.Response, &out); err != nil {
		return out, fmt.Errorf("decode stored response: %w", err)
	}
	return out, nil
}

// scopeLabel drops the entity id suffix so metric cardinality stays bounded.
func scopeLabel(scope string) string {
	if i := strings.IndexByte(scope, ':'); i >= 0 {
		return scope[:i]
	}
	return scope
}
