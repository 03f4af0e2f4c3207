package service

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/punchamoorthee/dealledger/internal/config"
	"github.com/punchamoorthee/dealledger/internal/domain"
	"github.com/punchamoorthee/dealledger/internal/store"
)

// SystemActor attributes audit rows written by background sweeps.
var SystemActor = domain.Actor{ID: "system:alert-scanner", Role: domain.RoleAdmin}

type Options struct {
	Policy    config.Policy
	Logger    *slog.Logger
	TxTimeout time.Duration
	Now       func() time.Time
}

// Service is the settlement core. Every mutating method runs its writes in a
// single transaction and records exactly one audit entry for the change.
type Service struct {
	store     *store.Store
	idem      *IdempotencyManager
	gate      *ApprovalGate
	scanner   *AlertScanner
	logger    *slog.Logger
	txTimeout time.Duration
}

func New(st *store.Store, opts Options) *Service {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.TxTimeout <= 0 {
		opts.TxTimeout = 10 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	s := &Service{
		store:     st,
		logger:    opts.Logger,
		txTimeout: opts.TxTimeout,
	}
	s.idem = NewIdempotencyManager(st, opts.Logger, opts.TxTimeout)
	s.gate = NewApprovalGate(st, opts.Policy, opts.Logger)
	s.scanner = NewAlertScanner(st, opts.Policy.Alerts, opts.Logger, opts.Now)
	return s
}

// inTx runs fn in one transaction on a context detached from the caller's
// cancellation, so once writes begin they end in commit or full rollback.
func (s *Service) inTx(ctx context.Context, fn func(ctx context.Context, q *store.Queries) error) error {
	txCtx, cancel := detach(ctx, s.txTimeout)
	defer cancel()

	err := s.store.InTx(txCtx, func(q *store.Queries) error { return fn(txCtx, q) })
	if store.IsContention(err) {
		return domain.Conflict(domain.ReasonConcurrentUpdate)
	}
	return err
}

func detach(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), timeout)
}

func requireRole(actor domain.Actor, roles ...domain.Role) error {
	if actor.ID == "" {
		return domain.ErrUnauthorized
	}
	if !slices.Contains(roles, actor.Role) {
		return domain.ErrForbidden
	}
	return nil
}

func requireKey(key string) error {
	if key == "" {
		return domain.Validation("idempotencyKey", "is required")
	}
	if len(key) > 255 {
		return domain.Validation("idempotencyKey", "must be at most 255 characters")
	}
	return nil
}

// newReference returns a time-sortable reference shared by the entries of one
// ledger operation.
func newReference(prefix string) string {
	return prefix + ":" + ulid.Make().String()
}

func dealEntityID(id int64) string { return fmt.Sprintf("%d", id) }
