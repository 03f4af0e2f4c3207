// Package storetest opens a clean ledger database for integration tests.
// Tests are skipped when DATABASE_URL is unset.
package storetest

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/punchamoorthee/dealledger/internal/domain"
	"github.com/punchamoorthee/dealledger/internal/store"
	"github.com/stretchr/testify/require"
)

// lockKey serializes test packages sharing one database.
const lockKey = 7_340_117

// Open migrates and truncates the database behind DATABASE_URL. It holds a
// session advisory lock until the test ends, so packages running in
// parallel do not truncate each other's rows.
func Open(t testing.TB) *store.Store {
	t.Helper()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cfg, err := pgxpool.ParseConfig(dbURL)
	require.NoError(t, err)
	cfg.MaxConns = 16
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	require.NoError(t, err)
	st := store.FromPool(pool)

	conn, err := pool.Acquire(ctx)
	require.NoError(t, err)
	_, err = conn.Exec(ctx, `SELECT pg_advisory_lock($1)`, lockKey)
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = conn.Exec(context.Background(), `SELECT pg_advisory_unlock($1)`, lockKey)
		conn.Release()
		st.Close()
	})

	require.NoError(t, st.Migrate(ctx))
	_, err = pool.Exec(ctx, `
		TRUNCATE users, deals, investments, ledger_entries, idempotency_keys,
		         approval_requests, audit_log, system_alerts
		RESTART IDENTITY CASCADE`)
	require.NoError(t, err)
	return st
}

// Deposit credits a wallet with a completed entry.
func Deposit(t testing.TB, st *store.Store, userID string, amount int64) {
	t.Helper()
	_, err := st.AppendEntries(context.Background(), []store.NewEntry{{
		UserID:    userID,
		Kind:      domain.KindDeposit,
		Amount:    amount,
		Reference: "test-deposit",
	}})
	require.NoError(t, err)
}

// Count returns the number of rows matching a query such as
// `SELECT count(*) FROM ledger_entries WHERE kind = $1`.
func Count(t testing.TB, st *store.Store, query string, args ...any) int {
	t.Helper()
	var n int
	require.NoError(t, st.Db.QueryRow(context.Background(), query, args...).Scan(&n))
	return n
}
