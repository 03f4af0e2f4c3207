package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Chdir(t.TempDir())
	dbSource, policyPath = "", ""
	t.Cleanup(func() { dbSource, policyPath = "", "" })

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestRequiresDatabase(t *testing.T) {
	t.Setenv("DB_SOURCE", "")
	t.Setenv("POLICY_FILE", "")

	for _, args := range [][]string{{"migrate"}, {"scan-alerts"}, {"balance", "alice"}} {
		_, err := run(t, args...)
		require.Error(t, err, args)
		assert.Contains(t, err.Error(), "database not configured")
	}
}

func TestBalanceRequiresUser(t *testing.T) {
	t.Setenv("DB_SOURCE", "postgres://unused")

	_, err := run(t, "balance")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg(s)")
}

func TestOperatorUsesActorFlag(t *testing.T) {
	prev := actorID
	t.Cleanup(func() { actorID = prev })

	actorID = "ops-oncall"
	op := operator()
	assert.Equal(t, "ops-oncall", op.ID)
	assert.True(t, op.Role.Valid())
}
