package config

import (
	"os"
	"testing"
)

// TestDSNEnv names the environment variable holding the integration test DSN.
const TestDSNEnv = "SQLPIPE_TEST_DSN"

// PostgresTestDSN returns the DSN for the integration test database, or "" if none is configured.
func PostgresTestDSN() string {
	return os.Getenv(TestDSNEnv)
}

// RequirePostgresTestDSN skips the test when no integration test database is configured.
func RequirePostgresTestDSN(t testing.TB) string {
	dsn := PostgresTestDSN()
	if dsn == "" {
		t.Skipf("%s is not set, skipping integration test", TestDSNEnv)
	}

	return dsn
}
