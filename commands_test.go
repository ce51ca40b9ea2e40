package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// runCLI executes the root command against a sqlite file and returns stdout.
func runCLI(t *testing.T, dbPath, stdin string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("APP_ENV", "development")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("STORAGE_BACKEND", "sqlite")
	t.Setenv("SQLITE_PATH", dbPath)

	jobUserID, jobDate = 0, ""
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCLI_CreateUser(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "cli.db")

	out, err := runCLI(t, dbPath, "alice\nalice@example.com\nhunter2\nEurope/Berlin\n", "create-user")
	require.NoError(t, err)
	assert.Contains(t, out, "User created successfully!")

	s, err := newSQLiteStore(dbPath, zap.NewNop().Sugar())
	require.NoError(t, err)
	defer s.Close()
	u, err := s.GetUserByUsername(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "Europe/Berlin", u.Timezone)
	assert.NotEqual(t, "hunter2", u.Password)
	assert.Contains(t, out, u.AuthToken)
}

func TestCLI_CloseDayAndRecalc(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "cli.db")
	s, err := newSQLiteStore(dbPath, zap.NewNop().Sugar())
	require.NoError(t, err)
	u := newTestUser(t, s, "alice")
	_, err = s.UpdateUserFields(context.Background(), u.ID, userUpdate{
		"weight_kg": 75.0, "height_cm": 175.0, "age_years": 30, "sex": "male", "activity_level": "light",
	})
	require.NoError(t, err)
	addMeal(t, s, u.ID, time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC), 1500)
	s.Close()

	id := strconv.Itoa(u.ID)
	out, err := runCLI(t, dbPath, "", "close-day", "--user", id, "--date", "2026-10-16")
	require.NoError(t, err)
	assert.Contains(t, out, "buffer of 836 kcal set for 2026-10-17")

	_, err = runCLI(t, dbPath, "", "close-day")
	assert.Error(t, err)

	out, err = runCLI(t, dbPath, "", "recalc-fasting", "--user", id)
	require.NoError(t, err)
	assert.Contains(t, out, "DATE\tFED")
}

func TestPendingMigrations(t *testing.T) {
	all, err := pendingMigrations(migrationFiles, nil)
	require.NoError(t, err)
	require.NotEmpty(t, all)
	assert.Equal(t, "db/2026-10-17-001-initial-schema.sql", all[0])

	rest, err := pendingMigrations(migrationFiles, map[string]bool{"2026-10-17-001-initial-schema.sql": true})
	require.NoError(t, err)
	assert.Len(t, rest, len(all)-1)

	assert.Equal(t, "initial schema", migrationDescription("db/2026-10-17-001-initial-schema.sql"))
}

func TestCLI_MigrateRequiresPostgres(t *testing.T) {
	_, err := runCLI(t, filepath.Join(t.TempDir(), "cli.db"), "", "migrate")
	assert.ErrorContains(t, err, "STORAGE_BACKEND=postgres")
}
