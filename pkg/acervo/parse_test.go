package acervo

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acervo-cultural/acervo/pkg/store/cqrs"
)

// isolateEnv points the env file at a path that does not exist and clears the
// variables Parse reads.
func isolateEnv(t *testing.T) {
	t.Helper()
	t.Setenv("ACERVO_ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
	for _, key := range []string{
		"ACERVO_BACKEND", "ACERVO_MODE", "ACERVO_READ_ONLY", "PORT", "LOG_LEVEL", "LOG_FORMAT", "LOG_PATH",
		"POSTGRES_DSN", "SURREALDB_URL", "POLL_INTERVAL", "JWT_SECRET", "JWT_ISSUER",
		"S3_BUCKET", "S3_REGION", "UPLOAD_PRESET", "UPLOAD_MAX_BYTES",
	} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

func TestParseDefaults(t *testing.T) {
	isolateEnv(t)

	cmd, config, err := Parse([]string{"run"})
	require.NoError(t, err)
	assert.IsType(t, &RunCommand{}, cmd)
	assert.Equal(t, BackendMemory, config.Backend)
	assert.Equal(t, cqrs.ModeSingle, config.MigrationMode)
	assert.False(t, config.ReadOnly)
	assert.Equal(t, "8080", config.ServerPort)
	assert.Equal(t, "info", config.LogLevel)
	assert.Equal(t, "json", config.LogFormat)
	assert.Equal(t, 2*time.Second, config.PollInterval)
	assert.Equal(t, "us-east-1", config.S3Region)
	assert.EqualValues(t, 50<<20, config.UploadMaxBytes)
	assert.False(t, config.UploadsEnabled())
}

func TestParseEnvAndFlags(t *testing.T) {
	isolateEnv(t)
	t.Setenv("ACERVO_BACKEND", "postgres")
	t.Setenv("PORT", "9000")
	t.Setenv("POLL_INTERVAL", "500ms")
	t.Setenv("S3_BUCKET", "acervo-media")
	t.Setenv("JWT_SECRET", "s3cret")

	_, config, err := Parse([]string{"-port", "9100", "-read-only", "run"})
	require.NoError(t, err)
	assert.Equal(t, BackendPostgres, config.Backend)
	assert.Equal(t, "9100", config.ServerPort, "flags override the environment")
	assert.True(t, config.ReadOnly)
	assert.Equal(t, 500*time.Millisecond, config.PollInterval)
	assert.Equal(t, "s3cret", config.JWTSecret)
	assert.True(t, config.UploadsEnabled())
}

func TestParseEnvFile(t *testing.T) {
	isolateEnv(t)
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("ACERVO_BACKEND=surrealdb\nJWT_ISSUER=acervo-test\n"), 0o600))
	t.Setenv("ACERVO_ENV_FILE", path)

	cmd, config, err := Parse([]string{"migrate"})
	require.NoError(t, err)
	assert.IsType(t, &MigrateCommand{}, cmd)
	assert.Equal(t, BackendSurrealDB, config.Backend)
	assert.Equal(t, "acervo-test", config.JWTIssuer)
}

func TestParseSync(t *testing.T) {
	isolateEnv(t)

	cmd, _, err := Parse([]string{"-backend", "cqrs", "-sync-direction", "reverse", "-sync-since", "2024-01-01T00:00:00Z", "sync"})
	require.NoError(t, err)
	sync, ok := cmd.(*SyncCommand)
	require.True(t, ok)
	assert.Equal(t, "reverse", sync.Direction)
	assert.Equal(t, "2024-01-01T00:00:00Z", sync.Since)

	_, _, err = Parse([]string{"sync"})
	assert.ErrorContains(t, err, "cqrs")

	_, _, err = Parse([]string{"-backend", "cqrs", "-sync-direction", "sideways", "sync"})
	assert.ErrorContains(t, err, "invalid sync direction")
}

func TestParseErrors(t *testing.T) {
	isolateEnv(t)

	_, _, err := Parse(nil)
	assert.Error(t, err)

	_, _, err = Parse([]string{"serve"})
	assert.ErrorContains(t, err, "unknown command")

	_, _, err = Parse([]string{"-backend", "mongo", "run"})
	assert.ErrorContains(t, err, "invalid backend")

	_, _, err = Parse([]string{"-mode", "sideways", "run"})
	assert.Error(t, err)

	cmd, _, err := Parse([]string{"recompute-stats"})
	require.NoError(t, err)
	assert.Equal(t, "recompute-stats", cmd.Name())
}

func TestParseTime(t *testing.T) {
	def := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	got, err := ParseTime("", def)
	require.NoError(t, err)
	assert.Equal(t, def, got)

	got, err = ParseTime("2024-03-05T10:00:00Z", def)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC), got)

	_, err = ParseTime("yesterday", def)
	assert.Error(t, err)
}
