package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdirTemp runs the test from an empty directory so a developer .env file
// does not leak into the assertions.
func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return dir
}

func TestLoad_EnvDefaults(t *testing.T) {
	chdirTemp(t)
	t.Setenv("CONFIG_PATH", "")
	t.Setenv("DB_DSN", "postgres://u:p@localhost:5432/docs")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 15*time.Minute, cfg.Auth.AccessTokenTTL)
	assert.Equal(t, "storage", cfg.Storage.LocalDir)
	assert.Equal(t, "", cfg.AI.Provider)
	assert.Equal(t, int64(20971520), cfg.Upload.MaxBytes)
	assert.True(t, cfg.Database.SeedDemoUsers)
	assert.Equal(t, []string{"*"}, cfg.CORS.Origins())
}

func TestLoad_PostgresRequiresDSN(t *testing.T) {
	chdirTemp(t)
	t.Setenv("CONFIG_PATH", "")
	t.Setenv("DB_DSN", "")
	t.Setenv("DB_DRIVER", "postgres")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DB_DSN")
}

func TestLoad_SQLiteDefaultsPath(t *testing.T) {
	chdirTemp(t)
	t.Setenv("CONFIG_PATH", "")
	t.Setenv("DB_DSN", "")
	t.Setenv("DB_DRIVER", "SQLite")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, defaultSQLitePath, cfg.Database.DSN)
}

func TestLoad_YAMLFile(t *testing.T) {
	dir := chdirTemp(t)
	path := filepath.Join(dir, "config.yaml")
	yaml := `
server:
  port: 9090
database:
  driver: sqlite
  dsn: test.db
auth:
  jwt_secret: "yaml-secret"
  access_token_ttl: "5m"
ai:
  provider: ocr
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))
	t.Setenv("CONFIG_PATH", path)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "test.db", cfg.Database.DSN)
	assert.Equal(t, "yaml-secret", cfg.Auth.JWTSecret)
	assert.Equal(t, 5*time.Minute, cfg.Auth.AccessTokenTTL)
	assert.Equal(t, "ocr", cfg.AI.Provider)
}

func TestLoad_ExplicitPathMissing(t *testing.T) {
	chdirTemp(t)
	t.Setenv("CONFIG_PATH", "/does/not/exist.yaml")

	_, err := Load()
	require.Error(t, err)
}

func TestValidate_GeminiNeedsProject(t *testing.T) {
	cfg := Config{
		Server:   ServerConfig{Port: 8081},
		Database: DatabaseConfig{Driver: "sqlite"},
		Auth:     AuthConfig{JWTSecret: "s", AccessTokenTTL: time.Minute},
		Upload:   UploadConfig{MaxBytes: 1},
		AI:       AIConfig{Provider: "gemini"},
	}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AI_PROJECT_ID")

	cfg.AI.ProjectID = "my-project"
	require.NoError(t, cfg.Validate())
}

func TestValidate_UnknownProvider(t *testing.T) {
	cfg := Config{
		Server:   ServerConfig{Port: 8081},
		Database: DatabaseConfig{Driver: "sqlite"},
		Auth:     AuthConfig{JWTSecret: "s", AccessTokenTTL: time.Minute},
		Upload:   UploadConfig{MaxBytes: 1},
		AI:       AIConfig{Provider: "openai"},
	}
	require.Error(t, cfg.Validate())
}
