package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "apiserver.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
port: 8080
database:
  type: "sqlite"
  dbname: ":memory:"
jwt:
  secret_key: "0123456789abcdef0123456789abcdef"
  duration: "24h"
audit:
  queue_size: 256
`)

	cfg, loadedPath, err := LoadConfig[APIServerConfig](path)
	require.NoError(t, err)
	assert.Equal(t, path, loadedPath)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "sqlite", cfg.Database.Type)
	assert.Equal(t, 24*time.Hour, cfg.JWT.Duration)
	assert.Equal(t, 256, cfg.Audit.QueueSize)
}

func TestLoadConfig_EnvResolution(t *testing.T) {
	t.Setenv("TEST_DB_TYPE", "postgres")

	path := writeConfig(t, `
database:
  type: "${TEST_DB_TYPE:sqlite}"
  host: "${TEST_DB_HOST:localhost}"
  port: ${TEST_DB_PORT:5432}
`)

	cfg, _, err := LoadConfig[APIServerConfig](path)
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Database.Type, "env value wins")
	assert.Equal(t, "localhost", cfg.Database.Host, "default fills in when env is unset")
	assert.Equal(t, 5432, cfg.Database.Port)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, _, err := LoadConfig[APIServerConfig](filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestDatabaseConfig_GetDSN(t *testing.T) {
	pg := &DatabaseConfig{Type: "postgres", Host: "db", Port: 5432, User: "u", Password: "p", DBName: "vault", SSLMode: "disable"}
	assert.Equal(t, "postgres://u:p@db:5432/vault?sslmode=disable", pg.GetDSN())

	my := &DatabaseConfig{Type: "mysql", Host: "db", Port: 3306, User: "u", Password: "p", DBName: "vault"}
	assert.Equal(t, "u:p@tcp(db:3306)/vault?charset=utf8mb4&parseTime=True&loc=Local", my.GetDSN())

	unknown := &DatabaseConfig{Type: "oracle"}
	assert.Equal(t, "", unknown.GetDSN())
}
