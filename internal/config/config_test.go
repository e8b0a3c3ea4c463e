package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "server:\n  port: 0\n"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "mysql", cfg.Database.Driver)
	assert.Equal(t, "disable", cfg.Database.SSLMode)
	assert.Equal(t, []string{"gpt-4o", "gpt-4o-mini"}, cfg.OpenAI.Models)
	assert.Equal(t, "ghcr.io/crytic/slither:latest", cfg.Static.Image)
	assert.Equal(t, 2, cfg.Workers.Static)
	assert.Equal(t, 1, cfg.Workers.AI)
	assert.Equal(t, 1, cfg.Workers.Full)
	assert.Equal(t, 3*time.Minute, cfg.AITimeout())
	assert.Equal(t, 2*time.Minute, cfg.StaticTimeout())
}

func TestLoadFull(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
server:
  port: 9090
database:
  driver: postgres
  host: db.internal
  port: 5432
  user: audit
  password: secret
  name: audits
  sslMode: require
openai:
  apiKey: sk-test
  models: [gpt-4o]
  timeoutSeconds: 60
workers:
  static: 4
auth:
  apiKeys:
    alice: key-1
`))
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 4, cfg.Workers.Static)
	assert.Equal(t, time.Minute, cfg.AITimeout())
	assert.Equal(t, "key-1", cfg.Auth.APIKeys["alice"])

	dsn := cfg.PostgresDSN()
	assert.Contains(t, dsn, "host=db.internal")
	assert.Contains(t, dsn, "dbname=audits")
	assert.Contains(t, dsn, "sslmode=require")
}

func TestMySQLDSN(t *testing.T) {
	var cfg Config
	cfg.Database.User = "root"
	cfg.Database.Password = "pw"
	cfg.Database.Host = "localhost"
	cfg.Database.Port = 3306
	cfg.Database.Name = "audits"

	assert.Equal(t, "root:pw@tcp(localhost:3306)/audits?parseTime=true&charset=utf8mb4&loc=UTC", cfg.MySQLDSN())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
