package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "cfg.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

const baseYAML = `
env: test
http:
  addr: ":8080"
  public_base_url: "https://zap.example.com/"
storage:
  driver: postgres
database:
  host: "localhost"
  port: 5432
  username: "u"
  password: "p"
  name: "zapshift"
kafka:
  host: "localhost"
  port: 9092
redis:
  host: "localhost"
  port: 6379
auth:
  provider: jwt
  jwt_secret: "s3cret"
payments:
  provider: fake
worker:
  batch_size: 50
`

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, baseYAML))
	require.NoError(t, err)
	require.Equal(t, "u", cfg.Database.Username)
	require.Equal(t, ":8080", cfg.HTTP.Addr)
	require.Equal(t, "https://zap.example.com", cfg.HTTP.PublicBaseURL)
	require.Equal(t, 6379, cfg.Redis.Port)
	require.Equal(t, 50, cfg.Worker.BatchSize)

	// defaults
	require.Equal(t, "checkout.checked", cfg.Kafka.CheckoutCheckedTopicName)
	require.Equal(t, "zapshift-api", cfg.Kafka.ConsumerGroup)
	require.Equal(t, "usd", cfg.Payments.Currency)
	require.Equal(t, "Zap-Shift", cfg.Mongo.Database)
	require.Equal(t, []string{"*"}, cfg.HTTP.CORSAllowedOrigins)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("ZAPSHIFT_DATABASE__PASSWORD", "from-env")
	t.Setenv("ZAPSHIFT_REDIS__PORT", "6380")
	t.Setenv("ZAPSHIFT_CACHE__ROLE_TTL_SECONDS", "30")

	cfg, err := LoadConfig(writeConfig(t, baseYAML))
	require.NoError(t, err)
	require.Equal(t, "from-env", cfg.Database.Password)
	require.Equal(t, "u", cfg.Database.Username)
	require.Equal(t, 6380, cfg.Redis.Port)
	require.Equal(t, 30, cfg.Cache.RoleTTLSeconds)
}

func TestLoadConfig_LegacyEnv(t *testing.T) {
	t.Setenv("PORT", "5000")
	t.Setenv("DB_USER", "legacy-user")
	t.Setenv("DB_PASS", "legacy-pass")
	t.Setenv("DOMAIN_NAME", "https://legacy.example.com")
	t.Setenv("PAYMENT_SECRET", "sk_test_legacy")

	cfg, err := LoadConfig(writeConfig(t, baseYAML))
	require.NoError(t, err)
	require.Equal(t, ":5000", cfg.HTTP.Addr)
	require.Equal(t, "legacy-user", cfg.Database.Username)
	require.Equal(t, "legacy-pass", cfg.Database.Password)
	require.Equal(t, "https://legacy.example.com", cfg.HTTP.PublicBaseURL)
	require.Equal(t, "sk_test_legacy", cfg.Payments.StripeSecretKey)
}

func TestLoadConfig_Validation(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, `
http:
  public_base_url: "https://zap.example.com"
auth:
  provider: jwt
payments:
  provider: fake
`))
	require.Error(t, err)
	require.Contains(t, err.Error(), "JWTSecret")

	_, err = LoadConfig(writeConfig(t, `
storage:
  driver: sqlite
auth:
  jwt_secret: "x"
payments:
  provider: fake
`))
	require.Error(t, err)
	require.Contains(t, err.Error(), "Driver")
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestDatabaseConfig_ConnString(t *testing.T) {
	c := DatabaseConfig{Host: "db", Port: 5432, Username: "u", Password: "p@ss", DBName: "zapshift"}
	require.Equal(t, "postgres://u:p%40ss@db:5432/zapshift?sslmode=disable", c.ConnString())
}

func TestParseFlags(t *testing.T) {
	t.Setenv("configPath", "/etc/zapshift.yaml")

	f, err := ParseFlags("zapshift-api", nil)
	require.NoError(t, err)
	require.Equal(t, "/etc/zapshift.yaml", f.ConfigPath)

	f, err = ParseFlags("zapshift-api", []string{"--config", "local.yaml", "--addr", ":9999"})
	require.NoError(t, err)
	require.Equal(t, "local.yaml", f.ConfigPath)
	require.Equal(t, ":9999", f.Addr)
}
