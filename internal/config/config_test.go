package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaultsWithMemoryDrivers(t *testing.T) {
	path := writeConfig(t, `
database:
  driver: memory
storage:
  driver: memory
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, defaultPort, cfg.Port)
	assert.True(t, cfg.IsDev())
	assert.Equal(t, "ADMINS", cfg.Auth.AdminGroup)
	assert.Equal(t, 7*24*time.Hour, cfg.SignTTL())
	assert.Equal(t, int64(500<<20), cfg.UploadMaxBytes())
	assert.Equal(t, "public/images/", cfg.Content.ImagePrefix)
	assert.Equal(t, "amazonaws.com", cfg.Storage.HostMarker)
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	path := writeConfig(t, "port: 8080\nmeilisearch:\n  enable: true\n")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bad port", "port: 70000\ndatabase: {driver: memory}\nstorage: {driver: memory}\n"},
		{"bad driver", "database: {driver: sqlite}\nstorage: {driver: memory}\n"},
		{"s3 without bucket", "database: {driver: memory}\nstorage: {driver: s3}\n"},
		{"supabase without key", "database: {driver: memory}\nstorage: {driver: supabase, bucket: b, supabase_url: 'https://x.supabase.co'}\n"},
		{"zero sign ttl", "database: {driver: memory}\nstorage: {driver: memory, sign_ttl: -1}\n"},
		{"bad timezone", "timezone: Mars/Olympus\ndatabase: {driver: memory}\nstorage: {driver: memory}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("BLOG_JWT_SECRET", "from-env")
	t.Setenv("BLOG_REDIS_URL", "localhost:6380")
	path := writeConfig(t, "jwt_secret: from-file\ndatabase: {driver: memory}\nstorage: {driver: memory}\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.JWTSecret)
	assert.True(t, cfg.Redis.Enable)
	assert.Equal(t, "redis://localhost:6380", cfg.Redis.URLValue())
}

func TestDSNValue(t *testing.T) {
	mysqlCfg := normalizeDatabaseConfig(DatabaseRuntimeConfig{
		Driver: DriverMySQL, User: "blog", Password: "pw", Name: "press", ParseTime: true,
		Params: map[string]string{"timeout": "5s"},
	})
	parsed, err := mysql.ParseDSN(mysqlCfg.DSNValue())
	require.NoError(t, err)
	assert.Equal(t, "blog", parsed.User)
	assert.Equal(t, "pw", parsed.Passwd)
	assert.Equal(t, "127.0.0.1:3306", parsed.Addr)
	assert.Equal(t, "press", parsed.DBName)
	assert.True(t, parsed.ParseTime)
	assert.Equal(t, 5*time.Second, parsed.Timeout)

	pg := normalizeDatabaseConfig(DatabaseRuntimeConfig{
		Driver: "postgresql", Host: "db", User: "postgres", Password: "pw", Name: "press",
	})
	assert.Equal(t, DriverPostgres, pg.Driver)
	assert.Equal(t, "host=db port=5432 user=postgres password=pw dbname=press sslmode=disable", pg.DSNValue())

	explicit := DatabaseRuntimeConfig{DSN: " user@tcp(h)/db "}
	assert.Equal(t, "user@tcp(h)/db", explicit.DSNValue())
}

func TestRedisURLValue(t *testing.T) {
	assert.Equal(t, "redis://localhost:6379/0", RedisRuntimeConfig{}.URLValue())
	assert.Equal(t, "rediss://:secret@cache:6380/2",
		RedisRuntimeConfig{Host: "cache", Port: 6380, DB: 2, Password: "secret", TLS: true}.URLValue())
}

func TestNormalizePrefixAndMarkers(t *testing.T) {
	assert.Equal(t, "uploads/", normalizePrefix("/uploads", "x/"))
	assert.Equal(t, "x/", normalizePrefix("  ", "x/"))

	st := normalizeStorageConfig(StorageConfig{PrefixMarkers: []string{"public", "/posts/", ""}})
	assert.Equal(t, []string{"/public/", "/posts/"}, st.PrefixMarkers)
}

func TestParseTimezone(t *testing.T) {
	loc, err := ParseTimezone("+08:00")
	require.NoError(t, err)
	_, offset := time.Date(2024, 1, 1, 0, 0, 0, 0, loc).Zone()
	assert.Equal(t, 8*3600, offset)

	loc, err = ParseTimezone("UTC")
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)

	_, err = ParseTimezone("+25:00")
	assert.Error(t, err)
}

func TestLogFileDirResolvesAgainstConfigFile(t *testing.T) {
	path := writeConfig(t, "log_dir: logs\ndatabase: {driver: memory}\nstorage: {driver: memory}\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(filepath.Dir(path), "logs"), cfg.LogFileDir())

	cfg.LogDir = ""
	assert.Equal(t, "", cfg.LogFileDir())
}
