package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jinkaiteo/edms/internal/identity"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, ".data/edms.db", cfg.Database.Path)
	assert.Equal(t, 5*time.Minute, cfg.Redis.CapabilityTTL)
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.Equal(t, "gochannel", cfg.Notifications.Publisher)
	assert.Equal(t, "@every 1m", cfg.Sweep.EffectiveSchedule)
	assert.Equal(t, 1024, cfg.Emitter.QueueSize)
	assert.Empty(t, cfg.Users)
}

const sample = `
database:
  driver: postgres
  host: db
kafka:
  brokers: [k1:9092]
  compression: lz4
notifications:
  publisher: kafka
sweep:
  timeout: 1m
users:
  - id: alice
    name: Alice
    roles: [author]
    active: true
  - id: root
    roles: [admin]
    active: true
`

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "edms.yml"), []byte(sample), 0o644))
	chdir(t, dir)

	t.Setenv("EDMS_DATABASE_HOST", "db.internal")
	t.Setenv("EDMS_LOG_LEVEL", "debug")

	cfg, err := Load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, []string{"k1:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "lz4", cfg.Kafka.Compression)
	assert.Equal(t, time.Minute, cfg.Sweep.Timeout)
	assert.Equal(t, "debug", cfg.Log.Level)

	require.Len(t, cfg.Users, 2)
	assert.Equal(t, identity.User{ID: "alice", Name: "Alice", Roles: []identity.Role{identity.RoleAuthor}, Active: true}, cfg.Users[0])
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "driver", env: map[string]string{"EDMS_DATABASE_DRIVER": "oracle"}},
		{name: "publisher", env: map[string]string{"EDMS_NOTIFICATIONS_PUBLISHER": "smtp"}},
		{name: "kafka publisher without brokers", env: map[string]string{"EDMS_NOTIFICATIONS_PUBLISHER": "kafka"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chdir(t, t.TempDir())
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load(viper.New())
			assert.Error(t, err)
		})
	}
}

func TestOpenSqlite(t *testing.T) {
	cfg := &Config{Database: DatabaseConfig{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "data", "edms.db"), LogLevel: "silent"}}

	db, err := OpenDb(cfg)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", db.Dialector.Name())

	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Ping())
	require.NoError(t, sqlDB.Close())
}

func TestSetupLogger(t *testing.T) {
	defer SetupLogger("info", "text")

	SetupLogger("debug", "json")
	assert.Equal(t, logrus.DebugLevel, logrus.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, logrus.StandardLogger().Formatter)

	SetupLogger("loud", "text")
	assert.Equal(t, logrus.InfoLevel, logrus.GetLevel())
}
