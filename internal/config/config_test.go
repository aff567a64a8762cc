package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsMatchNewDefaultConfig(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	if diff := cmp.Diff(NewDefaultConfig(), cfg); diff != "" {
		t.Errorf("Load(\"\") mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_FileOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kigaligo.yaml")
	content := `
server:
  port: ":9090"
query:
  maxradiuskm: 10
  storetimeout: 750ms
cache:
  backend: redis
  ttl: 3s
eta:
  speeds:
    bus: 25
store:
  driver: sqlite
  dsn: vehicles.db
stops:
  vehicleradiuskm: 0.5
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Port)
	assert.Equal(t, 10.0, cfg.Query.MaxRadiusKm)
	assert.Equal(t, 750*time.Millisecond, cfg.Query.StoreTimeout)
	assert.Equal(t, "redis", cfg.Cache.Backend)
	assert.Equal(t, 3*time.Second, cfg.Cache.TTL)
	assert.Equal(t, 25.0, cfg.ETA.Speeds["bus"])
	assert.Equal(t, 40.0, cfg.ETA.Speeds["taxi"], "unset speeds keep their defaults")
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "vehicles.db", cfg.Store.DSN)
	assert.Equal(t, 0.5, cfg.Stops.VehicleRadiusKm)
	assert.Equal(t, 2.0, cfg.Stops.DefaultRadiusKm)

	// Untouched sections keep defaults.
	assert.Equal(t, 50, cfg.Query.MaxResults)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("KIGALIGO_QUERY_MAXRADIUSKM", "15")
	t.Setenv("KIGALIGO_LOG_LEVEL", "debug")
	t.Setenv("KIGALIGO_STREAM_INTERVAL", "1s")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 15.0, cfg.Query.MaxRadiusKm)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, time.Second, cfg.Stream.Interval)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"unknown cache backend", func(c *Config) { c.Cache.Backend = "memcached" }, true},
		{"default radius above max", func(c *Config) { c.Query.DefaultRadiusKm = 30 }, true},
		{"postgres without dsn", func(c *Config) { c.Store.Driver = "postgres" }, true},
		{"postgres with dsn", func(c *Config) {
			c.Store.Driver = "postgres"
			c.Store.DSN = "host=localhost dbname=kigaligo"
		}, false},
		{"inverted simulation bounds", func(c *Config) { c.Simulation.MinLat = -1.5 }, true},
		{"zero store timeout", func(c *Config) { c.Query.StoreTimeout = 0 }, true},
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }, true},
		{"zero stop vehicle radius", func(c *Config) { c.Stops.VehicleRadiusKm = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			err := Validate(cfg)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
