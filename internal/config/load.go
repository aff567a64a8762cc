package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment overrides: KIGALIGO_QUERY_MAXRADIUSKM
// sets query.maxradiuskm.
const EnvPrefix = "KIGALIGO"

// Load builds a Config from defaults, an optional config file and the
// environment, in increasing order of precedence. An empty path skips the
// file. The file format follows its extension (yaml, json, toml).
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, NewDefaultConfig())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error decoding config: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the struct tags on every section.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// setDefaults registers every key so AutomaticEnv can see it during
// Unmarshal; viper only consults the environment for keys it knows about.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.mode", d.Server.Mode)
	v.SetDefault("server.readtimeout", d.Server.ReadTimeout)
	v.SetDefault("server.writetimeout", d.Server.WriteTimeout)
	v.SetDefault("server.shutdowntimeout", d.Server.ShutdownTimeout)

	v.SetDefault("query.defaultradiuskm", d.Query.DefaultRadiusKm)
	v.SetDefault("query.maxradiuskm", d.Query.MaxRadiusKm)
	v.SetDefault("query.maxresults", d.Query.MaxResults)
	v.SetDefault("query.storetimeout", d.Query.StoreTimeout)
	v.SetDefault("query.seedtimeout", d.Query.SeedTimeout)
	v.SetDefault("query.maxsinceage", d.Query.MaxSinceAge)

	v.SetDefault("cache.backend", d.Cache.Backend)
	v.SetDefault("cache.ttl", d.Cache.TTL)
	v.SetDefault("cache.keyprefix", d.Cache.KeyPrefix)
	v.SetDefault("cache.sweepinterval", d.Cache.SweepInterval)

	v.SetDefault("seed.totalhint", d.Seed.TotalHint)
	v.SetDefault("seed.radiuskm", d.Seed.RadiusKm)
	v.SetDefault("seed.includepresets", d.Seed.IncludePresets)
	v.SetDefault("seed.centerlat", d.Seed.CenterLat)
	v.SetDefault("seed.centerlng", d.Seed.CenterLng)

	v.SetDefault("stops.defaultradiuskm", d.Stops.DefaultRadiusKm)
	v.SetDefault("stops.vehicleradiuskm", d.Stops.VehicleRadiusKm)
	v.SetDefault("stops.seedonstart", d.Stops.SeedOnStart)

	v.SetDefault("eta.defaultspeedkmh", d.ETA.DefaultSpeedKmH)
	v.SetDefault("eta.trafficfactor", d.ETA.TrafficFactor)
	for vehicleType, speed := range d.ETA.Speeds {
		v.SetDefault("eta.speeds."+vehicleType, speed)
	}

	v.SetDefault("store.driver", d.Store.Driver)
	v.SetDefault("store.dsn", d.Store.DSN)
	v.SetDefault("store.maxopenconns", d.Store.MaxOpenConns)
	v.SetDefault("store.automigrate", d.Store.AutoMigrate)

	v.SetDefault("redis.addr", d.Redis.Addr)
	v.SetDefault("redis.password", d.Redis.Password)
	v.SetDefault("redis.db", d.Redis.DB)

	v.SetDefault("ratelimit.enabled", d.RateLimit.Enabled)
	v.SetDefault("ratelimit.requestsperminute", d.RateLimit.RequestsPerMinute)
	v.SetDefault("ratelimit.burst", d.RateLimit.Burst)
	v.SetDefault("ratelimit.idlettl", d.RateLimit.IdleTTL)

	v.SetDefault("simulation.enabled", d.Simulation.Enabled)
	v.SetDefault("simulation.stepinterval", d.Simulation.StepInterval)
	v.SetDefault("simulation.minlat", d.Simulation.MinLat)
	v.SetDefault("simulation.maxlat", d.Simulation.MaxLat)
	v.SetDefault("simulation.minlng", d.Simulation.MinLng)
	v.SetDefault("simulation.maxlng", d.Simulation.MaxLng)

	v.SetDefault("stream.interval", d.Stream.Interval)
	v.SetDefault("stream.writetimeout", d.Stream.WriteTimeout)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}
