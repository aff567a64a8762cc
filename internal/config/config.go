// Package config centralizes all application configuration into typed structs.
//
// Go Learning Note — Configuration Management:
// Defaults live in NewDefaultConfig as a plain struct literal. Load layers a
// config file and KIGALIGO_* environment variables on top of those defaults
// with viper, then checks the result with validator struct tags. Code that
// only needs defaults (tests, tools) keeps calling NewDefaultConfig directly.
package config

import (
	"time"
)

// Config is the top-level configuration container.
//
// Go Learning Note — Struct Composition:
// Config "has a" ServerConfig, QueryConfig, etc. Each service receives only
// the sub-struct it needs, which keeps constructors honest about their
// dependencies.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Query      QueryConfig      `mapstructure:"query"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Seed       SeedConfig       `mapstructure:"seed"`
	Stops      StopsConfig      `mapstructure:"stops"`
	ETA        ETAConfig        `mapstructure:"eta"`
	Store      StoreConfig      `mapstructure:"store"`
	Redis      RedisConfig      `mapstructure:"redis"`
	RateLimit  RateLimitConfig  `mapstructure:"ratelimit"`
	Simulation SimulationConfig `mapstructure:"simulation"`
	Stream     StreamConfig     `mapstructure:"stream"`
	Log        LogConfig        `mapstructure:"log"`
}

// ServerConfig holds HTTP server settings.
//
// Go Learning Note — time.Duration:
// Durations decode from strings like "10s" or "500ms", so config files stay
// readable and there is no guessing about units.
type ServerConfig struct {
	Port            string        `mapstructure:"port" validate:"required"`
	Mode            string        `mapstructure:"mode" validate:"oneof=debug release test"`
	ReadTimeout     time.Duration `mapstructure:"readtimeout" validate:"gt=0"`
	WriteTimeout    time.Duration `mapstructure:"writetimeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `mapstructure:"shutdowntimeout" validate:"gt=0"`
}

// QueryConfig bounds the proximity query engine.
type QueryConfig struct {
	DefaultRadiusKm float64       `mapstructure:"defaultradiuskm" validate:"gt=0,ltefield=MaxRadiusKm"`
	MaxRadiusKm     float64       `mapstructure:"maxradiuskm" validate:"gt=0"`
	MaxResults      int           `mapstructure:"maxresults" validate:"gt=0"`
	StoreTimeout    time.Duration `mapstructure:"storetimeout" validate:"gt=0"` // budget for each store fetch
	SeedTimeout     time.Duration `mapstructure:"seedtimeout" validate:"gt=0"`
	MaxSinceAge     time.Duration `mapstructure:"maxsinceage" validate:"gt=0"` // older cursors are clamped
}

// CacheConfig selects the result cache backend.
type CacheConfig struct {
	Backend       string        `mapstructure:"backend" validate:"oneof=memory redis none"`
	TTL           time.Duration `mapstructure:"ttl" validate:"gt=0"`
	KeyPrefix     string        `mapstructure:"keyprefix"`
	SweepInterval time.Duration `mapstructure:"sweepinterval" validate:"gte=0"`
}

// SeedConfig controls demo vehicle seeding, used by the empty-area fallback
// and the seed endpoint.
type SeedConfig struct {
	TotalHint      int     `mapstructure:"totalhint" validate:"gt=0"`
	RadiusKm       float64 `mapstructure:"radiuskm" validate:"gt=0"`
	IncludePresets bool    `mapstructure:"includepresets"`
	CenterLat      float64 `mapstructure:"centerlat" validate:"gte=-90,lte=90"`
	CenterLng      float64 `mapstructure:"centerlng" validate:"gte=-180,lte=180"`
}

// StopsConfig bounds the stop ETA query. A vehicle farther than
// VehicleRadiusKm from a stop is never reported as arriving there.
type StopsConfig struct {
	DefaultRadiusKm float64 `mapstructure:"defaultradiuskm" validate:"gt=0"`
	VehicleRadiusKm float64 `mapstructure:"vehicleradiuskm" validate:"gt=0"`
	SeedOnStart     bool    `mapstructure:"seedonstart"`
}

// ETAConfig overrides the per-type average speeds (km/h).
type ETAConfig struct {
	DefaultSpeedKmH float64            `mapstructure:"defaultspeedkmh" validate:"gt=0"`
	TrafficFactor   float64            `mapstructure:"trafficfactor" validate:"gt=0"`
	Speeds          map[string]float64 `mapstructure:"speeds"`
}

// StoreConfig selects the vehicle store. "memory" needs no DSN; "sqlite"
// treats an empty DSN as an in-memory database.
type StoreConfig struct {
	Driver       string `mapstructure:"driver" validate:"oneof=memory sqlite postgres"`
	DSN          string `mapstructure:"dsn" validate:"required_if=Driver postgres"`
	MaxOpenConns int    `mapstructure:"maxopenconns" validate:"gte=0"`
	AutoMigrate  bool   `mapstructure:"automigrate"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db" validate:"gte=0"`
}

// RateLimitConfig is applied per client IP.
type RateLimitConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	RequestsPerMinute int           `mapstructure:"requestsperminute" validate:"gt=0"`
	Burst             int           `mapstructure:"burst" validate:"gt=0"`
	IdleTTL           time.Duration `mapstructure:"idlettl" validate:"gt=0"`
}

// SimulationConfig drives the background movement loop. Vehicles bounce off
// the bounds box.
type SimulationConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	StepInterval time.Duration `mapstructure:"stepinterval" validate:"gt=0"`
	MinLat       float64       `mapstructure:"minlat" validate:"ltfield=MaxLat"`
	MaxLat       float64       `mapstructure:"maxlat"`
	MinLng       float64       `mapstructure:"minlng" validate:"ltfield=MaxLng"`
	MaxLng       float64       `mapstructure:"maxlng"`
}

type StreamConfig struct {
	Interval     time.Duration `mapstructure:"interval" validate:"gt=0"`
	WriteTimeout time.Duration `mapstructure:"writetimeout" validate:"gt=0"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=trace debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=console json"`
}

// NewDefaultConfig returns a Config populated with sensible defaults.
//
// Go Learning Note — Constructor Functions:
// Go has no constructors. By convention, New<Type>() functions serve the same
// purpose. Load starts from this value too, so there is exactly one place
// where defaults are spelled out.
func NewDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            ":8080",
			Mode:            "release",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Query: QueryConfig{
			DefaultRadiusKm: 5.0,
			MaxRadiusKm:     20.0,
			MaxResults:      50,
			StoreTimeout:    2 * time.Second,
			SeedTimeout:     5 * time.Second,
			MaxSinceAge:     24 * time.Hour,
		},
		Cache: CacheConfig{
			Backend:       "memory",
			TTL:           5 * time.Second,
			KeyPrefix:     "vehicles",
			SweepInterval: 30 * time.Second,
		},
		Seed: SeedConfig{
			TotalHint:      20,
			RadiusKm:       5.0,
			IncludePresets: true,
			CenterLat:      -1.9441, // Nyabugogo
			CenterLng:      30.0619,
		},
		Stops: StopsConfig{
			DefaultRadiusKm: 2.0,
			VehicleRadiusKm: 1.0,
			SeedOnStart:     true,
		},
		ETA: ETAConfig{
			DefaultSpeedKmH: 35,
			TrafficFactor:   1.0,
			Speeds: map[string]float64{
				"bus":  30,
				"taxi": 40,
				"moto": 50,
			},
		},
		Store: StoreConfig{
			Driver:       "memory",
			MaxOpenConns: 10,
			AutoMigrate:  true,
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		RateLimit: RateLimitConfig{
			Enabled:           true,
			RequestsPerMinute: 100,
			Burst:             20,
			IdleTTL:           10 * time.Minute,
		},
		Simulation: SimulationConfig{
			Enabled:      false,
			StepInterval: 5 * time.Second,
			MinLat:       -1.98,
			MaxLat:       -1.90,
			MinLng:       30.03,
			MaxLng:       30.14,
		},
		Stream: StreamConfig{
			Interval:     3 * time.Second,
			WriteTimeout: 5 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}
