// control/config.go
// Author: momentics <momentics@gmail.com>
//
// Endpoint configuration: TOML file, defaults, environment overrides and a
// thread-safe store with reload propagation.

package control

import (
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"

	"github.com/momentics/hioload-rpc/api"
	"github.com/momentics/hioload-rpc/protocol"
)

// Environment variables consulted by LoadConfig and ParseConfig.
const (
	EnvLogLevel       = "HIOLOAD_RPC_LOG_LEVEL"
	EnvLogTimestamp   = "HIOLOAD_RPC_LOG_TIMESTAMP"
	EnvLogNoColor     = "HIOLOAD_RPC_LOG_NOCOLOR"
	EnvDatapathChecks = "HIOLOAD_RPC_DATAPATH_CHECKS"
)

// EndpointConfig tunes one RPC endpoint.
type EndpointConfig struct {
	// DatapathChecks selects checked (true) or trusted (false) argument
	// validation on the submission path. Fixed at endpoint construction.
	DatapathChecks bool `toml:"datapath_checks"`
	// CPU pins the endpoint goroutine's OS thread when >= 0.
	CPU         int `toml:"cpu"`
	NUMANode    int `toml:"numa_node"`
	MaxSessions int `toml:"max_sessions"`
	TxQueueHint int `toml:"tx_queue_hint"`
}

// PoolConfig sizes the message-buffer arena.
type PoolConfig struct {
	MsgBufRegions int `toml:"msgbuf_regions"`
	RegionSize    int `toml:"region_size"`
	// MaxDataPerPkt overrides the transport MTU when > 0.
	MaxDataPerPkt int `toml:"max_data_per_pkt"`
}

// LogConfig configures NewLogger.
type LogConfig struct {
	Level     string `toml:"level"`
	Timestamp bool   `toml:"timestamp"`
	NoColor   bool   `toml:"no_color"`
	JSON      bool   `toml:"json"`
}

// MetricsConfig configures NewMetrics.
type MetricsConfig struct {
	Enabled   bool   `toml:"enabled"`
	Namespace string `toml:"namespace"`
}

// Config is the root of the TOML document.
type Config struct {
	Endpoint EndpointConfig `toml:"endpoint"`
	Pool     PoolConfig     `toml:"pool"`
	Log      LogConfig      `toml:"log"`
	Metrics  MetricsConfig  `toml:"metrics"`
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() Config {
	return Config{
		Endpoint: EndpointConfig{
			DatapathChecks: DefaultDatapathChecks,
			CPU:            -1,
			NUMANode:       -1,
			MaxSessions:    1024,
			TxQueueHint:    64,
		},
		Pool: PoolConfig{
			MsgBufRegions: 256,
			RegionSize:    64 << 10,
		},
		Log: LogConfig{
			Level:     "info",
			Timestamp: true,
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: "hioload_rpc",
		},
	}
}

// LoadConfig reads path over the defaults, applies environment overrides
// and validates the result.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, errors.Wrapf(err, "load config %s", path)
	}
	return finish(cfg)
}

// ParseConfig is LoadConfig for an in-memory document.
func ParseConfig(data string) (Config, error) {
	cfg := DefaultConfig()
	if _, err := toml.Decode(data, &cfg); err != nil {
		return Config{}, errors.Wrap(err, "parse config")
	}
	return finish(cfg)
}

func finish(cfg Config) (Config, error) {
	applyEnvOverrides(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if raw := strings.TrimSpace(os.Getenv(EnvLogLevel)); raw != "" {
		cfg.Log.Level = raw
	}
	if v, ok := parseBool(os.Getenv(EnvLogTimestamp)); ok {
		cfg.Log.Timestamp = v
	}
	if v, ok := parseBool(os.Getenv(EnvLogNoColor)); ok {
		cfg.Log.NoColor = v
	}
	if v, ok := parseBool(os.Getenv(EnvDatapathChecks)); ok {
		cfg.Endpoint.DatapathChecks = v
	}
}

func parseBool(raw string) (bool, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}

// Validate rejects configurations an endpoint cannot run with.
func (c Config) Validate() error {
	invalid := func(msg string) error {
		return errors.Wrap(api.ErrInvalidArgument, "config: "+msg)
	}
	switch {
	case c.Endpoint.MaxSessions <= 0 || c.Endpoint.MaxSessions > protocol.MaxSessionNum+1:
		return invalid("endpoint.max_sessions out of range")
	case c.Endpoint.TxQueueHint < 0:
		return invalid("endpoint.tx_queue_hint negative")
	case c.Pool.MsgBufRegions <= 0:
		return invalid("pool.msgbuf_regions must be positive")
	case c.Pool.RegionSize <= protocol.PktHdrSize:
		return invalid("pool.region_size too small")
	case c.Pool.MaxDataPerPkt < 0:
		return invalid("pool.max_data_per_pkt negative")
	case c.Pool.MaxDataPerPkt > 0 && c.Pool.MaxDataPerPkt < protocol.MinDataPerPkt:
		return invalid("pool.max_data_per_pkt below minimum")
	}
	if _, ok := ParseLevel(c.Log.Level); !ok {
		return invalid("log.level unknown: " + c.Log.Level)
	}
	return nil
}

// ConfigStore holds the current configuration and notifies listeners on
// replacement.
type ConfigStore struct {
	mu        sync.RWMutex
	config    Config
	listeners []func(Config)
}

// NewConfigStore initializes a store with cfg.
func NewConfigStore(cfg Config) *ConfigStore {
	return &ConfigStore{config: cfg}
}

// Snapshot returns the current configuration.
func (cs *ConfigStore) Snapshot() Config {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return cs.config
}

// Set validates and installs cfg, then calls every listener synchronously
// with the new value.
func (cs *ConfigStore) Set(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	cs.mu.Lock()
	cs.config = cfg
	listeners := append([]func(Config){}, cs.listeners...)
	cs.mu.Unlock()
	for _, fn := range listeners {
		fn(cfg)
	}
	return nil
}

// Reload reads path and installs the result.
func (cs *ConfigStore) Reload(path string) error {
	cfg, err := LoadConfig(path)
	if err != nil {
		return err
	}
	return cs.Set(cfg)
}

// OnReload registers a listener called after each Set.
func (cs *ConfigStore) OnReload(fn func(Config)) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.listeners = append(cs.listeners, fn)
}
