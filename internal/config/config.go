// Package config loads the agent's configuration from BLOCKPERF_ prefixed
// environment variables.
package config

import (
	"fmt"
	"net/netip"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/openblockperf/agent/internal/chain"
)

// Config holds the parsed agent configuration.
type Config struct {
	// Network selects the chain parameters and the backend URL. One of
	// mainnet, preprod, preview.
	Network string `env:"NETWORK" envDefault:"mainnet"`
	// NodeLogFile is the node's JSON trace log. The agent follows it
	// through rotation.
	NodeLogFile string `env:"NODE_LOGFILE,required"`
	// RelayPublicIP is the address the node advertises; stamped onto
	// every sample as the sample's local endpoint.
	RelayPublicIP   string `env:"RELAY_PUBLIC_IP" envDefault:"0.0.0.0"`
	RelayPublicPort uint16 `env:"RELAY_PUBLIC_PORT" envDefault:"3001"`

	// APIURL overrides the per-network backend URL when set.
	APIURL string `env:"API_URL"`
	APIKey string `env:"API_KEY"`
	// SampleFilter is an optional boolean expression over sample fields;
	// samples it rejects are not submitted.
	SampleFilter string `env:"SAMPLE_FILTER"`
	PublishQueue int    `env:"PUBLISH_QUEUE" envDefault:"256"`

	ReconcileInterval time.Duration `env:"RECONCILE_INTERVAL" envDefault:"30s"`
	SweepInterval     time.Duration `env:"SWEEP_INTERVAL" envDefault:"60s"`
	// BlockMaxAge is how long an unadopted block record survives before
	// the sweep drops it.
	BlockMaxAge time.Duration `env:"BLOCK_MAX_AGE" envDefault:"10m"`

	// ProcMountPoint is where procfs is mounted, overridable for
	// containerized deployments reading the host's /proc.
	ProcMountPoint string `env:"PROC_MOUNT_POINT" envDefault:"/proc"`

	// StatusAddr is the listen address of the HTTP status server; unset
	// leaves it disabled.
	StatusAddr string `env:"STATUS_ADDR"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	// LogFile enables rotating file output next to stderr when set.
	LogFile string `env:"LOG_FILE"`
}

// Load parses the environment and validates cross-field constraints.
func Load() (*Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: "BLOCKPERF_"}); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if _, err := chain.ByName(c.Network); err != nil {
		return err
	}
	if _, err := netip.ParseAddr(c.RelayPublicIP); err != nil {
		return fmt.Errorf("invalid relay public IP %q: %w", c.RelayPublicIP, err)
	}
	if c.PublishQueue <= 0 {
		return fmt.Errorf("publish queue size must be positive, got %d", c.PublishQueue)
	}
	if c.ReconcileInterval <= 0 || c.SweepInterval <= 0 || c.BlockMaxAge <= 0 {
		return fmt.Errorf("intervals must be positive")
	}
	return nil
}

// Chain returns the selected network's parameters. Validation already
// guaranteed the name resolves.
func (c *Config) Chain() chain.Network {
	n, _ := chain.ByName(c.Network)
	return n
}

// BackendURL is the explicit API URL when set, the network default
// otherwise.
func (c *Config) BackendURL() string {
	if c.APIURL != "" {
		return c.APIURL
	}
	return c.Chain().APIURL
}

// LocalAddr parses the relay's public IP. Validation already guaranteed it
// parses.
func (c *Config) LocalAddr() netip.Addr {
	a, _ := netip.ParseAddr(c.RelayPublicIP)
	return a
}
