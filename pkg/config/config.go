// Package config defines the typed YAML document cmd/eos-mgm loads at
// startup: this node's identity and data paths, the engine cycle
// periods pkg/engines ticks on, and the access rules pkg/rules seeds
// before the first open arrives. Parsing a config file is the whole of
// it — there is no flag parser or live-reload watcher here, since the
// surrounding CLI shell is explicitly out of scope (spec §1).
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/HaiboGNU/eos-sub000/pkg/types"
	"gopkg.in/yaml.v3"
)

// Config is the top-level document, one file per node.
type Config struct {
	Node    NodeConfig    `yaml:"node"`
	Engines EngineConfig  `yaml:"engines"`
	Health  HealthConfig  `yaml:"health"`
	Rules   []RuleConfig  `yaml:"rules"`
	Spaces  []SpaceConfig `yaml:"spaces"`
}

// NodeConfig names this node's identity, data directory, and the two
// addresses it listens on: BindAddr for raft, TransportAddr for the
// grpc Open/Commit/ProcExec/Join service.
type NodeConfig struct {
	ID            string `yaml:"id"`
	BindAddr      string `yaml:"bind_addr"`
	TransportAddr string `yaml:"transport_addr"`
	DataDir       string `yaml:"data_dir"`

	AdminGID  uint32 `yaml:"admin_gid"`
	DaemonUID uint32 `yaml:"daemon_uid"`
	Version   string `yaml:"version"`
}

// EngineConfig overrides the default tick period of each background
// engine (spec §4.9); a zero duration leaves that engine's own default
// in place.
type EngineConfig struct {
	Balancer  time.Duration `yaml:"balancer"`
	Compactor time.Duration `yaml:"compactor"`
	Deletion  time.Duration `yaml:"deletion"`
	Drain     time.Duration `yaml:"drain"`
	Fsck      time.Duration `yaml:"fsck"`
	LRU       time.Duration `yaml:"lru"`
}

// HealthConfig bounds how long a file system may go without a
// heartbeat before pkg/health.Monitor reports it as stale.
type HealthConfig struct {
	StaleAfter time.Duration `yaml:"stale_after"`
}

// RuleConfig is one access rule (spec §4.6 steps 2-3), decoded into
// types.AccessRule and loaded into pkg/rules.Store at startup.
type RuleConfig struct {
	Kind    string `yaml:"kind"`
	Target  string `yaml:"target"`
	Seconds int    `yaml:"seconds,omitempty"`
	Message string `yaml:"message,omitempty"`
	Host    string `yaml:"host,omitempty"`
	Port    int    `yaml:"port,omitempty"`
}

// SpaceConfig seeds one space's placement policy defaults (spec §4.4)
// before any filesystem registers into it.
type SpaceConfig struct {
	Name             string        `yaml:"name"`
	Headroom         uint64        `yaml:"headroom"`
	ScanInterval     time.Duration `yaml:"scan_interval"`
	GracePeriod      time.Duration `yaml:"grace_period"`
	DrainPeriod      time.Duration `yaml:"drain_period"`
	BalanceThreshold float64       `yaml:"balance_threshold"`
}

// Load reads and parses a node's YAML config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return &cfg, nil
}

// AccessRules converts the configured rule list into the types.AccessRule
// form pkg/rules.Store.Add expects.
func (c *Config) AccessRules() []types.AccessRule {
	out := make([]types.AccessRule, 0, len(c.Rules))
	for _, r := range c.Rules {
		out = append(out, types.AccessRule{
			Kind:    types.AccessRuleKind(r.Kind),
			Target:  r.Target,
			Seconds: r.Seconds,
			Message: r.Message,
			Host:    r.Host,
			Port:    r.Port,
		})
	}
	return out
}

// Spaces converts the configured space defaults into types.Space
// values ready for clusterview.View.UpsertSpace.
func (c *Config) Spaces() []types.Space {
	out := make([]types.Space, 0, len(c.Spaces))
	for _, s := range c.Spaces {
		out = append(out, types.Space{
			Name:             s.Name,
			Headroom:         s.Headroom,
			ScanInterval:     s.ScanInterval,
			GracePeriod:      s.GracePeriod,
			DrainPeriod:      s.DrainPeriod,
			BalanceThreshold: s.BalanceThreshold,
		})
	}
	return out
}
