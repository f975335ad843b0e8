package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/HaiboGNU/eos-sub000/pkg/types"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
node:
  id: core-1
  bind_addr: 127.0.0.1:7946
  transport_addr: 127.0.0.1:1094
  data_dir: /var/lib/eos-mgm
  admin_gid: 100
  daemon_uid: 2
  version: "1.0.0"
engines:
  balancer: 45s
  lru: 1h
health:
  stale_after: 20s
rules:
  - kind: ban
    target: "uid:1000"
  - kind: stall
    target: "*"
    seconds: 5
    message: overloaded
spaces:
  - name: default
    headroom: 1073741824
    scan_interval: 10s
    balance_threshold: 0.1
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "eos-mgm.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadParsesNodeAndEngineFields(t *testing.T) {
	path := writeConfig(t, sampleYAML)

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, "core-1", cfg.Node.ID)
	require.Equal(t, "127.0.0.1:1094", cfg.Node.TransportAddr)
	require.Equal(t, uint32(100), cfg.Node.AdminGID)
	require.Equal(t, 45*time.Second, cfg.Engines.Balancer)
	require.Equal(t, time.Hour, cfg.Engines.LRU)
	require.Equal(t, time.Duration(0), cfg.Engines.Compactor)
	require.Equal(t, 20*time.Second, cfg.Health.StaleAfter)
}

func TestLoadMissingFileReturnsError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestAccessRulesConvertsEveryRule(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	rules := cfg.AccessRules()
	require.Len(t, rules, 2)
	require.Equal(t, types.RuleBan, rules[0].Kind)
	require.Equal(t, "uid:1000", rules[0].Target)
	require.Equal(t, types.RuleStall, rules[1].Kind)
	require.Equal(t, 5, rules[1].Seconds)
	require.Equal(t, "overloaded", rules[1].Message)
}

func TestSpacesConvertsDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	spaces := cfg.Spaces()
	require.Len(t, spaces, 1)
	require.Equal(t, "default", spaces[0].Name)
	require.Equal(t, uint64(1073741824), spaces[0].Headroom)
	require.Equal(t, 10*time.Second, spaces[0].ScanInterval)
	require.InDelta(t, 0.1, spaces[0].BalanceThreshold, 0.0001)
}
