package agentbridge

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/seoflow-backend/internal/platform/envutil"
)

// AgentSpec overrides how one agent type is launched.
type AgentSpec struct {
	// Command is the argv prefix; flags are appended after it.
	// Empty means "<binary> <agent type>".
	Command []string          `yaml:"command"`
	Timeout string            `yaml:"timeout"`
	Env     map[string]string `yaml:"env"`
}

type Config struct {
	Binary         string
	DefaultTimeout time.Duration
	TempDir        string
	MaxOutputBytes int
	Agents         map[string]AgentSpec
}

type registryFile struct {
	Binary  string               `yaml:"binary"`
	Timeout string               `yaml:"default_timeout"`
	Agents  map[string]AgentSpec `yaml:"agents"`
}

const (
	AgentResearch       = "research"
	AgentCompetitorScan = "competitor_scan"
	AgentFactCheck      = "fact_check"
	AgentLinkInsert     = "link_insert"
)

var defaultTimeouts = map[string]time.Duration{
	AgentResearch:       5 * time.Minute,
	AgentCompetitorScan: 10 * time.Minute,
	AgentFactCheck:      5 * time.Minute,
	AgentLinkInsert:     2 * time.Minute,
}

func ConfigFromEnv() (Config, error) {
	cfg := Config{
		Binary:         envutil.String("AGENT_BINARY", "seoflow-agent"),
		DefaultTimeout: envutil.Seconds("AGENT_TIMEOUT_SECONDS", 5*time.Minute),
		TempDir:        envutil.String("AGENT_TEMP_DIR", ""),
		MaxOutputBytes: envutil.Int("AGENT_MAX_OUTPUT_BYTES", 8<<20),
		Agents:         map[string]AgentSpec{},
	}
	path := envutil.String("AGENT_REGISTRY_FILE", "")
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read agent registry: %w", err)
	}
	if err := cfg.LoadRegistry(raw); err != nil {
		return cfg, fmt.Errorf("agent registry %s: %w", path, err)
	}
	return cfg, nil
}

// LoadRegistry merges a YAML registry document into the config.
func (c *Config) LoadRegistry(raw []byte) error {
	var rf registryFile
	if err := yaml.Unmarshal(raw, &rf); err != nil {
		return err
	}
	if strings.TrimSpace(rf.Binary) != "" {
		c.Binary = rf.Binary
	}
	if rf.Timeout != "" {
		d, err := time.ParseDuration(rf.Timeout)
		if err != nil {
			return fmt.Errorf("default_timeout: %w", err)
		}
		c.DefaultTimeout = d
	}
	if c.Agents == nil {
		c.Agents = map[string]AgentSpec{}
	}
	for name, spec := range rf.Agents {
		if spec.Timeout != "" {
			if _, err := time.ParseDuration(spec.Timeout); err != nil {
				return fmt.Errorf("agent %s timeout: %w", name, err)
			}
		}
		c.Agents[name] = spec
	}
	return nil
}

func (c Config) timeoutFor(agent string) time.Duration {
	if spec, ok := c.Agents[agent]; ok && spec.Timeout != "" {
		if d, err := time.ParseDuration(spec.Timeout); err == nil && d > 0 {
			return d
		}
	}
	if d, ok := defaultTimeouts[agent]; ok && d <= c.DefaultTimeout {
		return d
	}
	if c.DefaultTimeout > 0 {
		return c.DefaultTimeout
	}
	return 5 * time.Minute
}

func (c Config) argvFor(agent string) []string {
	if spec, ok := c.Agents[agent]; ok && len(spec.Command) > 0 {
		return append([]string(nil), spec.Command...)
	}
	return []string{c.Binary, agent}
}
