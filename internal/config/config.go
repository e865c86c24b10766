package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/zmlAEQ/threshold-combiner/internal/combiner"
	"github.com/zmlAEQ/threshold-combiner/internal/tbls"
)

// Signer is one configured signer node.
type Signer struct {
	Index int    `yaml:"index"`
	URL   string `yaml:"url"`
}

// Config is the node configuration loaded from YAML; flags may override the
// listen addresses and signer list.
type Config struct {
	APIAddr        string `yaml:"api_addr"`
	MonitoringAddr string `yaml:"monitoring_addr"`

	KeyVersion string   `yaml:"key_version"`
	Threshold  int      `yaml:"threshold"`
	PublicKey  string   `yaml:"public_key"` // hex, compressed G1
	Polynomial []string `yaml:"polynomial"` // hex commitments, constant term first

	Signers []Signer `yaml:"signers"`

	FanoutTimeoutMS int    `yaml:"fanout_timeout_ms"`
	AuditWebhook    string `yaml:"audit_webhook"`
}

// Load reads and validates a YAML config file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return &c, nil
}

func (c *Config) Validate() error {
	if c.KeyVersion == "" {
		return fmt.Errorf("key_version is required")
	}
	if c.PublicKey == "" {
		return fmt.Errorf("public_key is required")
	}
	if len(c.Signers) == 0 {
		return fmt.Errorf("at least one signer is required")
	}
	if c.Threshold < 1 || c.Threshold > len(c.Signers) {
		return fmt.Errorf("threshold %d out of range [1,%d]", c.Threshold, len(c.Signers))
	}
	seen := map[int]struct{}{}
	for _, s := range c.Signers {
		if s.Index <= 0 {
			return fmt.Errorf("signer index must be positive: %d", s.Index)
		}
		if s.URL == "" {
			return fmt.Errorf("signer %d: url is required", s.Index)
		}
		if _, dup := seen[s.Index]; dup {
			return fmt.Errorf("duplicate signer index %d", s.Index)
		}
		seen[s.Index] = struct{}{}
	}
	return nil
}

// Epoch builds the key epoch from the configured material.
func (c *Config) Epoch() (*tbls.Epoch, error) {
	pub, err := hex.DecodeString(c.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("public_key: %w", err)
	}
	commitments := make([][]byte, 0, len(c.Polynomial))
	for i, p := range c.Polynomial {
		b, err := hex.DecodeString(p)
		if err != nil {
			return nil, fmt.Errorf("polynomial[%d]: %w", i, err)
		}
		commitments = append(commitments, b)
	}
	return tbls.NewEpoch(pub, c.KeyVersion, commitments, c.Threshold)
}

// Endpoints maps the signer list to fan-out endpoints.
func (c *Config) Endpoints() []combiner.Endpoint {
	out := make([]combiner.Endpoint, 0, len(c.Signers))
	for _, s := range c.Signers {
		out = append(out, combiner.Endpoint{Index: s.Index, URL: s.URL})
	}
	return out
}

// ParseSigners parses a comma-separated "index=url" list, e.g.
// "1=http://s1:4600,2=http://s2:4600".
func ParseSigners(s string) ([]Signer, error) {
	if s == "" {
		return []Signer{}, nil
	}
	parts := strings.Split(s, ",")
	out := make([]Signer, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			return nil, fmt.Errorf("invalid signer %q (expected index=url)", part)
		}
		idx, err := strconv.Atoi(strings.TrimSpace(kv[0]))
		if err != nil || idx <= 0 {
			return nil, fmt.Errorf("invalid signer index %q", kv[0])
		}
		url := strings.TrimSpace(kv[1])
		if url == "" {
			return nil, fmt.Errorf("signer %d: empty url", idx)
		}
		out = append(out, Signer{Index: idx, URL: url})
	}
	return out, nil
}
