// Package config loads the corridorwatch YAML configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/corridorwatch/internal/alert"
	"github.com/ppiankov/corridorwatch/internal/auth"
	"github.com/ppiankov/corridorwatch/internal/consentsig"
	"github.com/ppiankov/corridorwatch/internal/envelope"
	"github.com/ppiankov/corridorwatch/internal/ratelimit"
)

// Access configures the access-policy verdict.
type Access struct {
	Policy auth.AccessPolicy `yaml:"policy"`
	// Strict makes disabled policy flags deny an otherwise allowed request.
	Strict bool `yaml:"strict"`
}

// Registry configures where corridor records come from.
type Registry struct {
	File       string `yaml:"file"`
	Database   string `yaml:"database"`
	RequireDID bool   `yaml:"require_did"`
}

// Audit configures the decision log.
type Audit struct {
	Log    string `yaml:"log"`
	Ledger string `yaml:"ledger"`
}

// Consent configures external signature verification for high-impact
// requests. Empty TrustedKeys disables verification.
type Consent struct {
	TrustedKeys []consentsig.TrustedKey `yaml:"trusted_keys"`
}

// HTTP configures the JSON facade.
type HTTP struct {
	RateLimits ratelimit.Config `yaml:"rate_limits"`
}

// Config is the full configuration file.
type Config struct {
	Envelope envelope.Config     `yaml:"envelope"`
	Access   Access              `yaml:"access"`
	Registry Registry            `yaml:"registry"`
	Audit    Audit               `yaml:"audit"`
	Consent  Consent             `yaml:"consent"`
	HTTP     HTTP                `yaml:"http"`
	Alerts   []alert.AlertConfig `yaml:"alerts"`
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	return &Config{
		Envelope: envelope.DefaultConfig(),
		Access:   Access{Policy: auth.DefaultAccessPolicy()},
	}
}

// Validate checks values YAML decoding cannot.
func (c *Config) Validate() error {
	if err := c.Envelope.Validate(); err != nil {
		return err
	}
	if _, err := consentsig.NewVerifier(c.Consent.TrustedKeys); err != nil {
		return fmt.Errorf("consent: %w", err)
	}
	if err := c.HTTP.RateLimits.Validate(); err != nil {
		return fmt.Errorf("http: %w", err)
	}
	return nil
}

// DefaultDir returns ~/.corridorwatch, or "" when no home directory exists.
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".corridorwatch")
}

// DefaultPath returns ~/.corridorwatch/config.yaml.
func DefaultPath() string {
	dir := DefaultDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "config.yaml")
}

// LoadConfig loads configuration from a YAML file.
// Empty path falls back to ~/.corridorwatch/config.yaml.
// Missing file returns defaults. Invalid YAML returns an error.
func LoadConfig(path string) (*Config, error) {
	cfg, _, err := LoadConfigWithHash(path)
	return cfg, err
}

// LoadConfigWithHash loads configuration and returns the content ID of the
// raw bytes on disk. When no file exists, the ID is that of empty input.
func LoadConfigWithHash(path string) (*Config, string, error) {
	if path == "" {
		path = DefaultPath()
	}
	if path == "" {
		return DefaultConfig(), ContentID(nil), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), ContentID(nil), nil
		}
		return nil, "", fmt.Errorf("failed to read config: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, "", err
	}
	return cfg, ContentID(data), nil
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	// Start with defaults, YAML overwrites only specified fields
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DefaultConfigYAML returns a commented YAML string for init-config.
func DefaultConfigYAML() string {
	return `# corridorwatch configuration
# Generated by: corridorwatch init-config

# Safety envelope thresholds. Margins are bound/value for upper bounds and
# value/min for interface coherence; the composite is the smallest margin.
#   composite < caution_lower                  -> hard_deny
#   caution_lower <= composite < caution_upper -> caution
#   composite >= caution_upper                 -> safe
envelope:
  mech_density_max: 1.0
  interface_coherence_min: 0.8
  em_field_max: 1.0
  thermal_max: 1.0
  inflammation_max: 1.0
  spike_energy_max: 1.0
  caution_lower: 1.0
  caution_upper: 1.1

# Access policy applied after the multi-factor decision.
# Disabled flags are reported as reasons. With strict: true they also deny.
access:
  strict: false
  policy:
    role_based_access: true
    access_logging: true
    data_minimization: true
    lawful_processing: true
    compliance:
      gdpr: true
      iso27001: true
      soc2: true

# Corridor records. file is a YAML seed reloaded on change; database is a
# SQLite file that persists upserts.
registry:
  file: ""
  database: ""
  require_did: false

# Decision log. Defaults to ~/.corridorwatch/audit.jsonl when empty.
audit:
  log: ""
  ledger: ""

# Trusted consent issuers. When set, high-impact requests must carry a
# consent signature from one of these keys.
# consent:
#   trusted_keys:
#     - issuer_did: did:example:tribal-council:xyz
#       public_key: ed25519:<base64>
#       hash_alg: sha256

# Per-client request limits on the HTTP facade. Categories: envelope,
# action, mfa, or * for all. Exceeding a limit returns 429.
# http:
#   rate_limits:
#     "*":
#       max_requests: 600
#       window: 1m

# Webhook alerts.
# alerts:
#   - url: https://hooks.example.com/corridorwatch
#     format: slack
#     events: [hard_deny, deny]
`
}
