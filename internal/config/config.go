// Package config holds the immutable per-run reap policy and the
// application configuration for the profreap commands.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrInvalidAge is returned when the minimum age is not a positive
// number of days. It is raised at policy construction time, before any
// profile is touched.
var ErrInvalidAge = errors.New("minimum age must be a positive number of days")

// FallbackPolicy selects what the engine does when no last-use
// timestamp can be resolved for a profile.
type FallbackPolicy string

const (
	// FallbackSkip treats an unresolvable timestamp as insufficient
	// data: the profile is skipped.
	FallbackSkip FallbackPolicy = "skip"
	// FallbackEpoch substitutes the Unix epoch, making the profile
	// maximally old and therefore a deletion candidate by default.
	FallbackEpoch FallbackPolicy = "epoch"
)

// ParseFallback validates a fallback policy name.
func ParseFallback(s string) (FallbackPolicy, error) {
	switch FallbackPolicy(s) {
	case FallbackSkip, FallbackEpoch:
		return FallbackPolicy(s), nil
	default:
		return "", fmt.Errorf("unknown fallback policy %q (want %q or %q)", s, FallbackSkip, FallbackEpoch)
	}
}

// PolicySpec carries the raw inputs for a Policy.
type PolicySpec struct {
	MinAgeDays int
	Force      bool
	DryRun     bool
	Fallback   FallbackPolicy
	SafeList   []string
}

// Policy is the validated, immutable per-run configuration consumed by
// the eligibility engine and executor.
type Policy struct {
	MinAgeDays int
	Force      bool
	DryRun     bool
	Fallback   FallbackPolicy

	safeList map[string]struct{}
}

// NewPolicy validates spec and builds a Policy. Safe-list entries are
// normalized to lowercase to match account ID derivation.
func NewPolicy(spec PolicySpec) (Policy, error) {
	if spec.MinAgeDays <= 0 {
		return Policy{}, fmt.Errorf("%w: got %d", ErrInvalidAge, spec.MinAgeDays)
	}
	fallback := spec.Fallback
	if fallback == "" {
		fallback = FallbackSkip
	}
	if _, err := ParseFallback(string(fallback)); err != nil {
		return Policy{}, err
	}
	p := Policy{
		MinAgeDays: spec.MinAgeDays,
		Force:      spec.Force,
		DryRun:     spec.DryRun,
		Fallback:   fallback,
		safeList:   make(map[string]struct{}, len(spec.SafeList)),
	}
	for _, id := range spec.SafeList {
		id = strings.ToLower(strings.TrimSpace(id))
		if id != "" {
			p.safeList[id] = struct{}{}
		}
	}
	return p, nil
}

// SafeListed reports whether the account is on the safe-list.
func (p Policy) SafeListed(accountID string) bool {
	_, ok := p.safeList[strings.ToLower(accountID)]
	return ok
}

// LoadSafeList reads a YAML safe-list file: a plain list of account
// IDs.
func LoadSafeList(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading safe-list: %w", err)
	}
	var ids []string
	if err := yaml.Unmarshal(data, &ids); err != nil {
		return nil, fmt.Errorf("parsing safe-list %s: %w", path, err)
	}
	return ids, nil
}

// Config is the application configuration for commands that need more
// than the reap policy (data location, agent mode, probe commands).
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Probes  ProbeConfig   `yaml:"probes"`
	Reap    ReapConfig    `yaml:"reap"`
}

type ServerConfig struct {
	Port     int    `yaml:"port"`
	APIToken string `yaml:"api_token"`
}

type StorageConfig struct {
	DataDir string `yaml:"data_dir"`
}

type ProbeConfig struct {
	// SessionCommand lists active sessions, one per line with the
	// account name in the first column (default: who).
	SessionCommand string `yaml:"session_command"`
	// DomainCommand resolves an account name; a "no such user" style
	// failure marks the account unresolvable (default: id).
	DomainCommand string `yaml:"domain_command"`
}

type ReapConfig struct {
	Fallback string `yaml:"fallback"`
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 4600,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Probes: ProbeConfig{
			SessionCommand: "who",
			DomainCommand:  "id",
		},
		Reap: ReapConfig{
			Fallback: string(FallbackSkip),
		},
	}
}

func defaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "profreap")
	}
	return ".profreap"
}

// Load reads configuration in layers: compiled defaults, then the YAML
// config file at $XDG_CONFIG_HOME/profreap/config.yaml (if present),
// then PROFREAP_* environment overrides.
func Load() (Config, error) {
	path := ""
	if dir, err := os.UserConfigDir(); err == nil {
		path = filepath.Join(dir, "profreap", "config.yaml")
	}
	return loadWith(path, os.Getenv)
}

func loadWith(path string, getenv func(string) string) (Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parsing config %s: %w", path, err)
			}
		case !os.IsNotExist(err):
			return Config{}, fmt.Errorf("reading config: %w", err)
		}
	}

	applyEnvOverrides(&cfg, getenv)

	if _, err := ParseFallback(cfg.Reap.Fallback); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config, getenv func(string) string) {
	if v := getenv("PROFREAP_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := getenv("PROFREAP_API_TOKEN"); v != "" {
		cfg.Server.APIToken = v
	}
	if v := getenv("PROFREAP_DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := getenv("PROFREAP_SESSION_COMMAND"); v != "" {
		cfg.Probes.SessionCommand = v
	}
	if v := getenv("PROFREAP_DOMAIN_COMMAND"); v != "" {
		cfg.Probes.DomainCommand = v
	}
	if v := getenv("PROFREAP_FALLBACK"); v != "" {
		cfg.Reap.Fallback = v
	}
}
