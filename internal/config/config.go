package config

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/aretw0/fixpoint/pkg/bam"
	"github.com/aretw0/fixpoint/pkg/reached"
)

// DefaultPath is the config file looked up when none is given.
const DefaultPath = "fixpoint.yaml"

// DefaultKeyEnv names the environment variable holding the report encryption key.
const DefaultKeyEnv = "FIXPOINT_REPORT_KEY"

// Store kinds.
const (
	StoreMemory = "memory"
	StoreFile   = "file"
	StoreRedis  = "redis"
)

// Config is the on-disk configuration of the fixpoint CLI.
type Config struct {
	Analysis AnalysisConfig `yaml:"analysis" json:"analysis"`
	BAM      BAMConfig      `yaml:"bam" json:"bam"`
	// Domains holds per-analysis options keyed by analysis name.
	Domains map[string]map[string]any `yaml:"domains" json:"domains"`
	Store   StoreConfig               `yaml:"store" json:"store"`
	Server  ServerConfig              `yaml:"server" json:"server"`
}

type AnalysisConfig struct {
	CPAs              []string `yaml:"cpas" json:"cpas"`
	Waitlist          string   `yaml:"waitlist" json:"waitlist"`
	StopAtFirstTarget bool     `yaml:"stopAtFirstTarget" json:"stopAtFirstTarget"`
	MaxIterations     int      `yaml:"maxIterations" json:"maxIterations"`
}

type BAMConfig struct {
	Enabled   bool   `yaml:"enabled" json:"enabled"`
	Recursion string `yaml:"recursion" json:"recursion"`
	// AggressiveCaching is the maximum precision distance for approximate hits. Zero disables it.
	AggressiveCaching int `yaml:"aggressiveCaching" json:"aggressiveCaching"`
}

type StoreConfig struct {
	Kind     string        `yaml:"kind" json:"kind"`
	Path     string        `yaml:"path" json:"path"`
	Addr     string        `yaml:"addr" json:"addr"`
	Password string        `yaml:"password" json:"password"`
	DB       int           `yaml:"db" json:"db"`
	Prefix   string        `yaml:"prefix" json:"prefix"`
	TTL      time.Duration `yaml:"ttl" json:"ttl"`
	// KeyEnv names the variable holding a hex encoded AES-256 key.
	// Reports are sealed when the variable is set.
	KeyEnv string `yaml:"keyEnv" json:"keyEnv"`
}

type ServerConfig struct {
	Addr string `yaml:"addr" json:"addr"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Analysis: AnalysisConfig{
			CPAs:     []string{"location", "value"},
			Waitlist: string(reached.OrderDFS),
		},
		BAM: BAMConfig{
			Enabled:   true,
			Recursion: string(bam.RecursionFail),
		},
		Domains: map[string]map[string]any{},
		Store: StoreConfig{
			Kind:   StoreMemory,
			KeyEnv: DefaultKeyEnv,
		},
		Server: ServerConfig{Addr: ":8080"},
	}
}

// Load reads a YAML or JSON config file on top of the defaults.
// A missing file at DefaultPath is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !explicit {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}

	if strings.ToLower(filepath.Ext(path)) == ".json" {
		if err := json.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	} else {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the values that cannot be caught by decoding.
func (c Config) Validate() error {
	var errs []error
	if len(c.Analysis.CPAs) == 0 {
		errs = append(errs, errors.New("analysis.cpas must name at least one analysis"))
	}
	if _, err := reached.ParseOrder(c.Analysis.Waitlist); err != nil {
		errs = append(errs, fmt.Errorf("analysis.waitlist: %w", err))
	}
	if c.Analysis.MaxIterations < 0 {
		errs = append(errs, errors.New("analysis.maxIterations must not be negative"))
	}
	if _, err := bam.ParseRecursionPolicy(c.BAM.Recursion); err != nil {
		errs = append(errs, fmt.Errorf("bam.recursion: %w", err))
	}
	if c.BAM.AggressiveCaching < 0 {
		errs = append(errs, errors.New("bam.aggressiveCaching must not be negative"))
	}
	switch c.Store.Kind {
	case StoreMemory, StoreFile:
	case StoreRedis:
		if c.Store.Addr == "" {
			errs = append(errs, errors.New("store.addr is required for redis"))
		}
	default:
		errs = append(errs, fmt.Errorf("store.kind: unknown kind %q", c.Store.Kind))
	}
	if c.Store.TTL < 0 {
		errs = append(errs, errors.New("store.ttl must not be negative"))
	}
	return errors.Join(errs...)
}

// ReportKey returns the decoded encryption key, or nil when none is configured.
func (s StoreConfig) ReportKey() ([]byte, error) {
	if s.KeyEnv == "" {
		return nil, nil
	}
	raw := strings.TrimSpace(os.Getenv(s.KeyEnv))
	if raw == "" {
		return nil, nil
	}
	key, err := hex.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("%s is not valid hex: %w", s.KeyEnv, err)
	}
	return key, nil
}
