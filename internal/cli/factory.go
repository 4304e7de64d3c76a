package cli

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/aretw0/fixpoint"
	"github.com/aretw0/fixpoint/internal/config"
	"github.com/aretw0/fixpoint/pkg/adapters/file"
	"github.com/aretw0/fixpoint/pkg/adapters/memory"
	"github.com/aretw0/fixpoint/pkg/adapters/redis"
	"github.com/aretw0/fixpoint/pkg/adapters/yamlcfa"
	"github.com/aretw0/fixpoint/pkg/bam"
	"github.com/aretw0/fixpoint/pkg/cfa"
	"github.com/aretw0/fixpoint/pkg/domain"
	"github.com/aretw0/fixpoint/pkg/persistence/middleware"
	"github.com/aretw0/fixpoint/pkg/ports"
	"github.com/aretw0/fixpoint/pkg/reached"
	"github.com/aretw0/fixpoint/pkg/registry"
)

// VerifyOptions carries everything needed to assemble a verifier from the CLI.
type VerifyOptions struct {
	Config   config.Config
	Logger   *slog.Logger
	Hooks    domain.LifecycleHooks
	Store    ports.ReportStore
	Registry *registry.Registry
	// Name is recorded in the report. Defaults to the program file name.
	Name string
}

// LoadProgram reads a program description and compiles it into a CFA.
func LoadProgram(path string) (*cfa.CFA, string, error) {
	program, err := yamlcfa.Load(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load program %s: %w", path, err)
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return program, name, nil
}

// BuildVerifier creates a verifier for program following the configured analysis.
func BuildVerifier(program *cfa.CFA, opts VerifyOptions) (*fixpoint.Verifier, error) {
	cfg := opts.Config
	reg := opts.Registry
	if reg == nil {
		reg = registry.Default()
	}

	cpa, err := reg.Build(cfg.Analysis.CPAs, program, cfg.Domains)
	if err != nil {
		return nil, fmt.Errorf("failed to build analysis: %w", err)
	}

	order, err := reached.ParseOrder(cfg.Analysis.Waitlist)
	if err != nil {
		return nil, err
	}

	vopts := []fixpoint.Option{
		fixpoint.WithWaitlistOrder(order),
		fixpoint.WithStopAtFirstTarget(cfg.Analysis.StopAtFirstTarget),
		fixpoint.WithMaxIterations(cfg.Analysis.MaxIterations),
		fixpoint.WithLifecycleHooks(opts.Hooks),
		fixpoint.WithName(opts.Name),
	}
	if opts.Logger != nil {
		vopts = append(vopts, fixpoint.WithLogger(opts.Logger))
	}
	if opts.Store != nil {
		vopts = append(vopts, fixpoint.WithReportStore(opts.Store))
	}

	if cfg.BAM.Enabled {
		policy, err := bam.ParseRecursionPolicy(cfg.BAM.Recursion)
		if err != nil {
			return nil, err
		}
		bamOpts := []bam.Option{bam.WithRecursionPolicy(policy)}
		if cfg.BAM.AggressiveCaching > 0 {
			bamOpts = append(bamOpts, bam.WithAggressiveCaching(cfg.BAM.AggressiveCaching))
		}
		vopts = append(vopts, fixpoint.WithBlockAbstraction(cfa.FunctionBlocks(program), bamOpts...))
	}

	return fixpoint.New(program, cpa, vopts...)
}

// Closer releases the resources held by a store.
type Closer func() error

// OpenStore creates the configured report store. Reports are sealed when an
// encryption key is present in the environment.
func OpenStore(cfg config.StoreConfig) (ports.ReportStore, Closer, error) {
	var store ports.ReportStore
	closer := Closer(func() error { return nil })

	switch cfg.Kind {
	case "", config.StoreMemory:
		store = memory.NewStore()
	case config.StoreFile:
		store = file.New(cfg.Path)
	case config.StoreRedis:
		var ropts []redis.Option
		if cfg.Prefix != "" {
			ropts = append(ropts, redis.WithPrefix(cfg.Prefix))
		}
		if cfg.TTL > 0 {
			ropts = append(ropts, redis.WithTTL(cfg.TTL))
		}
		rs := redis.New(cfg.Addr, cfg.Password, cfg.DB, ropts...)
		store = rs
		closer = rs.Close
	default:
		return nil, nil, fmt.Errorf("unknown store kind %q", cfg.Kind)
	}

	key, err := cfg.ReportKey()
	if err != nil {
		_ = closer()
		return nil, nil, err
	}
	if key != nil {
		seal, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: key})
		if err != nil {
			_ = closer()
			return nil, nil, err
		}
		store = middleware.Wrap(store, seal)
	}
	return store, closer, nil
}
