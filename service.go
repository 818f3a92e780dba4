package nativize

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/nativize/nativize/internal/cache"
	"github.com/nativize/nativize/internal/config"
	"github.com/nativize/nativize/internal/fingerprint"
	"github.com/nativize/nativize/internal/resolve"
	"github.com/nativize/nativize/internal/source"
	"github.com/nativize/nativize/internal/synth"
	"github.com/nativize/nativize/internal/toolchain"
)

// Service owns the compiled-artifact cache and the toolchain orchestrator.
// It is injected into every decoration site rather than reached as ambient
// global state, giving the cache a defined initialization and teardown.
type Service struct {
	cache    *cache.Manager
	orch     *toolchain.Orchestrator
	group    singleflight.Group
	defaults toolchain.Config
	verbose  bool

	failed *lru.Cache[string, error]

	Logger *zap.Logger
}

// failedBound caps the number of remembered terminal failures. A failure
// stays terminal for as long as its fingerprint is live; fingerprints
// superseded by source or configuration edits age out instead of pinning
// memory for the life of the process.
const failedBound = 1024

// NewService builds a service from resolved configuration. The cache
// directory holds the artifact index, compiled objects, retained sources,
// and a scratch subdirectory for in-flight builds. The configured profile,
// directives, and flags become the defaults of every site the service
// backs; per-site options override them.
func NewService(cfg config.Config) (*Service, error) {
	mgr, err := cache.NewManager(cfg.Cache.Dir, cfg.Cache.Capacity)
	if err != nil {
		return nil, err
	}
	failed, err := lru.New[string, error](failedBound)
	if err != nil {
		mgr.Close()
		return nil, err
	}
	return &Service{
		cache:    mgr,
		orch:     toolchain.New(cfg.Cache.Dir, filepath.Join(cfg.Cache.Dir, "scratch")),
		defaults: cfg.Toolchain(),
		verbose:  cfg.Verbose,
		failed:   failed,
		Logger:   zap.NewNop(),
	}, nil
}

// siteOptions resolves one site's effective configuration: the service's
// configured defaults first, explicit options applied over them.
func (s *Service) siteOptions(opts []Option) siteOptions {
	o := siteOptions{cfg: s.defaults.Clone(), verbose: s.verbose}
	if o.cfg.Profile == "" {
		o.cfg.Profile = toolchain.ProfileConservative
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithLogger sets the service's logger, propagating it to the cache and
// orchestrator, and returns the service.
func (s *Service) WithLogger(log *zap.Logger) *Service {
	s.Logger = log
	s.cache.Logger = log
	s.orch.Logger = log
	return s
}

// WithToolchain substitutes the toolchain runner and artifact loader. Used
// by tests.
func (s *Service) WithToolchain(r toolchain.Runner, l toolchain.Loader) *Service {
	s.orch.WithRunner(r).WithLoader(l)
	return s
}

// Close releases the cache's durable index. Compiled artifacts stay on
// disk for warm reuse by the next process.
func (s *Service) Close() error {
	return s.cache.Close()
}

// Purge empties the in-memory cache and removes every on-disk compiled
// artifact and retained source. Safe to call at any time; an in-flight
// compile is unaffected and re-inserts its artifact on completion. The next
// call for any previously cached fingerprint recompiles from scratch.
func (s *Service) Purge() error {
	s.Logger.Info("purging compiled-artifact cache", zap.String("dir", s.cache.Dir()))
	return s.cache.Clear()
}

// Entries lists the durable cache index, most recently used first.
func (s *Service) Entries() ([]cache.IndexEntry, error) {
	return s.cache.Entries()
}

// BuildResult describes one ahead-of-need build.
type BuildResult struct {
	Target      string
	Fingerprint string
	Symbol      string
	UnitText    string
	Cached      bool
}

// Build derives and compiles a registered function without a call-site
// wrapper. The artifact lands in the cache keyed by its fingerprint, so a
// later decorated call with the same unit and configuration starts warm.
// No signature check is possible without a fallback value; the symbol is
// bound by name only.
func (s *Service) Build(ctx context.Context, reg *Registry, name string, opts ...Option) (*BuildResult, error) {
	o := s.siteOptions(opts)
	if err := o.cfg.Validate(); err != nil {
		return nil, err
	}

	unit, _, fp, err := deriveUnit(reg.src, name, o.cfg)
	if err != nil {
		return nil, err
	}

	res := &BuildResult{
		Target:      unit.Qualified,
		Fingerprint: fp,
		Symbol:      unit.Symbol,
		UnitText:    unit.Text,
	}
	if _, ok := s.cache.Lookup(fp); ok {
		res.Cached = true
		return res, nil
	}

	_, err = s.resolveArtifact(ctx, fp, unit, o.cfg, o.verbose, nil)
	if err != nil {
		return nil, err
	}
	return res, nil
}

// deriveUnit runs introspection, resolution, synthesis, and fingerprinting
// for one target under one configuration.
func deriveUnit(reg *source.Registry, name string, cfg toolchain.Config) (*synth.Unit, *source.FunctionRecord, string, error) {
	rec, err := source.Introspect(reg, name)
	if err != nil {
		return nil, nil, "", err
	}
	closure, err := resolve.Resolve(reg, rec)
	if err != nil {
		return nil, nil, "", err
	}
	unit, err := synth.Synthesize(closure)
	if err != nil {
		return nil, nil, "", err
	}
	return unit, rec, fingerprint.New(unit.Text, cfg.Canonical()), nil
}

// resolveArtifact returns the artifact for a fingerprint, compiling at most
// once per fingerprint at a time. Concurrent callers for the same
// fingerprint join the in-flight compile instead of proceeding on a stale
// miss; different fingerprints compile in parallel.
func (s *Service) resolveArtifact(ctx context.Context, fp string, unit *synth.Unit, cfg toolchain.Config, verbose bool, sig reflect.Type) (*toolchain.Artifact, error) {
	if art, ok := s.cache.Lookup(fp); ok {
		return art, nil
	}

	v, err, _ := s.group.Do(fp, func() (any, error) {
		// A joiner that lost the race to a finished compile lands here
		// after the winner has already inserted.
		if art, ok := s.cache.Lookup(fp); ok {
			return art, nil
		}
		if art, ok := s.rehydrate(fp, sig); ok {
			return art, nil
		}

		art, err := s.orch.Compile(ctx, fp, unit, cfg, verbose, sig)
		if err != nil {
			return nil, err
		}
		if err := s.cache.Insert(art, unit.Qualified, unit.Symbol, string(cfg.Profile)); err != nil {
			s.Logger.Warn("caching compiled artifact failed",
				zap.String("target", unit.Qualified), zap.Error(err))
		}
		return art, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*toolchain.Artifact), nil
}

// rehydrate binds a warm on-disk artifact left by an earlier process.
func (s *Service) rehydrate(fp string, sig reflect.Type) (*toolchain.Artifact, bool) {
	e, ok, err := s.cache.Index().Get(fp)
	if err != nil || !ok {
		return nil, false
	}
	if _, err := os.Stat(e.ArtifactPath); err != nil {
		return nil, false
	}
	art, err := s.orch.Load(fp, e.Symbol, e.SourcePath, sig)
	if err != nil {
		s.Logger.Warn("warm artifact failed to load, recompiling",
			zap.String("fingerprint", fp), zap.Error(err))
		return nil, false
	}
	s.cache.Rehydrate(art)
	s.Logger.Debug("rehydrated warm artifact",
		zap.String("target", e.Target), zap.String("fingerprint", fp))
	return art, true
}

var (
	defaultOnce sync.Once
	defaultSvc  *Service
	defaultErr  error
)

// DefaultService returns the lazily built process-wide service, configured
// from nativize.yaml in the working directory when present and from
// defaults otherwise. Callers that want explicit ownership build their own
// Service instead.
func DefaultService() (*Service, error) {
	defaultOnce.Do(func() {
		cfg, err := config.Load("nativize.yaml")
		if err != nil {
			defaultErr = err
			return
		}
		defaultSvc, defaultErr = NewService(cfg)
	})
	return defaultSvc, defaultErr
}

// failure returns the recorded terminal failure for a fingerprint,
// bumping its recency so live fingerprints outlast superseded ones.
func (s *Service) failure(fp string) (error, bool) {
	return s.failed.Get(fp)
}

// markFailed records a terminal compile or load failure. The fingerprint
// falls back to the original function on every subsequent call; only a
// fingerprint change clears the way for another attempt.
func (s *Service) markFailed(fp string, err error) {
	s.failed.Add(fp, err)
}
