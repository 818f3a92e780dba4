package nativize

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"go.uber.org/zap"

	"github.com/nativize/nativize/internal/source"
	"github.com/nativize/nativize/internal/synth"
	"github.com/nativize/nativize/internal/toolchain"
)

// derivation is one site's resolved pipeline state: the unit and
// fingerprint current as of a registry generation. A failed derivation is
// carried so the site falls back without re-deriving on every call.
type derivation struct {
	gen  uint64
	fp   string
	unit *synth.Unit
	err  error
}

// site is the runtime state of one decorated function. Compiled/failed
// state is keyed by fingerprint and shared through the service, so two
// sites producing identical units and configurations share one artifact
// with no ownership entanglement between them.
type site struct {
	svc      *Service
	reg      *Registry
	name     string
	cfg      toolchain.Config
	verbose  bool
	fallback reflect.Value

	mu  sync.Mutex
	cur derivation
}

// Func wraps fallback so calls transparently dispatch to a natively
// compiled build of the registered function named name. The returned
// wrapper has the same type as fallback and preserves its call contract
// exactly.
//
// The unit and fingerprint are derived eagerly, so introspection,
// resolution, and synthesis failures surface here rather than inside a
// call that has no error channel. Compilation itself stays lazy: the first
// call on a cold cache pays the compile latency, subsequent calls with an
// unchanged fingerprint are dispatch-only. If compilation fails the wrapper
// permanently executes fallback for that fingerprint; editing the source or
// configuration produces a new fingerprint and a fresh attempt.
func Func[F any](svc *Service, reg *Registry, name string, fallback F, opts ...Option) (F, error) {
	var zero F
	fv := reflect.ValueOf(fallback)
	if fv.Kind() != reflect.Func {
		return zero, fmt.Errorf("nativize: fallback for %q is %s, not a function", name, fv.Kind())
	}

	o := svc.siteOptions(opts)
	if err := o.cfg.Validate(); err != nil {
		return zero, err
	}

	s := &site{
		svc:      svc,
		reg:      reg,
		name:     name,
		cfg:      o.cfg,
		verbose:  o.verbose,
		fallback: fv,
	}
	if err := s.derive(); err != nil {
		return zero, err
	}

	return reflect.MakeFunc(fv.Type(), s.call).Interface().(F), nil
}

// derive recomputes the site's unit and fingerprint against the registry's
// current generation. Callers hold s.mu except during construction.
func (s *site) derive() error {
	gen := s.reg.src.Generation()
	unit, rec, fp, err := deriveUnit(s.reg.src, s.name, s.cfg)
	if err != nil {
		s.cur = derivation{gen: gen, err: err}
		return err
	}
	if err := checkArity(rec, s.fallback.Type()); err != nil {
		s.cur = derivation{gen: gen, err: err}
		return err
	}
	s.cur = derivation{gen: gen, fp: fp, unit: unit}
	return nil
}

// checkArity rejects a fallback whose shape cannot match the registered
// declaration. Exact type compatibility is enforced against the loaded
// symbol, where the real reflect type is available.
func checkArity(rec *source.FunctionRecord, sig reflect.Type) error {
	if sig.NumIn() != len(rec.Params) || sig.NumOut() != len(rec.Results) {
		return fmt.Errorf("nativize: fallback %s does not match declared signature %s of %q",
			sig, rec.Signature(), rec.Name)
	}
	return nil
}

// call is the dispatch path bound into the wrapper.
func (s *site) call(args []reflect.Value) []reflect.Value {
	s.mu.Lock()
	if s.cur.gen != s.reg.src.Generation() {
		if err := s.derive(); err != nil {
			s.svc.Logger.Warn("re-derivation failed, executing fallback",
				zap.String("target", s.name), zap.Error(err))
		}
	}
	d := s.cur
	s.mu.Unlock()

	if d.err != nil {
		return s.fallback.Call(args)
	}
	if _, failed := s.svc.failure(d.fp); failed {
		return s.fallback.Call(args)
	}

	art, err := s.svc.resolveArtifact(context.Background(), d.fp, d.unit, s.cfg, s.verbose, s.fallback.Type())
	if err != nil {
		s.svc.markFailed(d.fp, err)
		s.svc.Logger.Warn("compilation failed, executing fallback",
			zap.String("target", d.unit.Qualified),
			zap.String("fingerprint", d.fp[:12]),
			zap.Error(err))
		return s.fallback.Call(args)
	}
	return art.Call(args)
}
