// Package toolchain drives the external translate+compile+link pipeline:
// it materializes a synthesized unit in a scratch module, invokes the build
// toolchain with flags derived from the compiler configuration, and loads
// the produced artifact's exported symbol.
package toolchain

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/mod/modfile"

	"github.com/nativize/nativize/internal/synth"
)

// goVersion is written into every scratch module's go.mod.
const goVersion = "1.25"

// CompileError reports a nonzero toolchain exit. Diagnostics carries the
// toolchain's combined output; verbosity controls whether it is echoed, the
// error carries it either way.
type CompileError struct {
	Fingerprint string
	Diagnostics string
	Err         error
}

func (e *CompileError) Error() string {
	diag := strings.TrimSpace(e.Diagnostics)
	if diag == "" {
		return fmt.Sprintf("compile %s: %v", shortFP(e.Fingerprint), e.Err)
	}
	return fmt.Sprintf("compile %s: %v\n%s", shortFP(e.Fingerprint), e.Err, diag)
}

func (e *CompileError) Unwrap() error { return e.Err }

// Orchestrator owns the scratch and artifact locations and the toolchain
// binary used to build units.
type Orchestrator struct {
	artifactDir string
	scratchDir  string
	goBin       string
	runner      Runner
	loader      Loader

	Logger *zap.Logger
}

// New creates an orchestrator writing artifacts under artifactDir and
// building in throwaway directories under scratchDir.
func New(artifactDir, scratchDir string) *Orchestrator {
	return &Orchestrator{
		artifactDir: artifactDir,
		scratchDir:  scratchDir,
		goBin:       "go",
		runner:      ExecRunner{},
		loader:      PluginLoader{},
		Logger:      zap.NewNop(),
	}
}

// WithRunner substitutes the toolchain runner. Used by tests.
func (o *Orchestrator) WithRunner(r Runner) *Orchestrator {
	o.runner = r
	return o
}

// WithLoader substitutes the artifact loader. Used by tests.
func (o *Orchestrator) WithLoader(l Loader) *Orchestrator {
	o.loader = l
	return o
}

// ArtifactPath returns the on-disk location of a fingerprint's compiled
// object.
func (o *Orchestrator) ArtifactPath(fp string) string {
	return filepath.Join(o.artifactDir, fp+".so")
}

// SourcePath returns the on-disk location of a fingerprint's retained
// synthesized source.
func (o *Orchestrator) SourcePath(fp string) string {
	return filepath.Join(o.artifactDir, fp+".go")
}

// Compile builds the unit under the given configuration and returns the
// loaded artifact. The scratch location is unique per attempt, so compiles
// of different fingerprints never collide. When sig is non-nil the loaded
// symbol must match it exactly. Once started a compile runs to completion;
// ctx reaches the subprocess but the orchestrator imposes no timeout of its
// own.
func (o *Orchestrator) Compile(ctx context.Context, fp string, unit *synth.Unit, cfg Config, verbose bool, sig reflect.Type) (*Artifact, error) {
	args, err := cfg.BuildArgs(o.ArtifactPath(fp))
	if err != nil {
		return nil, err
	}

	scratch, err := o.makeScratch(fp, unit)
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(scratch)

	o.Logger.Debug("compiling unit",
		zap.String("target", unit.Qualified),
		zap.String("fingerprint", shortFP(fp)),
		zap.String("profile", string(cfg.Profile)))
	start := time.Now()

	if err := os.MkdirAll(o.artifactDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating artifact dir: %w", err)
	}

	diag, err := o.runner.Run(ctx, scratch, o.goBin, args...)
	if err != nil {
		cerr := &CompileError{Fingerprint: fp, Diagnostics: diag, Err: err}
		if verbose {
			o.Logger.Error("toolchain failed",
				zap.String("target", unit.Qualified),
				zap.String("diagnostics", diag))
		}
		return nil, cerr
	}

	o.Logger.Debug("compilation finished",
		zap.String("target", unit.Qualified),
		zap.Duration("elapsed", time.Since(start)))

	sourcePath := ""
	if verbose {
		sourcePath = o.SourcePath(fp)
		if err := os.WriteFile(sourcePath, []byte(unit.Text), 0o644); err != nil {
			o.Logger.Warn("retaining synthesized source failed", zap.Error(err))
			sourcePath = ""
		}
	}

	return o.Load(fp, unit.Symbol, sourcePath, sig)
}

// Load binds an already-built artifact for fp. Used both after a fresh
// compile and to rehydrate a warm on-disk cache entry.
func (o *Orchestrator) Load(fp, symbol, sourcePath string, sig reflect.Type) (*Artifact, error) {
	path := o.ArtifactPath(fp)
	fn, err := o.loader.Load(path, symbol, sig)
	if err != nil {
		return nil, err
	}
	return &Artifact{
		Fingerprint: fp,
		Path:        path,
		SourcePath:  sourcePath,
		Symbol:      fn,
	}, nil
}

// makeScratch materializes the unit as a standalone module in a directory
// unique to this attempt.
func (o *Orchestrator) makeScratch(fp string, unit *synth.Unit) (string, error) {
	dir := filepath.Join(o.scratchDir, shortFP(fp)+"-"+uuid.Must(uuid.NewV7()).String())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating scratch dir: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "main.go"), []byte(unit.Text), 0o644); err != nil {
		os.RemoveAll(dir)
		return "", fmt.Errorf("writing unit source: %w", err)
	}

	mod, err := scratchModFile(fp)
	if err != nil {
		os.RemoveAll(dir)
		return "", err
	}
	if err := os.WriteFile(filepath.Join(dir, "go.mod"), mod, 0o644); err != nil {
		os.RemoveAll(dir)
		return "", fmt.Errorf("writing scratch go.mod: %w", err)
	}
	return dir, nil
}

func scratchModFile(fp string) ([]byte, error) {
	f := new(modfile.File)
	if err := f.AddModuleStmt("nativized.invalid/" + shortFP(fp)); err != nil {
		return nil, fmt.Errorf("scratch go.mod: %w", err)
	}
	if err := f.AddGoStmt(goVersion); err != nil {
		return nil, fmt.Errorf("scratch go.mod: %w", err)
	}
	return f.Format()
}

func shortFP(fp string) string {
	if len(fp) > 12 {
		return fp[:12]
	}
	return fp
}
