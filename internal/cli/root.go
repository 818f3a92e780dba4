// Package cli implements the nativize command line interface: ahead-of-need
// builds, pipeline inspection, and cache maintenance.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nativize/nativize"
	"github.com/nativize/nativize/internal/config"
)

// Version is the CLI version string.
const Version = "0.1.0"

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the nativize CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "nativize",
		Short: "Ahead-of-need native compilation for marked functions",
		Long: `nativize synthesizes self-contained units for registered functions,
compiles them through the external toolchain, and manages the resulting
fingerprint-keyed artifact cache.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "nativize.yaml", "configuration file path")

	cmd.AddCommand(NewBuildCommand(opts))
	cmd.AddCommand(NewResolveCommand(opts))
	cmd.AddCommand(NewSynthCommand(opts))
	cmd.AddCommand(NewInspectCommand(opts))
	cmd.AddCommand(NewPurgeCommand(opts))
	cmd.AddCommand(NewVersionCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// newFormatter builds the output formatter for a command invocation.
func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}

// loadRegistry runs the preprocessing pass over a source directory.
func loadRegistry(dir string) (*nativize.Registry, error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, WrapExitError(ExitCommandError, fmt.Sprintf("source directory not found: %s", dir), nil)
	}
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "accessing source directory", err)
	}
	if !info.IsDir() {
		return nil, WrapExitError(ExitCommandError, fmt.Sprintf("not a directory: %s", dir), nil)
	}

	reg := nativize.NewRegistry("main")
	if err := reg.LoadDir(dir); err != nil {
		return nil, err
	}
	return reg, nil
}

// openService builds the artifact service from the configuration file.
func openService(opts *RootOptions) (*nativize.Service, config.Config, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, config.Config{}, WrapExitError(ExitCommandError, "loading configuration", err)
	}
	if opts.Verbose {
		cfg.Verbose = true
	}

	svc, err := nativize.NewService(cfg)
	if err != nil {
		return nil, config.Config{}, WrapExitError(ExitCommandError, "opening artifact cache", err)
	}
	svc.WithLogger(newLogger(cfg.Verbose))
	return svc, cfg, nil
}

// configOptions renders the configuration file's compiler defaults as site
// options, for commands that derive units without opening a service.
func configOptions(cfg config.Config) []nativize.Option {
	tc := cfg.Toolchain()
	var opts []nativize.Option
	if tc.Profile != "" {
		opts = append(opts, nativize.WithProfile(tc.Profile))
	}
	if len(tc.Directives) > 0 {
		opts = append(opts, nativize.WithDirectives(tc.Directives))
	}
	if len(tc.ExtraFlags) > 0 {
		opts = append(opts, nativize.WithExtraFlags(tc.ExtraFlags...))
	}
	return opts
}

// newLogger builds the CLI logger. Quiet by default; verbose mode emits
// development-formatted debug output to stderr.
func newLogger(verbose bool) *zap.Logger {
	if !verbose {
		return zap.NewNop()
	}
	logger, err := zap.NewDevelopment()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

// classifyError maps pipeline errors to CLI error codes.
func classifyError(err error) string {
	switch {
	case nativize.IsIntrospectionError(err):
		return ErrCodeIntrospection
	case nativize.IsResolutionError(err):
		return ErrCodeResolution
	case nativize.IsSynthesisError(err):
		return ErrCodeSynthesis
	case nativize.IsCompileError(err):
		return ErrCodeCompile
	case nativize.IsLoadError(err):
		return ErrCodeLoad
	default:
		return ErrCodeGeneric
	}
}

// NewVersionCommand creates the version command.
func NewVersionCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the nativize version",
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(rootOpts, cmd)
			if rootOpts.Format == "json" {
				return formatter.Success(map[string]string{"version": Version})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "nativize %s\n", Version)
			return nil
		},
	}
}
