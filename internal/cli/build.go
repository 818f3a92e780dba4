package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nativize/nativize"
)

// BuildOptions holds flags for the build command.
type BuildOptions struct {
	*RootOptions
	Profile    string
	Directives map[string]string
	ExtraFlags []string
}

// BuildOutput is the JSON payload of a successful build.
type BuildOutput struct {
	Target      string `json:"target"`
	Fingerprint string `json:"fingerprint"`
	Symbol      string `json:"symbol"`
	Cached      bool   `json:"cached"`
}

// NewBuildCommand creates the build command.
func NewBuildCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &BuildOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "build <source-dir> <function>",
		Short: "Compile a function ahead of need",
		Long: `Synthesize the self-contained unit for a registered function, compile
it through the external toolchain, and record the artifact in the cache.
A later decorated call with the same unit and configuration starts warm.`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Profile, "profile", "p", "", "optimization profile (conservative|aggressive|custom; default from configuration)")
	cmd.Flags().StringToStringVarP(&opts.Directives, "directive", "d", nil, "translator directive override (name=value)")
	cmd.Flags().StringArrayVar(&opts.ExtraFlags, "flag", nil, "raw compiler flag appended verbatim")

	return cmd
}

func runBuild(opts *BuildOptions, dir, name string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	reg, err := loadRegistry(dir)
	if err != nil {
		formatter.Error(ErrCodeNotFound, err.Error(), nil)
		return err
	}
	formatter.VerboseLog("Registered %d function(s) from %s", len(reg.FuncNames()), dir)

	svc, _, err := openService(opts.RootOptions)
	if err != nil {
		formatter.Error(ErrCodeConfig, err.Error(), nil)
		return err
	}
	defer svc.Close()

	// Unset flags leave the configuration file's defaults in effect.
	var buildOpts []nativize.Option
	if opts.Profile != "" {
		buildOpts = append(buildOpts, nativize.WithProfile(nativize.Profile(opts.Profile)))
	}
	if len(opts.Directives) > 0 {
		buildOpts = append(buildOpts, nativize.WithDirectives(opts.Directives))
	}
	if len(opts.ExtraFlags) > 0 {
		buildOpts = append(buildOpts, nativize.WithExtraFlags(opts.ExtraFlags...))
	}
	if opts.Verbose {
		buildOpts = append(buildOpts, nativize.WithVerbose(true))
	}

	res, err := svc.Build(cmd.Context(), reg, name, buildOpts...)
	if err != nil {
		code := classifyError(err)
		var details any
		if diag, ok := nativize.CompileDiagnostics(err); ok && diag != "" {
			details = diag
		}
		formatter.Error(code, err.Error(), details)
		return WrapExitError(ExitFailure, "build failed", err)
	}

	if opts.Format == "json" {
		return formatter.Success(BuildOutput{
			Target:      res.Target,
			Fingerprint: res.Fingerprint,
			Symbol:      res.Symbol,
			Cached:      res.Cached,
		})
	}

	state := "compiled"
	if res.Cached {
		state = "cached"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n  fingerprint: %s\n  symbol: %s\n",
		state, res.Target, res.Fingerprint, res.Symbol)
	return nil
}
