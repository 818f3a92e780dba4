package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nativize/nativize"
	"github.com/nativize/nativize/internal/config"
)

// SynthOptions holds flags for the synth command.
type SynthOptions struct {
	*RootOptions
	Profile string
}

// NewSynthCommand creates the synth command.
func NewSynthCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SynthOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "synth <source-dir> <function>",
		Short: "Print a function's synthesized compilation unit",
		Long: `Assemble the self-contained unit a decoration site would compile, with
dependencies topologically ordered and cyclic groups emitted together,
and print it along with its fingerprint.`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSynth(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Profile, "profile", "p", "", "optimization profile (conservative|aggressive|custom; default from configuration)")

	return cmd
}

func runSynth(opts *SynthOptions, dir, name string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	reg, err := loadRegistry(dir)
	if err != nil {
		formatter.Error(ErrCodeNotFound, err.Error(), nil)
		return err
	}

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		formatter.Error(ErrCodeConfig, err.Error(), nil)
		return WrapExitError(ExitCommandError, "loading configuration", err)
	}

	// Seed from the configuration file so the printed fingerprint matches
	// what a build under the same configuration would produce.
	unitOpts := configOptions(cfg)
	if opts.Profile != "" {
		unitOpts = append(unitOpts, nativize.WithProfile(nativize.Profile(opts.Profile)))
	}

	info, err := nativize.SynthesizeUnit(reg, name, unitOpts...)
	if err != nil {
		formatter.Error(classifyError(err), err.Error(), nil)
		return WrapExitError(ExitFailure, "synthesis failed", err)
	}

	if opts.Format == "json" {
		return formatter.Success(info)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "// target: %s\n// symbol: %s\n// fingerprint: %s\n\n%s",
		info.Target, info.Symbol, info.Fingerprint, info.Text)
	return nil
}
