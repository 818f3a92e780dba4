package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nativize/nativize"
)

// NewResolveCommand creates the resolve command.
func NewResolveCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <source-dir> <function>",
		Short: "Show a function's dependency closure",
		Long: `Compute the transitive set of functions, types, constants, and imports
a registered function needs to run standalone, without compiling anything.`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResolve(rootOpts, args[0], args[1], cmd)
		},
	}
}

func runResolve(rootOpts *RootOptions, dir, name string, cmd *cobra.Command) error {
	formatter := newFormatter(rootOpts, cmd)

	reg, err := loadRegistry(dir)
	if err != nil {
		formatter.Error(ErrCodeNotFound, err.Error(), nil)
		return err
	}

	info, err := nativize.ResolveClosure(reg, name)
	if err != nil {
		formatter.Error(classifyError(err), err.Error(), nil)
		return WrapExitError(ExitFailure, "resolution failed", err)
	}

	if rootOpts.Format == "json" {
		return formatter.Success(info)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s %s\n", info.Target, info.Signature)
	if len(info.Dependencies) == 0 {
		fmt.Fprintln(out, "  no dependencies")
	}
	for _, dep := range info.Dependencies {
		fmt.Fprintf(out, "  %-8s %s", dep.Kind, dep.Name)
		if len(dep.Refs) > 0 {
			fmt.Fprintf(out, " -> %s", strings.Join(dep.Refs, ", "))
		}
		fmt.Fprintln(out)
	}
	for _, spec := range info.Imports {
		fmt.Fprintf(out, "  import   %s\n", spec)
	}
	return nil
}
