package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewPurgeCommand creates the purge command.
func NewPurgeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "purge",
		Short: "Empty the artifact cache",
		Long: `Release every cached artifact and remove the compiled objects and
retained synthesized sources from the cache directory. The next request
for any previously cached fingerprint recompiles from scratch.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPurge(rootOpts, cmd)
		},
	}
}

func runPurge(rootOpts *RootOptions, cmd *cobra.Command) error {
	formatter := newFormatter(rootOpts, cmd)

	svc, cfg, err := openService(rootOpts)
	if err != nil {
		formatter.Error(ErrCodeConfig, err.Error(), nil)
		return err
	}
	defer svc.Close()

	rows, err := svc.Entries()
	if err != nil {
		formatter.Error(ErrCodeCache, err.Error(), nil)
		return WrapExitError(ExitFailure, "reading cache index", err)
	}

	if err := svc.Purge(); err != nil {
		formatter.Error(ErrCodeCache, err.Error(), nil)
		return WrapExitError(ExitFailure, "purging cache", err)
	}

	if rootOpts.Format == "json" {
		return formatter.Success(map[string]any{
			"cache_dir": cfg.Cache.Dir,
			"purged":    len(rows),
		})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "purged %d entries from %s\n", len(rows), cfg.Cache.Dir)
	return nil
}
