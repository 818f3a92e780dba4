package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// InspectEntry is the JSON form of one cache index row.
type InspectEntry struct {
	Fingerprint  string    `json:"fingerprint"`
	Target       string    `json:"target"`
	Profile      string    `json:"profile"`
	ArtifactPath string    `json:"artifact_path"`
	SourcePath   string    `json:"source_path,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	AccessedAt   time.Time `json:"accessed_at"`
}

// NewInspectCommand creates the inspect command.
func NewInspectCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "inspect",
		Short:         "List cached artifacts, most recently used first",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(rootOpts, cmd)
		},
	}
}

func runInspect(rootOpts *RootOptions, cmd *cobra.Command) error {
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

	if rootOpts.Format == "json" {
		entries := make([]InspectEntry, 0, len(rows))
		for _, e := range rows {
			entries = append(entries, InspectEntry{
				Fingerprint:  e.Fingerprint,
				Target:       e.Target,
				Profile:      e.Profile,
				ArtifactPath: e.ArtifactPath,
				SourcePath:   e.SourcePath,
				CreatedAt:    e.CreatedAt,
				AccessedAt:   e.AccessedAt,
			})
		}
		return formatter.Success(map[string]any{
			"cache_dir": cfg.Cache.Dir,
			"entries":   entries,
		})
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "cache %s (%d entries)\n", cfg.Cache.Dir, len(rows))
	for _, e := range rows {
		fmt.Fprintf(out, "  %s  %-30s %-12s %s\n",
			e.Fingerprint[:12], e.Target, e.Profile,
			e.AccessedAt.Format(time.RFC3339))
	}
	return nil
}
