package cli

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/briangreenhill/campavatars/internal/providers"
)

// NewCacheCommand creates the cache command group.
func NewCacheCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect the avatar cache",
	}

	cmd.AddCommand(&cobra.Command{
		Use:          "show",
		Short:        "List fresh cache entries",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCacheShow(rootOpts, cmd)
		},
	})

	return cmd
}

func runCacheShow(opts *RootOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	stack, err := providers.Setup(ctx, cfg, opts.logger(cmd.ErrOrStderr()))
	if err != nil {
		return err
	}
	defer func() { _ = stack.Close() }()

	snap := stack.Cache.Snapshot(ctx)
	out := cmd.OutOrStdout()
	if opts.Format == "json" {
		return json.NewEncoder(out).Encode(snap)
	}

	keys := make([]string, 0, len(snap))
	for k := range snap {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(out, "%s\t%s\n", k, snap[k])
	}
	fmt.Fprintf(out, "%d fresh entries (ttl %s)\n", len(keys), stack.Cache.TTL())
	return nil
}
