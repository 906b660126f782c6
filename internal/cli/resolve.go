package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/briangreenhill/campavatars/avatar"
	"github.com/briangreenhill/campavatars/internal/providers"
	"github.com/briangreenhill/campavatars/internal/roster"
)

// NewResolveCommand creates the resolve command.
func NewResolveCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve [identity...]",
		Short: "Resolve avatars, using the cache when fresh",
		Long: `Resolve avatar URLs for the given identities, or for every channel in
the roster (ROSTER_PATH) when none are given. Results are printed in
argument order as they would appear on the page.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResolve(rootOpts, cmd, args)
		},
	}
}

func runResolve(opts *RootOptions, cmd *cobra.Command, identities []string) error {
	ctx := cmd.Context()
	log := opts.logger(cmd.ErrOrStderr())

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if len(identities) == 0 {
		ro, err := roster.Load(cfg.RosterPath)
		if err != nil {
			return err
		}
		identities = ro.Usernames()
	}

	stack, err := providers.Setup(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() { _ = stack.Close() }()

	cards := make([]avatar.Card, 0, len(identities))
	for _, id := range identities {
		cards = append(cards, avatar.Card{Identity: id})
	}

	l := stack.NewLoader()
	l.Arm(ctx, cards)
	if err := l.Wait(ctx); err != nil {
		return err
	}

	var ordered []avatar.Result
	seen := map[string]bool{}
	for _, id := range identities {
		res, ok := l.Result(id)
		if !ok || seen[res.Identity] {
			continue
		}
		seen[res.Identity] = true
		ordered = append(ordered, res)
	}

	out := cmd.OutOrStdout()
	if opts.Format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(ordered)
	}

	for _, res := range ordered {
		switch {
		case !res.Found:
			fmt.Fprintf(out, "%s\t-\n", res.Identity)
		case res.Cached:
			fmt.Fprintf(out, "%s\t%s\t(cached)\n", res.Identity, res.URL)
		default:
			fmt.Fprintf(out, "%s\t%s\n", res.Identity, res.URL)
		}
	}
	return nil
}
