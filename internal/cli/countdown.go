package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/briangreenhill/campavatars/internal/countdown"
)

// watchTick is how often --watch reprints
var watchTick = time.Second

type countdownOptions struct {
	watch bool
}

// NewCountdownCommand creates the countdown command.
func NewCountdownCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &countdownOptions{}

	cmd := &cobra.Command{
		Use:   "countdown",
		Short: "Print the time left until COUNTDOWN_TARGET",
		Long: `Print the days, hours, minutes and seconds left until the event.
With --watch the value is reprinted every second until the target passes.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCountdown(rootOpts, opts, cmd)
		},
	}

	cmd.Flags().BoolVarP(&opts.watch, "watch", "w", false, "keep printing every second")

	return cmd
}

func runCountdown(rootOpts *RootOptions, opts *countdownOptions, cmd *cobra.Command) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	target, err := cfg.Target()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	rem := countdown.Until(rootOpts.now(), target)
	if err := printRemaining(out, rootOpts.Format, rem); err != nil {
		return err
	}
	if !opts.watch || rem.Finished {
		return nil
	}

	ticker := time.NewTicker(watchTick)
	defer ticker.Stop()
	for {
		select {
		case <-cmd.Context().Done():
			return nil
		case <-ticker.C:
			rem = countdown.Until(rootOpts.now(), target)
			if err := printRemaining(out, rootOpts.Format, rem); err != nil {
				return err
			}
			if rem.Finished {
				return nil
			}
		}
	}
}

func printRemaining(w io.Writer, format string, rem countdown.Remaining) error {
	if format == "json" {
		return json.NewEncoder(w).Encode(rem)
	}
	_, err := fmt.Fprintln(w, rem.String())
	return err
}
