package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"RecoBoard/internal/services/presentation"
	"RecoBoard/pkg/util"
)

func newTradingDaysCmd() *cobra.Command {
	var anchor, today string
	cmd := &cobra.Command{
		Use:   "trading-days",
		Short: "Count weekdays elapsed since an anchor date",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			loc, err := zoneFlag(cmd)
			if err != nil {
				return err
			}
			a, ok := util.ParseDateIn(anchor, loc)
			if !ok {
				return fmt.Errorf("invalid --anchor %q", anchor)
			}
			now := time.Now().In(loc)
			if today != "" {
				if now, ok = util.ParseDateIn(today, loc); !ok {
					return fmt.Errorf("invalid --today %q", today)
				}
			}
			n := presentation.NewCalendar(loc).ElapsedTradingDays(a, now)
			_, err = fmt.Fprintln(cmd.OutOrStdout(), n)
			return err
		},
	}
	cmd.Flags().StringVar(&anchor, "anchor", "", "anchor date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&today, "today", "", "evaluation date (default: today)")
	_ = cmd.MarkFlagRequired("anchor")
	return cmd
}
