package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

const defaultZone = "Asia/Seoul"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "recoctl",
		Short: "Offline tools for the recommendation board",
		Long: `recoctl runs a feed snapshot through the presentation engine without
any infrastructure, for debugging feeds and reproducing what the board shows.

Examples:
  recoctl render --file snapshot.json --today 2024-05-06
  recoctl render --file snapshot.yaml --window AFTER_CUTOFF --cap 10
  recoctl trading-days --anchor 2024-05-03 --today 2024-05-06`,
		SilenceUsage: true,
	}
	root.PersistentFlags().String("zone", defaultZone, "reference time zone")

	root.AddCommand(newRenderCmd())
	root.AddCommand(newTradingDaysCmd())
	return root
}

func zoneFlag(cmd *cobra.Command) (*time.Location, error) {
	name, err := cmd.Flags().GetString("zone")
	if err != nil {
		return nil, err
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("zone %q: %w", name, err)
	}
	return loc, nil
}
