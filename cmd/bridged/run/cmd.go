// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package run

import (
	"github.com/luxfi/log"
	"github.com/spf13/cobra"

	"github.com/luxfi/bridge/config"
)

func Command() *cobra.Command {
	c := &cobra.Command{
		Use:          "bridged",
		Short:        "Runs the bridge transfer coordinator",
		RunE:         runFunc,
		SilenceUsage: true,
	}
	config.AddFlags(c.Flags())
	return c
}

func runFunc(c *cobra.Command, _ []string) error {
	cfg, err := config.Load(c.Flags())
	if err != nil {
		return err
	}
	return Run(c.Context(), log.Root(), cfg)
}
