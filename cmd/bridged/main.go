// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/luxfi/version"

	"github.com/luxfi/bridge/cmd/bridged/run"
	"github.com/luxfi/bridge/cmd/bridged/token"
)

func main() {
	cmd := run.Command()
	cmd.AddCommand(
		token.Command(),
		&cobra.Command{
			Use:   "version",
			Short: "Prints the version",
			Run: func(c *cobra.Command, _ []string) {
				c.Printf("bridged/%s\n", version.Current)
			},
		},
	)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cmd.ExecuteContext(ctx)
	cancel()
	if err != nil {
		fmt.Fprintf(os.Stderr, "command failed %v\n", err)
		os.Exit(1)
	}
}
