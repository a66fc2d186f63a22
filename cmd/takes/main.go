// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Command takes runs a demo server which echoes requests back to the client.
package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	err := newRootCmd().ExecuteContext(context.Background())
	if err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "takes",
		Short:        "An embeddable HTTP/1.x server",
		SilenceUsage: true,
	}
	cmd.AddCommand(newServeCmd())
	return cmd
}
