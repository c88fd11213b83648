package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/cottand/jinfer/cmd"
	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "jinfer [subcommand]",
	Short:        "jinfer\n runs Java style generic type inference over declared classes and constraints",
	Args:         cobra.MinimumNArgs(1),
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(cmd.InferCmd)
}
