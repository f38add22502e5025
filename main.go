package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

func oops(stage string, err error) {
	fd := os.Stderr.Fd()
	if !isatty.IsTerminal(fd) && !isatty.IsCygwinTerminal(fd) {
		color.NoColor = true
	}
	label := color.New(color.FgRed, color.Bold).Sprint("Error")
	fmt.Fprintf(os.Stderr, "tsvkit %s: %s: %s\n", stage, label, err)
	os.Exit(1)
}

func setupLogging(verbose bool) {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

func newRoot() *cobra.Command {
	root := &cobra.Command{
		Use:           "tsvkit",
		Short:         "Filter, join, sample, summarize and reshape tab separated files",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			verbose, _ := cmd.Flags().GetBool("verbose")
			setupLogging(verbose)
		},
	}
	root.PersistentFlags().BoolP("verbose", "v", false, "log debug information to stderr")
	addCommands(root)
	return root
}

func main() {
	root := newRoot()
	if cmd, err := root.ExecuteC(); err != nil {
		oops(cmd.Name(), err)
	}
}
