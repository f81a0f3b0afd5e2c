package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"swapwatch/internal/config"
	"swapwatch/internal/window"
)

const (
	exitReorg   = 1
	exitFailure = 2
)

func main() {
	root := &cobra.Command{
		Use:           "swapwatch",
		Short:         "Uniswap V3 swap watcher with confirmation depth",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Follow new heads and report swaps of confirmed blocks",
		RunE:  runWatcher,
	}
	config.RegisterRunFlags(runCmd.Flags())
	root.AddCommand(runCmd)

	decodeCmd := &cobra.Command{
		Use:   "decode",
		Short: "Decode the swaps of a single block",
		RunE:  runDecode,
	}
	config.RegisterDecodeFlags(decodeCmd.Flags())
	root.AddCommand(decodeCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(exitCode(err))
	}
}

// exitCode maps a command error to the process exit status.
func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, window.ErrReorgDetected):
		return exitReorg
	default:
		return exitFailure
	}
}
