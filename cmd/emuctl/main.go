package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

// Create the root command
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "emuctl",
		Short: "emuctl: control a running emulator daemon",
		Long:  "emuctl drives the device lifecycle and data plane of an emud daemon over its HTTP API.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().String("addr", "http://localhost:8080", "Daemon HTTP address")
	cmd.PersistentFlags().Duration("timeout", 60*time.Second, "Request timeout")
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Log requests to stderr")

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newLifecycleCmd("init", "initialize", "Initialize CPU, GPU, audio and network"))
	cmd.AddCommand(newLifecycleCmd("start", "start", "Start the device"))
	cmd.AddCommand(newLifecycleCmd("stop", "stop", "Stop the device"))
	cmd.AddCommand(newLifecycleCmd("cleanup", "cleanup", "Release every subsystem"))
	cmd.AddCommand(newLoadCmd())
	cmd.AddCommand(newFrameCmd())
	return cmd
}

// Create the version command
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "emuctl %s %s\n", version, buildTime)
		},
	}
}

// Resolve the client from persistent flags
func resolveClient(cmd *cobra.Command) (*Client, error) {
	addr, _ := cmd.Flags().GetString("addr")
	timeout, _ := cmd.Flags().GetDuration("timeout")
	verbose, _ := cmd.Flags().GetBool("verbose")

	logger := zap.NewNop()
	if verbose {
		var err error
		logger, err = zap.NewDevelopment()
		if err != nil {
			return nil, fmt.Errorf("init logger: %w", err)
		}
	}
	return NewClient(addr, timeout, logger), nil
}

// Main entry point
func main() {
	root := newRootCmd()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	root.SetContext(ctx)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
