package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Show device state
func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the device snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := resolveClient(cmd)
			if err != nil {
				return err
			}
			body, err := client.Status(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd, body)
		},
	}
}

// Run one lifecycle operation
func newLifecycleCmd(use, operation, short string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := resolveClient(cmd)
			if err != nil {
				return err
			}
			body, err := client.Lifecycle(cmd.Context(), operation)
			if err != nil {
				return err
			}
			return printJSON(cmd, body)
		},
	}
}

// Load a program image
func newLoadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "load <file>",
		Short: "Load a program image into CPU memory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			program, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read program: %w", err)
			}
			client, err := resolveClient(cmd)
			if err != nil {
				return err
			}
			if err := client.LoadProgram(cmd.Context(), program); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "loaded %d bytes\n", len(program))
			return nil
		},
	}
}

// Save the frame buffer
func newFrameCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "frame <out>",
		Short: "Write the current RGBA frame buffer to a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := resolveClient(cmd)
			if err != nil {
				return err
			}
			frame, err := client.FrameBuffer(cmd.Context())
			if err != nil {
				return err
			}
			if err := os.WriteFile(args[0], frame.Pixels, 0o644); err != nil {
				return fmt.Errorf("write frame: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %dx%d frame (%d bytes) to %s\n",
				frame.Width, frame.Height, len(frame.Pixels), args[0])
			return nil
		},
	}
}

func printJSON(cmd *cobra.Command, body []byte) error {
	var v interface{}
	if err := json.Unmarshal(body, &v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}
