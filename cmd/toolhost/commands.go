package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/hostkit/toolhost"
	"github.com/hostkit/toolhost/internal/hostfile"
)

// newHost loads the host file and returns a populated (not yet started)
// host plus the loaded configs.
func newHost(cmd *cobra.Command) (*toolhost.Host, []toolhost.ServerConfig, error) {
	explicit, _ := cmd.Flags().GetString("config")
	verbose, _ := cmd.Flags().GetBool("verbose")

	log := toolhost.NopLogger()
	if verbose {
		log = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
	}

	path, found, err := hostfile.Discover(explicit)
	if err != nil {
		return nil, nil, err
	}

	if !found {
		return nil, nil, fmt.Errorf("no toolhost.yaml found (use --config)")
	}

	configs, err := hostfile.Load(path)
	if err != nil {
		return nil, nil, err
	}

	host := toolhost.New(toolhost.WithLogger(log))

	for _, cfg := range configs {
		if err := host.AddServer(cfg); err != nil {
			return nil, nil, err
		}
	}

	return host, configs, nil
}

// startAll starts every configured server regardless of autoStart so the
// CLI can report on all of them.
func startAll(ctx context.Context, host *toolhost.Host, configs []toolhost.ServerConfig) {
	for _, cfg := range configs {
		// Start failures are reflected in the server snapshot; the CLI
		// reports them instead of aborting.
		_ = host.StartServer(ctx, cfg.ID)
	}
}

func newServersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "servers",
		Short: "Start all configured servers and print their status",
		RunE: func(cmd *cobra.Command, _ []string) error {
			host, configs, err := newHost(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = host.Close() }()

			startAll(cmd.Context(), host, configs)

			for _, snap := range host.ListServers() {
				line := fmt.Sprintf("%-20s %-8s tools=%d", snap.ID, snap.Status, snap.ToolCount)
				if snap.LastError != "" {
					line += "  error: " + snap.LastError
				}

				fmt.Fprintln(cmd.OutOrStdout(), line)
			}

			return nil
		},
	}
}

func newToolsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tools [server]",
		Short: "List tools discovered on one or all servers",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			host, configs, err := newHost(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = host.Close() }()

			serverID := ""
			if len(args) == 1 {
				serverID = args[0]
			}

			startAll(cmd.Context(), host, configs)

			tools, err := host.ListTools(serverID)
			if err != nil {
				return err
			}

			for _, tool := range tools {
				fmt.Fprintf(cmd.OutOrStdout(), "%s/%s\t%s\n", tool.Server, tool.Name, tool.Description)
			}

			return nil
		},
	}

	return cmd
}

func newCallCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "call <server> <tool> [json-arguments]",
		Short: "Invoke a tool on a server",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			host, _, err := newHost(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = host.Close() }()

			arguments := map[string]any{}
			if len(args) == 3 {
				if err := json.Unmarshal([]byte(args[2]), &arguments); err != nil {
					return fmt.Errorf("parse arguments: %w", err)
				}
			}

			if err := host.StartServer(cmd.Context(), args[0]); err != nil {
				return err
			}

			result, err := host.ExecuteTool(cmd.Context(), toolhost.ToolCall{
				Server:    args[0],
				Tool:      args[1],
				Arguments: arguments,
			})
			if err != nil {
				return err
			}

			for _, block := range result.Content {
				if block.Type == "text" {
					fmt.Fprintln(cmd.OutOrStdout(), block.Text)
				}
			}

			if len(result.Content) == 0 && len(result.Raw) > 0 {
				fmt.Fprintln(cmd.OutOrStdout(), string(result.Raw))
			}

			if result.IsError {
				return fmt.Errorf("tool reported an error")
			}

			return nil
		},
	}
}
