package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/airmcp-com/mcp-standards-sub000/pkg/gateway"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const defaultServerURL = "ws://127.0.0.1:8765/ws"

var callCmd = &cobra.Command{
	Use:   "call [tool]",
	Short: "Call a tool on a running server",
	Long: `Connect to a server started with "serve --listen" and call one of its tools.
Without a tool name the server's tools are listed.

  mcp-standards call recall --args '{"query":"python package manager"}'`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCall,
}

func init() {
	callCmd.Flags().String("server", defaultServerURL, "WebSocket URL of the server")
	callCmd.Flags().String("args", "{}", "tool arguments as a JSON object")
	callCmd.Flags().String("secret", "", "shared secret (default is server.shared_secret from the config)")
	callCmd.Flags().Duration("timeout", 30*time.Second, "overall call timeout")
	rootCmd.AddCommand(callCmd)
}

func runCall(cmd *cobra.Command, args []string) error {
	url, _ := cmd.Flags().GetString("server")
	rawArgs, _ := cmd.Flags().GetString("args")
	secret, _ := cmd.Flags().GetString("secret")
	timeout, _ := cmd.Flags().GetDuration("timeout")

	if secret == "" {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		secret = cfg.Server.SharedSecret
	}

	var toolArgs map[string]interface{}
	if err := json.Unmarshal([]byte(rawArgs), &toolArgs); err != nil {
		return fmt.Errorf("--args must be a JSON object: %w", err)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	tool := ""
	if len(args) == 1 {
		tool = args[0]
	}
	return callRemote(ctx, gateway.DialConfig{
		URL:          url,
		SharedSecret: secret,
		Logger:       log.Logger,
	}, tool, toolArgs, cmd.OutOrStdout())
}

func callRemote(ctx context.Context, dial gateway.DialConfig, tool string, args map[string]interface{}, out io.Writer) error {
	client, err := gateway.Dial(ctx, dial)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", dial.URL, err)
	}
	defer client.Close()

	if _, err := client.Initialize(ctx, "mcp-standards-cli", version); err != nil {
		return err
	}

	if tool == "" {
		tools, err := client.ListTools(ctx)
		if err != nil {
			return err
		}
		for _, t := range tools {
			fmt.Fprintf(out, "%-16s %s\n", t.Name, t.Description)
		}
		return nil
	}

	result, err := client.CallTool(ctx, tool, args)
	if err != nil {
		return err
	}
	for _, c := range result.Content {
		fmt.Fprintln(out, c.Text)
	}
	if result.IsError {
		return fmt.Errorf("tool %s returned an error", tool)
	}
	return nil
}
