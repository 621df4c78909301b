package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var serverURL string

var rootCmd = &cobra.Command{
	Use:          "castctl",
	Short:        "castctl - drive a castd control plane over HTTP",
	SilenceUsage: true,
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Show server health and graph counts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		out, err := newClient(serverURL).Health()
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), out)
	},
}

var infoCmd = &cobra.Command{
	Use:   "info [node-id]",
	Short: "Describe one node, or every node",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		payload := `{"getinfo":{}}`
		if len(args) == 1 {
			b, err := json.Marshal(map[string]map[string]string{"getinfo": {"id": args[0]}})
			if err != nil {
				return err
			}
			payload = string(b)
		}
		return send(cmd, payload)
	},
}

var sendCmd = &cobra.Command{
	Use:   "send <command-json | ->",
	Short: "Send one command; '-' reads it from stdin",
	Long: `Send one command, e.g.

  castctl send '{"createsource":{"id":"s1","uri":"file:///clip.mp4"}}'

Bare commands are wrapped in a controller message with a fresh id.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		payload := args[0]
		if payload == "-" {
			b, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return err
			}
			payload = string(b)
		}
		return send(cmd, strings.TrimSpace(payload))
	},
}

var presetCmd = &cobra.Command{
	Use:   "preset",
	Short: "List or apply server-side presets",
}

var presetListCmd = &cobra.Command{
	Use:   "list",
	Short: "List presets",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		out, err := newClient(serverURL).Presets()
		if err != nil {
			return err
		}
		for _, name := range out {
			fmt.Fprintln(cmd.OutOrStdout(), name)
		}
		return nil
	},
}

var presetApplyCmd = &cobra.Command{
	Use:   "apply <name>",
	Short: "Run a preset's commands on the server",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := newClient(serverURL).ApplyPreset(args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), out)
	},
}

func send(cmd *cobra.Command, payload string) error {
	reply, err := newClient(serverURL).Send([]byte(payload))
	if err != nil {
		return err
	}
	if err := printJSON(cmd.OutOrStdout(), reply); err != nil {
		return err
	}
	if !reply.Result.OK() {
		return fmt.Errorf("command failed: %s", reply.Result.Err)
	}
	return nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func defaultServer() string {
	if v := os.Getenv("CASTCTL_SERVER"); v != "" {
		return v
	}
	return "http://localhost:8081"
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", defaultServer(), "castd base URL (env CASTCTL_SERVER)")

	presetCmd.AddCommand(presetListCmd, presetApplyCmd)
	rootCmd.AddCommand(healthCmd, infoCmd, sendCmd, presetCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
