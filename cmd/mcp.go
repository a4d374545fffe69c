package cmd

import (
	"github.com/huangsam/skysig/internal/contract"
	"github.com/huangsam/skysig/internal/mcp"
	"github.com/huangsam/skysig/internal/store"
	"github.com/spf13/cobra"
)

// mcpCmd represents the mcp command.
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the skysig MCP server",
	Long:  `Launch an MCP server that lets AI agents query a finished result store via standard tools.`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		if err := sharedSetup(rootCtx, cmd, args); err != nil {
			return err
		}
		// stdio carries the protocol
		contract.SetQuiet(true)
		return nil
	},
	RunE: func(_ *cobra.Command, _ []string) error {
		results, err := store.Open(cfg.StoreBackend, cfg.StoreDBConnect)
		if err != nil {
			return err
		}
		defer func() { _ = results.Close() }()
		return mcp.StartMCPServer(rootCtx, cfg, results)
	},
}
