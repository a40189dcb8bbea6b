package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command for the calmcp application
var rootCmd = &cobra.Command{
	Use:   "calmcp",
	Short: "Google Calendar MCP server with server-side credential management",
	Long: `calmcp exposes Google Calendar to AI assistants over the Model Context
Protocol while keeping all Google credentials on the server.

Operators enroll users through the admin interface; MCP clients
authenticate with a pre-shared server key and never see OAuth tokens.`,
	SilenceUsage: true,
}

// version will be set by main
var version = "dev"

// SetVersion sets the version for the root command
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "calmcp version %s\n" .Version}}`)

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newAdminCmd())
	rootCmd.AddCommand(newVersionCmd())
}
