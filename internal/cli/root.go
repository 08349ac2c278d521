// Package cli wires the chatsentry commands.
package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	// version can be overridden at build time via:
	// go build -ldflags "-X github.com/chatsentry/chatsentry/internal/cli.version=1.2.3"
	version = "0.4.1"
	logo    = "\n" +
		"   ____ _           _   ____             _\n" +
		"  / ___| |__   __ _| |_/ ___|  ___ _ __ | |_ _ __ _   _\n" +
		" | |   | '_ \\ / _` | __\\___ \\ / _ \\ '_ \\| __| '__| | | |\n" +
		" | |___| | | | (_| | |_ ___) |  __/ | | | |_| |  | |_| |\n" +
		"  \\____|_| |_|\\__,_|\\__|____/ \\___|_| |_|\\__|_|   \\__, |\n" +
		"                                                  |___/\n"
)

var rootCmd = &cobra.Command{
	Use:   "chatsentry",
	Short: "ChatSentry - chat report ingestion and alerting",
	Long:  color.CyanString(logo) + "\nIngests chat messages, classifies user reports, and raises threshold alerts.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(classifyCmd)
	rootCmd.AddCommand(outboxCmd)
}

func printHeader(title string) {
	fmt.Println(color.CyanString(logo))
	if title != "" {
		fmt.Println(title)
		fmt.Println("─────────────────────")
	}
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		printHeader("ChatSentry Version")
		fmt.Printf("Version: %s\n", version)
	},
}
