package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/chatsentry/chatsentry/internal/config"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show system status",
	Run: func(cmd *cobra.Command, args []string) {
		printHeader("ChatSentry Status")
		fmt.Printf("Version: %s\n", version)

		path, err := config.ConfigPath()
		if err == nil {
			if _, statErr := os.Stat(path); statErr == nil {
				fmt.Println("Config:  ✓ Found (" + path + ")")
			} else {
				fmt.Println("Config:  ✗ Not found (defaults apply)")
			}
		}

		cfg, err := config.Load()
		if err != nil {
			fmt.Println("Config:  ? Unable to load:", err)
			return
		}

		if _, err := os.Stat(cfg.Connector.DeviceDB); err == nil {
			fmt.Println("Session: ✓ Device paired (no QR needed)")
		} else {
			fmt.Println("Session: ✗ Not paired (run 'chatsentry run' and scan the QR)")
		}
		if _, err := os.Stat(cfg.StorePath()); err == nil {
			fmt.Println("Store:   ✓ Found (" + cfg.StorePath() + ")")
		} else {
			fmt.Println("Store:   ✗ Not created yet")
		}

		fmt.Printf("Sinks:   slack=%v kafka=%v amqp=%v\n",
			cfg.Sinks.Slack.Enabled, cfg.Sinks.Kafka.Enabled, cfg.Sinks.AMQP.Enabled)
	},
}
