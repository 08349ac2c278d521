package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/chatsentry/chatsentry/internal/config"
	"github.com/chatsentry/chatsentry/internal/store"
)

var outboxLimit int

var outboxCmd = &cobra.Command{
	Use:   "outbox",
	Short: "List undelivered alerts",
	Run:   runOutbox,
}

func init() {
	outboxCmd.Flags().IntVarP(&outboxLimit, "limit", "n", 25, "Maximum alerts to list")
}

func runOutbox(cmd *cobra.Command, args []string) {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Config warning: %v (using defaults)\n", err)
		cfg = config.DefaultConfig()
	}

	st, err := store.Open(cfg.StorePath())
	if err != nil {
		fmt.Printf("Store error: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	alerts, err := st.ListUnsentAlerts(context.Background(), outboxLimit)
	if err != nil {
		fmt.Printf("Outbox error: %v\n", err)
		os.Exit(1)
	}
	if len(alerts) == 0 {
		fmt.Println("Outbox is empty")
		return
	}
	for _, a := range alerts {
		fmt.Printf("%s  %-16s sev=%d chat=%s  %s\n",
			a.CreatedAt.Format("2006-01-02 15:04:05"), a.AlertType, a.Severity, a.ChatID, a.Message)
	}
}
