package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/chatsentry/chatsentry/internal/alert"
	"github.com/chatsentry/chatsentry/internal/bus"
	"github.com/chatsentry/chatsentry/internal/config"
	"github.com/chatsentry/chatsentry/internal/connector"
	"github.com/chatsentry/chatsentry/internal/pipeline"
	"github.com/chatsentry/chatsentry/internal/store"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the ingestion service",
	Run:   runService,
}

func runService(cmd *cobra.Command, args []string) {
	printHeader("ChatSentry Service")

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Config warning: %v (using defaults)\n", err)
		cfg = config.DefaultConfig()
	}
	if err := config.EnsureDir(cfg.Paths.DataDir); err != nil {
		fmt.Printf("Data dir error: %v\n", err)
		os.Exit(1)
	}

	st, err := store.Open(cfg.StorePath())
	if err != nil {
		fmt.Printf("Store error: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	queue := bus.NewQueue(cfg.Queue.Capacity)
	engine := alert.NewEngine(st, cfg.Thresholds)
	proc := pipeline.NewProcessor(queue, st, engine)

	wa := connector.NewWhatsApp(cfg.Connector.DeviceDB)
	defer wa.Close()

	mgr := connector.NewManager(connector.ManagerOptions{
		Connector:        wa,
		Queue:            queue,
		Processor:        proc,
		ChallengeTimeout: cfg.Connector.ChallengeTimeout,
		BaseInterval:     cfg.Connector.ReconnectBase,
		MaxAttempts:      cfg.Connector.MaxReconnectAttempts,
		QRPath:           cfg.Connector.QRPath,
	})

	sinks, closers := buildSinks(cfg)
	defer func() {
		for _, c := range closers {
			c()
		}
	}()
	disp := alert.NewDispatcher(cfg.Dispatcher, st, sinks...)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go disp.Run(ctx)

	if err := mgr.Run(ctx); err != nil {
		fmt.Printf("Session error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("ChatSentry stopped")
}

// buildSinks assembles the enabled alert delivery targets.
func buildSinks(cfg *config.Config) ([]alert.Sink, []func()) {
	var sinks []alert.Sink
	var closers []func()

	if cfg.Sinks.Slack.Enabled {
		sinks = append(sinks, alert.NewSlackSink(cfg.Sinks.Slack))
		fmt.Printf("Sink enabled: slack (#%s)\n", cfg.Sinks.Slack.Channel)
	}
	if cfg.Sinks.Kafka.Enabled {
		k := alert.NewKafkaSink(cfg.Sinks.Kafka)
		sinks = append(sinks, k)
		closers = append(closers, func() { k.Close() })
		fmt.Printf("Sink enabled: kafka (%s)\n", cfg.Sinks.Kafka.Topic)
	}
	if cfg.Sinks.AMQP.Enabled {
		a, err := alert.NewAMQPSink(cfg.Sinks.AMQP)
		if err != nil {
			fmt.Printf("AMQP sink error: %v (disabled)\n", err)
		} else {
			sinks = append(sinks, a)
			closers = append(closers, func() { a.Close() })
			fmt.Printf("Sink enabled: amqp (%s)\n", cfg.Sinks.AMQP.Exchange)
		}
	}
	if len(sinks) == 0 {
		fmt.Println("No sinks enabled; alerts stay queued in the outbox")
	}
	return sinks, closers
}
