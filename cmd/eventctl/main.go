package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/easyhotel/easyhotel/cmd/eventctl/cli"
	"github.com/easyhotel/easyhotel/internal/app"
	"github.com/easyhotel/easyhotel/internal/events"
)

const usage = `usage: eventctl <command> [flags]

commands:
  publish      publish a domain event (sample payload unless --data is given)
  send-email   enqueue a test email on the notification queue
  queue-stats  print notification queue counters
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	os.Exit(run(ctx, cfg, os.Args[1], os.Args[2:]))
}

func run(ctx context.Context, cfg *app.Config, command string, args []string) int {
	switch command {
	case "publish":
		fs := flag.NewFlagSet("publish", flag.ExitOnError)
		eventType := fs.String("type", events.TypeReservationCreated, "event type")
		data := fs.String("data", "", "event data as a JSON object")
		brokers := fs.String("brokers", strings.Join(cfg.KafkaBrokers, ","), "comma separated kafka brokers")
		source := fs.String("source", "eventctl", "event source")
		jsonOut := fs.Bool("json", false, "print the published envelope as JSON")
		_ = fs.Parse(args)

		pub, err := events.NewKafkaPublisher(strings.Split(*brokers, ","), *source)
		if err != nil {
			fmt.Fprintf(os.Stderr, "publish: %v\n", err)
			return 1
		}
		defer func() {
			if err := pub.Close(); err != nil {
				fmt.Fprintf(os.Stderr, "publish: close writer: %v\n", err)
			}
		}()
		publishCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		return cli.PublishCommand(publishCtx, pub, cli.PublishOptions{Type: *eventType, Data: *data, JSONOutput: *jsonOut})

	case "send-email":
		fs := flag.NewFlagSet("send-email", flag.ExitOnError)
		to := fs.String("to", "", "recipient address")
		template := fs.String("template", "", "email template name")
		_ = fs.Parse(args)

		queue := cli.NewQueueCLI(cfg.RedisOptions().AsynqOpt())
		defer func() { _ = queue.Close() }()
		info, err := queue.SendTestEmail(ctx, *to, *template)
		if err != nil {
			fmt.Fprintf(os.Stderr, "send-email: %v\n", err)
			return 1
		}
		fmt.Printf("enqueued task %s on %s\n", info.ID, info.Queue)
		return 0

	case "queue-stats":
		queue := cli.NewQueueCLI(cfg.RedisOptions().AsynqOpt())
		defer func() { _ = queue.Close() }()
		stats, err := queue.InspectQueue()
		if err != nil {
			fmt.Fprintf(os.Stderr, "queue-stats: %v\n", err)
			return 1
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(stats)
		return 0

	default:
		fmt.Fprint(os.Stderr, usage)
		return 2
	}
}
