package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/cat777temp/SimpleMQ/internal/config"
	"github.com/cat777temp/SimpleMQ/internal/logging"
	api "github.com/cat777temp/SimpleMQ/pkg"
)

var version = "dev"

func main() {
	cfg := config.NewClient()
	var interval time.Duration

	app := &cli.Command{
		Name:    "simplemq-publisher",
		Usage:   "publish messages to a SimpleMQ broker",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "host", Usage: "broker host", Value: cfg.Host, Destination: &cfg.Host},
			&cli.IntFlag{Name: "port", Aliases: []string{"p"}, Usage: "broker TCP port", Value: cfg.Port, Destination: &cfg.Port},
			&cli.StringFlag{Name: "server", Aliases: []string{"s"}, Usage: "local-IPC endpoint name; overrides host/port", Destination: &cfg.ServerName},
			&cli.StringFlag{Name: "topic", Aliases: []string{"t"}, Usage: "topic to publish to", Destination: &cfg.Topic},
			&cli.StringFlag{Name: "log", Aliases: []string{"l"}, Usage: "path to the publisher log file; empty disables file logging", Destination: &cfg.LogPath},
			&cli.DurationFlag{Name: "interval", Usage: "if set, publish a timestamped heartbeat on this interval instead of reading stdin", Destination: &interval},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			return run(ctx, cfg, interval)
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Client, interval time.Duration) error {
	if cfg.Topic == "" {
		return cli.Exit("--topic is required", 1)
	}

	log, err := openLog(cfg.LogPath)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	defer log.Close()

	socketPath := ""
	if cfg.UseLocal() {
		socketPath = config.SocketPath(cfg.ServerName)
	}

	pub := api.NewPublisher(cfg.Host, cfg.Port, socketPath,
		api.WithAutoReconnect(config.DefaultReconnectInterval),
		api.WithPublisherEvents(api.PublisherEvents{
			OnConnected:    func() { log.Infof("connected") },
			OnDisconnected: func() { log.Warnf("disconnected, will retry") },
			OnPublished:    func(id string) { log.Debugf("published message %s", id) },
			OnError:        func(err error) { log.Errorf("%v", err) },
		}),
	)

	if err := pub.Connect(); err != nil {
		log.Warnf("initial connect failed, will retry: %v", err)
	}
	defer pub.Disconnect()

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if interval > 0 {
		return publishHeartbeat(sigCtx, pub, cfg.Topic, interval, log)
	}
	return publishStdin(sigCtx, pub, cfg.Topic, log)
}

func publishHeartbeat(ctx context.Context, pub *api.Publisher, topic string, interval time.Duration, log *logging.Logger) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			payload := []byte(now.UTC().Format(time.RFC3339Nano))
			if _, err := pub.Publish(topic, payload); err != nil {
				log.Warnf("publish failed: %v", err)
			}
		}
	}
}

func publishStdin(ctx context.Context, pub *api.Publisher, topic string, log *logging.Logger) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if _, err := pub.Publish(topic, []byte(line)); err != nil {
				log.Warnf("publish failed: %v", err)
			}
		}
	}
}

func openLog(path string) (*logging.Logger, error) {
	if path == "" {
		return logging.New(os.Stderr, logging.WithLevel(logging.INFO)), nil
	}
	return logging.Open(path, logging.WithLevel(logging.INFO))
}
