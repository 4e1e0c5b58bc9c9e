package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/cat777temp/SimpleMQ/internal/config"
	"github.com/cat777temp/SimpleMQ/internal/logging"
	api "github.com/cat777temp/SimpleMQ/pkg"
)

var version = "dev"

func main() {
	cfg := config.NewClient()

	app := &cli.Command{
		Name:    "simplemq-subscriber",
		Usage:   "subscribe to a topic on a SimpleMQ broker and print received messages",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "host", Usage: "broker host", Value: cfg.Host, Destination: &cfg.Host},
			&cli.IntFlag{Name: "port", Aliases: []string{"p"}, Usage: "broker TCP port", Value: cfg.Port, Destination: &cfg.Port},
			&cli.StringFlag{Name: "server", Aliases: []string{"s"}, Usage: "local-IPC endpoint name; overrides host/port", Destination: &cfg.ServerName},
			&cli.StringFlag{Name: "topic", Aliases: []string{"t"}, Usage: "topic to subscribe to", Destination: &cfg.Topic},
			&cli.StringFlag{Name: "log", Aliases: []string{"l"}, Usage: "path to the subscriber log file; empty disables file logging", Destination: &cfg.LogPath},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			return run(ctx, cfg)
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Client) error {
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

	handler := func(msg *api.Message) {
		fmt.Printf("%s %s: %s\n", msg.Timestamp().Format("2006-01-02T15:04:05.000Z07:00"), msg.Topic(), msg.Payload())
	}

	var sub *api.Subscriber
	sub = api.NewSubscriber(cfg.Host, cfg.Port, socketPath,
		api.WithSubscriberAutoReconnect(config.DefaultReconnectInterval),
		api.WithSubscriberEvents(api.SubscriberEvents{
			OnConnected: func() {
				log.Infof("connected")
				if err := sub.Subscribe(cfg.Topic, handler); err != nil {
					log.Warnf("subscribe failed: %v", err)
				}
			},
			OnDisconnected: func() { log.Warnf("disconnected, will retry") },
			OnSubscribed:   func(topic string) { log.Infof("subscribed to %s", topic) },
			OnUnsubscribed: func(topic string) { log.Infof("unsubscribed from %s", topic) },
			OnError:        func(err error) { log.Errorf("%v", err) },
		}),
	)

	if err := sub.Connect(); err != nil {
		log.Warnf("initial connect failed, will retry: %v", err)
	}
	defer sub.Disconnect()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	return nil
}

func openLog(path string) (*logging.Logger, error) {
	if path == "" {
		return logging.New(os.Stderr, logging.WithLevel(logging.INFO)), nil
	}
	return logging.Open(path, logging.WithLevel(logging.INFO))
}
