package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/cat777temp/SimpleMQ/internal/broker"
	"github.com/cat777temp/SimpleMQ/internal/config"
	"github.com/cat777temp/SimpleMQ/internal/logging"
)

var version = "dev"

func main() {
	cfg := config.NewBroker()

	app := &cli.Command{
		Name:    "simplemq-broker",
		Usage:   "run the SimpleMQ broker",
		Version: version,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:        "port",
				Aliases:     []string{"p"},
				Usage:       "TCP port to listen on",
				Value:       config.DefaultPort,
				Destination: &cfg.Port,
			},
			&cli.StringFlag{
				Name:        "server",
				Aliases:     []string{"s"},
				Usage:       "local-IPC endpoint name",
				Value:       config.DefaultServerName,
				Destination: &cfg.ServerName,
			},
			&cli.StringFlag{
				Name:        "log",
				Aliases:     []string{"l"},
				Usage:       "path to the broker log file",
				Value:       config.DefaultBrokerLogPath,
				Destination: &cfg.LogPath,
			},
			&cli.IntFlag{
				Name:        "cache-size",
				Usage:       "number of messages retained per topic for replay; 0 disables caching",
				Value:       config.DefaultCacheSize,
				Destination: &cfg.CacheSize,
			},
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

func run(ctx context.Context, cfg *config.Broker) error {
	log, err := logging.Open(cfg.LogPath, logging.WithLevel(logging.INFO))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return cli.Exit(fmt.Sprintf("open log file: %v", err), 1)
	}
	defer log.Close()

	b := broker.NewBroker(cfg, log, nil)
	if err := b.Start(); err != nil {
		log.Errorf("start failed: %v", err)
		return cli.Exit(err.Error(), 1)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Infof("shutdown requested")
	b.Stop()
	return nil
}
