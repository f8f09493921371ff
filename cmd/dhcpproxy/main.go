package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sashakarcz/irondhcp/internal/config"
	"github.com/sashakarcz/irondhcp/internal/logger"
	"github.com/sashakarcz/irondhcp/internal/proxy"
)

const banner = `
  _                 ___  _  _  ___ ___
 (_)_ _ ___ _ _    |   \| || |/ __| _ \
 | | '_/ _ \ ' \   | |) | __ | (__|  _/
 |_|_| \___/_||_|  |___/|_||_|\___|_|

  Federating proxy over per-node read APIs
`

var (
	configFile = flag.String("config", "proxy-config.yaml", "Path to proxy configuration file")
	version    = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()

	if *version {
		fmt.Print("irondhcp dhcpproxy v1.0.0\n")
		os.Exit(0)
	}

	fmt.Print(banner)

	cfg, err := config.LoadProxy(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Setup(logger.Config{Level: "info", Format: "text"}); err != nil {
		fmt.Fprintf(os.Stderr, "failed to setup logger: %v\n", err)
		os.Exit(1)
	}

	logger.Info().Str("config", *configFile).Int("upstreams", len(cfg.Upstreams)).Msg("starting dhcpproxy")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv, err := proxy.New(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build proxy server")
	}
	if err := srv.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to start proxy server")
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	logger.Info().Msg("dhcpproxy is running, press Ctrl+C to stop")
	<-sigChan
	logger.Info().Msg("shutdown signal received, stopping dhcpproxy")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Stop(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("error stopping proxy server")
	}

	logger.Info().Msg("dhcpproxy stopped")
}
