package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sashakarcz/irondhcp/internal/addr"
	"github.com/sashakarcz/irondhcp/internal/api"
	"github.com/sashakarcz/irondhcp/internal/config"
	"github.com/sashakarcz/irondhcp/internal/engine"
	"github.com/sashakarcz/irondhcp/internal/logger"
	"github.com/sashakarcz/irondhcp/internal/metricsport"
	"github.com/sashakarcz/irondhcp/internal/notify"
	"github.com/sashakarcz/irondhcp/internal/store"
	"github.com/sashakarcz/irondhcp/internal/workers"
)

const banner = `
  _                 ___  _  _  ___ ___
 (_)_ _ ___ _ _    |   \| || |/ __| _ \
 | | '_/ _ \ ' \   | |) | __ | (__|  _/
 |_|_| \___/_||_|  |___/|_||_|\___|_|

  DHCPv4 node: server + lease store + read API
`

var (
	configFile = flag.String("config", "config.yaml", "Path to configuration file")
	version    = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()

	if *version {
		fmt.Print("irondhcp dhcpnode v1.0.0\n")
		os.Exit(0)
	}

	fmt.Print(banner)

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Setup(logger.Config{Level: "info", Format: "text"}); err != nil {
		fmt.Fprintf(os.Stderr, "failed to setup logger: %v\n", err)
		os.Exit(1)
	}

	logger.Info().Str("config", *configFile).Msg("starting dhcpnode")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger.Info().Msg("applying database schema")
	if err := store.EnsureSchema(ctx, cfg.Database.DBFile, cfg.Database.HistoryDBFile); err != nil {
		logger.Fatal().Err(err).Msg("failed to apply database schema")
	}

	inactivityThreshold, err := cfg.Notification.InactivityThreshold()
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid notification.inactive_period")
	}

	notifySink := notify.NewLoggingSink()

	st, err := store.New(ctx, store.Config{
		LeasesDSN:           cfg.Database.DBFile,
		HistoryDSN:          cfg.Database.HistoryDBFile,
		HistoryRetention:    time.Duration(cfg.Database.HistoryCleanupDays) * 24 * time.Hour,
		HistoryLimit:        cfg.Web.LeaseHistoryLimit,
		NotifySink:          notifySink,
		InactivityThreshold: inactivityThreshold,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to databases")
	}
	defer st.Close()

	pool, err := addr.NewPool(cfg.Network.PoolStart, cfg.Network.PoolEnd)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid address pool configuration")
	}

	serverIP := net.ParseIP(cfg.Network.ServerIP).To4()
	subnetMask := net.IPMask(net.ParseIP(cfg.Network.SubnetMask).To4())

	logger.Info().Msg("checking lease subnet consistency")
	offenders, err := st.CheckSubnetConsistency(ctx, pool)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to check subnet consistency")
	}
	if len(offenders) > 0 {
		logger.Warn().Int("count", len(offenders)).Msg("leases found outside configured subnet, migrating")
		migrated, err := st.MigrateSubnet(ctx, serverIP, subnetMask, pool)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to migrate leases to new subnet")
		}
		logger.Info().Int("migrated", migrated).Msg("subnet migration complete")
	}

	dnsServers := make([]net.IP, 0, len(cfg.Network.DNSServers))
	for _, s := range cfg.Network.DNSServers {
		dnsServers = append(dnsServers, net.ParseIP(s).To4())
	}

	netParams := engine.NetworkParams{
		ServerIP:   serverIP,
		SubnetMask: subnetMask,
		Gateway:    net.ParseIP(cfg.Network.Gateway).To4(),
		DNSServers: dnsServers,
		DomainName: cfg.Network.DomainName,
		LeaseTime:  cfg.Network.LeaseTime(),
		Pool:       pool,
	}

	metricsSink := metricsport.NewPrometheus()

	eng := engine.New(st, netParams, cfg.Network.Interface, cfg.Server.CacheTTL(), metricsSink)
	if err := eng.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to start DHCP engine")
	}

	expiryWorker := workers.NewExpiryWorker(st, cfg.Server.ExpireCheckPeriod())
	expiryWorker.Start(ctx)

	metricsWorker := workers.NewMetricsWorker(st, eng, metricsSink, cfg.Metrics.Interval())
	metricsWorker.Start(ctx)

	apiServer := api.New(api.Config{
		Host:       cfg.Web.Host,
		Port:       cfg.Web.Port,
		Token:      cfg.Web.APIToken,
		CacheTTL:   cfg.Web.APICacheTTL(),
		HistoryMax: cfg.Web.LeaseHistoryLimit,
	}, st)
	if err := apiServer.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to start node API server")
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	logger.Info().Msg("dhcpnode is running, press Ctrl+C to stop")
	<-sigChan
	logger.Info().Msg("shutdown signal received, stopping dhcpnode")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := apiServer.Stop(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("error stopping node API server")
	}
	if err := metricsWorker.Stop(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("error stopping metrics worker")
	}
	if err := expiryWorker.Stop(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("error stopping expiry worker")
	}
	if err := eng.Stop(); err != nil {
		logger.Error().Err(err).Msg("error stopping DHCP engine")
	}

	logger.Info().Msg("dhcpnode stopped")
}
