// Command vlanmesh-proxy is the edge proxy: it loads the service
// catalog, allocates a VLAN per (client, service) flow on demand, and
// reverse-proxies HTTP requests to the resulting upstream.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"vlanmesh/internal/logging"
	"vlanmesh/internal/metrics"
	"vlanmesh/internal/peers"
	"vlanmesh/internal/proxy"
	"vlanmesh/internal/proxyconfig"
	"vlanmesh/internal/wire"
)

func main() {
	var cfgPath string
	var debug bool
	flag.StringVar(&cfgPath, "c", "/etc/vlanmesh/proxy.yaml", "config path")
	flag.BoolVar(&debug, "debug", false, "enable human-readable debug logging")
	flag.Parse()

	cfg, err := proxyconfig.LoadConfig(cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(debug)
	defer logger.Sync()
	sugar := logging.Component(logger, "proxy")

	catalogData, err := os.ReadFile(cfg.CatalogPath)
	if err != nil {
		sugar.Fatalw("read service catalog failed", "path", cfg.CatalogPath, "error", err)
	}
	catalog, err := wire.ParseServiceCatalog(catalogData)
	if err != nil {
		sugar.Fatalw("parse service catalog failed", "path", cfg.CatalogPath, "error", err)
	}

	localIps, err := peers.DeriveLocalIps()
	if err != nil {
		sugar.Fatalw("derive local address failed", "error", err)
	}

	sender, err := proxy.NewUDPSender()
	if err != nil {
		sugar.Fatalw("bind vlan setup source failed", "error", err)
	}
	defer sender.Close()

	var m *metrics.Metrics
	if cfg.Metrics.Listen != "" {
		m = metrics.New()
	}

	alloc := proxy.NewAllocator(catalog, localIps.Eth, sender, m, sugar)
	srv := proxy.NewServer(alloc, sugar)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigc
		sugar.Infow("shutting down")
		cancel()
	}()

	if m != nil {
		go func() {
			if err := m.StartServer(ctx, cfg.Metrics.Listen); err != nil {
				sugar.Warnw("metrics server stopped", "error", err)
			}
		}()
	}

	httpSrv := &http.Server{Addr: cfg.Listen.HTTP, Handler: srv}
	go func() {
		<-ctx.Done()
		_ = httpSrv.Close()
	}()

	sugar.Infow("vlanmesh proxy listening", "addr", cfg.Listen.HTTP, "services", len(catalog))
	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		sugar.Fatalw("http server failed", "error", err)
	}
}
