// Command vlanmeshd is the per-host tunnel daemon: it bootstraps local
// endpoints, provisions the OVS bridge, and runs the forwarding engine
// and peer discovery protocol until terminated.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"vlanmesh/internal/daemon"
	"vlanmesh/internal/daemonconfig"
	"vlanmesh/internal/logging"
)

func main() {
	var cfgPath string
	var debug bool
	flag.StringVar(&cfgPath, "c", "/etc/vlanmesh/daemon.yaml", "config path")
	flag.BoolVar(&debug, "debug", false, "enable human-readable debug logging")
	flag.Parse()

	cfg, err := daemonconfig.LoadConfig(cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(debug)
	defer logger.Sync()
	sugar := logging.Component(logger, "daemon")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigc
		sugar.Infow("shutting down")
		cancel()
	}()

	d, err := daemon.New(ctx, cfg, sugar)
	if err != nil {
		sugar.Fatalw("daemon init failed", "error", err)
	}

	sugar.Infow("vlanmesh daemon starting", "tun", cfg.Tun.Device)
	d.Run(ctx)
}
