// Package daemon wires the tunnel daemon's collaborators together:
// local endpoint bootstrap, the peer table, peer discovery, the
// forwarding engine, the VLAN control channel, and the optional
// metrics server. It mirrors the top-level wiring shape of the
// teacher daemon's main/manager split, moved into a package of its
// own so cmd/vlanmeshd stays a thin flag-and-signal shim.
package daemon

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"vlanmesh/internal/daemonconfig"
	"vlanmesh/internal/firewall"
	"vlanmesh/internal/forward"
	"vlanmesh/internal/metrics"
	"vlanmesh/internal/ovsctl"
	"vlanmesh/internal/peers"
)

// Daemon owns every long-running component of the tunnel daemon; the
// ctx passed to New and Run controls their lifetime.
type Daemon struct {
	cfg       *daemonconfig.Config
	log       *zap.SugaredLogger
	metrics   *metrics.Metrics
	endpoints peers.LocalEndpoints
	table     *peers.Table
	discovery *peers.Discovery
	engine    *forward.Engine
	orch      *ovsctl.Orchestrator
}

// New builds a Daemon from cfg, bootstrapping local endpoints, opening
// the TUN device, and wiring the forwarding engine, discovery, and
// control channel together. The OVS bridge is provisioned later, by
// Run, before any component starts. It blocks on Bootstrap's retry loop until ctx is
// cancelled or a local LAN interface is found (spec §7).
func New(ctx context.Context, cfg *daemonconfig.Config, log *zap.SugaredLogger) (*Daemon, error) {
	var m *metrics.Metrics
	if cfg.Metrics.Listen != "" {
		m = metrics.New()
	}

	endpoints, err := peers.Bootstrap(ctx, log)
	if err != nil {
		return nil, fmt.Errorf("daemon: bootstrap: %w", err)
	}

	verdict, err := firewall.ParseVerdict(cfg.Firewall.DefaultVerdict)
	if err != nil {
		return nil, fmt.Errorf("daemon: %w", err)
	}
	fw := firewall.Static{Verdict: verdict}

	dev, _, err := forward.OpenTun(cfg.Tun.Device)
	if err != nil {
		return nil, fmt.Errorf("daemon: open tun: %w", err)
	}

	events := make(chan peers.Event, 64)
	table := peers.NewTable(events)
	engine := forward.NewEngine(dev, endpoints.Sockets.Forward, table, fw, endpoints.Ips.Tun, m, log)

	run := &ovsctl.ExecRunner{Log: log}
	orch := ovsctl.NewOrchestrator(run, cfg.Tun.Device, cfg.HostsFile, log)
	cc := ovsctl.NewControlChannel(orch, log)

	discovery := peers.NewDiscovery(endpoints, table, nil, cc.Handle, log)

	d := &Daemon{cfg: cfg, log: log, metrics: m, endpoints: endpoints, table: table, discovery: discovery, engine: engine, orch: orch}
	if m != nil {
		go d.trackPeerCount(ctx, events)
	} else {
		go drainEvents(ctx, events)
	}
	return d, nil
}

// Run provisions the bridge and launches every long-running component,
// blocking until ctx is cancelled.
func (d *Daemon) Run(ctx context.Context) {
	d.orch.SetupBridge(ctx)

	if d.metrics != nil {
		go func() {
			if err := d.metrics.StartServer(ctx, d.cfg.Metrics.Listen); err != nil {
				d.log.Warnw("metrics server stopped", "error", err)
			}
		}()
	}

	go d.engine.Run(ctx)
	d.discovery.Run(ctx)
}

// trackPeerCount keeps metrics.PeerCount in sync with the peer table
// by consuming discovery's change events; it exits when events closes
// or ctx is cancelled.
func (d *Daemon) trackPeerCount(ctx context.Context, events <-chan peers.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-events:
			if !ok {
				return
			}
			d.metrics.PeerCount.Set(float64(d.table.Len()))
		}
	}
}

// drainEvents discards peer-table change events when no metrics
// server is configured. The table never blocks on a full events
// channel (it drops the event), so this only keeps the buffer drained.
func drainEvents(ctx context.Context, events <-chan peers.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-events:
			if !ok {
				return
			}
		}
	}
}
