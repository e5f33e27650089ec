// Package metrics exposes Prometheus counters and gauges for the
// peer table, the forwarding engine, and the proxy's flow allocator.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every counter/gauge this module exports.
type Metrics struct {
	PeerCount prometheus.Gauge

	ForwardAccepted *prometheus.CounterVec
	ForwardRejected *prometheus.CounterVec
	ForwardDenied   *prometheus.CounterVec

	FlowCount     prometheus.Gauge
	VlanAllocated prometheus.Counter
	VlanExhausted prometheus.Counter

	registry *prometheus.Registry
}

// direction labels used on the forwarding counters.
const (
	DirectionIn  = "in"
	DirectionOut = "out"
)

// New builds a fresh, independently registered Metrics instance.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		PeerCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "vlanmesh_peers",
			Help: "Number of peers currently tracked in the peer table.",
		}),
		ForwardAccepted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vlanmesh_forward_accepted_total",
			Help: "Packets accepted by the firewall, by direction.",
		}, []string{"direction"}),
		ForwardRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vlanmesh_forward_rejected_total",
			Help: "Packets rejected by the firewall, by direction.",
		}, []string{"direction"}),
		ForwardDenied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vlanmesh_forward_denied_total",
			Help: "Packets denied by the firewall, by direction.",
		}, []string{"direction"}),
		FlowCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "vlanmesh_proxy_flows",
			Help: "Number of (client, service) flows currently allocated.",
		}),
		VlanAllocated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vlanmesh_proxy_vlans_allocated_total",
			Help: "VLAN ids successfully allocated by the proxy.",
		}),
		VlanExhausted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vlanmesh_proxy_vlan_exhausted_total",
			Help: "Allocation attempts that failed because the VLAN id space was exhausted.",
		}),
		registry: reg,
	}

	reg.MustRegister(
		m.PeerCount, m.ForwardAccepted, m.ForwardRejected, m.ForwardDenied,
		m.FlowCount, m.VlanAllocated, m.VlanExhausted,
	)
	return m
}

// StartServer exposes /metrics on addr until ctx is cancelled,
// following the same bind/serve/graceful-shutdown shape used
// elsewhere in this module for HTTP listeners.
func (m *Metrics) StartServer(ctx context.Context, addr string) error {
	if strings.TrimSpace(addr) == "" {
		return errors.New("metrics: empty listen address")
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	err := srv.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics: server: %w", err)
	}
	return nil
}
