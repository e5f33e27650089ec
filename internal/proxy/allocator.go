// Package proxy implements the edge proxy's flow-to-VLAN allocator
// and HTTP front end described in spec §4.4: per (client, service)
// VLAN provisioning, twin-host setup, and upstream address
// construction.
package proxy

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"vlanmesh/internal/metrics"
	"vlanmesh/internal/wire"
)

// ErrUnknownService is returned when the requested service is absent
// from the catalog.
var ErrUnknownService = errors.New("proxy: unknown service")

// ErrVLANExhausted is returned once the VLAN counter would exceed the
// 12-bit VLAN id space (spec §9 Open Question: "cap and log rather
// than silently truncate").
var ErrVLANExhausted = errors.New("proxy: vlan id space exhausted")

// maxVlanID is the largest value representable in a 12-bit VLAN tag.
const maxVlanID = 4095

// firstVlanID is the first id handed out; the counter starts at 100
// and is pre-incremented, so the first allocation is 101 (spec §8:
// "VLAN ids issued by the allocator are strictly monotonically
// increasing from 101").
const firstVlanID = 100

// FlowKey identifies a single allocated flow.
type FlowKey struct {
	ClientIP string
	Service  string
}

// VlanRequestSender dispatches a VlanSetupRequest to a host's control
// channel (eth_ip:9998). Implemented over UDP by UDPSender, the
// proxy's own socket; an interface here keeps the allocator testable
// without a real network.
type VlanRequestSender interface {
	SendVlanSetupRequest(dest *net.UDPAddr, req wire.VlanSetupRequest) error
}

// Allocator implements get_or_create(flow_key) -> upstream address,
// spec §4.4. The flow table is read-heavy and writer-serialized; the
// VLAN counter is a separate, smaller critical section so the slow
// twin-host RPC does not block other flows' lookups (spec §5).
type Allocator struct {
	catalog map[string]net.TCPAddr
	localIP net.IP
	sender  VlanRequestSender
	metrics *metrics.Metrics
	log     *zap.SugaredLogger

	flowMu sync.RWMutex
	flows  map[FlowKey]net.TCPAddr

	vlanMu sync.Mutex
	vlanID uint16

	postSetupDelay time.Duration
}

// NewAllocator builds an Allocator. localIP is this host's own eth
// address (spec §9: proxy self-IP, discovered via LocalIps rather
// than hardcoded). m may be nil to disable metrics recording.
func NewAllocator(catalog map[string]net.TCPAddr, localIP net.IP, sender VlanRequestSender, m *metrics.Metrics, log *zap.SugaredLogger) *Allocator {
	return &Allocator{
		catalog:        catalog,
		localIP:        localIP,
		sender:         sender,
		metrics:        m,
		log:            log,
		flows:          make(map[FlowKey]net.TCPAddr),
		vlanID:         firstVlanID,
		postSetupDelay: 1 * time.Second,
	}
}

// GetOrCreate implements the nine-step algorithm of spec §4.4.
func (a *Allocator) GetOrCreate(clientIP, service string) (net.TCPAddr, error) {
	key := FlowKey{ClientIP: clientIP, Service: service}

	a.flowMu.RLock()
	existing, ok := a.flows[key]
	a.flowMu.RUnlock()
	if ok {
		return existing, nil
	}

	target, ok := a.catalog[service]
	if !ok {
		return net.TCPAddr{}, fmt.Errorf("%w: %s", ErrUnknownService, service)
	}

	vlanID, err := a.nextVlanID()
	if err != nil {
		return net.TCPAddr{}, err
	}
	hi, lo := vlanIDBytes(vlanID)

	localPort := wire.IPv4Network{IP: net.IPv4(10, hi, lo, 2), Prefix: 24}
	targetPort := wire.IPv4Network{IP: net.IPv4(10, hi, lo, 1), Prefix: 24}

	if err := a.dispatch(vlanID, localPort, a.localIP); err != nil {
		return net.TCPAddr{}, err
	}
	if err := a.dispatch(vlanID, targetPort, target.IP); err != nil {
		return net.TCPAddr{}, err
	}

	upstream := net.TCPAddr{IP: net.IPv4(10, hi, lo, 1), Port: target.Port}

	a.flowMu.Lock()
	a.flows[key] = upstream
	flowCount := len(a.flows)
	a.flowMu.Unlock()

	if a.metrics != nil {
		a.metrics.FlowCount.Set(float64(flowCount))
	}

	time.Sleep(a.postSetupDelay)
	return upstream, nil
}
