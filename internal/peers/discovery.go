package peers

import (
	"context"
	"net"
	"time"

	"go.uber.org/zap"

	"vlanmesh/internal/wire"
)

// Discovery timing constants, per spec §4.2.
const (
	// Retries is the number of copies sent in each hello burst.
	Retries = 4
	// RetriesDelta is the spacing between copies within a burst.
	RetriesDelta = 1 * time.Second
	// RetransmissionPeriod is the time between broadcast bursts.
	RetransmissionPeriod = TTL/2 - 1*time.Second
)

// VlanRequestHandler is invoked when a VlanSetupRequest arrives on the
// discovery-unicast socket (spec §4.3: the control channel shares port
// 9998 with discovery). Implemented by internal/ovsctl.
type VlanRequestHandler func(req wire.VlanSetupRequest)

// Discovery runs the peer discovery & liveness protocol: broadcast and
// unicast hello listeners, the periodic broadcast sender, and the TTL
// expiry sweeper (spec §4.2, §5).
type Discovery struct {
	endpoints LocalEndpoints
	table     *Table
	lister    wire.ProcessLister
	onVlan    VlanRequestHandler
	log       *zap.SugaredLogger
}

// NewDiscovery constructs a Discovery bound to the given local
// endpoints and peer table. onVlan may be nil if the daemon does not
// want VlanSetupRequests routed through the discovery socket (tests).
func NewDiscovery(endpoints LocalEndpoints, table *Table, lister wire.ProcessLister, onVlan VlanRequestHandler, log *zap.SugaredLogger) *Discovery {
	if lister == nil {
		lister = wire.NoProcesses{}
	}
	return &Discovery{endpoints: endpoints, table: table, lister: lister, onVlan: onVlan, log: log}
}

// Run launches every discovery task and blocks until ctx is cancelled,
// mirroring the concurrency model of spec §5: broadcast listener,
// unicast listener, expiry sweeper, and the periodic broadcast sender
// all run concurrently.
func (d *Discovery) Run(ctx context.Context) {
	go d.listen(ctx, d.endpoints.Sockets.DiscoveryBroadcast)
	go d.listen(ctx, d.endpoints.Sockets.DiscoveryUnicast)
	go d.expiryLoop(ctx)
	d.greetBroadcastLoop(ctx)
}

// listen reads hello (and VLAN setup) documents off sock, validating
// and applying hellos to the peer table, and dispatching VLAN setup
// requests to onVlan. Runs until ctx is cancelled or the socket errors
// out permanently.
func (d *Discovery) listen(ctx context.Context, sock *net.UDPConn) {
	// 1024 bytes, matching the original's fixed-size read buffer; a
	// hello whose processes list grows the TOML document past that is
	// silently truncated and will fail to parse below rather than
	// being read in full.
	buf := make([]byte, 1024)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		n, from, err := sock.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
			}
			d.log.Warnw("discovery socket read failed", "error", err)
			continue
		}
		msg := append([]byte(nil), buf[:n]...)
		d.handleMessage(msg, from)
	}
}

func (d *Discovery) handleMessage(msg []byte, from *net.UDPAddr) {
	if req, err := wire.VlanSetupRequestFromTOML(msg); err == nil && len(req.Ports) > 0 {
		if d.onVlan != nil {
			d.onVlan(req)
		}
		return
	}

	hello, err := wire.HelloFromTOML(msg)
	if err != nil {
		d.log.Infow("could not parse peer message", "from", from, "error", err)
		return
	}

	if !IsValidHello(hello, from, d.endpoints.Ips) {
		return
	}

	now := time.Now().UTC()
	delay := now.Sub(hello.Timestamp)

	key, ok := KeyFromIP(hello.Ips.Tun)
	if !ok {
		return
	}
	isNew := d.table.UpsertFromHello(key, hello, delay, now)

	if !hello.IsUnicast && (isNew || hello.IsSetup) {
		dest := &net.UDPAddr{IP: hello.Ips.Eth, Port: DiscoveryPort}
		go d.greet(dest, false, !hello.IsSetup, true)
	}
}

// expiryLoop sleeps until the oldest peer is due to expire, then
// sweeps the table. See spec §4.2.
func (d *Discovery) expiryLoop(ctx context.Context) {
	for {
		sleep := TTL
		if oldest, ok := d.table.OldestLastSeen(); ok {
			elapsed := time.Since(oldest)
			if elapsed < TTL {
				sleep = TTL - elapsed
			} else {
				sleep = 0
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(sleep):
		}

		removed := d.table.RemoveExpired(time.Now().UTC())
		for _, k := range removed {
			d.log.Infow("peer expired", "tun_ip", k.IP())
		}
	}
}

// greetBroadcastLoop periodically sends out broadcast hello bursts.
// The first burst sets IsSetup=true to request unicast acknowledgments
// (spec §4.2).
func (d *Discovery) greetBroadcastLoop(ctx context.Context) {
	dest := &net.UDPAddr{IP: d.endpoints.Ips.Broadcast, Port: DiscoveryPort}
	isSetup := true
	for {
		d.greet(dest, isSetup, true, false)
		isSetup = false

		select {
		case <-ctx.Done():
			return
		case <-time.After(RetransmissionPeriod):
		}
	}
}

// greet sends a burst of hello messages to dest. If shouldRetry is
// false, only a single copy is sent (used for unicast responses to an
// already-acknowledged setup burst, per the original implementation's
// asymmetric retry policy).
func (d *Discovery) greet(dest *net.UDPAddr, isSetup, shouldRetry, isUnicast bool) {
	sock := d.endpoints.Sockets.DiscoveryUnicast
	copies := 1
	if shouldRetry {
		copies = Retries
	}
	for i := 0; i < copies; i++ {
		hello := wire.Hello{
			Ips:       d.endpoints.Ips,
			Timestamp: time.Now().UTC(),
			IsSetup:   isSetup,
			IsUnicast: isUnicast,
			Processes: wire.Processes(d.lister.ListListeners()),
		}
		data, err := hello.ToTOML()
		if err != nil {
			d.log.Warnw("failed to encode hello", "error", err)
			return
		}
		if _, err := sock.WriteToUDP(data, dest); err != nil {
			d.log.Warnw("failed to send hello", "dest", dest, "error", err)
		}
		if i < copies-1 {
			time.Sleep(RetriesDelta)
		}
	}
}
