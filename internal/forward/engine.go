package forward

import (
	"context"
	"net"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"vlanmesh/internal/firewall"
	"vlanmesh/internal/ipcodec"
	"vlanmesh/internal/metrics"
	"vlanmesh/internal/peers"
)

// minIPv4HeaderLen is the shortest a well-formed IPv4 packet can be
// (the fixed header, no options).
const minIPv4HeaderLen = 20

// Engine runs the two forwarding pumps described in spec §4.1: TUN to
// UDP on egress, UDP to TUN on ingress, each gated by a firewall
// verdict.
type Engine struct {
	dev     Device
	forward *net.UDPConn
	table   *peers.Table
	fw      firewall.Evaluator
	tunIP   net.IP
	log     *zap.SugaredLogger
	metrics *metrics.Metrics
}

// NewEngine wires a TUN device and the forward UDP socket into a
// forwarding engine. tunIP is this host's own TUN address, used when
// crafting reject packets back to a remote peer. m may be nil to
// disable metrics recording.
func NewEngine(dev Device, forward *net.UDPConn, table *peers.Table, fw firewall.Evaluator, tunIP net.IP, m *metrics.Metrics, log *zap.SugaredLogger) *Engine {
	if fw == nil {
		fw = firewall.Permissive{}
	}
	return &Engine{dev: dev, forward: forward, table: table, fw: fw, tunIP: tunIP, metrics: m, log: log}
}

func (e *Engine) recordAccept(dir string) {
	if e.metrics != nil {
		e.metrics.ForwardAccepted.WithLabelValues(dir).Inc()
	}
}

func (e *Engine) recordReject(dir string) {
	if e.metrics != nil {
		e.metrics.ForwardRejected.WithLabelValues(dir).Inc()
	}
}

func (e *Engine) recordDeny(dir string) {
	if e.metrics != nil {
		e.metrics.ForwardDenied.WithLabelValues(dir).Inc()
	}
}

// Run launches the egress and ingress pumps and blocks until either
// pump returns, which happens only once ctx is cancelled: I/O errors
// are logged and the pumps keep looping.
func (e *Engine) Run(ctx context.Context) {
	done := make(chan struct{}, 2)
	go func() { e.egressPump(ctx); done <- struct{}{} }()
	go func() { e.ingressPump(ctx); done <- struct{}{} }()
	<-done
}

// egressPump reads packets off TUN and sends them to the destination
// peer's forward socket, per spec §4.1:
//
//	Read one packet from TUN. If shorter than 20 bytes, drop. Extract
//	the destination IPv4 from bytes [16..20] and look up the peer
//	keyed by that TUN IP. If none, drop. Invoke the firewall with
//	direction OUT; on ACCEPT, send the raw packet to the peer's
//	(eth_ip, 9999); on DENY or REJECT, drop — outbound traffic never
//	gets a reject reply.
func (e *Engine) egressPump(ctx context.Context) {
	var frame Frame
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		n, err := e.dev.ReadPacket(frame.Raw())
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
			}
			e.log.Warnw("tun read failed", "error", err)
			continue
		}
		pkt := stripHeader(e.dev, frame.Raw(), n)
		if len(pkt) < minIPv4HeaderLen {
			continue
		}

		dstIP, ok := ipcodec.DestinationIPv4(pkt)
		if !ok {
			continue
		}
		key, ok := peers.KeyFromIP(dstIP)
		if !ok {
			continue
		}
		peer, ok := e.table.Lookup(key)
		if !ok {
			continue
		}

		switch e.fw.Resolve(pkt, firewall.Out) {
		case firewall.Accept:
			e.recordAccept(metrics.DirectionOut)
			if _, err := e.forward.WriteToUDP(pkt, peer.ForwardSocketAddr()); err != nil {
				e.log.Warnw("forward send failed", "peer", dstIP, "error", err)
			}
		case firewall.Reject:
			e.recordReject(metrics.DirectionOut)
		case firewall.Deny:
			e.recordDeny(metrics.DirectionOut)
			// outbound traffic is silently dropped either way.
		}
	}
}

// ingressPump receives raw IP packets on the forward socket and writes
// accepted ones to TUN, per spec §4.1:
//
//	recv_from on the forward socket, capturing the remote socket.
//	Invoke the firewall with direction IN. On ACCEPT, write to TUN.
//	On DENY, drop. On REJECT, craft a termination packet and send it
//	back on the forward socket to the observed remote_socket.
func (e *Engine) ingressPump(ctx context.Context) {
	buf := make([]byte, maxFrame)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		n, remote, err := e.forward.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
			}
			e.log.Warnw("forward socket read failed", "error", err)
			continue
		}
		pkt := append([]byte(nil), buf[:n]...)
		if len(pkt) < minIPv4HeaderLen {
			continue
		}

		switch e.fw.Resolve(pkt, firewall.In) {
		case firewall.Accept:
			e.recordAccept(metrics.DirectionIn)
			if err := e.dev.WritePacket(withHeader(e.dev, pkt)); err != nil {
				e.log.Warnw("tun write failed", "error", err)
			}
		case firewall.Deny:
			e.recordDeny(metrics.DirectionIn)
			// silent drop.
		case firewall.Reject:
			e.recordReject(metrics.DirectionIn)
			e.sendReject(pkt, remote)
		}
	}
}

// sendReject crafts a termination packet for pkt and sends it back to
// remote on the forward socket. TCP gets a RST|ACK; anything
// else gets an ICMP destination-unreachable (spec §4.1, §6).
func (e *Engine) sendReject(pkt []byte, remote *net.UDPAddr) {
	// correlationID ties this verdict's log line to the packet that
	// triggered it, since the reply itself carries no identifying data
	// a later log line could join back against.
	correlationID := uuid.NewString()

	proto, ok := ipcodec.IPv4Protocol(pkt)
	if !ok {
		e.log.Debugw("reject: unparseable protocol", "correlation_id", correlationID, "remote", remote)
		return
	}

	var reply []byte
	switch proto {
	case ipcodec.ProtoTCP:
		reply = ipcodec.CraftTCPReset(pkt, e.tunIP)
	case ipcodec.ProtoUDP:
		reply = ipcodec.CraftICMPUnreachable(pkt, e.tunIP, ipcodec.ICMPCodePortUnreachable)
	default:
		reply = ipcodec.CraftICMPUnreachable(pkt, e.tunIP, ipcodec.ICMPCodeHostUnreachable)
	}
	if reply == nil {
		e.log.Infow("reject: packet too short to craft a termination reply, dropping", "correlation_id", correlationID, "remote", remote, "proto", proto, "len", len(pkt))
		return
	}
	if _, err := e.forward.WriteToUDP(reply, remote); err != nil {
		e.log.Warnw("reject send failed", "correlation_id", correlationID, "remote", remote, "error", err)
		return
	}
	e.log.Debugw("reject sent", "correlation_id", correlationID, "remote", remote, "proto", proto)
}
