// Package peers implements peer discovery & liveness (spec §4.2): the
// LAN interface / socket bootstrap, the in-memory peer table, and the
// hello exchange.
package peers

import (
	"context"
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"vlanmesh/internal/wire"
)

const (
	// ForwardPort is the UDP port the forwarding engine binds on eth.
	ForwardPort = 9999
	// DiscoveryPort is the UDP port used for unicast hello exchange and
	// the VLAN control channel.
	DiscoveryPort = ForwardPort - 1
)

// Sockets bundles the three UDP sockets the daemon needs, per spec §6.
type Sockets struct {
	Forward            *net.UDPConn
	DiscoveryUnicast   *net.UDPConn
	DiscoveryBroadcast *net.UDPConn
}

// LocalEndpoints is the bootstrap result: the discovered local IPs and
// the bound sockets.
type LocalEndpoints struct {
	Ips     wire.LocalIps
	Sockets Sockets
}

// DeriveLocalIps picks the first network interface whose IPv4 address
// is RFC1918-private, whose netmask is non-zero, and whose name does
// not begin with "veth" (spec §3), then synthesizes the TUN address.
func DeriveLocalIps() (wire.LocalIps, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return wire.LocalIps{}, fmt.Errorf("list interfaces: %w", err)
	}
	for _, iface := range ifaces {
		if len(iface.Name) >= 4 && iface.Name[:4] == "veth" {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			ipnet, ok := addr.(*net.IPNet)
			if !ok {
				continue
			}
			ip4 := ipnet.IP.To4()
			if ip4 == nil {
				continue
			}
			if !isPrivateRFC1918(ip4) {
				continue
			}
			mask := net.IP(ipnet.Mask)
			if isZeroMask(mask) {
				continue
			}
			return buildLocalIps(ip4, mask), nil
		}
	}
	return wire.LocalIps{}, fmt.Errorf("no suitable LAN interface found")
}

func isPrivateRFC1918(ip net.IP) bool {
	_, block10, _ := net.ParseCIDR("10.0.0.0/8")
	_, block172, _ := net.ParseCIDR("172.16.0.0/12")
	_, block192, _ := net.ParseCIDR("192.168.0.0/16")
	return block10.Contains(ip) || block172.Contains(ip) || block192.Contains(ip)
}

func isZeroMask(mask net.IP) bool {
	for _, b := range mask {
		if b != 0 {
			return false
		}
	}
	return true
}

// buildLocalIps synthesizes the TUN address as
// (10.0.0.0 & ~netmask) | (eth & ~netmask), truncated into 10.0.0.0/8,
// and derives the broadcast address from eth/netmask. See spec §3, §8.
func buildLocalIps(eth, netmask net.IP) wire.LocalIps {
	tunBase := [4]byte{10, 0, 0, 0}
	var tun, broadcast [4]byte
	for i := 0; i < 4; i++ {
		tun[i] = tunBase[i] | (eth[i] &^ netmask[i])
		broadcast[i] = eth[i] | ^netmask[i]
	}
	return wire.LocalIps{
		Eth:       net.IPv4(eth[0], eth[1], eth[2], eth[3]),
		Tun:       net.IPv4(tun[0], tun[1], tun[2], tun[3]),
		Netmask:   net.IPv4(netmask[0], netmask[1], netmask[2], netmask[3]),
		Broadcast: net.IPv4(broadcast[0], broadcast[1], broadcast[2], broadcast[3]),
	}
}

// multicastDiscoveryIP is the all-nodes multicast address used for
// discovery broadcast on platforms that support it (spec §4.2).
var multicastDiscoveryIP = net.IPv4(224, 0, 0, 1)

// Bootstrap derives the local IPs and binds all three UDP sockets,
// retrying every 10 seconds on failure until ctx is cancelled (spec §7:
// "Startup configuration failure ... retry every 10 seconds
// indefinitely").
func Bootstrap(ctx context.Context, log *zap.SugaredLogger) (LocalEndpoints, error) {
	for {
		endpoints, err := tryBootstrap(log)
		if err == nil {
			return endpoints, nil
		}
		log.Warnw("bootstrap failed, retrying", "error", err)
		select {
		case <-ctx.Done():
			return LocalEndpoints{}, ctx.Err()
		case <-time.After(10 * time.Second):
		}
	}
}

func tryBootstrap(log *zap.SugaredLogger) (LocalEndpoints, error) {
	ips, err := DeriveLocalIps()
	if err != nil {
		return LocalEndpoints{}, err
	}
	log.Infow("local IP address found", "eth", ips.Eth, "tun", ips.Tun)

	forward, err := bindUDP(ips.Eth, ForwardPort)
	if err != nil {
		return LocalEndpoints{}, fmt.Errorf("bind forward socket: %w", err)
	}
	if err := setBroadcast(forward); err != nil {
		forward.Close()
		return LocalEndpoints{}, err
	}

	discovery, err := bindUDP(ips.Eth, DiscoveryPort)
	if err != nil {
		forward.Close()
		return LocalEndpoints{}, fmt.Errorf("bind discovery socket: %w", err)
	}
	if err := setBroadcast(discovery); err != nil {
		forward.Close()
		discovery.Close()
		return LocalEndpoints{}, err
	}

	broadcast, err := bindUDP(multicastDiscoveryIP, DiscoveryPort)
	if err != nil {
		// Falling back to the interface broadcast address keeps the
		// daemon usable on platforms where multicast bind fails.
		broadcast, err = bindUDP(ips.Broadcast, DiscoveryPort)
		if err != nil {
			forward.Close()
			discovery.Close()
			return LocalEndpoints{}, fmt.Errorf("bind discovery broadcast socket: %w", err)
		}
	}

	return LocalEndpoints{
		Ips: ips,
		Sockets: Sockets{
			Forward:            forward,
			DiscoveryUnicast:   discovery,
			DiscoveryBroadcast: broadcast,
		},
	}, nil
}

func bindUDP(ip net.IP, port int) (*net.UDPConn, error) {
	return net.ListenUDP("udp4", &net.UDPAddr{IP: ip, Port: port})
}

// setBroadcast enables SO_BROADCAST on conn's underlying file
// descriptor. net.UDPConn exposes no broadcast toggle directly, so the
// option is set through the raw syscall conn (spec §4.2: "Broadcast is
// enabled on the forward and discovery-unicast sockets").
func setBroadcast(conn *net.UDPConn) error {
	raw, err := conn.SyscallConn()
	if err != nil {
		return fmt.Errorf("syscall conn: %w", err)
	}
	var sockErr error
	err = raw.Control(func(fd uintptr) {
		sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_BROADCAST, 1)
	})
	if err != nil {
		return fmt.Errorf("control: %w", err)
	}
	if sockErr != nil {
		return fmt.Errorf("setsockopt SO_BROADCAST: %w", sockErr)
	}
	return nil
}
