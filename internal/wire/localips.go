package wire

import (
	"fmt"
	"net"
)

// LocalIps carries the relevant local IPv4 addresses of a peer: the
// Ethernet (LAN) address, the synthesized TUN address, the network
// netmask, and the broadcast address. See spec §3.
type LocalIps struct {
	Eth       net.IP `toml:"-"`
	Tun       net.IP `toml:"-"`
	Netmask   net.IP `toml:"-"`
	Broadcast net.IP `toml:"-"`
}

// localIpsWire is the flattened, string-encoded TOML representation of
// LocalIps, matching the teacher's serde flatten+string-encode pattern
// for IP fields seen throughout the original implementation.
type localIpsWire struct {
	Eth       string `toml:"eth"`
	Tun       string `toml:"tun"`
	Netmask   string `toml:"netmask"`
	Broadcast string `toml:"broadcast"`
}

func (l LocalIps) toWire() localIpsWire {
	return localIpsWire{
		Eth:       ip4String(l.Eth),
		Tun:       ip4String(l.Tun),
		Netmask:   ip4String(l.Netmask),
		Broadcast: ip4String(l.Broadcast),
	}
}

func (w localIpsWire) toLocalIps() (LocalIps, error) {
	eth, err := parseIPv4(w.Eth)
	if err != nil {
		return LocalIps{}, fmt.Errorf("eth: %w", err)
	}
	tun, err := parseIPv4(w.Tun)
	if err != nil {
		return LocalIps{}, fmt.Errorf("tun: %w", err)
	}
	netmask, err := parseIPv4(w.Netmask)
	if err != nil {
		return LocalIps{}, fmt.Errorf("netmask: %w", err)
	}
	broadcast, err := parseIPv4(w.Broadcast)
	if err != nil {
		return LocalIps{}, fmt.Errorf("broadcast: %w", err)
	}
	return LocalIps{Eth: eth, Tun: tun, Netmask: netmask, Broadcast: broadcast}, nil
}

func ip4String(ip net.IP) string {
	if ip == nil {
		return "0.0.0.0"
	}
	if v4 := ip.To4(); v4 != nil {
		return v4.String()
	}
	return ip.String()
}

func parseIPv4(s string) (net.IP, error) {
	ip := net.ParseIP(s)
	if ip == nil {
		return nil, fmt.Errorf("invalid IPv4 address %q", s)
	}
	v4 := ip.To4()
	if v4 == nil {
		return nil, fmt.Errorf("not an IPv4 address: %q", s)
	}
	return v4, nil
}

// SameIPv4Network reports whether self and other have the same
// netmask and their Eth addresses fall in the same masked network —
// the "same LAN segment" half of the hello validity predicate (spec
// §4.2, condition 4).
func (l LocalIps) SameIPv4Network(other LocalIps) bool {
	if !l.Netmask.Equal(other.Netmask) {
		return false
	}
	mask := net.IPMask(l.Netmask.To4())
	if mask == nil {
		return false
	}
	a := l.Eth.To4()
	b := other.Eth.To4()
	if a == nil || b == nil {
		return false
	}
	for i := 0; i < 4; i++ {
		if a[i]&mask[i] != b[i]&mask[i] {
			return false
		}
	}
	return true
}
