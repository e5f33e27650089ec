package peers

import (
	"net"

	"vlanmesh/internal/wire"
)

// IsValidHello implements the hello validity predicate of spec §4.2:
// a received hello is valid iff
//  1. the claimed Ethernet address matches the address that actually
//     sent the datagram;
//  2. it was not sent by this machine (same Ethernet address);
//  3. its TUN address differs from ours;
//  4. it is on the same IPv4 Ethernet network as ours (same netmask,
//     same masked network portion).
func IsValidHello(h wire.Hello, from *net.UDPAddr, local wire.LocalIps) bool {
	remote := h.Ips
	if !remote.Eth.Equal(from.IP) {
		return false
	}
	if remote.Eth.Equal(local.Eth) {
		return false
	}
	if remote.Tun.Equal(local.Tun) {
		return false
	}
	return remote.SameIPv4Network(local)
}
