package ovsctl

import (
	"context"
	"fmt"

	"github.com/vishvananda/netlink"

	"vlanmesh/internal/wire"
)

// ConfigureAccessPort implements the six-step sequence of spec §4.3:
// derive the veth pair name from the IP, delete any existing pair,
// create a fresh one via netlink, bring both ends up, assign the
// address to the host-side end, and bind the bridge-side end as an
// access port tagged with vlanID.
//
// hostName, if non-empty, is written into the orchestrator's hosts
// file as a mapping to ipnet's address (the additive /etc/hosts
// supplement); an empty hostName is a no-op.
func (o *Orchestrator) ConfigureAccessPort(ctx context.Context, vlanID uint16, ipnet wire.IPv4Network, hostName string) error {
	vethName := fmt.Sprintf("veth%d", u32OfIP(ipnet.IP))
	vethPeerName := vethName + "p"

	if existing, err := netlink.LinkByName(vethName); err == nil {
		if err := netlink.LinkDel(existing); err != nil {
			o.log.Warnw("delete existing veth failed", "name", vethName, "error", err)
		}
	}

	veth := &netlink.Veth{
		LinkAttrs: netlink.LinkAttrs{Name: vethName},
		PeerName:  vethPeerName,
	}
	if err := netlink.LinkAdd(veth); err != nil {
		return fmt.Errorf("ovsctl: create veth pair %s/%s: %w", vethName, vethPeerName, err)
	}

	for _, name := range []string{vethName, vethPeerName} {
		if err := bringUp(name); err != nil {
			o.log.Warnw("bring up veth failed", "name", name, "error", err)
		}
	}

	hostLink, err := netlink.LinkByName(vethName)
	if err != nil {
		return fmt.Errorf("ovsctl: lookup %s after create: %w", vethName, err)
	}
	addr := &netlink.Addr{IPNet: ipnet.IPNet()}
	if err := netlink.AddrAdd(hostLink, addr); err != nil {
		o.log.Warnw("assign address failed", "name", vethName, "addr", ipnet.String(), "error", err)
	}

	o.logged(ctx, "ovs-vsctl", "add-port", bridgeName, vethPeerName, fmt.Sprintf("tag=%d", vlanID))

	if hostName != "" && o.hostsFile != "" {
		if err := UpsertHostMapping(o.hostsFile, hostName, ipnet.IP.String()); err != nil {
			o.log.Warnw("host mapping failed", "name", hostName, "ip", ipnet.IP, "error", err)
		}
	}
	return nil
}
