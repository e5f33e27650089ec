package ovsctl

import (
	"context"
	"net"
	"strings"

	"github.com/vishvananda/netlink"
	"go.uber.org/zap"
)

const bridgeName = "br0"

// Orchestrator exposes the two idempotent intents of spec §4.3:
// SetupBridge and ConfigureAccessPort.
type Orchestrator struct {
	run       Runner
	tapName   string
	hostsFile string
	log       *zap.SugaredLogger
}

// NewOrchestrator builds an Orchestrator. tapName is the TUN/TAP
// interface added to the bridge as a trunk port (step 7 of
// SetupBridge) — the interface that carries inter-host traffic.
// hostsFile is the /etc/hosts-style file ConfigureAccessPort updates
// when asked to publish a hostname for a newly provisioned address;
// an empty hostsFile disables the mapping supplement entirely.
func NewOrchestrator(run Runner, tapName, hostsFile string, log *zap.SugaredLogger) *Orchestrator {
	return &Orchestrator{run: run, tapName: tapName, hostsFile: hostsFile, log: log}
}

// SetupBridge runs the seven-step idempotent bridge bring-up sequence
// of spec §4.3. Errors on individual steps are logged, not fatal,
// since a later step may still succeed (e.g. del-br failing because
// no bridge yet exists is expected on first boot).
func (o *Orchestrator) SetupBridge(ctx context.Context) {
	o.deleteAllVeths(ctx)

	o.logged(ctx, "ovs-vsctl", "del-br", bridgeName)
	o.logged(ctx, "ovs-vsctl", "add-br", bridgeName)

	for _, dev := range []string{bridgeName, "ovs-system"} {
		if err := bringUp(dev); err != nil {
			o.log.Warnw("bring up failed", "device", dev, "error", err)
		}
	}

	o.logged(ctx, "ovs-ofctl", "del-flows", bridgeName)
	o.logged(ctx, "ovs-ofctl", "add-flow", bridgeName, "priority=0,actions=normal")
	o.logged(ctx, "ovs-vsctl", "add-port", bridgeName, o.tapName)
}

// deleteAllVeths removes every interface whose name starts with
// "veth", so a re-run of SetupBridge starts from a clean slate
// (spec §4.3 step 1).
func (o *Orchestrator) deleteAllVeths(ctx context.Context) {
	links, err := netlink.LinkList()
	if err != nil {
		o.log.Warnw("list links failed", "error", err)
		return
	}
	for _, l := range links {
		name := l.Attrs().Name
		if !strings.HasPrefix(name, "veth") {
			continue
		}
		if err := netlink.LinkDel(l); err != nil {
			o.log.Warnw("delete veth failed", "name", name, "error", err)
		}
	}
}

func (o *Orchestrator) logged(ctx context.Context, program string, args ...string) {
	if err := o.run.Run(ctx, program, args...); err != nil {
		o.log.Warnw("ovsctl step failed", "error", err)
	}
}

func bringUp(name string) error {
	link, err := netlink.LinkByName(name)
	if err != nil {
		return err
	}
	return netlink.LinkSetUp(link)
}

// u32OfIP derives the u32 representation of an IPv4 address used to
// name veth interfaces ("veth<u32-of-ip>", spec §4.3).
func u32OfIP(ip net.IP) uint32 {
	v4 := ip.To4()
	return uint32(v4[0])<<24 | uint32(v4[1])<<16 | uint32(v4[2])<<8 | uint32(v4[3])
}
