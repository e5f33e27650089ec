package proxy

import (
	"fmt"
	"net"

	"vlanmesh/internal/wire"
)

// nextVlanID increments and returns the process-lifetime VLAN
// counter, under its own small critical section (spec §5: "The VLAN
// counter is a separate small critical section so the slow twin-host
// RPC does not block other flows' lookups").
func (a *Allocator) nextVlanID() (uint16, error) {
	a.vlanMu.Lock()
	defer a.vlanMu.Unlock()

	if a.vlanID >= maxVlanID {
		a.log.Errorw("vlan id space exhausted", "max", maxVlanID)
		if a.metrics != nil {
			a.metrics.VlanExhausted.Inc()
		}
		return 0, ErrVLANExhausted
	}
	a.vlanID++
	if a.metrics != nil {
		a.metrics.VlanAllocated.Inc()
	}
	return a.vlanID, nil
}

// vlanIDBytes encodes a vlan id as its two big-endian bytes, per spec
// §4.4 step 3.
func vlanIDBytes(vlanID uint16) (hi, lo byte) {
	return byte(vlanID >> 8), byte(vlanID)
}

// dispatch sends a VlanSetupRequest for vlanID/port to dest:9998.
func (a *Allocator) dispatch(vlanID uint16, port wire.IPv4Network, destIP net.IP) error {
	req := wire.VlanSetupRequest{VlanID: vlanID, Ports: []wire.IPv4Network{port}}
	dest := &net.UDPAddr{IP: destIP, Port: controlChannelPort}
	if err := a.sender.SendVlanSetupRequest(dest, req); err != nil {
		return fmt.Errorf("proxy: vlan setup request to %s: %w", dest, err)
	}
	return nil
}

// controlChannelPort is the daemon's VLAN control channel / discovery
// unicast port (spec §6).
const controlChannelPort = 9998
