package ovsctl

import (
	"context"

	"go.uber.org/zap"

	"vlanmesh/internal/wire"
)

// ControlChannel adapts incoming VlanSetupRequest documents (received
// on the discovery-unicast socket, per spec §4.3 — the control
// channel shares port 9998 with discovery) into ConfigureAccessPort
// calls, one per requested port.
type ControlChannel struct {
	orch *Orchestrator
	log  *zap.SugaredLogger
}

// NewControlChannel builds a ControlChannel bound to orch.
func NewControlChannel(orch *Orchestrator, log *zap.SugaredLogger) *ControlChannel {
	return &ControlChannel{orch: orch, log: log}
}

// Handle implements peers.VlanRequestHandler: for every port in req it
// provisions an access port on vlan req.VlanID.
func (c *ControlChannel) Handle(req wire.VlanSetupRequest) {
	for _, port := range req.Ports {
		if err := c.orch.ConfigureAccessPort(context.Background(), req.VlanID, port, ""); err != nil {
			c.log.Warnw("configure access port failed", "vlan_id", req.VlanID, "port", port, "error", err)
		}
	}
}
