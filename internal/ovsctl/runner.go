// Package ovsctl drives the Open vSwitch bridge and veth provisioning
// described in spec §4.3: idempotent bridge setup, per-VLAN access
// port activation via veth pairs, and the UDP control channel that
// receives VlanSetupRequest documents from the edge proxy.
package ovsctl

import (
	"context"
	"fmt"
	"os/exec"

	"go.uber.org/zap"
)

// Runner executes the external ovs-vsctl/ovs-ofctl commands this
// package depends on (link work goes through netlink instead). It is an interface so tests can substitute a
// recording fake instead of shelling out.
type Runner interface {
	Run(ctx context.Context, program string, args ...string) error
}

// ExecRunner shells out via os/exec, logging each invocation and its
// outcome the way the teacher's CLI wrappers do.
type ExecRunner struct {
	Log *zap.SugaredLogger
}

func (r ExecRunner) Run(ctx context.Context, program string, args ...string) error {
	cmd := exec.CommandContext(ctx, program, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		r.Log.Warnw("command failed", "program", program, "args", args, "output", string(out), "error", err)
		return fmt.Errorf("ovsctl: %s %v: %w", program, args, err)
	}
	r.Log.Debugw("command ok", "program", program, "args", args)
	return nil
}
