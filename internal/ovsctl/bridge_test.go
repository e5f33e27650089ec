package ovsctl

import (
	"context"
	"net"
	"testing"

	"go.uber.org/zap"
)

func mustParseIP(t *testing.T, s string) net.IP {
	t.Helper()
	ip := net.ParseIP(s)
	if ip == nil {
		t.Fatalf("invalid test IP %q", s)
	}
	return ip
}

type recordedCall struct {
	program string
	args    []string
}

type fakeRunner struct {
	calls []recordedCall
	fail  map[string]bool
}

func (r *fakeRunner) Run(ctx context.Context, program string, args ...string) error {
	r.calls = append(r.calls, recordedCall{program: program, args: append([]string(nil), args...)})
	return nil
}

func TestSetupBridgeIssuesExpectedCommandSequence(t *testing.T) {
	run := &fakeRunner{}
	o := NewOrchestrator(run, "tap0", "", zap.NewNop().Sugar())

	o.SetupBridge(context.Background())

	want := []recordedCall{
		{program: "ovs-vsctl", args: []string{"del-br", bridgeName}},
		{program: "ovs-vsctl", args: []string{"add-br", bridgeName}},
		{program: "ovs-ofctl", args: []string{"del-flows", bridgeName}},
		{program: "ovs-ofctl", args: []string{"add-flow", bridgeName, "priority=0,actions=normal"}},
		{program: "ovs-vsctl", args: []string{"add-port", bridgeName, "tap0"}},
	}
	if len(run.calls) != len(want) {
		t.Fatalf("issued %d commands, want %d: %+v", len(run.calls), len(want), run.calls)
	}
	for i, w := range want {
		got := run.calls[i]
		if got.program != w.program {
			t.Errorf("call %d program = %q, want %q", i, got.program, w.program)
		}
		if len(got.args) != len(w.args) {
			t.Errorf("call %d args = %v, want %v", i, got.args, w.args)
			continue
		}
		for j := range w.args {
			if got.args[j] != w.args[j] {
				t.Errorf("call %d arg %d = %q, want %q", i, j, got.args[j], w.args[j])
			}
		}
	}
}

func TestU32OfIPMatchesBigEndianEncoding(t *testing.T) {
	ip := mustParseIP(t, "10.11.12.13")
	got := u32OfIP(ip)
	want := uint32(10)<<24 | uint32(11)<<16 | uint32(12)<<8 | uint32(13)
	if got != want {
		t.Fatalf("u32OfIP(%v) = %d, want %d", ip, got, want)
	}
}
