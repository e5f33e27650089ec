package proxy

import (
	"net"
	"sync"
	"testing"

	"go.uber.org/zap"

	"vlanmesh/internal/wire"
)

type recordedRequest struct {
	dest *net.UDPAddr
	req  wire.VlanSetupRequest
}

type fakeSender struct {
	mu   sync.Mutex
	sent []recordedRequest
}

func (f *fakeSender) SendVlanSetupRequest(dest *net.UDPAddr, req wire.VlanSetupRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, recordedRequest{dest: dest, req: req})
	return nil
}

func newTestAllocator(catalog map[string]net.TCPAddr, sender VlanRequestSender) *Allocator {
	a := NewAllocator(catalog, net.IPv4(192, 168, 1, 130), sender, nil, zap.NewNop().Sugar())
	a.postSetupDelay = 0
	return a
}

func TestGetOrCreateAssignsFirstVlan101(t *testing.T) {
	catalog := map[string]net.TCPAddr{
		"color.com": {IP: net.IPv4(192, 168, 1, 104), Port: 3001},
	}
	sender := &fakeSender{}
	a := newTestAllocator(catalog, sender)

	upstream, err := a.GetOrCreate("192.168.1.55", "color.com")
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	want := net.TCPAddr{IP: net.IPv4(10, 0, 101, 1), Port: 3001}
	if upstream.String() != want.String() {
		t.Fatalf("upstream = %v, want %v", upstream, want)
	}
	if len(sender.sent) != 2 {
		t.Fatalf("sent %d vlan setup requests, want 2", len(sender.sent))
	}
	for _, rr := range sender.sent {
		if rr.req.VlanID != 101 {
			t.Errorf("vlan id = %d, want 101", rr.req.VlanID)
		}
		if rr.dest.Port != controlChannelPort {
			t.Errorf("dest port = %d, want %d", rr.dest.Port, controlChannelPort)
		}
	}
}

func TestGetOrCreateRepeatedLookupReturnsIdenticalUpstreamWithoutResend(t *testing.T) {
	catalog := map[string]net.TCPAddr{
		"color.com": {IP: net.IPv4(192, 168, 1, 104), Port: 3001},
	}
	sender := &fakeSender{}
	a := newTestAllocator(catalog, sender)

	first, err := a.GetOrCreate("192.168.1.55", "color.com")
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	sentAfterFirst := len(sender.sent)

	second, err := a.GetOrCreate("192.168.1.55", "color.com")
	if err != nil {
		t.Fatalf("GetOrCreate (repeat): %v", err)
	}
	if first.String() != second.String() {
		t.Fatalf("repeated lookup returned different upstream: %v vs %v", first, second)
	}
	if len(sender.sent) != sentAfterFirst {
		t.Fatalf("repeated lookup sent %d more requests, want 0", len(sender.sent)-sentAfterFirst)
	}
}

func TestGetOrCreateUnknownServiceFails(t *testing.T) {
	a := newTestAllocator(map[string]net.TCPAddr{}, &fakeSender{})
	if _, err := a.GetOrCreate("192.168.1.55", "nope.com"); err == nil {
		t.Fatalf("expected ErrUnknownService")
	}
}

func TestVlanIDsStrictlyMonotonicallyIncreasing(t *testing.T) {
	catalog := map[string]net.TCPAddr{
		"a.com": {IP: net.IPv4(10, 1, 1, 1), Port: 80},
		"b.com": {IP: net.IPv4(10, 1, 1, 2), Port: 80},
		"c.com": {IP: net.IPv4(10, 1, 1, 3), Port: 80},
	}
	a := newTestAllocator(catalog, &fakeSender{})

	var prev uint16
	for i, svc := range []string{"a.com", "b.com", "c.com"} {
		upstream, err := a.GetOrCreate("10.0.0.1", svc)
		if err != nil {
			t.Fatalf("GetOrCreate(%s): %v", svc, err)
		}
		vlanByte := upstream.IP.To4()[2]
		id := uint16(vlanByte) // hi byte is 0 for ids < 256
		if i > 0 && id <= prev {
			t.Fatalf("vlan id %d not strictly greater than previous %d", id, prev)
		}
		prev = id
	}
}

func TestVlanIDEncodingForLargeID(t *testing.T) {
	hi, lo := vlanIDBytes(0x0A0B)
	if hi != 10 || lo != 11 {
		t.Fatalf("vlanIDBytes(0x0A0B) = (%d,%d), want (10,11)", hi, lo)
	}
}

func TestVlanExhaustionReturnsError(t *testing.T) {
	a := newTestAllocator(map[string]net.TCPAddr{}, &fakeSender{})
	a.vlanID = maxVlanID

	if _, err := a.nextVlanID(); err != ErrVLANExhausted {
		t.Fatalf("nextVlanID at max = %v, want ErrVLANExhausted", err)
	}
}

func TestConcurrentGetOrCreateForDifferentServicesNeverCollideVlans(t *testing.T) {
	catalog := make(map[string]net.TCPAddr)
	services := []string{"s1.com", "s2.com", "s3.com", "s4.com"}
	for i, s := range services {
		catalog[s] = net.TCPAddr{IP: net.IPv4(10, 2, 0, byte(i+1)), Port: 80}
	}
	a := newTestAllocator(catalog, &fakeSender{})

	var wg sync.WaitGroup
	results := make([]net.TCPAddr, len(services))
	for i, s := range services {
		wg.Add(1)
		go func(i int, s string) {
			defer wg.Done()
			up, err := a.GetOrCreate("10.0.0.9", s)
			if err != nil {
				t.Errorf("GetOrCreate(%s): %v", s, err)
				return
			}
			results[i] = up
		}(i, s)
	}
	wg.Wait()

	seen := make(map[string]bool)
	for _, r := range results {
		key := r.String()
		if seen[key] {
			t.Fatalf("duplicate upstream assigned across concurrent flows: %s", key)
		}
		seen[key] = true
	}
}
