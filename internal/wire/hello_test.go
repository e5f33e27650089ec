package wire

import (
	"net"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func testTimestamp(t *testing.T) time.Time {
	t.Helper()
	ts, err := time.Parse(helloTimestampLayout, "2024-02-08 14:26:23.862231 UTC")
	if err != nil {
		t.Fatalf("parse fixture timestamp: %v", err)
	}
	return ts
}

func sampleHello(t *testing.T) Hello {
	t.Helper()
	return Hello{
		TunMAC: [6]byte{0, 0, 0, 0, 0, 0},
		Ips: LocalIps{
			Eth:       net.IPv4(8, 8, 8, 8),
			Tun:       net.IPv4(10, 11, 12, 134),
			Netmask:   net.IPv4(255, 255, 255, 0),
			Broadcast: net.IPv4(8, 8, 8, 255),
		},
		Timestamp: testTimestamp(t),
		IsSetup:   false,
		IsUnicast: true,
		Processes: Processes{
			{PID: 999, Name: "nullnetd", Port: 875},
			{PID: 1234, Name: "sshd", Port: 22},
		},
	}
}

func TestHelloRoundTrip(t *testing.T) {
	h := sampleHello(t)

	data, err := h.ToTOML()
	if err != nil {
		t.Fatalf("ToTOML: %v", err)
	}

	got, err := HelloFromTOML(data)
	if err != nil {
		t.Fatalf("HelloFromTOML: %v", err)
	}

	if !got.Ips.Eth.Equal(h.Ips.Eth) || !got.Ips.Tun.Equal(h.Ips.Tun) {
		t.Errorf("ips mismatch: got %+v, want %+v", got.Ips, h.Ips)
	}
	if !got.Timestamp.Equal(h.Timestamp) {
		t.Errorf("timestamp = %v, want %v", got.Timestamp, h.Timestamp)
	}
	if got.IsSetup != h.IsSetup || got.IsUnicast != h.IsUnicast {
		t.Errorf("flags mismatch: got setup=%v unicast=%v, want setup=%v unicast=%v",
			got.IsSetup, got.IsUnicast, h.IsSetup, h.IsUnicast)
	}
	if diff := cmp.Diff(h.Processes, got.Processes); diff != "" {
		t.Errorf("processes mismatch (-want +got):\n%s", diff)
	}
}

func TestHelloWireFormat(t *testing.T) {
	h := sampleHello(t)
	data, err := h.ToTOML()
	if err != nil {
		t.Fatalf("ToTOML: %v", err)
	}

	want := "tun_mac = [0, 0, 0, 0, 0, 0]\n" +
		"eth = \"8.8.8.8\"\n" +
		"tun = \"10.11.12.134\"\n" +
		"netmask = \"255.255.255.0\"\n" +
		"broadcast = \"8.8.8.255\"\n" +
		"timestamp = \"2024-02-08 14:26:23.862231 UTC\"\n" +
		"is_setup = false\n" +
		"is_unicast = true\n" +
		"processes = \"[999/nullnetd on 875, 1234/sshd on 22]\"\n"

	if string(data) != want {
		t.Errorf("ToTOML() =\n%s\nwant\n%s", data, want)
	}
}

func TestHelloRoundTripEmptyProcesses(t *testing.T) {
	h := sampleHello(t)
	h.Processes = nil

	data, err := h.ToTOML()
	if err != nil {
		t.Fatalf("ToTOML: %v", err)
	}
	got, err := HelloFromTOML(data)
	if err != nil {
		t.Fatalf("HelloFromTOML: %v", err)
	}
	if len(got.Processes) != 0 {
		t.Errorf("processes = %v, want empty", got.Processes)
	}
}

func TestHelloFromTOMLMalformedReturnsError(t *testing.T) {
	if _, err := HelloFromTOML([]byte("not valid toml {{{")); err == nil {
		t.Error("expected an error parsing malformed TOML")
	}
}
