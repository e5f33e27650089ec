package ipcodec

import (
	"encoding/binary"
	"net"
	"testing"
)

// buildTCPPacket constructs an IPv4+TCP packet (no options) of 40
// bytes plus payloadLen zero payload bytes, with the given flags and
// sequence number, for use as the "rejected" packet under test.
func buildTCPPacket(t *testing.T, src, dst net.IP, seq uint32, flags byte, payloadLen int) []byte {
	t.Helper()
	pkt := make([]byte, 40+payloadLen)
	pkt[0] = 0x45
	binary.BigEndian.PutUint16(pkt[2:4], uint16(len(pkt)))
	pkt[9] = ProtoTCP
	copy(pkt[12:16], src.To4())
	copy(pkt[16:20], dst.To4())
	binary.BigEndian.PutUint16(pkt[20:22], 54321) // src port
	binary.BigEndian.PutUint16(pkt[22:24], 443)   // dst port
	binary.BigEndian.PutUint32(pkt[24:28], seq)
	pkt[32] = 0x50 // data offset = 5 words, no options
	pkt[33] = flags
	return pkt
}

func TestCraftTCPResetWithSYNSetsAckToSeqPlusOne(t *testing.T) {
	src := net.IPv4(10, 0, 0, 5)
	dst := net.IPv4(10, 0, 0, 9)
	pkt := buildTCPPacket(t, src, dst, 1000, tcpFlagSYN, 0)

	resp := CraftTCPReset(pkt, dst)

	if len(resp) != 40 {
		t.Fatalf("response length = %d, want 40", len(resp))
	}
	ack := binary.BigEndian.Uint32(resp[28:32])
	if ack != 1001 {
		t.Errorf("ACK = %d, want 1001", ack)
	}
	if resp[33] != 0b00010100 {
		t.Errorf("flags = %#08b, want RST|ACK", resp[33])
	}
	if got := net.IP(resp[12:16]).String(); got != dst.String() {
		t.Errorf("source = %s, want %s", got, dst)
	}
	if got := net.IP(resp[16:20]).String(); got != src.String() {
		t.Errorf("destination = %s, want %s", got, src)
	}
}

func TestCraftTCPResetWithoutSYNAddsPayloadLen(t *testing.T) {
	src := net.IPv4(10, 0, 0, 5)
	dst := net.IPv4(10, 0, 0, 9)
	payload := 17
	pkt := buildTCPPacket(t, src, dst, 2000, 0x00, payload)

	resp := CraftTCPReset(pkt, dst)

	ack := binary.BigEndian.Uint32(resp[28:32])
	if want := uint32(2000 + payload); ack != want {
		t.Errorf("ACK = %d, want %d", ack, want)
	}
}

func TestCraftTCPResetChecksumsAreValid(t *testing.T) {
	src := net.IPv4(192, 168, 1, 2)
	dst := net.IPv4(10, 0, 0, 130)
	pkt := buildTCPPacket(t, src, dst, 42, tcpFlagSYN, 0)

	resp := CraftTCPReset(pkt, dst)

	// Re-sum with the embedded checksum fields included (IPv4Checksum and
	// TCPChecksum skip them); a correct embedded value folds to 0. The TCP
	// sum covers bytes [12:40] plus the same pseudo-header addend of 26.
	ipChecksum := checksum(resp[:20], -1, 0)
	if ipChecksum != 0 {
		t.Errorf("embedded IPv4 checksum does not self-validate: residual %#04x", ipChecksum)
	}
	tcpChecksum := checksum(resp[12:40], -1, 26)
	if tcpChecksum != 0 {
		t.Errorf("embedded TCP checksum does not self-validate: residual %#04x", tcpChecksum)
	}
}

func TestCraftTCPResetReturnsNilForShortPacket(t *testing.T) {
	dst := net.IPv4(10, 0, 0, 9)
	pkt := buildTCPPacket(t, net.IPv4(10, 0, 0, 5), dst, 1000, tcpFlagSYN, 0)[:39]

	if resp := CraftTCPReset(pkt, dst); resp != nil {
		t.Fatalf("CraftTCPReset(39-byte packet) = %v, want nil", resp)
	}
}

func TestCraftICMPUnreachablePortVsHost(t *testing.T) {
	src := net.IPv4(10, 0, 0, 5)
	dst := net.IPv4(10, 0, 0, 9)
	udpPkt := make([]byte, 28)
	udpPkt[0] = 0x45
	udpPkt[9] = ProtoUDP
	copy(udpPkt[12:16], src.To4())
	copy(udpPkt[16:20], dst.To4())

	resp := CraftICMPUnreachable(udpPkt, dst, ICMPCodePortUnreachable)
	if resp[9] != 1 {
		t.Fatalf("protocol field = %d, want 1 (ICMP)", resp[9])
	}
	if resp[21] != ICMPCodePortUnreachable {
		t.Errorf("ICMP code = %d, want %d", resp[21], ICMPCodePortUnreachable)
	}

	// Re-sum including the embedded checksum field (ICMPChecksum skips it).
	icmpChecksum := checksum(resp[20:], -1, 0)
	if icmpChecksum != 0 {
		t.Errorf("embedded ICMP checksum does not self-validate: residual %#04x", icmpChecksum)
	}

	hostResp := CraftICMPUnreachable(udpPkt, dst, ICMPCodeHostUnreachable)
	if hostResp[21] != ICMPCodeHostUnreachable {
		t.Errorf("ICMP code = %d, want %d", hostResp[21], ICMPCodeHostUnreachable)
	}
}
