package ipcodec

import (
	"encoding/binary"
	"net"
)

// Protocol numbers this package cares about.
const (
	ProtoTCP = 6
	ProtoUDP = 17

	icmpDestUnreachable = 3

	// ICMP codes for type 3 (destination unreachable).
	ICMPCodePortUnreachable = 3
	ICMPCodeHostUnreachable = 1
)

// flags bits in byte 33 of an IPv4+TCP packet (the TCP flags byte).
const (
	tcpFlagSYN = 0x02
)

// IPv4Protocol returns the protocol number at the fixed offset of an
// IPv4 header, or false if pkt is too short to contain one.
func IPv4Protocol(pkt []byte) (byte, bool) {
	if len(pkt) < 20 {
		return 0, false
	}
	return pkt[9], true
}

// DestinationIPv4 extracts the destination address from bytes [16:20]
// of an IPv4 packet.
func DestinationIPv4(pkt []byte) (net.IP, bool) {
	if len(pkt) < 20 {
		return nil, false
	}
	return net.IPv4(pkt[16], pkt[17], pkt[18], pkt[19]), true
}

// minTCPPacketLen is the shortest a well-formed IPv4+TCP packet can be
// (20-byte IPv4 header, no options, plus the 20-byte fixed TCP
// header): the minimum CraftTCPReset needs to read a source/dest
// port, sequence number, flags byte, and window size off pkt.
const minTCPPacketLen = 40

// CraftTCPReset builds a 40-byte IPv4+TCP RST|ACK packet that
// terminates the TCP conversation described by the rejected packet
// pkt, as observed from tunIP's point of view. See spec §4.1.
//
// pkt must be at least minTCPPacketLen bytes; shorter input (a
// truncated or malformed TCP datagram) cannot be parsed and returns
// nil rather than panicking, per spec §7's "parse failures on
// incoming datagrams: logged ... dropped."
func CraftTCPReset(pkt []byte, tunIP net.IP) []byte {
	if len(pkt) < minTCPPacketLen {
		return nil
	}
	resp := []byte{
		// IPv4 header
		0x45, 0x00, // version/IHL, DSCP/ECN
		0x00, 0x28, // total length: 40 bytes
		0x00, 0x00, 0x00, 0x00, // identification, flags/fragment offset
		0x40, ProtoTCP, // TTL, protocol
		0x00, 0x00, // header checksum (filled below)
		0x00, 0x00, 0x00, 0x00, // source (filled below)
		0x00, 0x00, 0x00, 0x00, // destination (filled below)
		// TCP header
		0x00, 0x00, // src port (filled below)
		0x00, 0x00, // dst port (filled below)
		0x00, 0x00, 0x00, 0x00, // sequence number (filled below)
		0x00, 0x00, 0x00, 0x00, // ACK number (filled below)
		0x50,       // data offset (5 words) / reserved
		0b00010100, // flags: RST | ACK
		0x00, 0x00, // window size (filled below)
		0x00, 0x00, // checksum (filled below)
		0x00, 0x00, // urgent pointer
	}

	tun4 := tunIP.To4()
	copy(resp[12:16], tun4)
	copy(resp[16:20], pkt[12:16]) // the rejected packet's source

	copy(resp[20:22], pkt[22:24]) // dst port of rejected packet -> our src port
	copy(resp[22:24], pkt[20:22]) // src port of rejected packet -> our dst port
	copy(resp[24:28], pkt[28:32]) // rejected packet's sequence number

	ack := binary.BigEndian.Uint32(pkt[24:28])
	if pkt[33]&tcpFlagSYN == tcpFlagSYN {
		ack++
	} else {
		dataOffsetWords := pkt[32] >> 4
		payloadLen := uint32(len(pkt)) - 20 - uint32(dataOffsetWords)*4
		ack += payloadLen
	}
	binary.BigEndian.PutUint32(resp[28:32], ack)

	copy(resp[34:36], pkt[34:36]) // mirror the rejected packet's window size

	ipChecksum := IPv4Checksum(resp[:20])
	PutChecksum(resp, 10, ipChecksum)

	tcpChecksum := TCPChecksum(resp[:40])
	PutChecksum(resp, 36, tcpChecksum)

	return resp
}

// CraftICMPUnreachable builds an IPv4+ICMPv4 "destination unreachable"
// packet in response to pkt, with ICMP code selecting port- vs.
// host-unreachable. See spec §4.1.
//
// Unlike the original implementation's send_destination_unreachable,
// this does not prepend an Ethernet header: every packet on this
// engine's two boundaries (the TUN device, which strips/adds only the
// platform AF_INET loopback header, and the UDP forward socket) is
// raw IP with no L2 framing, so there is no destination MAC to swap
// and no frame for an Ethernet header to wrap. See DESIGN.md's
// ipcodec grounding entry.
func CraftICMPUnreachable(pkt []byte, tunIP net.IP, code byte) []byte {
	origLen := len(pkt) - 20
	if origLen > 8 {
		origLen = 8 // only need up to 8 bytes of the original payload
	}

	// ICMP header + original IP header + an 8-byte slot holding up to 8
	// bytes of the original payload, zero-padded when the payload is shorter.
	icmpDataLen := 8 + 20 + 8
	ipTotalLen := 20 + icmpDataLen

	resp := make([]byte, 20+icmpDataLen)

	// IPv4 header
	resp[0] = 0x45
	resp[1] = 0x00
	binary.BigEndian.PutUint16(resp[2:4], uint16(ipTotalLen))
	resp[8] = 0x40
	resp[9] = 1 // ICMP
	copy(resp[12:16], tunIP.To4())
	copy(resp[16:20], pkt[12:16])
	checksumVal := IPv4Checksum(resp[:20])
	PutChecksum(resp, 10, checksumVal)

	// ICMP header: type 3 (destination unreachable), given code
	icmp := resp[20:]
	icmp[0] = icmpDestUnreachable
	icmp[1] = code
	icmp[2] = 0x00
	icmp[3] = 0x00
	// bytes 4-7 are unused (rest of header) for this ICMP type
	copy(icmp[8:8+20], pkt[:20])
	if origLen > 0 {
		copy(icmp[8+20:8+20+origLen], pkt[20:20+origLen])
	}
	icmpChecksum := ICMPChecksum(icmp)
	PutChecksum(icmp, 2, icmpChecksum)

	return resp
}
