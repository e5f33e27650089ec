// Package ipcodec parses just enough of IPv4/TCP/ICMP to support the
// forwarding engine's firewall-reject crafting, and implements the
// one's-complement checksum routines those crafted packets depend on.
package ipcodec

// Checksum computes the big-endian, 16-bit one's-complement internet
// checksum over b (per RFC 1071), skipping the two bytes at
// skipFieldOffset (the checksum field itself, assumed zero during the
// computation). len(b) must be even.
//
// addend is added on top of the word sum before folding;
// pass 0 for IPv4/ICMP headers, and 26 (6 + 20: the TCP protocol number
// plus the fixed 20-byte TCP header length this engine always emits)
// when checksumming a crafted TCP segment.
func checksum(b []byte, skipFieldOffset int, addend uint32) uint16 {
	var sum uint32 = addend
	for i := 0; i+1 < len(b); i += 2 {
		if i == skipFieldOffset {
			continue
		}
		sum += uint32(b[i])<<8 | uint32(b[i+1])
		if sum > 0xffff {
			sum = (sum & 0xffff) + 1
		}
	}
	return ^uint16(sum)
}

// IPv4Checksum computes the IPv4 header checksum over a 20-byte header,
// treating bytes [10:12] (the checksum field) as zero.
func IPv4Checksum(header []byte) uint16 {
	return checksum(header, 10, 0)
}

// ICMPChecksum computes the ICMPv4 checksum over the full ICMP message,
// treating bytes [2:4] (the checksum field) as zero.
func ICMPChecksum(icmp []byte) uint16 {
	return checksum(icmp, 2, 0)
}

// TCPChecksum computes the TCP checksum over a concatenated IPv4+TCP
// header buffer (at least 20+20 bytes), treating bytes [36:38] (the TCP
// checksum field, at offset 16 within the 20-byte TCP header) as zero.
// The sum starts at byte offset 12 (the IPv4 source address) rather
// than byte 0, so the version/length/id/ttl/protocol/header-checksum
// fields are excluded and only source+destination address contribute
// from the IPv4 header — the same role a separate pseudo-header would
// play. The constant addend 26 stands in for the remaining
// pseudo-header fields: protocol number 6 plus the fixed 20-byte TCP
// header length this engine always emits.
func TCPChecksum(ipTCPHeaders []byte) uint16 {
	var sum uint32 = 26
	for i := 12; i+1 < len(ipTCPHeaders); i += 2 {
		if i == 36 {
			continue
		}
		sum += uint32(ipTCPHeaders[i])<<8 | uint32(ipTCPHeaders[i+1])
		if sum > 0xffff {
			sum = (sum & 0xffff) + 1
		}
	}
	return ^uint16(sum)
}

// PutChecksum writes a checksum value into b at offset in big-endian
// byte order, as required for the checksum field of a crafted packet.
func PutChecksum(b []byte, offset int, value uint16) {
	b[offset] = byte(value >> 8)
	b[offset+1] = byte(value)
}
