package forward

import "io"

// Device is the raw-IP TUN handle the forwarding engine pumps packets
// through. The concrete device driver is an external collaborator
// (spec §1); this interface is the seam the two pumps depend on, so
// they can be exercised in tests against an in-memory fake.
//
// On platforms whose link type prepends a 4-byte AF_INET header to
// each packet (the BSD/Darwin loopback convention), PrependsHeader
// reports true and the engine strips/adds that header at the OS
// boundary only (spec §3, §6) — it never appears on the wire between
// peers.
type Device interface {
	io.Closer
	ReadPacket(buf []byte) (int, error)
	WritePacket(pkt []byte) error
	PrependsHeader() bool
}

// afInetHeaderLen is the size of the loopback AF_INET header some
// platforms prepend to TUN reads/writes.
const afInetHeaderLen = 4

// stripHeader removes the platform AF_INET header from a just-read
// frame, if the device prepends one.
func stripHeader(dev Device, buf []byte, n int) []byte {
	if !dev.PrependsHeader() || n < afInetHeaderLen {
		return buf[:n]
	}
	return buf[afInetHeaderLen:n]
}

// withHeader prepends the platform AF_INET header to pkt before a
// write, if the device requires one. family is hardcoded to AF_INET
// (2) since this engine does not handle IPv6 (spec Non-goals).
func withHeader(dev Device, pkt []byte) []byte {
	if !dev.PrependsHeader() {
		return pkt
	}
	out := make([]byte, afInetHeaderLen+len(pkt))
	out[3] = 2 // AF_INET as a big-endian 32-bit value
	copy(out[afInetHeaderLen:], pkt)
	return out
}
