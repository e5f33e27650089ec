// Package forward implements the TUN <-> UDP forwarding engine: the
// egress pump (TUN -> UDP) and ingress pump (UDP -> TUN), both gated
// by a firewall verdict, plus crafted reject-packet emission. See spec
// §4.1.
package forward

// maxFrame is large enough to hold any IPv4 packet (65535 bytes, the
// maximum IPv4 total length), per spec §3.
const maxFrame = 65535

// Frame is a fixed-capacity packet buffer with a length cursor; bytes
// [0:Len] hold the raw IP packet.
type Frame struct {
	buf [maxFrame]byte
	Len int
}

// Bytes returns the occupied window of the frame.
func (f *Frame) Bytes() []byte { return f.buf[:f.Len] }

// Raw returns the full backing array, for use as a read/write target.
func (f *Frame) Raw() []byte { return f.buf[:] }
