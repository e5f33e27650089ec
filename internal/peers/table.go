package peers

import (
	"net"
	"sync"
	"time"

	"vlanmesh/internal/wire"
)

// TTL is the time a peer is allowed to go unseen before it is expired.
// See spec §4.2.
const TTL = 60 * time.Second

// Key identifies a peer by its TUN IPv4 address.
type Key [4]byte

// KeyFromIP builds a Key from a net.IP, returning false if ip is not a
// valid IPv4 address.
func KeyFromIP(ip net.IP) (Key, bool) {
	v4 := ip.To4()
	if v4 == nil {
		return Key{}, false
	}
	return Key{v4[0], v4[1], v4[2], v4[3]}, true
}

// IP renders the key back into a net.IP.
func (k Key) IP() net.IP { return net.IPv4(k[0], k[1], k[2], k[3]) }

// Value is the per-peer state tracked by the table. See spec §3.
type Value struct {
	EthIP            net.IP
	AvgDelay         time.Duration
	NumSeenUnicast   uint64
	NumSeenBroadcast uint64
	LastSeen         time.Time
	Processes        wire.Processes
}

// ForwardSocketAddr is the address the forwarding engine sends raw IP
// packets to for this peer (spec §4.1: eth_ip:9999).
func (v Value) ForwardSocketAddr() *net.UDPAddr {
	return &net.UDPAddr{IP: v.EthIP, Port: ForwardPort}
}

// DiscoverySocketAddr is the address used to reach this peer's unicast
// discovery socket (eth_ip:9998).
func (v Value) DiscoverySocketAddr() *net.UDPAddr {
	return &net.UDPAddr{IP: v.EthIP, Port: DiscoveryPort}
}

// Event describes a peer-table mutation, used to drive metrics and
// logging without coupling the table to either (spec §9: "emits change
// events").
type Event struct {
	Key     Key
	Value   Value
	Removed bool
}

// Table is the in-memory peer table. All access is guarded by an
// RWMutex: readers (the hot forwarding path) take RLock and never hold
// it across I/O; writers (hello arrivals, expiry) take the exclusive
// Lock for the duration of a single upsert or sweep (spec §5).
type Table struct {
	mu     sync.RWMutex
	peers  map[Key]Value
	events chan Event
}

// NewTable constructs an empty peer table. events may be nil if the
// caller does not want change notifications.
func NewTable(events chan Event) *Table {
	return &Table{peers: make(map[Key]Value), events: events}
}

// Lookup returns the peer value for key, and whether it was found.
// Safe to call from the forwarding hot path.
func (t *Table) Lookup(key Key) (Value, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	v, ok := t.peers[key]
	return v, ok
}

// Len returns the current number of tracked peers.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.peers)
}

// Snapshot returns a copy of the full table, for diagnostics/tests.
func (t *Table) Snapshot() map[Key]Value {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[Key]Value, len(t.peers))
	for k, v := range t.peers {
		out[k] = v
	}
	return out
}

// UpsertFromHello atomically applies a validated hello message to the
// table: updating an existing entry's last-seen, running-mean delay
// and counters, or inserting a new one. It returns whether the sender
// is new (no prior entry) — the caller uses this, together with
// hello.IsSetup, to decide whether a unicast hello burst is owed back
// to the sender (spec §4.2: "should_respond_to").
func (t *Table) UpsertFromHello(key Key, h wire.Hello, delay time.Duration, now time.Time) (isNew bool) {
	if delay < 0 {
		delay = 0 // clock skew clamp, spec §4.2
	}

	t.mu.Lock()
	existing, ok := t.peers[key]
	var updated Value
	if ok {
		updated = existing
		total := existing.NumSeenUnicast + existing.NumSeenBroadcast
		// running mean: new_avg = old_avg + (delay - old_avg) / (n+1)
		updated.AvgDelay = existing.AvgDelay + (delay-existing.AvgDelay)/time.Duration(total+1)
	} else {
		updated = Value{AvgDelay: delay}
	}
	updated.EthIP = h.Ips.Eth
	updated.LastSeen = now
	updated.Processes = h.Processes
	if h.IsUnicast {
		updated.NumSeenUnicast++
	} else {
		updated.NumSeenBroadcast++
	}
	t.peers[key] = updated
	t.mu.Unlock()

	t.emit(Event{Key: key, Value: updated, Removed: false})
	return !ok
}

// OldestLastSeen returns the LastSeen time of the longest-idle peer, or
// the zero time and false if the table is empty. Used by the expiry loop
// to compute its next sleep duration (spec §4.2).
func (t *Table) OldestLastSeen() (time.Time, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var oldest time.Time
	found := false
	for _, v := range t.peers {
		if !found || v.LastSeen.Before(oldest) {
			oldest = v.LastSeen
			found = true
		}
	}
	return oldest, found
}

// RemoveExpired sweeps the table for entries whose LastSeen is older
// than TTL relative to now, removing them and emitting a removal event
// for each.
func (t *Table) RemoveExpired(now time.Time) []Key {
	t.mu.Lock()
	var removed []Key
	for k, v := range t.peers {
		if now.Sub(v.LastSeen) > TTL {
			removed = append(removed, k)
			delete(t.peers, k)
		}
	}
	t.mu.Unlock()

	for _, k := range removed {
		t.emit(Event{Key: k, Removed: true})
	}
	return removed
}

func (t *Table) emit(e Event) {
	if t.events == nil {
		return
	}
	select {
	case t.events <- e:
	default:
		// A slow/absent consumer must never stall the writer holding a
		// peer-table mutation; drop the event rather than block.
	}
}
