package wire

import (
	"fmt"
	"time"

	"github.com/pelletier/go-toml"
)

// helloTimestampLayout matches the original implementation's
// human-readable UTC timestamp, e.g. "2024-02-08 14:26:23.862231 UTC".
const helloTimestampLayout = "2006-01-02 15:04:05.000000 UTC"

// Hello is a peer's periodic self-announcement. See spec §3, §6.
type Hello struct {
	TunMAC    [6]byte
	Ips       LocalIps
	Timestamp time.Time
	IsSetup   bool
	IsUnicast bool
	Processes Processes
}

// helloWire is the flat, TOML-friendly encoding of Hello: LocalIps is
// flattened into the top-level document and every field is encoded as
// a primitive TOML type, mirroring the serde(flatten) + string-encoded
// IPs the original Rust struct uses.
type helloWire struct {
	TunMAC    [6]int `toml:"tun_mac"`
	Eth       string `toml:"eth"`
	Tun       string `toml:"tun"`
	Netmask   string `toml:"netmask"`
	Broadcast string `toml:"broadcast"`
	Timestamp string `toml:"timestamp"`
	IsSetup   bool   `toml:"is_setup"`
	IsUnicast bool   `toml:"is_unicast"`
	Processes string `toml:"processes"`
}

// ToTOML serializes a Hello message into its TOML wire form.
func (h Hello) ToTOML() ([]byte, error) {
	w := helloWire{
		Eth:       ip4String(h.Ips.Eth),
		Tun:       ip4String(h.Ips.Tun),
		Netmask:   ip4String(h.Ips.Netmask),
		Broadcast: ip4String(h.Ips.Broadcast),
		Timestamp: h.Timestamp.UTC().Format(helloTimestampLayout),
		IsSetup:   h.IsSetup,
		IsUnicast: h.IsUnicast,
		Processes: h.Processes.String(),
	}
	for i, b := range h.TunMAC {
		w.TunMAC[i] = int(b)
	}
	return toml.Marshal(w)
}

// HelloFromTOML deserializes TOML bytes into a Hello message. Malformed
// documents return an error; callers (the discovery listener) must log
// and drop rather than propagate (spec §4.2).
func HelloFromTOML(data []byte) (Hello, error) {
	var w helloWire
	if err := toml.Unmarshal(data, &w); err != nil {
		return Hello{}, fmt.Errorf("parse hello toml: %w", err)
	}

	ips, err := localIpsWire{Eth: w.Eth, Tun: w.Tun, Netmask: w.Netmask, Broadcast: w.Broadcast}.toLocalIps()
	if err != nil {
		return Hello{}, fmt.Errorf("hello ips: %w", err)
	}

	ts, err := time.Parse(helloTimestampLayout, w.Timestamp)
	if err != nil {
		return Hello{}, fmt.Errorf("hello timestamp: %w", err)
	}

	var mac [6]byte
	for i, v := range w.TunMAC {
		mac[i] = byte(v)
	}

	return Hello{
		TunMAC:    mac,
		Ips:       ips,
		Timestamp: ts.UTC(),
		IsSetup:   w.IsSetup,
		IsUnicast: w.IsUnicast,
		Processes: ParseProcesses(w.Processes),
	}, nil
}
