package wire

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml"
)

// IPv4Network is an IPv4 address paired with a CIDR prefix length,
// e.g. "10.10.10.1/24". See spec §3.
type IPv4Network struct {
	IP     net.IP
	Prefix int
}

// String renders the network in "ip/prefix" form.
func (n IPv4Network) String() string {
	return fmt.Sprintf("%s/%d", ip4String(n.IP), n.Prefix)
}

// ParseIPv4Network parses an "ip/prefix" string.
func ParseIPv4Network(s string) (IPv4Network, error) {
	parts := strings.SplitN(s, "/", 2)
	if len(parts) != 2 {
		return IPv4Network{}, fmt.Errorf("invalid IPv4 network %q: missing prefix", s)
	}
	ip, err := parseIPv4(parts[0])
	if err != nil {
		return IPv4Network{}, fmt.Errorf("invalid IPv4 network %q: %w", s, err)
	}
	prefix, err := strconv.Atoi(parts[1])
	if err != nil || prefix < 0 || prefix > 32 {
		return IPv4Network{}, fmt.Errorf("invalid IPv4 network %q: bad prefix", s)
	}
	return IPv4Network{IP: ip, Prefix: prefix}, nil
}

// IPNet returns the standard library representation of the network.
func (n IPv4Network) IPNet() *net.IPNet {
	return &net.IPNet{IP: n.IP, Mask: net.CIDRMask(n.Prefix, 32)}
}

// VlanSetupRequest asks the receiving orchestrator to provision a VLAN
// with the given id on the listed ports. See spec §3, §4.3.
type VlanSetupRequest struct {
	VlanID uint16
	Ports  []IPv4Network
}

type vlanSetupWire struct {
	Vlan struct {
		ID    uint16   `toml:"id"`
		Ports []string `toml:"ports"`
	} `toml:"vlan"`
}

// ToTOML serializes a VlanSetupRequest into its TOML wire form.
func (r VlanSetupRequest) ToTOML() ([]byte, error) {
	var w vlanSetupWire
	w.Vlan.ID = r.VlanID
	w.Vlan.Ports = make([]string, len(r.Ports))
	for i, p := range r.Ports {
		w.Vlan.Ports[i] = p.String()
	}
	return toml.Marshal(w)
}

// VlanSetupRequestFromTOML deserializes TOML bytes into a
// VlanSetupRequest.
func VlanSetupRequestFromTOML(data []byte) (VlanSetupRequest, error) {
	var w vlanSetupWire
	if err := toml.Unmarshal(data, &w); err != nil {
		return VlanSetupRequest{}, fmt.Errorf("parse vlan setup request toml: %w", err)
	}
	ports := make([]IPv4Network, 0, len(w.Vlan.Ports))
	for _, s := range w.Vlan.Ports {
		net, err := ParseIPv4Network(s)
		if err != nil {
			return VlanSetupRequest{}, fmt.Errorf("vlan setup request port: %w", err)
		}
		ports = append(ports, net)
	}
	return VlanSetupRequest{VlanID: w.Vlan.ID, Ports: ports}, nil
}
