package wire

import (
	"fmt"
	"net"

	"github.com/pelletier/go-toml"
)

// ServiceEntry is one row of the edge proxy's service catalog. See
// spec §3, §6.
type ServiceEntry struct {
	Name string `toml:"name"`
	Host string `toml:"host"`
	Port uint16 `toml:"port"`
}

type serviceCatalogWire struct {
	Services []ServiceEntry `toml:"services"`
}

// ParseServiceCatalog parses the services.toml document into a name ->
// (host, port) mapping.
func ParseServiceCatalog(data []byte) (map[string]net.TCPAddr, error) {
	var w serviceCatalogWire
	if err := toml.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("parse service catalog: %w", err)
	}
	out := make(map[string]net.TCPAddr, len(w.Services))
	for _, s := range w.Services {
		ip := net.ParseIP(s.Host)
		if ip == nil {
			return nil, fmt.Errorf("service %q: invalid host %q", s.Name, s.Host)
		}
		out[s.Name] = net.TCPAddr{IP: ip, Port: int(s.Port)}
	}
	return out, nil
}
