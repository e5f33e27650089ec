// Package daemonconfig loads the tunnel daemon's YAML configuration.
package daemonconfig

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the tunnel daemon's process configuration.
type Config struct {
	Tun struct {
		Device string `yaml:"device"`
	} `yaml:"tun"`
	Firewall struct {
		DefaultVerdict string `yaml:"default_verdict"` // accept|reject|deny
	} `yaml:"firewall"`
	Metrics struct {
		Listen string `yaml:"listen"` // empty disables the metrics server
	} `yaml:"metrics"`
	HostsFile string `yaml:"hosts_file"` // see spec.md supplement: /etc/hosts mapping
}

// LoadConfig reads and parses path, filling in defaults for anything
// left unset.
func LoadConfig(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}
	if c.Tun.Device == "" {
		c.Tun.Device = "nullnet0"
	}
	if c.Firewall.DefaultVerdict == "" {
		c.Firewall.DefaultVerdict = "accept"
	}
	if c.HostsFile == "" {
		c.HostsFile = "/etc/hosts"
	}
	return &c, nil
}
