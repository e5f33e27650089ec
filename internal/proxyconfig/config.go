// Package proxyconfig loads the edge proxy's YAML configuration.
package proxyconfig

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the edge proxy's process configuration.
type Config struct {
	Listen struct {
		HTTP string `yaml:"http"` // e.g. ":7777"
	} `yaml:"listen"`
	CatalogPath string `yaml:"catalog_path"`
	Metrics     struct {
		Listen string `yaml:"listen"`
	} `yaml:"metrics"`
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
	if c.Listen.HTTP == "" {
		c.Listen.HTTP = ":7777"
	}
	if c.CatalogPath == "" {
		c.CatalogPath = "services.toml"
	}
	return &c, nil
}
