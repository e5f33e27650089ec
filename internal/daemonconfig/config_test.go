package daemonconfig

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTempConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

func TestLoadConfigFillsDefaults(t *testing.T) {
	path := writeTempConfig(t, "")
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Tun.Device != "nullnet0" {
		t.Errorf("Tun.Device = %q, want nullnet0", cfg.Tun.Device)
	}
	if cfg.Firewall.DefaultVerdict != "accept" {
		t.Errorf("Firewall.DefaultVerdict = %q, want accept", cfg.Firewall.DefaultVerdict)
	}
	if cfg.HostsFile != "/etc/hosts" {
		t.Errorf("HostsFile = %q, want /etc/hosts", cfg.HostsFile)
	}
}

func TestLoadConfigRespectsExplicitValues(t *testing.T) {
	path := writeTempConfig(t, "tun:\n  device: tap7\nfirewall:\n  default_verdict: reject\nmetrics:\n  listen: :9100\n")
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Tun.Device != "tap7" {
		t.Errorf("Tun.Device = %q, want tap7", cfg.Tun.Device)
	}
	if cfg.Firewall.DefaultVerdict != "reject" {
		t.Errorf("Firewall.DefaultVerdict = %q, want reject", cfg.Firewall.DefaultVerdict)
	}
	if cfg.Metrics.Listen != ":9100" {
		t.Errorf("Metrics.Listen = %q, want :9100", cfg.Metrics.Listen)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing config file")
	}
}
