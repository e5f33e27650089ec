package ovsctl

import (
	"fmt"
	"os"
	"strings"
)

// UpsertHostMapping adds or replaces a "<ip> <name>" line in the
// hosts file at path. If a line already mentions name, it is
// replaced in place; otherwise the mapping is appended. Mirrors the
// control channel's host-mapping behavior: a VLAN activation may ask
// this host to make a peer's VLAN address resolvable by name.
func UpsertHostMapping(path, name, ip string) error {
	entry := fmt.Sprintf("%s %s", ip, name)

	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("ovsctl: read hosts file %q: %w", path, err)
	}

	lines := strings.Split(string(content), "\n")
	for len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}

	found := false
	for i, line := range lines {
		if strings.Contains(line, name) {
			lines[i] = entry
			found = true
		}
	}
	if !found {
		lines = append(lines, entry)
	}

	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		return fmt.Errorf("ovsctl: write hosts file %q: %w", path, err)
	}
	return nil
}
