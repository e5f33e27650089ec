//go:build linux

package forward

import (
	"fmt"
	"net"

	"github.com/songgao/water"
)

// waterDevice adapts a songgao/water TUN interface to the Device
// seam. Linux TUN reads/writes are bare IP packets, so no AF_INET
// header is ever prepended.
type waterDevice struct {
	ifce *water.Interface
}

// OpenTun attaches to the named TUN interface, which must already
// exist (an error is returned otherwise), and returns its MTU alongside
// the device.
func OpenTun(name string) (Device, int, error) {
	if name == "" {
		return nil, 0, fmt.Errorf("forward: tun device name is empty")
	}
	if _, err := net.InterfaceByName(name); err != nil {
		return nil, 0, fmt.Errorf("forward: tun interface %q not found: %w", name, err)
	}

	cfg := water.Config{DeviceType: water.TUN}
	cfg.Name = name
	ifce, err := water.New(cfg)
	if err != nil {
		return nil, 0, fmt.Errorf("forward: open tun %q: %w", name, err)
	}

	ifi, err := net.InterfaceByName(name)
	if err != nil {
		_ = ifce.Close()
		return nil, 0, fmt.Errorf("forward: interface lookup for %q: %w", name, err)
	}
	mtu := ifi.MTU
	if mtu <= 0 {
		mtu = 1500
	}
	return &waterDevice{ifce: ifce}, mtu, nil
}

func (d *waterDevice) ReadPacket(buf []byte) (int, error) { return d.ifce.Read(buf) }
func (d *waterDevice) WritePacket(pkt []byte) error        { _, err := d.ifce.Write(pkt); return err }
func (d *waterDevice) Close() error                        { return d.ifce.Close() }
func (d *waterDevice) PrependsHeader() bool                { return false }
