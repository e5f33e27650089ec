package proxy

import (
	"fmt"
	"net"

	"vlanmesh/internal/wire"
)

// udpSenderPort is the proxy's own UDP source port for outbound VLAN
// setup requests (spec §6: "9997 | Proxy UDP source for VLAN setup |
// Outbound only").
const udpSenderPort = 9997

// UDPSender implements VlanRequestSender over a dedicated outbound UDP
// socket bound to udpSenderPort.
type UDPSender struct {
	conn *net.UDPConn
}

// NewUDPSender binds the proxy's outbound VLAN-setup socket.
func NewUDPSender() (*UDPSender, error) {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{Port: udpSenderPort})
	if err != nil {
		return nil, fmt.Errorf("proxy: bind vlan setup source port %d: %w", udpSenderPort, err)
	}
	return &UDPSender{conn: conn}, nil
}

func (s *UDPSender) SendVlanSetupRequest(dest *net.UDPAddr, req wire.VlanSetupRequest) error {
	data, err := req.ToTOML()
	if err != nil {
		return fmt.Errorf("proxy: encode vlan setup request: %w", err)
	}
	_, err = s.conn.WriteToUDP(data, dest)
	return err
}

// Close releases the underlying socket.
func (s *UDPSender) Close() error { return s.conn.Close() }
