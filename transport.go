package dhcpd

import (
	"context"
	"fmt"
	"net"
	"syscall"

	"golang.org/x/sys/unix"
)

// Transport sends and receives raw BOOTP/DHCP frames. The dispatcher and
// the binding engine are transport-agnostic; Server drives whichever
// Transport it is given, which keeps the state machine testable with an
// in-memory fake.
type Transport interface {
	// ReadFrom blocks until a frame arrives or ctx is done.
	ReadFrom(ctx context.Context, buf []byte) (n int, addr net.Addr, err error)
	// WriteTo sends a reply, broadcasting it when addr is nil.
	WriteTo(buf []byte, addr net.Addr) error
	Close() error
}

// udpTransport is the production Transport: a UDP socket bound to port 67,
// pinned to one interface via SO_BINDTODEVICE so a multi-homed host only
// answers requests arriving on the configured link.
type udpTransport struct {
	conn *net.UDPConn
}

// NewUDPTransport opens a UDP socket on port 67, bound to ifaceName when
// non-empty.
func NewUDPTransport(ifaceName string) (Transport, error) {
	lc := net.ListenConfig{
		Control: func(network, address string, c syscall.RawConn) error {
			var ctrlErr error
			err := c.Control(func(fd uintptr) {
				ctrlErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
				if ctrlErr != nil {
					return
				}
				ctrlErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_BROADCAST, 1)
				if ctrlErr != nil {
					return
				}
				if ifaceName != "" {
					ctrlErr = unix.BindToDevice(int(fd), ifaceName)
				}
			})
			if err != nil {
				return err
			}
			return ctrlErr
		},
	}

	pc, err := lc.ListenPacket(context.Background(), "udp4", ":67")
	if err != nil {
		return nil, fmt.Errorf("dhcpd: listening on :67: %w", err)
	}

	return &udpTransport{conn: pc.(*net.UDPConn)}, nil
}

func (t *udpTransport) ReadFrom(ctx context.Context, buf []byte) (int, net.Addr, error) {
	if deadline, ok := ctx.Deadline(); ok {
		if err := t.conn.SetReadDeadline(deadline); err != nil {
			return 0, nil, err
		}
	}
	return t.conn.ReadFrom(buf)
}

func (t *udpTransport) WriteTo(buf []byte, addr net.Addr) error {
	if addr == nil {
		addr = &net.UDPAddr{IP: net.IPv4bcast, Port: 68}
	}
	_, err := t.conn.WriteTo(buf, addr)
	return err
}

func (t *udpTransport) Close() error {
	return t.conn.Close()
}
