package dhcpd

import (
	"fmt"
	"net"
	"time"

	"github.com/AdguardTeam/golibs/log"
	"github.com/go-ping/ping"
)

// Prober decides whether an address is safe to offer before the dispatcher
// hands it out. Detecting another DHCP server is done separately, by
// DetectOtherServer.
type Prober interface {
	// AddressInUse sends an ICMP echo to target and reports whether any
	// host answered within timeout.
	AddressInUse(target net.IP, timeout time.Duration) bool
}

// icmpProber is the production Prober, one ICMP echo per call.
type icmpProber struct{}

// NewICMPProber returns a Prober backed by real ICMP echo requests.
func NewICMPProber() Prober { return icmpProber{} }

func (icmpProber) AddressInUse(target net.IP, timeout time.Duration) bool {
	if timeout <= 0 {
		return false
	}

	pinger, err := ping.NewPinger(target.String())
	if err != nil {
		log.Error("dhcpd: ping.NewPinger(%v): %s", target, err)
		return false
	}

	pinger.SetPrivileged(true)
	pinger.Timeout = timeout
	pinger.Count = 1

	var replied bool
	pinger.OnRecv = func(*ping.Packet) { replied = true }

	log.Debug("dhcpd: sending ICMP echo to %v before offering it", target)
	if err = pinger.Run(); err != nil {
		log.Error("dhcpd: pinger.Run(%v): %s", target, err)
		return false
	}

	if replied {
		log.Info("dhcpd: address conflict: %v answered an ICMP echo, withholding it", target)
	}

	return replied
}

// DetectOtherServer broadcasts a DISCOVER carrying ifaceName's hardware
// address and reports whether any BOOTREPLY with a DHCP_MESSAGE_TYPE arrives
// within timeout, meaning another DHCP server is already active. The probe
// socket is not bound to ifaceName; the system routing picks the outgoing
// interface.
func DetectOtherServer(ifaceName string, timeout time.Duration) (bool, error) {
	iface, err := net.InterfaceByName(ifaceName)
	if err != nil {
		return false, fmt.Errorf("dhcpd: finding interface %s: %w", ifaceName, err)
	}

	conn, err := net.ListenPacket("udp4", ":68")
	if err != nil {
		return false, fmt.Errorf("dhcpd: listening on :68: %w", err)
	}
	defer conn.Close()

	dst, err := net.ResolveUDPAddr("udp4", "255.255.255.255:67")
	if err != nil {
		return false, fmt.Errorf("dhcpd: resolving broadcast address: %w", err)
	}

	xid := uint32(time.Now().UnixNano())
	req := buildDiscoverProbe(iface.HardwareAddr, xid)
	if _, err = conn.WriteTo(req, dst); err != nil {
		return false, fmt.Errorf("dhcpd: sending probe discover: %w", err)
	}

	buf := make([]byte, 1500)
	for {
		if err = conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
			return false, fmt.Errorf("dhcpd: setting read deadline: %w", err)
		}

		n, _, rerr := conn.ReadFrom(buf)
		if rerr != nil {
			if ne, ok := rerr.(net.Error); ok && ne.Timeout() {
				log.Debug("dhcpd: no other server answered on %s", ifaceName)
				return false, nil
			}
			return false, fmt.Errorf("dhcpd: receiving probe reply: %w", rerr)
		}

		hdr, herr := UnmarshalHeader(buf[:n])
		if herr != nil {
			continue
		}
		if hdr.Op != BootReply || hdr.XID != xid {
			continue
		}

		opts, operr := ParseWire(buf[HeaderSize:n])
		if operr != nil {
			continue
		}
		if opts.Search(OptDHCPMessageType) != nil {
			log.Info("dhcpd: another DHCP server is active on %s", ifaceName)
			return true, nil
		}
	}
}

func buildDiscoverProbe(hw net.HardwareAddr, xid uint32) []byte {
	var hdr Header
	hdr.Op = BootRequest
	hdr.HType = 1
	hdr.HLen = uint8(len(hw))
	hdr.XID = xid
	copy(hdr.CHAddr[:], hw)

	buf := make([]byte, HeaderSize+64)
	MarshalHeader(hdr, buf)

	var opts OptionList
	opts = opts.Append(Option{ID: OptDHCPMessageType, Data: []byte{MsgDiscover}})
	opts = opts.Append(Option{ID: OptClientIdentifier, Data: hw})
	n, _ := Serialize(opts, buf[HeaderSize:])
	return buf[:HeaderSize+n]
}
