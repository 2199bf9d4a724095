package dhcpd

import (
	"encoding/binary"
	"fmt"
	"net"
	"time"

	"github.com/joomcode/errorx"
)

// wrapConfigErr decorates err with message for configuration-surface
// failures (malformed address, unknown option, bad MAC, missing server
// identifier), which are reported synchronously to the caller rather than
// logged and dropped.
func wrapConfigErr(err error, message string, args ...interface{}) error {
	return errorx.Decorate(err, message, args...)
}

// Pool is the process-wide configuration and mutable state: server
// identity, dynamic range, default lease/pending durations, the configured
// option set offered to clients, and the lease table. It is created empty,
// populated by configuration, then mutated only by the dispatcher's single
// worker goroutine.
type Pool struct {
	ServerID    uint32
	Range       Range
	LeaseTime   time.Duration
	PendingTime time.Duration
	DeviceIndex int
	Options     OptionList
	Bindings    []*Binding

	// Prober, when set, is consulted before a freshly allocated dynamic
	// address is offered. A nil Prober disables conflict detection.
	Prober       Prober
	ProbeTimeout time.Duration
}

// NewPool returns an empty Pool with no server id, range, or options set.
func NewPool() *Pool {
	return &Pool{}
}

func ip4ToUint32(ip net.IP) (uint32, error) {
	v4 := ip.To4()
	if v4 == nil {
		return 0, fmt.Errorf("%v is not an IPv4 address", ip)
	}
	return binary.BigEndian.Uint32(v4), nil
}

// SetServerID parses and sets the pool's server identity (IP address).
func (p *Pool) SetServerID(addr string) error {
	ip := net.ParseIP(addr)
	if ip == nil {
		return fmt.Errorf("%w: %q is not an IP address", ErrInvalidValue, addr)
	}
	v, err := ip4ToUint32(ip)
	if err != nil {
		return wrapConfigErr(err, "invalid server address %q", addr)
	}
	p.ServerID = v
	return nil
}

// SetRange sets the inclusive dynamic allocation range [first, last] and
// resets the allocation cursor to first.
func (p *Pool) SetRange(first, last string) error {
	fip := net.ParseIP(first)
	if fip == nil {
		return fmt.Errorf("%w: range start %q is not an IP address", ErrInvalidValue, first)
	}
	lip := net.ParseIP(last)
	if lip == nil {
		return fmt.Errorf("%w: range end %q is not an IP address", ErrInvalidValue, last)
	}
	fv, err := ip4ToUint32(fip)
	if err != nil {
		return wrapConfigErr(err, "invalid range start %q", first)
	}
	lv, err := ip4ToUint32(lip)
	if err != nil {
		return wrapConfigErr(err, "invalid range end %q", last)
	}
	if lv < fv {
		return fmt.Errorf("%w: range end %q precedes range start %q", ErrInvalidValue, last, first)
	}
	p.Range = Range{First: fv, Last: lv, Current: fv}
	return nil
}

// SetDeviceIndex sets the outbound interface identifier.
func (p *Pool) SetDeviceIndex(idx int) {
	p.DeviceIndex = idx
}

// SetPendingTime sets the duration a binding remains PENDING after OFFER.
func (p *Pool) SetPendingTime(d time.Duration) {
	p.PendingTime = d
}

// AddOption parses a named option's textual value and appends it to the
// pool's configured option set. Setting IP_ADDRESS_LEASE_TIME side-effects
// p.LeaseTime to the option's numeric value.
func (p *Pool) AddOption(name, value string) error {
	opt, err := ParseNamedOption(name, value)
	if err != nil {
		return wrapConfigErr(err, "invalid dhcp option %s=%s", name, value)
	}
	p.Options = p.Options.Append(opt)

	if opt.ID == OptIPAddressLeaseTime && len(opt.Data) == 4 {
		p.LeaseTime = time.Duration(binary.BigEndian.Uint32(opt.Data)) * time.Second
	}
	return nil
}

// AddStaticBinding adds a static (mac, ip) reservation.
func (p *Pool) AddStaticBinding(mac, ip string) error {
	hw, err := ParseValue(KindMAC, mac)
	if err != nil {
		return wrapConfigErr(err, "invalid static binding mac %s", mac)
	}
	addr, err := ParseValue(KindIP, ip)
	if err != nil {
		return wrapConfigErr(err, "invalid static binding ip %s", ip)
	}
	AddStatic(&p.Bindings, binary.BigEndian.Uint32(addr), hw)
	return nil
}

// ApplyDefaults fills in SUBNET_MASK, BROADCAST_ADDRESS and the dynamic
// range when configuration left them unset: SUBNET_MASK 255.255.255.0,
// BROADCAST_ADDRESS <range>.255, range .2-.254 within the server's subnet.
func (p *Pool) ApplyDefaults() error {
	if p.ServerID == 0 {
		return fmt.Errorf("%w: server id must be set before applying defaults", ErrMissingServerID)
	}

	base := p.ServerID & 0xFFFFFF00

	if p.Options.Search(OptSubnetMask) == nil {
		if err := p.AddOption("SUBNET_MASK", "255.255.255.0"); err != nil {
			return err
		}
	}
	if p.Options.Search(OptBroadcastAddress) == nil {
		bcast := base | 0xFF
		if err := p.AddOption("BROADCAST_ADDRESS", uint32ToIP(bcast).String()); err != nil {
			return err
		}
	}
	if p.Range.First == 0 && p.Range.Last == 0 {
		p.Range = Range{First: base | 2, Last: base | 254, Current: base | 2}
	}
	return nil
}

func uint32ToIP(v uint32) net.IP {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	return net.IP(b)
}
