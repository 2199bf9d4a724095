package dhcpd

import (
	"encoding/binary"
	"errors"
)

// BOOTP op codes.
const (
	BootRequest = 1
	BootReply   = 2
)

// HeaderSize is the fixed BOOTP header prefix length (RFC 2131 §2),
// excluding the options area.
const HeaderSize = 236

// MaxOptionsArea is the largest options area this module will ever build a
// reply into: a full 576-byte minimum-MTU DHCP datagram minus the header.
const MaxOptionsArea = 576 - HeaderSize

// ErrShortFrame is returned when a datagram is too small to hold a BOOTP
// header plus a minimal options area.
var ErrShortFrame = errors.New("dhcpd: frame too short for a BOOTP header")

// Header is the fixed 236-byte BOOTP header (RFC 2131 §2). Integer fields
// are host order once unmarshaled; IP and hardware-address fields are
// carried as raw network-order bytes throughout, since net.IP's 4-byte form
// is already byte-for-byte network order.
type Header struct {
	Op     uint8
	HType  uint8
	HLen   uint8
	Hops   uint8
	XID    uint32
	Secs   uint16
	Flags  uint16
	CIAddr [4]byte
	YIAddr [4]byte
	SIAddr [4]byte
	GIAddr [4]byte
	CHAddr [16]byte
	SName  [64]byte
	File   [128]byte
}

// UnmarshalHeader parses the fixed BOOTP prefix of buf. buf must be at
// least HeaderSize+5 bytes long: the header plus a minimal options area
// (a 4-byte magic cookie and a single END byte).
func UnmarshalHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderSize+5 {
		return Header{}, ErrShortFrame
	}
	var h Header
	h.Op = buf[0]
	h.HType = buf[1]
	h.HLen = buf[2]
	h.Hops = buf[3]
	h.XID = binary.BigEndian.Uint32(buf[4:8])
	h.Secs = binary.BigEndian.Uint16(buf[8:10])
	h.Flags = binary.BigEndian.Uint16(buf[10:12])
	copy(h.CIAddr[:], buf[12:16])
	copy(h.YIAddr[:], buf[16:20])
	copy(h.SIAddr[:], buf[20:24])
	copy(h.GIAddr[:], buf[24:28])
	copy(h.CHAddr[:], buf[28:44])
	copy(h.SName[:], buf[44:108])
	copy(h.File[:], buf[108:236])
	return h, nil
}

// MarshalHeader writes h's fixed BOOTP prefix into buf, which must be at
// least HeaderSize bytes.
func MarshalHeader(h Header, buf []byte) {
	buf[0] = h.Op
	buf[1] = h.HType
	buf[2] = h.HLen
	buf[3] = h.Hops
	binary.BigEndian.PutUint32(buf[4:8], h.XID)
	binary.BigEndian.PutUint16(buf[8:10], h.Secs)
	binary.BigEndian.PutUint16(buf[10:12], h.Flags)
	copy(buf[12:16], h.CIAddr[:])
	copy(buf[16:20], h.YIAddr[:])
	copy(buf[20:24], h.SIAddr[:])
	copy(buf[24:28], h.GIAddr[:])
	copy(buf[28:44], h.CHAddr[:])
	copy(buf[44:108], h.SName[:])
	copy(buf[108:236], h.File[:])
}

// InitReply builds a reply header from a request header: op=BOOTREPLY,
// htype/hlen/xid/flags/giaddr/chaddr copied, everything else zeroed.
func InitReply(req Header) Header {
	var reply Header
	reply.Op = BootReply
	reply.HType = req.HType
	reply.HLen = req.HLen
	reply.XID = req.XID
	reply.Flags = req.Flags
	reply.GIAddr = req.GIAddr
	copy(reply.CHAddr[:int(req.HLen)], req.CHAddr[:int(req.HLen)])
	return reply
}
