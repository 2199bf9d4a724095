package dhcpd

import (
	"encoding/binary"
	"net"
	"time"

	"github.com/AdguardTeam/golibs/log"
)

// Dispatch implements the per-message request/reply state machine: frame
// check, option parse, message-type extraction, reply initialization,
// per-type handling, reply fill, serialize. now is threaded explicitly so
// the binding engine's expiry logic is deterministic and unit-testable
// without mocking the clock.
//
// It returns the serialized reply bytes and true if a reply should be
// sent, or (nil, false) for every drop-silently and no-reply outcome —
// malformed frames, range exhaustion, DECLINE/RELEASE, and a cleared
// cross-server PENDING binding are none of them errors.
func Dispatch(pool *Pool, now time.Time, reqBytes []byte, clientAddr net.Addr) ([]byte, bool) {
	if len(reqBytes) < HeaderSize+5 {
		log.Debug("dhcpd: dropping short frame from %v (%d bytes)", clientAddr, len(reqBytes))
		return nil, false
	}

	reqHdr, err := UnmarshalHeader(reqBytes)
	if err != nil {
		log.Debug("dhcpd: dropping unparseable frame from %v: %s", clientAddr, err)
		return nil, false
	}
	if reqHdr.Op != BootRequest || reqHdr.HLen < 1 || reqHdr.HLen > 16 {
		log.Debug("dhcpd: dropping frame from %v: op=%d hlen=%d", clientAddr, reqHdr.Op, reqHdr.HLen)
		return nil, false
	}

	reqOpts, err := ParseWire(reqBytes[HeaderSize:])
	if err != nil {
		log.Debug("dhcpd: dropping frame from %v: option parse: %s", clientAddr, err)
		return nil, false
	}

	typeOpt := reqOpts.Search(OptDHCPMessageType)
	if typeOpt == nil || len(typeOpt.Data) != 1 {
		log.Debug("dhcpd: dropping frame from %v: no DHCP_MESSAGE_TYPE", clientAddr)
		return nil, false
	}
	msgType := typeOpt.Data[0]

	chaddr := reqHdr.CHAddr[:reqHdr.HLen]
	replyHdr := InitReply(reqHdr)

	var binding *Binding
	var replyType uint8

	switch msgType {
	case MsgDiscover:
		binding, replyType = serveDiscover(pool, now, chaddr, reqOpts)
	case MsgRequest:
		binding, replyType = serveRequest(pool, now, chaddr, reqOpts)
	case MsgDecline:
		serveDecline(pool, chaddr)
	case MsgRelease:
		serveRelease(pool, chaddr)
	case MsgInform:
		replyType = MsgAck
	default:
		log.Debug("dhcpd: dropping frame from %v: unsupported message type %d", clientAddr, msgType)
		return nil, false
	}

	if replyType == 0 {
		return nil, false
	}

	if binding != nil {
		ip := binding.IP()
		copy(replyHdr.YIAddr[:], ip[:])
	}

	var replyOpts OptionList
	replyOpts = replyOpts.Append(Option{ID: OptDHCPMessageType, Data: []byte{replyType}})
	serverIDBytes := make([]byte, 4)
	binary.BigEndian.PutUint32(serverIDBytes, pool.ServerID)
	replyOpts = replyOpts.Append(Option{ID: OptServerIdentifier, Data: serverIDBytes})

	if replyType != MsgNak {
		if reqList := reqOpts.Search(OptParameterRequestList); reqList != nil {
			for _, id := range reqList.Data {
				if id == OptPad {
					continue
				}
				if opt := pool.Options.Search(id); opt != nil {
					replyOpts = replyOpts.Append(*opt)
				}
			}
		}
	}

	buf := make([]byte, HeaderSize+MaxOptionsArea)
	MarshalHeader(replyHdr, buf)
	n, err := Serialize(replyOpts, buf[HeaderSize:])
	if err != nil {
		log.Error("dhcpd: serializing reply to %v: %s", clientAddr, err)
		return nil, false
	}

	return buf[:HeaderSize+n], true
}

// serveDiscover handles a DISCOVER: a matching STATIC binding is preferred
// over a DYNAMIC one, which is preferred over a fresh allocation. An EMPTY,
// RELEASED or expired binding is reset to PENDING; a still-valid PENDING or
// ASSOCIATED one is offered as-is.
func serveDiscover(pool *Pool, now time.Time, hw []byte, reqOpts OptionList) (*Binding, uint8) {
	b := Search(pool.Bindings, hw, FilterStatic, StatusEmpty)
	if b == nil {
		b = Search(pool.Bindings, hw, FilterStatic, StatusPending)
	}
	if b == nil {
		b = Search(pool.Bindings, hw, FilterStatic, StatusAssociated)
	}
	if b == nil {
		// A static reservation is never deleted, so a RELEASE must not
		// make it unreachable: it is still owed to this MAC.
		b = Search(pool.Bindings, hw, FilterStatic, StatusReleased)
	}

	if b == nil {
		b = Search(pool.Bindings, hw, FilterDynamic, StatusEmpty)
		if b == nil {
			b = Search(pool.Bindings, hw, FilterDynamic, StatusPending)
		}
		if b == nil {
			b = Search(pool.Bindings, hw, FilterDynamic, StatusAssociated)
		}
		if b == nil {
			b = Search(pool.Bindings, hw, FilterDynamic, StatusReleased)
		}
	}

	if b != nil {
		// An empty or released binding is available immediately, regardless
		// of how much of its last lease remains; only a still-held ASSOCIATED
		// or PENDING binding is offered unchanged while it has not expired.
		if b.Status == StatusEmpty || b.Status == StatusReleased || b.Expired(now) {
			b.Status = StatusPending
			b.BindingTime = now
			b.LeaseTime = pool.PendingTime
		}
		log.Debug("dhcpd: offering %v to %v (existing binding, status=%d)", b.IP(), net.HardwareAddr(hw), b.Status)
		return b, MsgOffer
	}

	var requestedIP uint32
	if opt := reqOpts.Search(OptRequestedIPAddress); opt != nil && len(opt.Data) == 4 {
		requestedIP = binary.BigEndian.Uint32(opt.Data)
	}

	span := pool.Range.Last - pool.Range.First + 1
	for attempt := uint32(0); attempt <= span; attempt++ {
		b = NewDynamic(&pool.Bindings, &pool.Range, now, requestedIP, hw)
		if b == nil {
			log.Info("dhcpd: no address available for %v, dropping DISCOVER", net.HardwareAddr(hw))
			return nil, 0
		}

		if pool.Prober == nil || !pool.Prober.AddressInUse(uint32ToIP(b.Address), pool.ProbeTimeout) {
			b.Status = StatusPending
			b.BindingTime = now
			b.LeaseTime = pool.PendingTime
			log.Debug("dhcpd: offering %v to %v (new binding)", b.IP(), net.HardwareAddr(hw))
			return b, MsgOffer
		}

		// Another host answered on this address: hold it away from
		// reallocation for one lease period and try the next one.
		b.Status = StatusAssociated
		b.BindingTime = now
		b.LeaseTime = pool.LeaseTime
		requestedIP = 0
	}

	log.Info("dhcpd: every candidate address for %v is in use, dropping DISCOVER", net.HardwareAddr(hw))
	return nil, 0
}

// serveRequest handles a REQUEST: when SERVER_IDENTIFIER names this server
// it acks a matching PENDING binding or naks; when it names another server
// it silently clears a matching PENDING binding; when it is absent nothing
// is changed and no reply is sent.
func serveRequest(pool *Pool, now time.Time, hw []byte, reqOpts OptionList) (*Binding, uint8) {
	var serverID uint32
	if opt := reqOpts.Search(OptServerIdentifier); opt != nil && len(opt.Data) == 4 {
		serverID = binary.BigEndian.Uint32(opt.Data)
	}

	b := Search(pool.Bindings, hw, FilterStaticOrDynamic, StatusPending)

	if serverID == pool.ServerID {
		if b == nil {
			log.Debug("dhcpd: nak to %v: no pending binding", net.HardwareAddr(hw))
			return nil, MsgNak
		}
		b.Status = StatusAssociated
		b.LeaseTime = pool.LeaseTime
		b.BindingTime = now
		log.Debug("dhcpd: ack %v to %v", b.IP(), net.HardwareAddr(hw))
		return b, MsgAck
	}

	if serverID != 0 {
		if b != nil {
			log.Debug("dhcpd: clearing %v of %v, accepted another server's offer", b.IP(), net.HardwareAddr(hw))
			b.Status = StatusEmpty
			b.LeaseTime = 0
		}
		return nil, 0
	}

	// Malformed request: no SERVER_IDENTIFIER at all.
	return nil, 0
}

// serveDecline implements the DECLINE row: a matching PENDING binding
// returns to EMPTY. No reply.
func serveDecline(pool *Pool, hw []byte) {
	b := Search(pool.Bindings, hw, FilterStaticOrDynamic, StatusPending)
	if b != nil {
		log.Debug("dhcpd: declined %v by %v", b.IP(), net.HardwareAddr(hw))
		b.Status = StatusEmpty
	}
}

// serveRelease implements the RELEASE row: a matching ASSOCIATED binding
// becomes RELEASED. No reply.
func serveRelease(pool *Pool, hw []byte) {
	b := Search(pool.Bindings, hw, FilterStaticOrDynamic, StatusAssociated)
	if b != nil {
		log.Debug("dhcpd: released %v by %v", b.IP(), net.HardwareAddr(hw))
		b.Status = StatusReleased
	}
}
