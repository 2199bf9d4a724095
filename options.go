package dhcpd

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
)

// Sentinel errors for the option codec. All are wrapped with context via
// fmt.Errorf("...: %w", ...) and are safe to compare with errors.Is.
var (
	ErrInvalidValue    = errors.New("dhcpd: invalid option value")
	ErrUnknownOption   = errors.New("dhcpd: unknown option name")
	ErrNoParser        = errors.New("dhcpd: option has no textual parser")
	ErrBadMagicCookie  = errors.New("dhcpd: missing or invalid magic cookie")
	ErrTruncatedOption = errors.New("dhcpd: option length overruns buffer")
	ErrMissingEnd      = errors.New("dhcpd: options area missing END")
	ErrBufferFull      = errors.New("dhcpd: serialized options exceed buffer capacity")
)

// OptionKind names a textual parser for an option's value, replacing the
// source's table of function pointers with an exhaustive switch.
type OptionKind int

const (
	KindByte OptionKind = iota
	KindByteList
	KindShort
	KindShortList
	KindLong
	KindString
	KindIP
	KindIPList
	KindMAC
)

// Well-known DHCP/BOOTP option ids, RFC 2132.
const (
	OptPad                   = 0
	OptSubnetMask            = 1
	OptTimeOffset            = 2
	OptRouter                = 3
	OptTimeServer            = 4
	OptNameServer            = 5
	OptDomainNameServer      = 6
	OptLogServer             = 7
	OptCookieServer          = 8
	OptLPRServer             = 9
	OptImpressServer         = 10
	OptResourceLocServer     = 11
	OptHostName              = 12
	OptBootFileSize          = 13
	OptMeritDumpFile         = 14
	OptDomainName            = 15
	OptSwapServer            = 16
	OptRootPath              = 17
	OptExtensionsPath        = 18
	OptIPForwarding          = 19
	OptNonLocalSourceRouting = 20
	OptPolicyFilter          = 21
	OptMaxDatagramReassembly = 22
	OptDefaultIPTTL          = 23
	OptPathMTUAgingTimeout   = 24
	OptPathMTUPlateauTable   = 25
	OptInterfaceMTU          = 26
	OptAllSubnetsAreLocal    = 27
	OptBroadcastAddress      = 28
	OptPerformMaskDiscovery  = 29
	OptMaskSupplier          = 30
	OptPerformRouterDiscover = 31
	OptRouterSolicitAddr     = 32
	OptStaticRoute           = 33
	OptTrailerEncapsulation  = 34
	OptARPCacheTimeout       = 35
	OptEthernetEncapsulation = 36
	OptTCPDefaultTTL         = 37
	OptTCPKeepaliveInterval  = 38
	OptTCPKeepaliveGarbage   = 39
	OptNISDomain             = 40
	OptNISServers            = 41
	OptNTPServers            = 42
	OptVendorSpecificInfo    = 43
	OptNetBIOSNameServer     = 44
	OptNetBIOSDgramServer    = 45
	OptNetBIOSNodeType       = 46
	OptNetBIOSScope          = 47
	OptXFontServer           = 48
	OptXDisplayManager       = 49
	OptRequestedIPAddress    = 50
	OptIPAddressLeaseTime    = 51
	OptOptionOverload        = 52
	OptDHCPMessageType       = 53
	OptServerIdentifier      = 54
	OptParameterRequestList  = 55
	OptMessage               = 56
	OptMaximumMessageSize    = 57
	OptRenewalT1Time         = 58
	OptRebindingT2Time       = 59
	OptVendorClassIdentifier = 60
	OptClientIdentifier      = 61
	OptTFTPServerName        = 66
	OptBootfileName          = 67
	OptNISPlusDomain         = 64
	OptNISPlusServers        = 65
	OptMobileIPHomeAgent     = 68
	OptSMTPServer            = 69
	OptPOP3Server            = 70
	OptNNTPServer            = 71
	OptDefaultWWWServer      = 72
	OptDefaultFingerServer   = 73
	OptDefaultIRCServer      = 74
	OptStreetTalkServer      = 75
	OptStreetTalkDAServer    = 76
	OptEnd                   = 255
)

// DHCP message types (DHCP_MESSAGE_TYPE option values).
const (
	MsgDiscover = 1
	MsgOffer    = 2
	MsgRequest  = 3
	MsgDecline  = 4
	MsgAck      = 5
	MsgNak      = 6
	MsgRelease  = 7
	MsgInform   = 8
)

// OptionSpec describes one entry of the option table: its configuration name
// and, for options that can be set from text, the kind of its value.
type OptionSpec struct {
	Name    string
	Kind    OptionKind
	HasKind bool
}

var optionMagic = [4]byte{0x63, 0x82, 0x53, 0x63}

// optionTable mirrors the source's dhcp_option_info[] array: every RFC 2132
// option's name, and the textual parser it supports (if any). Options with
// HasKind == false are still recognized on the wire (for Search/serialize)
// but cannot be configured from text: REQUESTED_IP_ADDRESS,
// DHCP_MESSAGE_TYPE, PARAMETER_REQUEST_LIST, MESSAGE,
// MAXIMUM_DHCP_MESSAGE_SIZE, VENDOR_CLASS_IDENTIFIER, CLIENT_IDENTIFIER,
// PAD, END are set internally by the codec and dispatcher instead.
var optionTable = map[uint8]OptionSpec{
	OptPad:                   {"PAD", 0, false},
	OptSubnetMask:            {"SUBNET_MASK", KindIP, true},
	OptTimeOffset:            {"TIME_OFFSET", KindLong, true},
	OptRouter:                {"ROUTER", KindIPList, true},
	OptTimeServer:            {"TIME_SERVER", KindIPList, true},
	OptNameServer:            {"NAME_SERVER", KindIPList, true},
	OptDomainNameServer:      {"DOMAIN_NAME_SERVER", KindIPList, true},
	OptLogServer:             {"LOG_SERVER", KindIPList, true},
	OptCookieServer:          {"COOKIE_SERVER", KindIPList, true},
	OptLPRServer:             {"LPR_SERVER", KindIPList, true},
	OptImpressServer:         {"IMPRESS_SERVER", KindIPList, true},
	OptResourceLocServer:     {"RESOURCE_LOCATION_SERVER", KindIPList, true},
	OptHostName:              {"HOST_NAME", KindString, true},
	OptBootFileSize:          {"BOOT_FILE_SIZE", KindShort, true},
	OptMeritDumpFile:         {"MERIT_DUMP_FILE", KindString, true},
	OptDomainName:            {"DOMAIN_NAME", KindString, true},
	OptSwapServer:            {"SWAP_SERVER", KindIP, true},
	OptRootPath:              {"ROOT_PATH", KindString, true},
	OptExtensionsPath:        {"EXTENSIONS_PATH", KindString, true},
	OptIPForwarding:          {"IP_FORWARDING", KindByte, true},
	OptNonLocalSourceRouting: {"NON_LOCAL_SOURCE_ROUTING", KindByte, true},
	OptPolicyFilter:          {"POLICY_FILTER", KindIPList, true},
	OptMaxDatagramReassembly: {"MAXIMUM_DATAGRAM_REASSEMBLY_SIZE", KindShort, true},
	OptDefaultIPTTL:          {"DEFAULT_IP_TIME_TO_LIVE", KindByte, true},
	OptPathMTUAgingTimeout:   {"PATH_MTU_AGING_TIMEOUT", KindLong, true},
	OptPathMTUPlateauTable:   {"PATH_MTU_PLATEAU_TABLE", KindShortList, true},
	OptInterfaceMTU:          {"INTERFACE_MTU", KindShort, true},
	OptAllSubnetsAreLocal:    {"ALL_SUBNETS_ARE_LOCAL", KindByte, true},
	OptBroadcastAddress:      {"BROADCAST_ADDRESS", KindIP, true},
	OptPerformMaskDiscovery:  {"PERFORM_MASK_DISCOVERY", KindByte, true},
	OptMaskSupplier:          {"MASK_SUPPLIER", KindByte, true},
	OptPerformRouterDiscover: {"PERFORM_ROUTER_DISCOVERY", KindByte, true},
	OptRouterSolicitAddr:     {"ROUTER_SOLICITATION_ADDRESS", KindIP, true},
	OptStaticRoute:           {"STATIC_ROUTE", KindIPList, true},
	OptTrailerEncapsulation:  {"TRAILER_ENCAPSULATION", KindByte, true},
	OptARPCacheTimeout:       {"ARP_CACHE_TIMEOUT", KindLong, true},
	OptEthernetEncapsulation: {"ETHERNET_ENCAPSULATION", KindByte, true},
	OptTCPDefaultTTL:         {"TCP_DEFAULT_TTL", KindByte, true},
	OptTCPKeepaliveInterval:  {"TCP_KEEPALIVE_INTERVAL", KindLong, true},
	OptTCPKeepaliveGarbage:   {"TCP_KEEPALIVE_GARBAGE", KindByte, true},
	OptNISDomain:             {"NETWORK_INFORMATION_SERVICE_DOMAIN", KindString, true},
	OptNISServers:            {"NETWORK_INFORMATION_SERVERS", KindIPList, true},
	OptNTPServers:            {"NETWORK_TIME_PROTOCOL_SERVERS", KindIPList, true},
	OptVendorSpecificInfo:    {"VENDOR_SPECIFIC_INFORMATION", KindByteList, true},
	OptNetBIOSNameServer:     {"NETBIOS_OVER_TCP_IP_NAME_SERVER", KindIPList, true},
	OptNetBIOSDgramServer:    {"NETBIOS_OVER_TCP_IP_DATAGRAM_DISTRIBUTION_SERVER", KindIPList, true},
	OptNetBIOSNodeType:       {"NETBIOS_OVER_TCP_IP_NODE_TYPE", KindByte, true},
	OptNetBIOSScope:          {"NETBIOS_OVER_TCP_IP_SCOPE", KindString, true},
	OptXFontServer:           {"X_WINDOW_SYSTEM_FONT_SERVER", KindIPList, true},
	OptXDisplayManager:       {"X_WINDOW_SYSTEM_DISPLAY_MANAGER", KindIPList, true},
	OptNISPlusDomain:         {"NETWORK_INFORMATION_SERVICE_PLUS_DOMAIN", KindString, true},
	OptNISPlusServers:        {"NETWORK_INFORMATION_SERVICE_PLUS_SERVERS", KindIPList, true},
	OptMobileIPHomeAgent:     {"MOBILE_IP_HOME_AGENT", KindIPList, true},
	OptSMTPServer:            {"SMTP_SERVER", KindIPList, true},
	OptPOP3Server:            {"POP3_SERVER", KindIPList, true},
	OptNNTPServer:            {"NNTP_SERVER", KindIPList, true},
	OptDefaultWWWServer:      {"DEFAULT_WWW_SERVER", KindIPList, true},
	OptDefaultFingerServer:   {"DEFAULT_FINGER_SERVER", KindIPList, true},
	OptDefaultIRCServer:      {"DEFAULT_IRC_SERVER", KindIPList, true},
	OptStreetTalkServer:      {"STREETTALK_SERVER", KindIPList, true},
	OptStreetTalkDAServer:    {"STREETTALK_DIRECTORY_ASSISTANCE_SERVER", KindIPList, true},
	OptRequestedIPAddress:    {"REQUESTED_IP_ADDRESS", 0, false},
	OptIPAddressLeaseTime:    {"IP_ADDRESS_LEASE_TIME", KindLong, true},
	OptOptionOverload:        {"OPTION_OVERLOAD", KindByte, true},
	OptTFTPServerName:        {"TFTP_SERVER_NAME", KindString, true},
	OptBootfileName:          {"BOOTFILE_NAME", KindString, true},
	OptDHCPMessageType:       {"DHCP_MESSAGE_TYPE", 0, false},
	OptServerIdentifier:      {"SERVER_IDENTIFIER", KindIP, true},
	OptParameterRequestList:  {"PARAMETER_REQUEST_LIST", 0, false},
	OptMessage:               {"MESSAGE", 0, false},
	OptMaximumMessageSize:    {"MAXIMUM_DHCP_MESSAGE_SIZE", 0, false},
	OptRenewalT1Time:         {"RENEWAL_T1_TIME_VALUE", KindLong, true},
	OptRebindingT2Time:       {"REBINDING_T2_TIME_VALUE", KindLong, true},
	OptVendorClassIdentifier: {"VENDOR_CLASS_IDENTIFIER", 0, false},
	OptClientIdentifier:      {"CLIENT_IDENTIFIER", 0, false},
	OptEnd:                   {"END", 0, false},
}

// Option is a single DHCP option, self-describing on the wire as
// id | len | data[len].
type Option struct {
	ID   uint8
	Data []byte
}

// Len returns the wire-encoded length of the option's payload.
func (o Option) Len() int { return len(o.Data) }

// OptionList is an ordered sequence of options. The zero value is an empty
// list, ready to use.
type OptionList []Option

// splitTokens splits a comma- or space-separated list of value tokens.
func splitTokens(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
	return fields
}

// ParseValue converts a textual value for an option of the given kind into
// its wire-payload bytes.
func ParseValue(kind OptionKind, text string) ([]byte, error) {
	switch kind {
	case KindByte:
		n, err := strconv.ParseUint(strings.TrimSpace(text), 0, 8)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a byte", ErrInvalidValue, text)
		}
		return []byte{byte(n)}, nil

	case KindByteList:
		toks := splitTokens(text)
		if len(toks) == 0 {
			return nil, fmt.Errorf("%w: empty byte list", ErrInvalidValue)
		}
		out := make([]byte, 0, len(toks))
		for _, t := range toks {
			n, err := strconv.ParseUint(t, 0, 8)
			if err != nil {
				return nil, fmt.Errorf("%w: %q is not a byte", ErrInvalidValue, t)
			}
			out = append(out, byte(n))
		}
		return out, nil

	case KindShort:
		n, err := strconv.ParseUint(strings.TrimSpace(text), 0, 16)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a short", ErrInvalidValue, text)
		}
		out := make([]byte, 2)
		binary.BigEndian.PutUint16(out, uint16(n))
		return out, nil

	case KindShortList:
		toks := splitTokens(text)
		if len(toks) == 0 {
			return nil, fmt.Errorf("%w: empty short list", ErrInvalidValue)
		}
		out := make([]byte, 0, 2*len(toks))
		for _, t := range toks {
			n, err := strconv.ParseUint(t, 0, 16)
			if err != nil {
				return nil, fmt.Errorf("%w: %q is not a short", ErrInvalidValue, t)
			}
			b := make([]byte, 2)
			binary.BigEndian.PutUint16(b, uint16(n))
			out = append(out, b...)
		}
		return out, nil

	case KindLong:
		n, err := strconv.ParseUint(strings.TrimSpace(text), 0, 32)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a long", ErrInvalidValue, text)
		}
		out := make([]byte, 4)
		binary.BigEndian.PutUint32(out, uint32(n))
		return out, nil

	case KindString:
		return []byte(text), nil

	case KindIP:
		ip := net.ParseIP(strings.TrimSpace(text)).To4()
		if ip == nil {
			return nil, fmt.Errorf("%w: %q is not an IPv4 address", ErrInvalidValue, text)
		}
		return []byte(ip), nil

	case KindIPList:
		toks := splitTokens(text)
		if len(toks) == 0 {
			return nil, fmt.Errorf("%w: empty IP list", ErrInvalidValue)
		}
		out := make([]byte, 0, 4*len(toks))
		for _, t := range toks {
			ip := net.ParseIP(t).To4()
			if ip == nil {
				return nil, fmt.Errorf("%w: %q is not an IPv4 address", ErrInvalidValue, t)
			}
			out = append(out, []byte(ip)...)
		}
		return out, nil

	case KindMAC:
		s := strings.TrimSpace(text)
		if len(s) != 17 || s[2] != ':' || s[5] != ':' || s[8] != ':' || s[11] != ':' || s[14] != ':' {
			return nil, fmt.Errorf("%w: %q is not a MAC address", ErrInvalidValue, text)
		}
		hw, err := net.ParseMAC(s)
		if err != nil || len(hw) != 6 {
			return nil, fmt.Errorf("%w: %q is not a MAC address", ErrInvalidValue, text)
		}
		return []byte(hw), nil

	default:
		return nil, fmt.Errorf("%w: unhandled option kind %d", ErrInvalidValue, kind)
	}
}

// ParseNamedOption looks up name in the option table and parses text
// according to its registered kind.
func ParseNamedOption(name, text string) (Option, error) {
	for id, spec := range optionTable {
		if spec.Name != name {
			continue
		}
		if !spec.HasKind {
			return Option{}, fmt.Errorf("%w: %q has no textual parser", ErrNoParser, name)
		}
		data, err := ParseValue(spec.Kind, text)
		if err != nil {
			return Option{}, err
		}
		return Option{ID: id, Data: data}, nil
	}
	return Option{}, fmt.Errorf("%w: %q", ErrUnknownOption, name)
}

// ParseWire consumes a DHCP options region: magic cookie, TLVs, END.
func ParseWire(buf []byte) (OptionList, error) {
	if len(buf) < 4 || [4]byte(buf[:4]) != optionMagic {
		return nil, ErrBadMagicCookie
	}
	buf = buf[4:]

	var list OptionList
	i := 0
	for i < len(buf) {
		id := buf[i]
		if id == OptEnd {
			return list, nil
		}
		if id == OptPad {
			i++
			continue
		}
		if i+2 > len(buf) {
			return nil, ErrTruncatedOption
		}
		l := int(buf[i+1])
		if i+2+l > len(buf) {
			return nil, ErrTruncatedOption
		}
		data := make([]byte, l)
		copy(data, buf[i+2:i+2+l])
		list = append(list, Option{ID: id, Data: data})
		i += 2 + l
	}
	return nil, ErrMissingEnd
}

// Serialize emits magic cookie, each option as id|len|data, then a single
// END byte, writing into buf. Returns the number of bytes written.
func Serialize(list OptionList, buf []byte) (int, error) {
	if len(buf) < 4 {
		return 0, ErrBufferFull
	}
	copy(buf, optionMagic[:])
	n := 4

	for _, opt := range list {
		need := 2 + len(opt.Data)
		if n+need+1 > len(buf) { // +1 reserves room for END
			return 0, ErrBufferFull
		}
		buf[n] = opt.ID
		buf[n+1] = byte(len(opt.Data))
		copy(buf[n+2:], opt.Data)
		n += need
	}

	if n+1 > len(buf) {
		return 0, ErrBufferFull
	}
	buf[n] = OptEnd
	n++

	return n, nil
}

// Search returns the first option matching id, or nil if none is found.
func (l OptionList) Search(id uint8) *Option {
	for i := range l {
		if l[i].ID == id {
			return &l[i]
		}
	}
	return nil
}

// Append appends a deep copy of opt to the list, returning the updated list.
func (l OptionList) Append(opt Option) OptionList {
	cp := Option{ID: opt.ID, Data: append([]byte(nil), opt.Data...)}
	return append(l, cp)
}

// Free drops all options, returning an empty list.
func Free(l OptionList) OptionList {
	return nil
}
