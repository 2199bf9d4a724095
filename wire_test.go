package dhcpd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeaderRoundTrip(t *testing.T) {
	h := Header{
		Op:    BootRequest,
		HType: 1,
		HLen:  6,
		XID:   0xDEADBEEF,
		Flags: 0x8000,
	}
	copy(h.CHAddr[:], []byte{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF})

	buf := make([]byte, HeaderSize+5)
	MarshalHeader(h, buf)
	buf[HeaderSize] = optionMagic[0]
	buf[HeaderSize+1] = optionMagic[1]
	buf[HeaderSize+2] = optionMagic[2]
	buf[HeaderSize+3] = optionMagic[3]
	buf[HeaderSize+4] = OptEnd

	parsed, err := UnmarshalHeader(buf)
	require.NoError(t, err)
	assert.Equal(t, h.Op, parsed.Op)
	assert.Equal(t, h.HLen, parsed.HLen)
	assert.Equal(t, h.XID, parsed.XID)
	assert.Equal(t, h.Flags, parsed.Flags)
	assert.Equal(t, [16]byte{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF}, parsed.CHAddr)
}

func TestUnmarshalHeader_ShortFrame(t *testing.T) {
	_, err := UnmarshalHeader(make([]byte, HeaderSize))
	assert.ErrorIs(t, err, ErrShortFrame)
}

func TestInitReply(t *testing.T) {
	req := Header{
		Op:    BootRequest,
		HType: 1,
		HLen:  6,
		XID:   42,
		Flags: 0x8000,
	}
	copy(req.CHAddr[:], []byte{1, 2, 3, 4, 5, 6})
	copy(req.GIAddr[:], []byte{10, 0, 0, 1})

	reply := InitReply(req)
	assert.Equal(t, uint8(BootReply), reply.Op)
	assert.Equal(t, req.HType, reply.HType)
	assert.Equal(t, req.HLen, reply.HLen)
	assert.Equal(t, req.XID, reply.XID)
	assert.Equal(t, req.Flags, reply.Flags)
	assert.Equal(t, req.GIAddr, reply.GIAddr)
	assert.Equal(t, req.CHAddr, reply.CHAddr)
	assert.Equal(t, [4]byte{}, reply.YIAddr)
}
