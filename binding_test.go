package dhcpd

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mkHW(b byte) []byte {
	return []byte{0xAA, 0xAA, 0xAA, 0xAA, 0xAA, b}
}

func TestBinding_Expired_NotCached(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	b := &Binding{
		Status:      StatusAssociated,
		BindingTime: base,
		LeaseTime:   time.Minute,
	}

	assert.False(t, b.Expired(base))
	assert.False(t, b.Expired(base.Add(30*time.Second)))
	assert.True(t, b.Expired(base.Add(time.Minute)))
	assert.True(t, b.Expired(base.Add(time.Hour)))

	// Status unchanged: Expired is a pure function of the clock, not a
	// cached flag maintained by a prior call.
	assert.Equal(t, StatusAssociated, b.Status)
}

func TestSearch_StatusIsLiteralMatch(t *testing.T) {
	hw := mkHW(1)
	bindings := []*Binding{
		{Address: 10, HW: hw, Kind: Dynamic, Status: StatusPending},
	}

	assert.Nil(t, Search(bindings, hw, FilterDynamic, StatusEmpty))
	found := Search(bindings, hw, FilterDynamic, StatusPending)
	require.NotNil(t, found)
	assert.Equal(t, uint32(10), found.Address)
}

func TestSearch_KindFilter(t *testing.T) {
	hw := mkHW(2)
	bindings := []*Binding{
		{Address: 20, HW: hw, Kind: Static, Status: StatusEmpty},
	}

	assert.Nil(t, Search(bindings, hw, FilterDynamic, StatusEmpty))
	found := Search(bindings, hw, FilterStatic, StatusEmpty)
	require.NotNil(t, found)
	found2 := Search(bindings, hw, FilterStaticOrDynamic, StatusEmpty)
	require.NotNil(t, found2)
}

func TestNewDynamic_HonorsRequestedIP(t *testing.T) {
	now := time.Now()
	var bindings []*Binding
	rng := &Range{First: 100, Last: 103, Current: 100}

	b := NewDynamic(&bindings, rng, now, 102, mkHW(3))
	require.NotNil(t, b)
	assert.Equal(t, uint32(102), b.Address)
}

func TestNewDynamic_RequestedIPOutOfRangeFallsBackToCursor(t *testing.T) {
	now := time.Now()
	var bindings []*Binding
	rng := &Range{First: 100, Last: 103, Current: 100}

	b := NewDynamic(&bindings, rng, now, 9999, mkHW(4))
	require.NotNil(t, b)
	assert.Equal(t, uint32(100), b.Address)
}

func TestNewDynamic_WrapsAndSkipsActive(t *testing.T) {
	now := time.Now()
	var bindings []*Binding
	rng := &Range{First: 100, Last: 102, Current: 101}

	// .101 (the cursor) and .102 are already actively bound; the scan must
	// skip both and wrap past Last back to First to find the free .100.
	bindings = append(bindings,
		&Binding{Address: 101, Kind: Dynamic, Status: StatusAssociated, BindingTime: now, LeaseTime: time.Hour},
		&Binding{Address: 102, Kind: Dynamic, Status: StatusAssociated, BindingTime: now, LeaseTime: time.Hour},
	)

	b := NewDynamic(&bindings, rng, now, 0, mkHW(5))
	require.NotNil(t, b)
	assert.Equal(t, uint32(100), b.Address)
}

func TestNewDynamic_ExhaustedRangeReturnsNil(t *testing.T) {
	now := time.Now()
	var bindings []*Binding
	rng := &Range{First: 100, Last: 101, Current: 100}

	bindings = append(bindings,
		&Binding{Address: 100, Kind: Dynamic, Status: StatusAssociated, BindingTime: now, LeaseTime: time.Hour},
		&Binding{Address: 101, Kind: Dynamic, Status: StatusAssociated, BindingTime: now, LeaseTime: time.Hour},
	)

	b := NewDynamic(&bindings, rng, now, 0, mkHW(6))
	assert.Nil(t, b)
}

func TestNewDynamic_ReusesExpiredRecord(t *testing.T) {
	now := time.Now()
	var bindings []*Binding
	rng := &Range{First: 100, Last: 100, Current: 100}

	bindings = append(bindings, &Binding{
		Address:     100,
		HW:          mkHW(7),
		Kind:        Dynamic,
		Status:      StatusAssociated,
		BindingTime: now.Add(-2 * time.Hour),
		LeaseTime:   time.Hour,
	})

	b := NewDynamic(&bindings, rng, now, 0, mkHW(8))
	require.NotNil(t, b)
	assert.Equal(t, uint32(100), b.Address)
	assert.Equal(t, mkHW(8), b.HW)
	require.Len(t, bindings, 1)
}

func TestAddStatic_OverwritesExistingMAC(t *testing.T) {
	var bindings []*Binding
	hw := mkHW(9)

	AddStatic(&bindings, 1, hw)
	AddStatic(&bindings, 2, hw)

	require.Len(t, bindings, 1)
	assert.Equal(t, uint32(2), bindings[0].Address)
}
