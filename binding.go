package dhcpd

import (
	"bytes"
	"encoding/binary"
	"time"
)

// BindingKind distinguishes administratively configured reservations from
// addresses handed out from the dynamic range.
type BindingKind int

const (
	Dynamic BindingKind = iota
	Static
)

// KindFilter selects which BindingKind(s) Search considers. It is a
// distinct type from BindingKind so a caller cannot accidentally pass a
// concrete kind where "either" was meant.
type KindFilter int

const (
	FilterStatic KindFilter = iota
	FilterDynamic
	FilterStaticOrDynamic
)

func (f KindFilter) matches(k BindingKind) bool {
	switch f {
	case FilterStatic:
		return k == Static
	case FilterDynamic:
		return k == Dynamic
	case FilterStaticOrDynamic:
		return true
	default:
		return false
	}
}

// Status is a binding's point in its lifecycle.
type Status int

const (
	StatusEmpty Status = iota
	StatusPending
	StatusAssociated
	StatusReleased
	StatusExpired
)

// Binding is one lease record. The pool exclusively owns the slice it lives
// in; Search returns a live pointer into that slice so the dispatcher can
// mutate the binding it found in place, the direct analogue of the source's
// intrusive-list aliasing.
type Binding struct {
	Address     uint32 // host order
	HW          []byte // 1-16 bytes
	Kind        BindingKind
	Status      Status
	BindingTime time.Time
	LeaseTime   time.Duration
}

// Expired reports whether the binding's current Status has outlived its
// LeaseTime as of now. This is always recomputed, never cached, so a binding
// can legally be StatusAssociated and Expired() simultaneously until the
// next DISCOVER touches it.
func (b *Binding) Expired(now time.Time) bool {
	return !now.Before(b.BindingTime.Add(b.LeaseTime))
}

// IP returns Address as four network-order bytes.
func (b *Binding) IP() [4]byte {
	var ip [4]byte
	binary.BigEndian.PutUint32(ip[:], b.Address)
	return ip
}

// Range is the inclusive dynamic allocation range and its rotating cursor,
// all in host order.
type Range struct {
	First   uint32
	Last    uint32
	Current uint32
}

// Search performs a linear scan returning the first binding whose Kind
// matches kindFilter and whose Status equals statusFilter, restricted to
// those with a matching hardware address. StatusEmpty is a literal status
// match here, not an "any status" wildcard: callers that want any binding
// regardless of status must scan for each status explicitly.
func Search(bindings []*Binding, hw []byte, kindFilter KindFilter, statusFilter Status) *Binding {
	for _, b := range bindings {
		if !kindFilter.matches(b.Kind) {
			continue
		}
		if b.Status != statusFilter {
			continue
		}
		if !bytes.Equal(b.HW, hw) {
			continue
		}
		return b
	}
	return nil
}

// isActive reports whether b currently holds its address against contention
// from new allocation — i.e. it is neither empty, released, nor expired.
func isActive(b *Binding, now time.Time) bool {
	if b.Status == StatusEmpty || b.Status == StatusReleased {
		return false
	}
	if b.Status == StatusExpired {
		return false
	}
	return !b.Expired(now)
}

// NewDynamic attempts to add a fresh DYNAMIC binding to bindings, returning
// the new binding or nil if the range is exhausted. requestedIP, if
// non-zero, is honored when it falls within range and is not held by an
// active binding. Otherwise the range's cursor advances (wrapping at
// Last+1 back to First) until an unused address is found or one full
// revolution completes. Addresses held by EXPIRED, RELEASED, or EMPTY
// bindings are eligible for reuse; the old binding record is overwritten.
func NewDynamic(bindings *[]*Binding, rng *Range, now time.Time, requestedIP uint32, hw []byte) *Binding {
	held := func(addr uint32) *Binding {
		for _, b := range *bindings {
			if b.Address == addr && isActive(b, now) {
				return b
			}
		}
		return nil
	}

	if requestedIP != 0 && requestedIP >= rng.First && requestedIP <= rng.Last {
		if held(requestedIP) == nil {
			return allocate(bindings, requestedIP, hw, now)
		}
	}

	span := rng.Last - rng.First + 1
	cur := rng.Current
	for i := uint32(0); i < span; i++ {
		if held(cur) == nil {
			rng.Current = cur + 1
			if rng.Current > rng.Last {
				rng.Current = rng.First
			}
			return allocate(bindings, cur, hw, now)
		}
		cur++
		if cur > rng.Last {
			cur = rng.First
		}
	}

	return nil
}

// allocate overwrites any existing (empty/released/expired) binding record
// for addr, or appends a new one, returning it.
func allocate(bindings *[]*Binding, addr uint32, hw []byte, now time.Time) *Binding {
	for _, b := range *bindings {
		if b.Address == addr {
			b.Kind = Dynamic
			b.Status = StatusEmpty
			b.HW = append([]byte(nil), hw...)
			b.BindingTime = now
			b.LeaseTime = 0
			return b
		}
	}
	nb := &Binding{
		Address: addr,
		HW:      append([]byte(nil), hw...),
		Kind:    Dynamic,
		Status:  StatusEmpty,
	}
	*bindings = append(*bindings, nb)
	return nb
}

// AddStatic inserts a STATIC binding, overwriting any existing record with
// the same hardware address.
func AddStatic(bindings *[]*Binding, addr uint32, hw []byte) {
	for _, b := range *bindings {
		if b.Kind == Static && bytes.Equal(b.HW, hw) {
			b.Address = addr
			return
		}
	}
	*bindings = append(*bindings, &Binding{
		Address: addr,
		HW:      append([]byte(nil), hw...),
		Kind:    Static,
		Status:  StatusEmpty,
	})
}
