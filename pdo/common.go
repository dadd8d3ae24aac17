// Package pdo implements the RPDO decode engine (C6) and TPDO
// encode/scheduling engine (C7): up to four channels each, each with up
// to eight byte-aligned mappings.
package pdo

import "canopenslave/od"

// MaxMappings is the number of mapping slots a single PDO channel holds.
const MaxMappings = 8

// MaxPayloadBits is the largest total mapped size a single CAN frame can
// carry (8 bytes).
const MaxPayloadBits = 64

// Mapping describes one OD object packed into a PDO payload. Mappings are
// byte-aligned only: BitLength must equal 8*sizeof(the referenced entry's
// DataType).
type Mapping struct {
	Address   od.Address
	BitLength uint8
}

// Encode packs m into the wire format exchanged through OD writes at
// 0x1600+n/0x1A00+n sub 1..8: (index<<16) | (subindex<<8) | bitLength.
func (m Mapping) Encode() uint32 {
	return uint32(m.Address.Index)<<16 | uint32(m.Address.Subindex)<<8 | uint32(m.BitLength)
}

// DecodeMapping unpacks the wire format produced by Mapping.Encode.
func DecodeMapping(v uint32) Mapping {
	return Mapping{
		Address: od.Address{
			Index:    uint16(v >> 16),
			Subindex: uint8(v >> 8),
		},
		BitLength: uint8(v),
	}
}

// channel holds the state and validation logic common to RPDO and TPDO
// channels. The original C++ implementation left receive_pdo and
// transmit_pdo as near-duplicate, independently hand-rolled classes with
// a "TODO: de-duplicate code" left in both receive_pdo.hpp and
// transmit_pdo.hpp; this type is that de-duplication, with only the
// mappability predicate (RPDO- vs TPDO-mappable) left to the embedding
// type.
type channel struct {
	dict         *od.Dictionary
	mappable     func(od.Entry) bool
	active       bool
	canID        uint32
	mappingCount int
	mappings     [MaxMappings]Mapping
	resolved     [MaxMappings]od.DataType
}

func newChannel(dict *od.Dictionary, mappable func(od.Entry) bool) channel {
	return channel{dict: dict, mappable: mappable}
}

// SetCanID reprograms the channel's CAN identifier.
func (c *channel) SetCanID(id uint32) { c.canID = id }

// CanID returns the channel's raw CAN identifier.
func (c *channel) CanID() uint32 { return c.canID }

// CobID returns the COB-ID as exposed through OD sub-index 1: the raw
// CAN ID, with bit 31 set when the channel is inactive.
func (c *channel) CobID() uint32 {
	if c.active {
		return c.canID
	}
	return c.canID | 0x8000_0000
}

// Active reports whether the channel currently participates in traffic.
func (c *channel) Active() bool { return c.active }

// SetInactive disables the channel unconditionally.
func (c *channel) SetInactive() { c.active = false }

// MappingCount returns the number of populated mapping slots.
func (c *channel) MappingCount() int { return c.mappingCount }

// Mapping returns the mapping stored at index i (0-based, < MaxMappings).
func (c *channel) Mapping(i int) Mapping { return c.mappings[i] }

func (c *channel) validateMapping(m Mapping) od.ErrorCode {
	entry, ok := c.dict.Lookup(m.Address)
	if !ok {
		return od.ObjectDoesNotExist
	}
	if !c.mappable(entry) {
		return od.PdoMappingError
	}
	if od.SizeOf(entry.DataType)*8 != int(m.BitLength) {
		return od.PdoMappingError
	}
	return od.NoError
}

// validateAll re-validates every populated mapping slot and refreshes the
// resolved DataType cache used by decode/encode, matching
// ReceivePdo::validateMappings / TransmitPdo::validateMappings.
func (c *channel) validateAll() od.ErrorCode {
	total := 0
	for i := 0; i < c.mappingCount; i++ {
		if code := c.validateMapping(c.mappings[i]); code != od.NoError {
			return code
		}
		entry, _ := c.dict.Lookup(c.mappings[i].Address)
		c.resolved[i] = entry.DataType
		total += int(c.mappings[i].BitLength)
	}
	if total > MaxPayloadBits {
		return od.MappingsExceedPdoLength
	}
	return od.NoError
}

// SetMappingCount changes how many of the populated mapping slots take
// part, rejecting the change while the channel is active and
// re-validating every slot up to count, matching
// ReceivePdo::setMappingCount / TransmitPdo::setMappingCount.
func (c *channel) SetMappingCount(count int) od.ErrorCode {
	if c.active || count > MaxMappings || count < 0 {
		return od.UnsupportedAccess
	}
	prev := c.mappingCount
	c.mappingCount = count
	if code := c.validateAll(); code != od.NoError {
		c.mappingCount = prev
		return code
	}
	return od.NoError
}

// SetMapping stores m at index i without touching the mapping count.
// Per spec.md §9's resolution of the "mutate mapping while active" open
// question, this is rejected outright while the channel is active rather
// than permitted to transiently violate the length invariant until the
// next SetActive.
func (c *channel) SetMapping(i int, m Mapping) od.ErrorCode {
	if c.active {
		return od.UnsupportedAccess
	}
	if code := c.validateMapping(m); code != od.NoError {
		return code
	}
	c.mappings[i] = m
	return od.NoError
}

// SetActive re-validates every populated mapping and, if they all still
// check out, marks the channel active.
func (c *channel) SetActive() od.ErrorCode {
	if code := c.validateAll(); code != od.NoError {
		return code
	}
	c.active = true
	return od.NoError
}
