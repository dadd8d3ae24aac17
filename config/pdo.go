// Package config implements the PDO configuration shim (spec.md C8): it
// exposes each RPDO/TPDO channel's communication and mapping parameter
// records as ordinary OD objects at 0x1400-0x17FF (RPDO) and 0x1800-0x1BFF
// (TPDO), translating SDO reads/writes on those indices into pdo.RPDO /
// pdo.TPDO method calls instead of holding any state of its own.
package config

import (
	"canopenslave/handler"
	"canopenslave/od"
	"canopenslave/pdo"
)

const (
	rpdoCommBase = 0x1400
	rpdoMapBase  = 0x1600
	tpdoCommBase = 0x1800
	tpdoMapBase  = 0x1A00

	// MaxChannels is the number of RPDO/TPDO channels exposed through the
	// OD, matching the four channels device.Device allocates per direction.
	MaxChannels = 4

	cobIDInvalidBit = 0x8000_0000
)

// channel is the subset of pdo.RPDO's and pdo.TPDO's promoted channel
// methods the configurator needs for the parts of the comm/mapping
// records common to both directions (COB-ID and mapping records). Both
// concrete types satisfy it without this package depending on anything
// beyond what newChannel already exports.
type channel interface {
	CobID() uint32
	SetActive() od.ErrorCode
	SetInactive()
	MappingCount() int
	Mapping(i int) pdo.Mapping
	SetMappingCount(count int) od.ErrorCode
	SetMapping(i int, m pdo.Mapping) od.ErrorCode
}

// RPDOEntries returns the OD entries for RPDO channel n's (0-based)
// communication and mapping parameter records.
func RPDOEntries(n int) []od.Entry {
	return append(rpdoCommEntries(rpdoCommBase, n), mappingEntries(rpdoMapBase, n)...)
}

// TPDOEntries returns the OD entries for TPDO channel n's (0-based)
// communication and mapping parameter records.
func TPDOEntries(n int) []od.Entry {
	return append(tpdoCommEntries(tpdoCommBase, n), mappingEntries(tpdoMapBase, n)...)
}

// rpdoCommEntries describes an RPDO's communication parameter record:
// sub 0 (highest sub-index, fixed 2), sub 1 (COB-ID), sub 2 (transmission
// type, read-only fixed 0xFF). The RPDO decode engine has no
// deadline-monitoring or SYNC-gating behavior, so unlike the TPDO record
// there is no sub 3/sub 5.
func rpdoCommEntries(base uint16, n int) []od.Entry {
	idx := base + uint16(n)
	return []od.Entry{
		{Address: od.Address{Index: idx, Subindex: 0}, DataType: od.U8, AccessType: od.RO},
		{Address: od.Address{Index: idx, Subindex: 1}, DataType: od.U32, AccessType: od.RW},
		{Address: od.Address{Index: idx, Subindex: 2}, DataType: od.U8, AccessType: od.RO},
	}
}

// tpdoCommEntries describes a TPDO's communication parameter record: sub 0
// (highest sub-index, fixed 5), sub 1 (COB-ID), sub 2 (transmission type),
// sub 3 (inhibit time), sub 5 (event timer).
func tpdoCommEntries(base uint16, n int) []od.Entry {
	idx := base + uint16(n)
	return []od.Entry{
		{Address: od.Address{Index: idx, Subindex: 0}, DataType: od.U8, AccessType: od.RO},
		{Address: od.Address{Index: idx, Subindex: 1}, DataType: od.U32, AccessType: od.RW},
		{Address: od.Address{Index: idx, Subindex: 2}, DataType: od.U8, AccessType: od.RW},
		{Address: od.Address{Index: idx, Subindex: 3}, DataType: od.U16, AccessType: od.RW},
		{Address: od.Address{Index: idx, Subindex: 5}, DataType: od.U16, AccessType: od.RW},
	}
}

func mappingEntries(base uint16, n int) []od.Entry {
	idx := base + uint16(n)
	entries := make([]od.Entry, 0, pdo.MaxMappings+1)
	entries = append(entries, od.Entry{Address: od.Address{Index: idx, Subindex: 0}, DataType: od.U8, AccessType: od.RW})
	for sub := 1; sub <= pdo.MaxMappings; sub++ {
		entries = append(entries, od.Entry{Address: od.Address{Index: idx, Subindex: uint8(sub)}, DataType: od.U32, AccessType: od.RW})
	}
	return entries
}

// installCobID wires sub1 of a comm record: reads return channel.CobID()
// verbatim; writes enforce the "no remapping, only enable/disable" policy
// resolved for this configurator - the low 31 bits must match
// defaultCobID exactly, and only bit 31 (the CiA 301 "PDO not valid" bit)
// is actually settable. Disagreement on the low bits aborts with
// InvalidValue rather than silently accepting a foreign identifier.
func installCobID(reg *handler.Registry, addr od.Address, ch channel, defaultCobID uint32) error {
	if err := handler.SetReadHandler[uint32](reg, addr, ch.CobID); err != nil {
		return err
	}
	return handler.SetWriteHandler[uint32](reg, addr, func(v uint32) od.ErrorCode {
		if v&^cobIDInvalidBit != defaultCobID {
			return od.InvalidValue
		}
		if v&cobIDInvalidBit != 0 {
			ch.SetInactive()
			return od.NoError
		}
		return ch.SetActive()
	})
}

func installMapping(reg *handler.Registry, base uint16, n int, ch channel) error {
	idx := base + uint16(n)
	countAddr := od.Address{Index: idx, Subindex: 0}
	if err := handler.SetReadHandler[uint8](reg, countAddr, func() uint8 { return uint8(ch.MappingCount()) }); err != nil {
		return err
	}
	if err := handler.SetWriteHandler[uint8](reg, countAddr, func(v uint8) od.ErrorCode {
		return ch.SetMappingCount(int(v))
	}); err != nil {
		return err
	}

	for sub := 1; sub <= pdo.MaxMappings; sub++ {
		i := sub - 1
		addr := od.Address{Index: idx, Subindex: uint8(sub)}
		if err := handler.SetReadHandler[uint32](reg, addr, func() uint32 { return ch.Mapping(i).Encode() }); err != nil {
			return err
		}
		if err := handler.SetWriteHandler[uint32](reg, addr, func(v uint32) od.ErrorCode {
			return ch.SetMapping(i, pdo.DecodeMapping(v))
		}); err != nil {
			return err
		}
	}
	return nil
}

// InstallRPDO wires channel n's communication and mapping parameter
// records onto reg. Sub 2 (transmission type) is read-only, fixed at
// 0xFF: the RPDO decode engine (C6) has no deadline-monitoring or
// SYNC-gating behavior to drive from it, and unlike the TPDO record there
// is no sub 3/sub 5 to expose.
func InstallRPDO(reg *handler.Registry, n int, r *pdo.RPDO, defaultCobID uint32) error {
	idx := rpdoCommBase + uint16(n)
	if err := handler.SetReadHandler[uint8](reg, od.Address{Index: idx, Subindex: 0}, func() uint8 { return 2 }); err != nil {
		return err
	}
	if err := installCobID(reg, od.Address{Index: idx, Subindex: 1}, r, defaultCobID); err != nil {
		return err
	}
	if err := handler.SetReadHandler[uint8](reg, od.Address{Index: idx, Subindex: 2}, func() uint8 { return 0xFF }); err != nil {
		return err
	}
	return installMapping(reg, rpdoMapBase, n, r)
}

// InstallTPDO wires channel n's communication and mapping parameter
// records onto reg. Sub 2 (transmission type) always reads back 0xFF and
// only accepts writing 0xFF back, rejecting anything else with
// UnsupportedAccess; it does not drive the channel's transmit mode, which
// is fixed by SetTransmitMode rather than exposed through the OD. Sub 3
// sets the inhibit time, sub 5 sets the event timer.
func InstallTPDO(reg *handler.Registry, n int, tp *pdo.TPDO, defaultCobID uint32) error {
	idx := tpdoCommBase + uint16(n)
	if err := handler.SetReadHandler[uint8](reg, od.Address{Index: idx, Subindex: 0}, func() uint8 { return 5 }); err != nil {
		return err
	}
	if err := installCobID(reg, od.Address{Index: idx, Subindex: 1}, tp, defaultCobID); err != nil {
		return err
	}

	transTypeAddr := od.Address{Index: idx, Subindex: 2}
	if err := handler.SetReadHandler[uint8](reg, transTypeAddr, func() uint8 { return 0xFF }); err != nil {
		return err
	}
	if err := handler.SetWriteHandler[uint8](reg, transTypeAddr, func(v uint8) od.ErrorCode {
		if v != 0xFF {
			return od.UnsupportedAccess
		}
		return od.NoError
	}); err != nil {
		return err
	}

	inhibitAddr := od.Address{Index: idx, Subindex: 3}
	if err := handler.SetReadHandler[uint16](reg, inhibitAddr, tp.InhibitTime); err != nil {
		return err
	}
	if err := handler.SetWriteHandler[uint16](reg, inhibitAddr, func(v uint16) od.ErrorCode {
		tp.SetInhibitTime(v)
		return od.NoError
	}); err != nil {
		return err
	}

	eventAddr := od.Address{Index: idx, Subindex: 5}
	if err := handler.SetReadHandler[uint16](reg, eventAddr, tp.EventTimeout); err != nil {
		return err
	}
	if err := handler.SetWriteHandler[uint16](reg, eventAddr, func(v uint16) od.ErrorCode {
		tp.SetEventTimeout(v)
		return od.NoError
	}); err != nil {
		return err
	}

	return installMapping(reg, tpdoMapBase, n, tp)
}
