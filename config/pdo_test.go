package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"canopenslave/config"
	"canopenslave/handler"
	"canopenslave/od"
	"canopenslave/pdo"
)

func buildRegistry(t *testing.T, entries []od.Entry) (*od.Dictionary, *handler.Registry) {
	t.Helper()
	dict := od.New(entries)
	return dict, handler.NewRegistry(dict)
}

func TestRPDOConfigEntriesAndCOBIDPolicy(t *testing.T) {
	entries := config.RPDOEntries(0)
	dict, reg := buildRegistry(t, entries)

	r := pdo.NewRPDO(dict)
	const defaultCobID = 0x200 | 5
	require.NoError(t, config.InstallRPDO(reg, 0, r, defaultCobID))

	cobIDAddr := od.Address{Index: 0x1400, Subindex: 1}

	// Enable with the exact default COB-ID: channel has no mappings yet,
	// so SetActive's re-validation trivially succeeds.
	code, ok := reg.CallWrite(cobIDAddr, od.New[uint32](defaultCobID))
	require.True(t, ok)
	assert.Equal(t, od.NoError, code)
	assert.True(t, r.Active())

	// Disabling via bit 31 is always accepted.
	code, ok = reg.CallWrite(cobIDAddr, od.New[uint32](defaultCobID|0x8000_0000))
	require.True(t, ok)
	assert.Equal(t, od.NoError, code)
	assert.False(t, r.Active())

	// A COB-ID that disagrees on the low bits is rejected outright.
	code, ok = reg.CallWrite(cobIDAddr, od.New[uint32](defaultCobID+1))
	require.True(t, ok)
	assert.Equal(t, od.InvalidValue, code)

	v, ok := reg.CallRead(cobIDAddr)
	require.True(t, ok)
	assert.Equal(t, uint32(defaultCobID|0x8000_0000), od.Get[uint32](v))
}

func TestRPDOMappingRecordRoundTrip(t *testing.T) {
	entries := append(config.RPDOEntries(0), od.Entry{
		Address: od.Address{Index: 0x2100, Subindex: 0}, DataType: od.U16, AccessType: od.RWRPDO, PDOMapping: true,
	})
	dict, reg := buildRegistry(t, entries)
	r := pdo.NewRPDO(dict)
	require.NoError(t, config.InstallRPDO(reg, 0, r, 0x205))

	mapAddr := od.Address{Index: 0x1600, Subindex: 1}
	m := pdo.Mapping{Address: od.Address{Index: 0x2100}, BitLength: 16}
	code, ok := reg.CallWrite(mapAddr, od.New[uint32](m.Encode()))
	require.True(t, ok)
	assert.Equal(t, od.NoError, code)

	countAddr := od.Address{Index: 0x1600, Subindex: 0}
	code, ok = reg.CallWrite(countAddr, od.New[uint8](1))
	require.True(t, ok)
	assert.Equal(t, od.NoError, code)
	assert.Equal(t, 1, r.MappingCount())

	v, ok := reg.CallRead(mapAddr)
	require.True(t, ok)
	assert.Equal(t, m.Encode(), od.Get[uint32](v))
}

func TestTPDOTransmissionTypeFixedAt0xFF(t *testing.T) {
	entries := config.TPDOEntries(0)
	dict, reg := buildRegistry(t, entries)
	tp := pdo.NewTPDO(dict)
	require.NoError(t, config.InstallTPDO(reg, 0, tp, 0x185))

	transTypeAddr := od.Address{Index: 0x1800, Subindex: 2}
	v, ok := reg.CallRead(transTypeAddr)
	require.True(t, ok)
	assert.Equal(t, uint8(0xFF), od.Get[uint8](v))

	code, ok := reg.CallWrite(transTypeAddr, od.New[uint8](0xFF))
	require.True(t, ok)
	assert.Equal(t, od.NoError, code)

	code, ok = reg.CallWrite(transTypeAddr, od.New[uint8](1))
	require.True(t, ok)
	assert.Equal(t, od.UnsupportedAccess, code)
}

func TestRPDOTransmissionTypeReadOnlyFixedAt0xFF(t *testing.T) {
	entries := config.RPDOEntries(0)
	dict, reg := buildRegistry(t, entries)
	r := pdo.NewRPDO(dict)
	require.NoError(t, config.InstallRPDO(reg, 0, r, 0x205))

	highestSubAddr := od.Address{Index: 0x1400, Subindex: 0}
	v, ok := reg.CallRead(highestSubAddr)
	require.True(t, ok)
	assert.Equal(t, uint8(2), od.Get[uint8](v))

	transTypeAddr := od.Address{Index: 0x1400, Subindex: 2}
	v, ok = reg.CallRead(transTypeAddr)
	require.True(t, ok)
	assert.Equal(t, uint8(0xFF), od.Get[uint8](v))

	_, ok = reg.CallWrite(transTypeAddr, od.New[uint8](0xFF))
	assert.False(t, ok, "RPDO sub 2 has no write handler: it is read-only")
}

func TestTPDOInhibitAndEventTimerWiring(t *testing.T) {
	entries := config.TPDOEntries(0)
	dict, reg := buildRegistry(t, entries)
	tp := pdo.NewTPDO(dict)
	require.NoError(t, config.InstallTPDO(reg, 0, tp, 0x185))

	inhibitAddr := od.Address{Index: 0x1800, Subindex: 3}
	code, ok := reg.CallWrite(inhibitAddr, od.New[uint16](500))
	require.True(t, ok)
	assert.Equal(t, od.NoError, code)
	assert.Equal(t, uint16(500), tp.InhibitTime())

	eventAddr := od.Address{Index: 0x1800, Subindex: 5}
	code, ok = reg.CallWrite(eventAddr, od.New[uint16](250))
	require.True(t, ok)
	assert.Equal(t, od.NoError, code)
	assert.Equal(t, uint16(250), tp.EventTimeout())
}

func TestTPDOCOBIDEnableWithoutMappings(t *testing.T) {
	entries := config.TPDOEntries(0)
	dict, reg := buildRegistry(t, entries)
	tp := pdo.NewTPDO(dict)
	const defaultCobID = 0x185
	require.NoError(t, config.InstallTPDO(reg, 0, tp, defaultCobID))

	// No mappings configured: enabling must still succeed (mapping count
	// 0 is a valid, if useless, channel).
	cobIDAddr := od.Address{Index: 0x1800, Subindex: 1}
	code, ok := reg.CallWrite(cobIDAddr, od.New[uint32](defaultCobID))
	require.True(t, ok)
	assert.Equal(t, od.NoError, code)
	assert.True(t, tp.Active())
}
