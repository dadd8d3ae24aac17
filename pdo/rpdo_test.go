package pdo_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"canopenslave/od"
	"canopenslave/pdo"
)

func rpdoDict() *od.Dictionary {
	return od.New([]od.Entry{
		{Address: od.Address{Index: 0x2100, Subindex: 0}, DataType: od.U16, AccessType: od.RWRPDO, PDOMapping: true},
		{Address: od.Address{Index: 0x2101, Subindex: 0}, DataType: od.U8, AccessType: od.RW, PDOMapping: true}, // not RPDO mappable
	})
}

func TestRPDOMappingValidation(t *testing.T) {
	dict := rpdoDict()
	r := pdo.NewRPDO(dict)

	require.Equal(t, od.NoError, r.SetMapping(0, pdo.Mapping{Address: od.Address{Index: 0x2100}, BitLength: 16}))
	require.Equal(t, od.PdoMappingError, r.SetMapping(1, pdo.Mapping{Address: od.Address{Index: 0x2101}, BitLength: 8}))
	require.Equal(t, od.ObjectDoesNotExist, r.SetMapping(1, pdo.Mapping{Address: od.Address{Index: 0x9999}, BitLength: 8}))
	require.Equal(t, od.PdoMappingError, r.SetMapping(0, pdo.Mapping{Address: od.Address{Index: 0x2100}, BitLength: 8}))
}

func TestRPDODecode(t *testing.T) {
	dict := rpdoDict()
	r := pdo.NewRPDO(dict)
	require.Equal(t, od.NoError, r.SetMapping(0, pdo.Mapping{Address: od.Address{Index: 0x2100}, BitLength: 16}))
	require.Equal(t, od.NoError, r.SetMappingCount(1))
	r.SetCanID(0x205)
	require.Equal(t, od.NoError, r.SetActive())

	var got od.Value
	var gotAddr od.Address
	write := func(addr od.Address, v od.Value) { gotAddr, got = addr, v }

	r.ProcessMessage(0x205, []byte{0x34, 0x12}, write)
	assert.Equal(t, od.Address{Index: 0x2100}, gotAddr)
	assert.Equal(t, uint16(0x1234), od.Get[uint16](got))
}

func TestRPDODropsWrongCanID(t *testing.T) {
	dict := rpdoDict()
	r := pdo.NewRPDO(dict)
	require.Equal(t, od.NoError, r.SetMapping(0, pdo.Mapping{Address: od.Address{Index: 0x2100}, BitLength: 16}))
	require.Equal(t, od.NoError, r.SetMappingCount(1))
	r.SetCanID(0x205)
	require.Equal(t, od.NoError, r.SetActive())

	called := false
	r.ProcessMessage(0x206, []byte{0x34, 0x12}, func(od.Address, od.Value) { called = true })
	assert.False(t, called)
}

func TestRPDODropsShortFrame(t *testing.T) {
	dict := rpdoDict()
	r := pdo.NewRPDO(dict)
	require.Equal(t, od.NoError, r.SetMapping(0, pdo.Mapping{Address: od.Address{Index: 0x2100}, BitLength: 16}))
	require.Equal(t, od.NoError, r.SetMappingCount(1))
	r.SetCanID(0x205)
	require.Equal(t, od.NoError, r.SetActive())

	called := false
	r.ProcessMessage(0x205, []byte{0x34}, func(od.Address, od.Value) { called = true })
	assert.False(t, called)
}

func TestRPDOMappingCountRejectsOverflowAndWhileActive(t *testing.T) {
	dict := rpdoDict()
	r := pdo.NewRPDO(dict)
	assert.Equal(t, od.UnsupportedAccess, r.SetMappingCount(9))

	require.Equal(t, od.NoError, r.SetMapping(0, pdo.Mapping{Address: od.Address{Index: 0x2100}, BitLength: 16}))
	require.Equal(t, od.NoError, r.SetMappingCount(1))
	r.SetCanID(0x205)
	require.Equal(t, od.NoError, r.SetActive())

	assert.Equal(t, od.UnsupportedAccess, r.SetMappingCount(0))
	assert.Equal(t, od.UnsupportedAccess, r.SetMapping(0, pdo.Mapping{Address: od.Address{Index: 0x2100}, BitLength: 16}))
}

func TestRPDOMappingsExceedPdoLength(t *testing.T) {
	dict := od.New([]od.Entry{
		{Address: od.Address{Index: 0x2200, Subindex: 0}, DataType: od.U64, AccessType: od.WO, PDOMapping: true},
		{Address: od.Address{Index: 0x2201, Subindex: 0}, DataType: od.U64, AccessType: od.WO, PDOMapping: true},
	})
	r := pdo.NewRPDO(dict)
	require.Equal(t, od.NoError, r.SetMapping(0, pdo.Mapping{Address: od.Address{Index: 0x2200}, BitLength: 64}))
	require.Equal(t, od.NoError, r.SetMapping(1, pdo.Mapping{Address: od.Address{Index: 0x2201}, BitLength: 64}))
	assert.Equal(t, od.MappingsExceedPdoLength, r.SetMappingCount(2))
}
