package pdo_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"canopenslave/od"
	"canopenslave/pdo"
)

func tpdoDict() *od.Dictionary {
	return od.New([]od.Entry{
		{Address: od.Address{Index: 0x2002, Subindex: 0}, DataType: od.U32, AccessType: od.RW, PDOMapping: true},
	})
}

func setUpActiveEventTPDO(t *testing.T) *pdo.TPDO {
	t.Helper()
	tp := pdo.NewTPDO(tpdoDict())
	require.Equal(t, od.NoError, tp.SetMapping(0, pdo.Mapping{Address: od.Address{Index: 0x2002}, BitLength: 32}))
	require.Equal(t, od.NoError, tp.SetMappingCount(1))
	tp.SetCanID(0x185)
	tp.SetTransmitMode(pdo.OnEvent)
	require.Equal(t, od.NoError, tp.SetActive())
	return tp
}

func TestTPDOEventTransmission(t *testing.T) {
	tp := setUpActiveEventTPDO(t)
	tp.SetEventTimeout(500)

	reader := func(addr od.Address) (od.Value, bool) {
		return od.New[uint32](0x2A), true
	}

	tp.SetValueUpdated()
	msg, ok := tp.NextMessage(1000, reader)
	require.True(t, ok)
	assert.Equal(t, uint32(0x185), msg.CanID)
	assert.Equal(t, uint8(4), msg.Length)
	assert.Equal(t, [8]byte{0x2A, 0, 0, 0, 0, 0, 0, 0}, msg.Data)

	_, ok = tp.NextMessage(1001, reader)
	assert.False(t, ok)
}

func TestTPDOInhibitMonotonicity(t *testing.T) {
	tp := setUpActiveEventTPDO(t)
	tp.SetInhibitTime(10000) // 1s in 100us units

	reader := func(addr od.Address) (od.Value, bool) { return od.New[uint32](1), true }

	// The inhibit window also runs from time 0, before the first send.
	tp.SetValueUpdated()
	_, ok := tp.NextMessage(1_000_001, reader)
	require.True(t, ok)

	tp.SetValueUpdated()
	_, ok = tp.NextMessage(1_500_000, reader) // within 1s inhibit window
	assert.False(t, ok)

	tp.SetValueUpdated()
	_, ok = tp.NextMessage(2_000_002, reader)
	assert.True(t, ok)
}

func TestTPDOEventTimerProgressWithoutUpdate(t *testing.T) {
	tp := setUpActiveEventTPDO(t)
	tp.SetEventTimeout(1) // 1ms = 1000us

	reader := func(addr od.Address) (od.Value, bool) { return od.New[uint32](1), true }

	_, ok := tp.NextMessage(0, reader)
	assert.False(t, ok, "no initial send without an update or elapsed timer")

	_, ok = tp.NextMessage(1001, reader)
	assert.True(t, ok, "event timer should fire even without an explicit update")
}

func TestTPDOReadFailureSuppressesFrame(t *testing.T) {
	tp := setUpActiveEventTPDO(t)
	tp.SetValueUpdated()

	_, ok := tp.NextMessage(1000, func(od.Address) (od.Value, bool) { return od.Value{}, false })
	assert.False(t, ok)
}

func TestTPDOOnSync(t *testing.T) {
	tp := pdo.NewTPDO(tpdoDict())
	require.Equal(t, od.NoError, tp.SetMapping(0, pdo.Mapping{Address: od.Address{Index: 0x2002}, BitLength: 32}))
	require.Equal(t, od.NoError, tp.SetMappingCount(1))
	tp.SetCanID(0x185)
	tp.SetTransmitMode(pdo.OnSync)
	require.Equal(t, od.NoError, tp.SetActive())

	reader := func(od.Address) (od.Value, bool) { return od.New[uint32](7), true }

	_, ok := tp.NextMessage(0, reader)
	assert.False(t, ok, "no frame without a pending sync")

	tp.Sync()
	msg, ok := tp.NextMessage(0, reader)
	require.True(t, ok)
	assert.Equal(t, uint32(7), od.Get[uint32](od.ValueFromBytes(od.U32, msg.Data[:4])))

	_, ok = tp.NextMessage(0, reader)
	assert.False(t, ok, "sync consumed, no further frame until the next Sync call")
}

func TestTPDOEncodeEmptyWhenInactive(t *testing.T) {
	tp := pdo.NewTPDO(tpdoDict())
	tp.SetTransmitMode(pdo.OnEvent)
	_, ok := tp.NextMessage(0, func(od.Address) (od.Value, bool) { return od.Value{}, true })
	assert.False(t, ok)
}
