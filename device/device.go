// Package device implements the Device façade (spec.md C4) tying the
// object dictionary, handler registry, SDO server and the four RPDO/TPDO
// channels into one cooperatively-scheduled unit, plus the node-ID/COB-ID
// derivation glue (spec.md C9) that turns a single node id into every
// channel's default CAN identifier.
package device

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"canopenslave/can"
	"canopenslave/config"
	"canopenslave/handler"
	"canopenslave/od"
	"canopenslave/pdo"
	"canopenslave/sdo"
)

// NumChannels is the number of RPDO and TPDO channels a Device allocates,
// matching the four comm/mapping record pairs config.MaxChannels exposes
// at 0x1400-0x1403/0x1600-0x1603 and 0x1800-0x1803/0x1A00-0x1A03.
const NumChannels = config.MaxChannels

// Device is the single-threaded, cooperatively-scheduled core of one
// CANopen node: an object dictionary, the handler registry backing it,
// an expedited-only SDO server, and NumChannels RPDO/TPDO channels. None
// of its methods are safe to call concurrently - the whole point of this
// type is that a host loop drives it from one goroutine only (spec.md
// non-goals: no internal locking).
type Device struct {
	nodeID uint8
	dict   *od.Dictionary
	reg    *handler.Registry
	server *sdo.Server
	rpdo   [NumChannels]*pdo.RPDO
	tpdo   [NumChannels]*pdo.TPDO
}

// New builds a Device for nodeID (masked to its low 7 bits) whose object
// dictionary is entries plus the PDO communication/mapping records for
// every channel, with each channel's default COB-ID derived from nodeID
// per the standard CANopen layout: RPDOn = 0x100*(n+2)+nodeId, TPDOn =
// 0x180+0x100*n+nodeId, SDO server rx/tx = 0x600/0x580+nodeId.
//
// The caller must install handlers for entries (config.RPDOEntries/
// TPDOEntries handlers are installed automatically) and then call
// Finalize before the Device is put into service.
func New(nodeID uint8, entries []od.Entry) *Device {
	nodeID &= 0x7F

	all := make([]od.Entry, 0, len(entries)+NumChannels*2*(5+pdo.MaxMappings+1))
	all = append(all, entries...)
	for n := 0; n < NumChannels; n++ {
		all = append(all, config.RPDOEntries(n)...)
		all = append(all, config.TPDOEntries(n)...)
	}

	dict := od.New(all)
	reg := handler.NewRegistry(dict)

	d := &Device{
		nodeID: nodeID,
		dict:   dict,
		reg:    reg,
		server: sdo.NewServer(),
	}
	d.server.SetNodeID(nodeID)

	for n := 0; n < NumChannels; n++ {
		d.rpdo[n] = pdo.NewRPDO(dict)
		d.tpdo[n] = pdo.NewTPDO(dict)

		rpdoCobID := rpdoDefaultCobID(nodeID, n)
		tpdoCobID := tpdoDefaultCobID(nodeID, n)
		d.rpdo[n].SetCanID(rpdoCobID)
		d.tpdo[n].SetCanID(tpdoCobID)

		if err := config.InstallRPDO(reg, n, d.rpdo[n], rpdoCobID); err != nil {
			panic(fmt.Sprintf("device: installing RPDO%d config: %v", n, err))
		}
		if err := config.InstallTPDO(reg, n, d.tpdo[n], tpdoCobID); err != nil {
			panic(fmt.Sprintf("device: installing TPDO%d config: %v", n, err))
		}
	}

	return d
}

func rpdoDefaultCobID(nodeID uint8, n int) uint32 {
	return 0x100*uint32(n+2) + uint32(nodeID)
}

func tpdoDefaultCobID(nodeID uint8, n int) uint32 {
	return 0x80 + 0x100*uint32(n+1) + uint32(nodeID)
}

// NodeID returns the device's configured node id.
func (d *Device) NodeID() uint8 { return d.nodeID }

// Dictionary returns the device's object dictionary, for host code that
// needs to enumerate entries (gateway/CLI tooling, diagnostics).
func (d *Device) Dictionary() *od.Dictionary { return d.dict }

// Registry returns the handler registry so application code can install
// read/write handlers for its own entries before calling Finalize.
func (d *Device) Registry() *handler.Registry { return d.reg }

// RPDO returns channel n (0-based, < NumChannels).
func (d *Device) RPDO(n int) *pdo.RPDO { return d.rpdo[n] }

// TPDO returns channel n (0-based, < NumChannels).
func (d *Device) TPDO(n int) *pdo.TPDO { return d.tpdo[n] }

// Finalize runs the build-time completeness check (spec.md §4.3/§4.9):
// every readable/writable entry of the dictionary must have a handler
// installed. Call this once, after installing every application handler
// and before ProcessMessage/Update ever run.
func (d *Device) Finalize() error {
	return d.reg.CheckComplete()
}

// Read implements sdo.Device: it resolves addr against the dictionary
// before dispatching into the registry, so a missing object or a
// write-only object never reaches a handler at all.
func (d *Device) Read(addr od.Address) (od.Value, od.ErrorCode) {
	entry, ok := d.dict.Lookup(addr)
	if !ok {
		return od.Value{}, od.ObjectDoesNotExist
	}
	if !entry.IsReadable() {
		return od.Value{}, od.ReadOfWriteOnlyObject
	}
	v, ok := d.reg.CallRead(addr)
	if !ok {
		logrus.WithField("address", addr).Error("device: readable entry has no handler")
		return od.Value{}, od.GeneralError
	}
	return v, od.NoError
}

// Write implements sdo.Device: it resolves addr and validates the
// incoming payload's declared size (when the caller supplied one) and
// actual length before decoding and dispatching, so neither a declared
// size mismatch nor a short buffer ever reaches the registered handler.
func (d *Device) Write(addr od.Address, data []byte, declaredSize int) od.ErrorCode {
	entry, ok := d.dict.Lookup(addr)
	if !ok {
		return od.ObjectDoesNotExist
	}
	if !entry.IsWritable() {
		return od.WriteOfReadOnlyObject
	}
	size := od.SizeOf(entry.DataType)
	if declaredSize >= 0 && declaredSize != size {
		return od.UnsupportedAccess
	}
	if len(data) < size {
		return od.UnsupportedAccess
	}
	v := od.ValueFromBytes(entry.DataType, data[:size])
	return d.applyWrite(addr, v)
}

func (d *Device) applyWrite(addr od.Address, v od.Value) od.ErrorCode {
	code, ok := d.reg.CallWrite(addr, v)
	if !ok {
		logrus.WithField("address", addr).Error("device: writable entry has no handler")
		return od.GeneralError
	}
	return code
}

// ProcessMessage routes one inbound CAN frame to every RPDO channel and to
// the SDO server. Extended frames are ignored outright; each RPDO and the
// SDO server independently filter on their own CAN identifier, so a frame
// that matches none of them is simply a no-op.
func (d *Device) ProcessMessage(frame can.Frame, send func(can.Frame)) {
	if frame.Extended {
		return
	}
	data := frame.Data[:frame.Length]
	write := func(addr od.Address, v od.Value) { d.applyWrite(addr, v) }
	for _, r := range d.rpdo {
		r.ProcessMessage(frame.ID, data, write)
	}
	d.server.ProcessMessage(d, frame, send)
}

// Update drives the TPDO transmit policy for the current time (a
// monotonic microsecond timestamp) and sends every channel whose policy
// fires, in channel order.
func (d *Device) Update(now uint64, send func(can.Frame)) {
	for _, t := range d.tpdo {
		msg, ok := t.NextMessage(now, d.reg.CallRead)
		if !ok {
			continue
		}
		send(can.Frame{ID: msg.CanID, Length: msg.Length, Data: msg.Data})
	}
}

// SetValueChanged marks every active TPDO that maps addr as having an
// updated value, making it eligible to fire on the next Update call under
// its event policy. Application code calls this whenever it changes a
// value out from under the OD (e.g. a sensor poll), since the registry
// itself has no notion of "changed since last read".
func (d *Device) SetValueChanged(addr od.Address) {
	for _, t := range d.tpdo {
		if !t.Active() {
			continue
		}
		for i := 0; i < t.MappingCount(); i++ {
			if t.Mapping(i).Address == addr {
				t.SetValueUpdated()
				break
			}
		}
	}
}
