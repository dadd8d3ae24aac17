package pdo

import "canopenslave/od"

// WriteFunc is the callback an RPDO invokes for each decoded mapping: the
// OD write path (device.Device's internal write), supplied by the owner
// so this package never depends on device.
type WriteFunc func(addr od.Address, v od.Value)

// RPDO holds up to 8 byte-aligned mappings decoded out of one inbound CAN
// identifier and dispatched into OD writes (spec.md C6).
type RPDO struct {
	channel
}

// NewRPDO creates an inactive RPDO channel bound to dict for mapping
// validation.
func NewRPDO(dict *od.Dictionary) *RPDO {
	r := &RPDO{channel: newChannel(dict, od.Entry.IsRPDOMappable)}
	return r
}

// ProcessMessage decodes frameData (a CAN frame payload, up to 8 bytes)
// against the channel's mappings and calls write for every decoded
// value, in mapping order. Frames for the wrong CAN ID, an inactive
// channel, an empty mapping list, or a payload shorter than the mapped
// total are dropped silently, per spec.md §4.6 and §7 ("failures inside
// RPDO decode... are silently dropped per CANopen convention").
func (r *RPDO) ProcessMessage(frameID uint32, frameData []byte, write WriteFunc) {
	if frameID != r.canID || !r.active || r.mappingCount == 0 {
		return
	}

	total := 0
	for i := 0; i < r.mappingCount; i++ {
		total += int(r.mappings[i].BitLength) / 8
	}
	if total > len(frameData) {
		return
	}

	offset := 0
	for i := 0; i < r.mappingCount; i++ {
		size := int(r.mappings[i].BitLength) / 8
		v := od.ValueFromBytes(r.resolved[i], frameData[offset:offset+size])
		write(r.mappings[i].Address, v)
		offset += size
	}
}
