package pdo

import "canopenslave/od"

// TransmitMode selects whether a TPDO fires on SYNC or on its own event
// policy (spec.md §4.7).
type TransmitMode uint8

const (
	OnSync TransmitMode = iota
	OnEvent
)

// ReadFunc is the callback a TPDO invokes to fetch the current value of a
// mapped address; device.Device supplies its handler registry's CallRead.
// Returning ok=false abandons the current frame: "if that returns an
// error, abandon frame production and return 'no message'" (spec.md
// §4.7), matching a TPDO read callback failure's treatment under
// spec.md §7 (suppress the frame for this tick, no retry state).
type ReadFunc func(addr od.Address) (v od.Value, ok bool)

// Message is an encoded TPDO payload ready to send: CAN id plus the
// packed little-endian bytes for every populated mapping.
type Message struct {
	CanID  uint32
	Length uint8
	Data   [8]byte
}

// TPDO holds up to 8 byte-aligned mappings and the event/inhibit/sync
// policy controlling when they are encoded into a frame (spec.md C7).
type TPDO struct {
	channel

	mode         TransmitMode
	eventTimeout uint64 // microseconds, 0 = disabled
	inhibitTime  uint64 // microseconds
	lastSent     uint64 // microseconds, monotonic
	updated      bool
	syncPending  bool
}

// NewTPDO creates an inactive TPDO channel bound to dict for mapping
// validation.
func NewTPDO(dict *od.Dictionary) *TPDO {
	return &TPDO{channel: newChannel(dict, od.Entry.IsTPDOMappable)}
}

// SetTransmitMode selects OnSync or OnEvent delivery.
func (t *TPDO) SetTransmitMode(mode TransmitMode) { t.mode = mode }

// TransmitMode returns the channel's current delivery mode.
func (t *TPDO) TransmitMode() TransmitMode { return t.mode }

// SetEventTimeout sets the maximum interval, in milliseconds, after which
// the TPDO retransmits even without a value change. 0 disables the
// timer, matching TransmitPdo::setEventTimeout.
func (t *TPDO) SetEventTimeout(milliseconds uint16) {
	t.eventTimeout = uint64(milliseconds) * 1000
}

// EventTimeout returns the configured event timeout in milliseconds.
func (t *TPDO) EventTimeout() uint16 { return uint16(t.eventTimeout / 1000) }

// SetInhibitTime sets the minimum interval between transmissions, in
// units of 100 microseconds, matching TransmitPdo::setInhibitTime.
func (t *TPDO) SetInhibitTime(units100us uint16) {
	t.inhibitTime = uint64(units100us) * 100
}

// InhibitTime returns the configured inhibit time in units of 100us.
func (t *TPDO) InhibitTime() uint16 { return uint16(t.inhibitTime / 100) }

// SetValueUpdated marks the channel's data as changed, making the TPDO
// eligible to fire under its event policy (subject to the inhibit window)
// on the next NextMessage call.
func (t *TPDO) SetValueUpdated() { t.updated = true }

// Sync marks a SYNC as pending for an OnSync TPDO; NextMessage consumes
// it on the following call.
func (t *TPDO) Sync() { t.syncPending = true }

// shouldSend implements the transmit policy of spec.md §4.7: a frame fires
// if a pending SYNC is consumed while in OnSync mode, OR the event policy
// fires - the two are evaluated independently and ORed together, matching
// nextMessage's `(transmitMode_==OnSync && sync_) || sendOnEvent_.send()`
// in the original implementation. The event policy itself runs regardless
// of transmitMode: past the inhibit window AND (updated OR the event timer
// has expired). Firing is decided and lastSent advanced here, before the
// frame is actually encoded - matching SendOnEvent::send(), which updates
// its own bookkeeping as part of the policy check rather than after a
// successful encode. This is what makes a failed read callback suppress
// only the current frame with no retry state (spec.md §7): the channel
// already considers the event consumed.
func (t *TPDO) shouldSend(now uint64) bool {
	sync := false
	if t.mode == OnSync && t.syncPending {
		t.syncPending = false
		sync = true
	}

	event := false
	if now > t.lastSent+t.inhibitTime {
		timerExpired := t.eventTimeout > 0 && now > t.lastSent+t.eventTimeout
		if t.updated || timerExpired {
			t.lastSent = now
			event = true
		}
	}

	return sync || event
}

// NextMessage evaluates the transmit policy against now (a monotonic
// microsecond timestamp) and, if the channel should fire, encodes and
// returns a Message. It returns ok=false when nothing should be sent this
// tick, including when the read callback fails mid-frame.
func (t *TPDO) NextMessage(now uint64, read ReadFunc) (Message, bool) {
	if !t.active || !t.shouldSend(now) {
		return Message{}, false
	}
	t.updated = false
	return t.encode(read)
}

func (t *TPDO) encode(read ReadFunc) (Message, bool) {
	msg := Message{CanID: t.canID}
	offset := 0
	for i := 0; i < t.mappingCount; i++ {
		v, ok := read(t.mappings[i].Address)
		if !ok {
			return Message{}, false
		}
		size := int(t.mappings[i].BitLength) / 8
		v.PutBytes(msg.Data[offset : offset+size])
		offset += size
	}
	msg.Length = uint8(offset)
	return msg, true
}
