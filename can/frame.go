// Package can defines the CAN frame value type crossing the device core's
// boundary, and the Bus/FrameHandler split the teacher's root package uses
// to decouple the core from any particular transceiver driver.
package can

// Frame is a single non-extended-or-extended CAN frame, the unit the
// device core consumes from the network and emits through a send
// callback. The core only ever handles 11-bit (standard) frames; extended
// frames are accepted here but ignored by device.Device.ProcessMessage.
type Frame struct {
	ID       uint32
	Extended bool
	Length   uint8
	Data     [8]byte
}

// Bus is the minimal CAN transceiver contract the device core's host loop
// needs: something that can send a Frame and that the host can subscribe
// to for inbound frames. The device core itself never depends on Bus - it
// only ever sees Frame values and a send callback - this exists purely for
// host programs such as cmd/candevice that need a driver abstraction.
type Bus interface {
	Send(Frame) error
	Subscribe(FrameHandler)
}

// FrameHandler receives frames pulled off a Bus.
type FrameHandler interface {
	Handle(Frame)
}
