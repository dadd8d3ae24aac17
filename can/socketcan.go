package can

import (
	brutella "github.com/brutella/can"
)

// SocketCANBus is a can.Bus backed by github.com/brutella/can, adapted
// from the teacher module's own SocketcanBus wrapper: a thin translation
// between brutella/can's Frame/Bus types and this package's Frame/Bus,
// so the device core never imports brutella/can directly.
type SocketCANBus struct {
	bus     *brutella.Bus
	handler FrameHandler
}

// NewSocketCANBus opens the named SocketCAN interface (e.g. "can0") and
// wraps it as a Bus. Call Connect afterwards to start the receive loop.
func NewSocketCANBus(name string) (*SocketCANBus, error) {
	bus, err := brutella.NewBusForInterfaceWithName(name)
	if err != nil {
		return nil, err
	}
	return &SocketCANBus{bus: bus}, nil
}

// Connect starts the bus's background receive loop. It returns once the
// loop has been launched; ConnectAndPublish itself runs until the bus is
// shut down.
func (s *SocketCANBus) Connect() {
	go s.bus.ConnectAndPublish()
}

// Send implements Bus. brutella/can's Frame carries no extended-frame
// flag of its own (matching the teacher module's own SocketcanBus.Send,
// which never threads one through either), so Frame.Extended is not
// reflected on the wire here.
func (s *SocketCANBus) Send(frame Frame) error {
	return s.bus.Publish(brutella.Frame{
		ID:     frame.ID,
		Length: frame.Length,
		Data:   frame.Data,
	})
}

// Subscribe implements Bus.
func (s *SocketCANBus) Subscribe(handler FrameHandler) {
	s.handler = handler
	s.bus.Subscribe(s)
}

// Handle satisfies brutella/can's own Handler interface, translating its
// Frame into ours before forwarding to the subscribed FrameHandler.
func (s *SocketCANBus) Handle(frame brutella.Frame) {
	if s.handler == nil {
		return
	}
	s.handler.Handle(Frame{
		ID:     frame.ID,
		Length: frame.Length,
		Data:   frame.Data,
	})
}
