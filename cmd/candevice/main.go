// Command candevice runs a single CANopen node on a real SocketCAN
// interface: it wires canopenslave/device.Device to
// github.com/brutella/can for transport and reads its node id and CAN
// interface from an ini.v1 config file, in the same flag+config-file
// shape as the teacher module's own cmd/canopen.
package main

import (
	"flag"
	"os"
	"time"

	log "github.com/sirupsen/logrus"

	"canopenslave/can"
	"canopenslave/device"
	"canopenslave/handler"
	"canopenslave/od"
)

var (
	sensorAddr   = od.Address{Index: 0x2100, Subindex: 0}
	actuatorAddr = od.Address{Index: 0x2101, Subindex: 0}
)

func buildDictionary() []od.Entry {
	return []od.Entry{
		{Address: sensorAddr, DataType: od.U32, AccessType: od.RO, PDOMapping: true},
		{Address: actuatorAddr, DataType: od.U16, AccessType: od.WO, PDOMapping: true},
	}
}

// frameRouter adapts can.FrameHandler to device.Device.ProcessMessage,
// forwarding the device's response frames (SDO replies) back onto the bus.
type frameRouter struct {
	dev *device.Device
	bus can.Bus
}

func (r *frameRouter) Handle(frame can.Frame) {
	r.dev.ProcessMessage(frame, func(resp can.Frame) {
		if err := r.bus.Send(resp); err != nil {
			log.WithError(err).Error("candevice: failed to send response frame")
		}
	})
}

func main() {
	log.SetLevel(log.DebugLevel)

	configPath := flag.String("c", "", "path to an ini host config file")
	flag.Parse()

	cfg, err := loadHostConfig(*configPath)
	if err != nil {
		log.WithError(err).Fatal("candevice: failed to load host config")
	}

	dev := device.New(cfg.NodeID, buildDictionary())

	var sensorValue uint32
	if err := handler.SetReadHandler[uint32](dev.Registry(), sensorAddr, func() uint32 { return sensorValue }); err != nil {
		log.WithError(err).Fatal("candevice: failed to install sensor read handler")
	}
	if err := handler.SetWriteHandler[uint16](dev.Registry(), actuatorAddr, func(v uint16) od.ErrorCode {
		log.WithField("value", v).Info("candevice: actuator write")
		return od.NoError
	}); err != nil {
		log.WithError(err).Fatal("candevice: failed to install actuator write handler")
	}

	dev.TPDO(0).SetEventTimeout(cfg.TPDO0EventMillis)

	if err := dev.Finalize(); err != nil {
		log.WithError(err).Fatal("candevice: object dictionary is incomplete")
	}

	bus, err := can.NewSocketCANBus(cfg.Interface)
	if err != nil {
		log.WithError(err).Fatalf("candevice: could not open interface %s", cfg.Interface)
		os.Exit(1)
	}

	router := &frameRouter{dev: dev, bus: bus}
	bus.Subscribe(router)
	bus.Connect()

	log.WithFields(log.Fields{"node_id": dev.NodeID(), "interface": cfg.Interface}).Info("candevice: running")

	start := time.Now()
	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()

	for range ticker.C {
		now := uint64(time.Since(start).Microseconds())
		sensorValue++
		dev.SetValueChanged(sensorAddr)
		dev.Update(now, func(frame can.Frame) {
			if err := bus.Send(frame); err != nil {
				log.WithError(err).Error("candevice: failed to send TPDO frame")
			}
		})
	}
}
