// Package sdo implements the expedited-only SDO server (spec.md C5):
// decoding upload/download-initiate requests, dispatching into the
// device's read/write path, and emitting the matching
// upload/download/abort response frame.
package sdo

import (
	"github.com/sirupsen/logrus"

	"canopenslave/can"
	"canopenslave/od"
)

// Device is the read/write surface the SDO server dispatches into. It is
// satisfied by device.Device; kept as an interface here purely so this
// package never imports device (device imports sdo, not the reverse).
type Device interface {
	// Read returns the current value at addr, or a non-NoError code on
	// failure (ObjectDoesNotExist, ReadOfWriteOnlyObject, ...).
	Read(addr od.Address) (od.Value, od.ErrorCode)
	// Write stores data (the expedited payload, always 4 bytes) at addr.
	// declaredSize is the size claimed by the "size indicated" bit, or -1
	// if unspecified.
	Write(addr od.Address, data []byte, declaredSize int) od.ErrorCode
}

const (
	cmdUploadInitiate     = 0b010_0_00_0_0
	cmdUploadInitiateMask = 0b111_0_00_0_0
	cmdDownloadExpedited  = 0b001_0_00_1_0
	cmdDownloadMask       = 0b111_0_00_1_0
	cmdSizeIndicatedBit   = 0b000_0_00_0_1
)

// Server is a single node's SDO server. It carries no per-transfer state
// beyond the node id: every supported transfer is expedited and
// completes within the one request/response pair that triggered it.
type Server struct {
	nodeID uint8
}

// NewServer creates an SDO server; call SetNodeID before use.
func NewServer() *Server { return &Server{} }

// SetNodeID programs the node id (masked to its low 7 bits) used to
// derive the server's request/response CAN identifiers.
func (s *Server) SetNodeID(id uint8) { s.nodeID = id & 0x7F }

// NodeID returns the server's current node id.
func (s *Server) NodeID() uint8 { return s.nodeID }

// ProcessMessage handles one inbound CAN frame. Frames not addressed to
// this server (wrong id, or length != 8) are ignored; every frame that is
// addressed to it produces exactly one response frame via send.
func (s *Server) ProcessMessage(dev Device, frame can.Frame, send func(can.Frame)) {
	if frame.ID != 0x600|uint32(s.nodeID) || frame.Length != 8 {
		return
	}

	cmd := frame.Data[0]
	addr := od.Address{
		Index:    uint16(frame.Data[1]) | uint16(frame.Data[2])<<8,
		Subindex: frame.Data[3],
	}

	switch {
	case cmd&cmdUploadInitiateMask == cmdUploadInitiate:
		s.handleUpload(dev, addr, send)
	case cmd&cmdDownloadMask == cmdDownloadExpedited:
		s.handleDownload(dev, addr, cmd, frame.Data[4:8], send)
	default:
		logrus.WithField("command", cmd).Debug("sdo: unsupported command")
		send(s.abort(addr, od.UnsupportedAccess))
	}
}

func (s *Server) handleUpload(dev Device, addr od.Address, send func(can.Frame)) {
	v, code := dev.Read(addr)
	if code != od.NoError {
		logrus.WithFields(logrus.Fields{"address": addr, "error": code}).Debug("sdo: upload aborted")
		send(s.abort(addr, code))
		return
	}
	if !v.SupportsExpeditedTransfer() {
		send(s.abort(addr, od.UnsupportedAccess))
		return
	}
	send(s.uploadResponse(addr, v))
}

func (s *Server) handleDownload(dev Device, addr od.Address, cmd byte, data []byte, send func(can.Frame)) {
	declaredSize := -1
	if cmd&cmdSizeIndicatedBit != 0 {
		declaredSize = 4 - int((cmd>>2)&0x03)
	}
	code := dev.Write(addr, data, declaredSize)
	if code != od.NoError {
		logrus.WithFields(logrus.Fields{"address": addr, "error": code}).Debug("sdo: download aborted")
		send(s.abort(addr, code))
		return
	}
	send(s.downloadResponse(addr))
}

func (s *Server) responseFrame() can.Frame {
	return can.Frame{ID: 0x580 | uint32(s.nodeID), Length: 8}
}

func (s *Server) uploadResponse(addr od.Address, v od.Value) can.Frame {
	f := s.responseFrame()
	sizeBits := uint8(4-v.Size()) & 0x03
	f.Data[0] = 0b010_0_00_1_1 | sizeBits<<2
	f.Data[1] = byte(addr.Index)
	f.Data[2] = byte(addr.Index >> 8)
	f.Data[3] = addr.Subindex
	v.PutBytes(f.Data[4:8])
	return f
}

func (s *Server) downloadResponse(addr od.Address) can.Frame {
	f := s.responseFrame()
	f.Data[0] = 0b011_00000
	f.Data[1] = byte(addr.Index)
	f.Data[2] = byte(addr.Index >> 8)
	f.Data[3] = addr.Subindex
	return f
}

func (s *Server) abort(addr od.Address, code od.ErrorCode) can.Frame {
	f := s.responseFrame()
	f.Data[0] = 0b100_00000
	f.Data[1] = byte(addr.Index)
	f.Data[2] = byte(addr.Index >> 8)
	f.Data[3] = addr.Subindex
	raw := uint32(code)
	f.Data[4] = byte(raw)
	f.Data[5] = byte(raw >> 8)
	f.Data[6] = byte(raw >> 16)
	f.Data[7] = byte(raw >> 24)
	return f
}
