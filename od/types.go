package od

import (
	"encoding/binary"
	"fmt"
)

// DataType enumerates the scalar types an object dictionary entry can
// hold. The numeric value is part of the wire contract between the
// handler registry and its dispatcher (see handler.Registry): it MUST
// equal the discriminant of Value for the same underlying type.
type DataType uint8

const (
	Empty DataType = iota
	U8
	U16
	U32
	U64
	I8
	I16
	I32
	I64
)

func (t DataType) String() string {
	switch t {
	case Empty:
		return "Empty"
	case U8:
		return "U8"
	case U16:
		return "U16"
	case U32:
		return "U32"
	case U64:
		return "U64"
	case I8:
		return "I8"
	case I16:
		return "I16"
	case I32:
		return "I32"
	case I64:
		return "I64"
	default:
		return fmt.Sprintf("DataType(%d)", uint8(t))
	}
}

// SizeOf returns the wire size in bytes of a value of the given type.
func SizeOf(t DataType) int {
	switch t {
	case Empty:
		return 0
	case U8, I8:
		return 1
	case U16, I16:
		return 2
	case U32, I32:
		return 4
	case U64, I64:
		return 8
	default:
		return 0
	}
}

// Scalar is the set of Go integer types an OD Value can carry.
type Scalar interface {
	~uint8 | ~uint16 | ~uint32 | ~uint64 | ~int8 | ~int16 | ~int32 | ~int64
}

// dataTypeOf maps a Scalar's Go type to its DataType discriminant.
func dataTypeOf[T Scalar]() DataType {
	var zero T
	switch any(zero).(type) {
	case uint8:
		return U8
	case uint16:
		return U16
	case uint32:
		return U32
	case uint64:
		return U64
	case int8:
		return I8
	case int16:
		return I16
	case int32:
		return I32
	case int64:
		return I64
	default:
		return Empty
	}
}

// DataTypeFor returns the DataType discriminant for a Scalar Go type,
// exported so the handler package can type-check registrations against
// an entry's declared DataType without round-tripping through a Value.
func DataTypeFor[T Scalar]() DataType { return dataTypeOf[T]() }

// Value is a tagged scalar, the Go realization of the CANopen value
// union. It carries no pointer and fits in two machine words, so passing
// it by value never allocates.
type Value struct {
	typ  DataType
	bits uint64
}

// Type returns the tag of the value.
func (v Value) Type() DataType { return v.typ }

// Size returns the wire size in bytes of the value.
func (v Value) Size() int { return SizeOf(v.typ) }

// SupportsExpeditedTransfer reports whether v is non-empty and fits in the
// 4-byte data field of a single expedited SDO frame.
func (v Value) SupportsExpeditedTransfer() bool {
	return v.typ != Empty && v.Size() <= 4
}

// New builds a tagged Value from any supported scalar type.
func New[T Scalar](x T) Value {
	return Value{typ: dataTypeOf[T](), bits: uint64(x)}
}

// Get extracts the value as T, panicking if v does not carry that type.
// Mirrors the C++ union's "accessing the wrong alternative" contract:
// callers are expected to check Type() first, as
// handler.Registry.CallWrite does.
func Get[T Scalar](v Value) T {
	if want := dataTypeOf[T](); want != v.typ {
		panic(fmt.Sprintf("od: Value holds %s, not %s", v.typ, want))
	}
	return T(v.bits)
}

// Bytes little-endian encodes v into exactly SizeOf(v.Type()) bytes.
// Encoding an Empty value yields zero bytes.
func (v Value) Bytes() []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, v.bits)
	return buf[:v.Size()]
}

// PutBytes little-endian encodes v into dst, which must be at least
// v.Size() bytes long.
func (v Value) PutBytes(dst []byte) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v.bits)
	copy(dst, buf[:v.Size()])
}

// ValueFromBytes little-endian decodes a Value of the given type from the
// front of data. Decoding Empty yields the empty Value regardless of data.
func ValueFromBytes(t DataType, data []byte) Value {
	size := SizeOf(t)
	var buf [8]byte
	copy(buf[:size], data[:size])
	return Value{typ: t, bits: binary.LittleEndian.Uint64(buf[:])}
}
