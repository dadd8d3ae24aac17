package od

import "fmt"

// ErrorCode is the CANopen SDO abort/error taxonomy (spec CiA 301 table),
// shared by the handler registry, the PDO engines, the PDO configurator and
// the SDO server. Every failure that crosses the SDO boundary is surfaced
// to the network as the numeric value of one of these constants.
type ErrorCode uint32

const (
	NoError                 ErrorCode = 0x00000000
	UnsupportedAccess       ErrorCode = 0x06010000
	ReadOfWriteOnlyObject   ErrorCode = 0x06010001
	WriteOfReadOnlyObject   ErrorCode = 0x06010002
	ObjectDoesNotExist      ErrorCode = 0x06020000
	PdoMappingError         ErrorCode = 0x06040041
	MappingsExceedPdoLength ErrorCode = 0x06040042
	InvalidValue            ErrorCode = 0x06090030
	GeneralError            ErrorCode = 0x08000000
)

var errorDescriptions = map[ErrorCode]string{
	NoError:                 "no error",
	UnsupportedAccess:       "unsupported access to an object",
	ReadOfWriteOnlyObject:   "attempt to read a write only object",
	WriteOfReadOnlyObject:   "attempt to write a read only object",
	ObjectDoesNotExist:      "object does not exist in the object dictionary",
	PdoMappingError:         "object cannot be mapped to the PDO",
	MappingsExceedPdoLength: "number and length of mapped objects exceeds PDO length",
	InvalidValue:            "invalid value for parameter",
	GeneralError:            "general error",
}

func (e ErrorCode) Error() string {
	if desc, ok := errorDescriptions[e]; ok {
		return desc
	}
	return fmt.Sprintf("sdo error 0x%08X", uint32(e))
}
