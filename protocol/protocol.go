// Package protocol implements the framed serial link between wavegen-host and
// the waveform firmware.
//
// A frame is
//
//	len | seq | payload... | crc16 hi | crc16 lo | 0x7E
//
// where len counts the whole frame, seq carries MessageDest in its high bits
// and a 4-bit sequence number in its low bits, and the CRC covers len, seq
// and the payload. A payload is a run of messages, each a VLQ command ID
// followed by the VLQ encoded arguments of that command.
package protocol

// Version of the wire format
const Version = "1"

const (
	MessageHeaderSize  = 2
	MessageTrailerSize = 3
	MessageLengthMin   = MessageHeaderSize + MessageTrailerSize
	MessageLengthMax   = 64
	MessagePayloadMax  = MessageLengthMax - MessageLengthMin

	MessagePositionLen = 0
	MessagePositionSeq = 1

	MessageValueSync = 0x7E
	MessageDest      = 0x10
	MessageSeqMask   = 0x0F
)
