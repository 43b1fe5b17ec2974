package protocol

import "errors"

var (
	ErrInvalidVLQ     = errors.New("invalid VLQ encoding")
	ErrBufferTooSmall = errors.New("buffer too small for VLQ")
)

// AppendVLQInt appends the VLQ encoding of v to buf.
//
// Values are sent most significant group first, 7 bits per byte with the top
// bit marking continuation. The first byte is sign extended on decode, so
// small negative numbers stay short.
func AppendVLQInt(buf []byte, v int32) []byte {
	if !(-(1<<26) <= v && v < (3<<26)) {
		buf = append(buf, byte((v>>28)&0x7F)|0x80)
	}
	if !(-(1<<19) <= v && v < (3<<19)) {
		buf = append(buf, byte((v>>21)&0x7F)|0x80)
	}
	if !(-(1<<12) <= v && v < (3<<12)) {
		buf = append(buf, byte((v>>14)&0x7F)|0x80)
	}
	if !(-(1<<5) <= v && v < (3<<5)) {
		buf = append(buf, byte((v>>7)&0x7F)|0x80)
	}
	return append(buf, byte(v&0x7F))
}

// AppendVLQUint appends the VLQ encoding of v to buf
func AppendVLQUint(buf []byte, v uint32) []byte {
	return AppendVLQInt(buf, int32(v))
}

// AppendVLQBool appends a %c flag
func AppendVLQBool(buf []byte, v bool) []byte {
	if v {
		return AppendVLQUint(buf, 1)
	}
	return AppendVLQUint(buf, 0)
}

// DecodeVLQInt decodes one VLQ integer and advances data past it
func DecodeVLQInt(data *[]byte) (int32, error) {
	if len(*data) == 0 {
		return 0, ErrBufferTooSmall
	}

	c := uint32((*data)[0])
	*data = (*data)[1:]

	v := c & 0x7F
	if c&0x60 == 0x60 {
		// Negative: sign extend the first group
		v |= ^uint32(0x1F)
	}
	for n := 1; c&0x80 != 0; n++ {
		if n == 5 {
			return 0, ErrInvalidVLQ
		}
		if len(*data) == 0 {
			return 0, ErrBufferTooSmall
		}
		c = uint32((*data)[0])
		*data = (*data)[1:]
		v = v<<7 | c&0x7F
	}
	return int32(v), nil
}

// DecodeVLQUint decodes one VLQ unsigned integer and advances data past it
func DecodeVLQUint(data *[]byte) (uint32, error) {
	v, err := DecodeVLQInt(data)
	return uint32(v), err
}

// DecodeVLQBool decodes a %c flag, any non-zero value is true
func DecodeVLQBool(data *[]byte) (bool, error) {
	v, err := DecodeVLQUint(data)
	return v != 0, err
}
