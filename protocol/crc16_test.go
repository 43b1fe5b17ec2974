package protocol

import "testing"

func TestCRC16(t *testing.T) {
	cases := []struct {
		data []byte
		want uint16
	}{
		{[]byte{}, 0xFFFF},
		{[]byte("123456789"), 0x6F91},
		{[]byte{5, MessageDest}, 0x9E81},
	}
	for _, c := range cases {
		if got := CRC16(c.data); got != c.want {
			t.Errorf("CRC16(% x) = %#04x, want %#04x", c.data, got, c.want)
		}
	}
}

func TestCRC16Different(t *testing.T) {
	if CRC16([]byte{0x01, 0x02, 0x03}) == CRC16([]byte{0x01, 0x02, 0x04}) {
		t.Error("single bit change not detected")
	}
}
