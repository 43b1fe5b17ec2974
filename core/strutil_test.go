package core

import "testing"

func TestUtoa(t *testing.T) {
	cases := map[uint32]string{
		0:          "0",
		7:          "7",
		10:         "10",
		80000:      "80000",
		4294967295: "4294967295",
	}
	for in, want := range cases {
		if got := utoa(in); got != want {
			t.Errorf("utoa(%d) = %q, want %q", in, got, want)
		}
	}
}
