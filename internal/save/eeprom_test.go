package save

import "testing"

func shiftBits(e Backend, bits []int) {
	for _, b := range bits {
		e.Write16(0, uint16(b))
	}
}

func bitsOf(v uint64, n int) []int {
	out := make([]int, n)
	for i := 0; i < n; i++ {
		out[i] = int((v >> uint(n-1-i)) & 1)
	}
	return out
}

func TestEEPROMWriteThenReadRoundTrip(t *testing.T) {
	e := NewEEPROM(SmallAddrBits, nil)

	var cmd []int
	cmd = append(cmd, 1, 1, 0)               // leading 11, write selector
	cmd = append(cmd, bitsOf(0x00, 6)...)    // 6-bit address 0
	cmd = append(cmd, bitsOf(0xCAFEBABEDEADBEEF, 64)...)
	cmd = append(cmd, 0) // terminator
	shiftBits(e, cmd)

	var readCmd []int
	readCmd = append(readCmd, 1, 1, 1)
	readCmd = append(readCmd, bitsOf(0x00, 6)...)
	shiftBits(e, readCmd)

	for i := 0; i < 4; i++ {
		if bit := e.Read16(0); bit != 0 {
			t.Fatalf("dummy bit %d: got %d want 0", i, bit)
		}
	}
	var got uint64
	for i := 0; i < 64; i++ {
		got = (got << 1) | uint64(e.Read16(0))
	}
	want := uint64(0xCAFEBABEDEADBEEF)
	if got != want {
		t.Fatalf("got %#x want %#x", got, want)
	}
}

func TestEEPROMLargeAddressing(t *testing.T) {
	e := NewEEPROM(LargeAddrBits, nil)
	var cmd []int
	cmd = append(cmd, 1, 1, 0)
	cmd = append(cmd, bitsOf(0x2A, 14)...)
	cmd = append(cmd, bitsOf(0x1122334455667788, 64)...)
	cmd = append(cmd, 0)
	shiftBits(e, cmd)

	var readCmd []int
	readCmd = append(readCmd, 1, 1, 1)
	readCmd = append(readCmd, bitsOf(0x2A, 14)...)
	shiftBits(e, readCmd)

	for i := 0; i < 4; i++ {
		e.Read16(0)
	}
	var got uint64
	for i := 0; i < 64; i++ {
		got = (got << 1) | uint64(e.Read16(0))
	}
	if want := uint64(0x1122334455667788); got != want {
		t.Fatalf("got %#x want %#x", got, want)
	}
}

func TestEEPROMMarshalRoundTrip(t *testing.T) {
	e := NewEEPROM(SmallAddrBits, nil)
	var cmd []int
	cmd = append(cmd, 1, 1, 0)
	cmd = append(cmd, bitsOf(0x01, 6)...)
	cmd = append(cmd, bitsOf(0xAABBCCDD11223344, 64)...)
	cmd = append(cmd, 0)
	shiftBits(e, cmd)

	data := e.Marshal()
	e2 := NewEEPROM(SmallAddrBits, data)

	var readCmd []int
	readCmd = append(readCmd, 1, 1, 1)
	readCmd = append(readCmd, bitsOf(0x01, 6)...)
	shiftBits(e2, readCmd)
	for i := 0; i < 4; i++ {
		e2.Read16(0)
	}
	var got uint64
	for i := 0; i < 64; i++ {
		got = (got << 1) | uint64(e2.Read16(0))
	}
	if want := uint64(0xAABBCCDD11223344); got != want {
		t.Fatalf("got %#x want %#x after reload", got, want)
	}
}
