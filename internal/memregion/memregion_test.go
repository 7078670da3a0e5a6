package memregion

import "testing"

func TestRoundTrip32(t *testing.T) {
	r := New(256, false)
	for off := uint32(0); off < 252; off += 4 {
		want := uint32(0x11223344) + off
		r.Write32(off, want)
		if got := r.Read32(off); got != want {
			t.Fatalf("off %d: got %#x want %#x", off, got, want)
		}
	}
}

func TestRoundTrip16And8(t *testing.T) {
	r := New(16, false)
	r.Write16(4, 0xBEEF)
	if got := r.Read16(4); got != 0xBEEF {
		t.Fatalf("got %#x", got)
	}
	r.Write8(4, 0xAB)
	if got := r.Read8(4); got != 0xAB {
		t.Fatalf("got %#x", got)
	}
}

func TestReadOnlyDropsWrites(t *testing.T) {
	r := New(16, true)
	orig := r.Read32(0)
	r.Write32(0, 0xFFFFFFFF)
	if got := r.Read32(0); got != orig {
		t.Fatalf("write to read-only region was not dropped: got %#x", got)
	}
}

func TestUnalignedReadIsRotate(t *testing.T) {
	r := New(16, false)
	r.Write32(0, 0x12345678)
	for k := uint32(1); k < 4; k++ {
		word := r.Read32(0)
		want := (word >> (k * 8)) | (word << (32 - k*8))
		if got := r.Read32Rotated(k); got != want {
			t.Fatalf("k=%d: got %#x want %#x", k, got, want)
		}
	}
}
