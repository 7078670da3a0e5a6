package ioreg

import "testing"

func TestPartialWordWritesPreserveBytes(t *testing.T) {
	r := New()
	r.Set8(0x14, 0x11)
	r.Set8(0x15, 0x22)
	r.Set8(0x16, 0x33)
	r.Set8(0x17, 0x44)
	want := uint32(0x44332211)
	if got := r.Get32(0x14); got != want {
		t.Fatalf("got %#x want %#x", got, want)
	}
}

func TestBytePreservationAcrossWord(t *testing.T) {
	r := New()
	r.Write32(0x00, 0x11223344)
	r.Write8(0x01, 0xAA)
	if got := r.Read32(0x00); got != 0x1122AA44 {
		t.Fatalf("got %#x want 0x1122AA44", got)
	}
}

func TestOnReadObserverMutatesValue(t *testing.T) {
	r := New()
	r.OnRead(0x04, func(aligned uint32, shift uint, mask uint32, value *uint32) {
		*value = 0xCAFEBABE
	})
	if got := r.Read32(0x04); got != 0xCAFEBABE {
		t.Fatalf("got %#x", got)
	}
}

func TestPreWriteCanVeto(t *testing.T) {
	r := New()
	r.Write32(0x08, 0x12345678)
	r.PreWrite(0x08, func(aligned uint32, shift uint, mask, intValue uint32) bool {
		return false
	})
	r.Write32(0x08, 0)
	if got := r.Read32(0x08); got != 0x12345678 {
		t.Fatalf("write should have been vetoed, got %#x", got)
	}
}

func TestPostWriteObservesOldAndNew(t *testing.T) {
	r := New()
	var gotOld, gotNew uint32
	r.PostWrite(0x0C, func(aligned uint32, shift uint, mask, oldValue, newValue uint32) {
		gotOld, gotNew = oldValue, newValue
	})
	r.Write16(0x0C, 0x1234)
	r.Write16(0x0C, 0x5678)
	if gotOld != 0x1234 || gotNew != 0x5678 {
		t.Fatalf("got old=%#x new=%#x", gotOld, gotNew)
	}
}

func TestHalfwordAccessesUpperLane(t *testing.T) {
	r := New()
	r.Write32(0x10, 0)
	r.Write16(0x12, 0xBEEF)
	if got := r.Read32(0x10); got != 0xBEEF0000 {
		t.Fatalf("got %#x want 0xBEEF0000", got)
	}
	if got := r.Read16(0x10); got != 0 {
		t.Fatalf("lower halfword disturbed: got %#x", got)
	}
}
