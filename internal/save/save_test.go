package save

import "testing"

func TestDetectDefaultsToSRAM(t *testing.T) {
	rom := make([]byte, 1024)
	kind, hasEEPROM := Detect(rom)
	if kind != KindSRAM || hasEEPROM {
		t.Fatalf("got kind=%v eeprom=%v, want SRAM/false", kind, hasEEPROM)
	}
}

func TestDetectFlash128K(t *testing.T) {
	rom := append([]byte("junk before"), []byte("FLASH1M_Vxx")...)
	kind, _ := Detect(rom)
	if kind != KindFlash128K {
		t.Fatalf("got %v want Flash128K", kind)
	}
}

func TestDetectEEPROMOrthogonal(t *testing.T) {
	rom := append([]byte("SRAM_V110"), []byte("EEPROM_Vxxx")...)
	kind, hasEEPROM := Detect(rom)
	if kind != KindSRAM || !hasEEPROM {
		t.Fatalf("got kind=%v eeprom=%v, want SRAM/true", kind, hasEEPROM)
	}
}

func TestDetectLastSRAMFlashWins(t *testing.T) {
	rom := append([]byte("SRAM_V110"), []byte("FLASH_Vxxx")...)
	kind, _ := Detect(rom)
	if kind != KindFlash64K {
		t.Fatalf("got %v want last match Flash64K", kind)
	}
}

func TestSRAM8BitRoundTrip(t *testing.T) {
	s := New(KindSRAM, nil)
	s.Write8(100, 0x42)
	if got := s.Read8(100); got != 0x42 {
		t.Fatalf("got %#x", got)
	}
}

func TestSRAMWideReadMirrors(t *testing.T) {
	s := New(KindSRAM, nil)
	s.Write8(0, 0x7A)
	if got := s.Read32(0); got != 0x7A7A7A7A {
		t.Fatalf("got %#x", got)
	}
}

func TestSRAMMarshalRoundTrip(t *testing.T) {
	s := New(KindSRAM, nil)
	s.Write8(10, 0x99)
	data := s.Marshal()
	s2 := New(KindSRAM, data)
	if got := s2.Read8(10); got != 0x99 {
		t.Fatalf("got %#x after reload", got)
	}
}
