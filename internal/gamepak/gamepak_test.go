package gamepak

import "testing"

func TestRomReadAndOpenBus(t *testing.T) {
	rom := make([]byte, 0x1000)
	rom[0] = 0xAB
	gp := New(rom, nil)
	if got := gp.Read8(0x08000000); got != 0xAB {
		t.Fatalf("got %#x", got)
	}
	gp.OpenBus = func() uint32 { return 0xDEADBEEF }
	if got := gp.Read8(0x08000000 + 0x2000); got != 0xEF {
		t.Fatalf("got %#x want low byte of open-bus", got)
	}
}

func TestSaveBackendDispatch(t *testing.T) {
	rom := []byte("SRAM_V110")
	gp := New(rom, nil)
	gp.Write8(0x0E000010, 0x42)
	if got := gp.Read8(0x0E000010); got != 0x42 {
		t.Fatalf("got %#x", got)
	}
}

func TestEEPROMWindowSmallCart(t *testing.T) {
	rom := append([]byte("EEPROM_V110"), make([]byte, 0x1000)...)
	gp := New(rom, nil)
	if !gp.HasEEPROM() {
		t.Fatal("expected EEPROM detected")
	}
	if !gp.inEEPROMWindow(0x0D000000) {
		t.Fatal("expected small-cart window to include 0x0D000000")
	}
}

func TestEEPROMWindowLargeCart(t *testing.T) {
	rom := append([]byte("EEPROM_V110"), make([]byte, largeCartSize)...)
	gp := New(rom, nil)
	if gp.inEEPROMWindow(0x0D000000) {
		t.Fatal("large cart should not trigger on the wide window")
	}
	if !gp.inEEPROMWindow(0x0DFFFF00) {
		t.Fatal("large cart should trigger on the narrow window")
	}
}
