package dma

import (
	"testing"

	"github.com/corvid-systems/gba-core/internal/ioreg"
)

// flatMem is a byte-addressable test double implementing Memory directly
// over a flat buffer, sidestepping bus/region dispatch so DMA's copy loop
// is tested in isolation.
type flatMem struct{ data [0x10000]byte }

func (m *flatMem) Read8(addr uint32) byte     { return m.data[addr&0xFFFF] }
func (m *flatMem) Write8(addr uint32, v byte) { m.data[addr&0xFFFF] = v }
func (m *flatMem) Read16(addr uint32) uint16 {
	a := addr & 0xFFFF
	return uint16(m.data[a]) | uint16(m.data[a+1])<<8
}
func (m *flatMem) Write16(addr uint32, v uint16) {
	a := addr & 0xFFFF
	m.data[a] = byte(v)
	m.data[a+1] = byte(v >> 8)
}
func (m *flatMem) Read32(addr uint32) uint32 {
	a := addr & 0xFFFF
	return uint32(m.data[a]) | uint32(m.data[a+1])<<8 | uint32(m.data[a+2])<<16 | uint32(m.data[a+3])<<24
}
func (m *flatMem) Write32(addr uint32, v uint32) {
	a := addr & 0xFFFF
	m.data[a] = byte(v)
	m.data[a+1] = byte(v >> 8)
	m.data[a+2] = byte(v >> 16)
	m.data[a+3] = byte(v >> 24)
}

// TestImmediateDMAWordCopy implements the literal §8 scenario: DMA0 copies
// 4 words immediate/word/no-repeat/no-IRQ, then clears its own enable bit.
func TestImmediateDMAWordCopy(t *testing.T) {
	io := ioreg.New()
	d := New(io)
	mem := &flatMem{}
	for i := uint32(0); i < 4; i++ {
		mem.Write32(0x3000+i*4, 0xAAAA0000+i)
	}
	io.Write32(chanBase(0), 0x00003000)   // DMA0SAD
	io.Write32(chanBase(0)+4, 0x00007000) // DMA0DAD
	io.Write16(chanBase(0)+8, 4)          // DMA0CNT_L
	io.Write16(chanBase(0)+10, ctrlEnable|ctrlWordSize)

	if !d.Pending() {
		t.Fatal("expected channel pending after immediate-timed enable")
	}
	d.RunPending(mem)

	for i := uint32(0); i < 4; i++ {
		got := mem.Read32(0x7000 + i*4)
		want := mem.Read32(0x3000 + i*4)
		if got != want {
			t.Fatalf("word %d: got %#x want %#x", i, got, want)
		}
	}
	cntH := io.Read16(chanBase(0) + 10)
	if cntH&ctrlEnable != 0 {
		t.Fatal("expected enable bit cleared after non-repeating transfer")
	}
}

func TestPriorityOrderRunsChannel0First(t *testing.T) {
	io := ioreg.New()
	d := New(io)
	mem := &flatMem{}
	order := []int{}
	d.OnComplete = func(ch int) { order = append(order, ch) }

	io.Write32(chanBase(1)+4, 0x8000)
	io.Write16(chanBase(1)+8, 1)
	io.Write16(chanBase(1)+10, ctrlEnable|ctrlIRQ)

	io.Write32(chanBase(0)+4, 0x9000)
	io.Write16(chanBase(0)+8, 1)
	io.Write16(chanBase(0)+10, ctrlEnable|ctrlIRQ)

	d.RunPending(mem)
	if len(order) != 2 || order[0] != 0 || order[1] != 1 {
		t.Fatalf("got order %v want [0 1]", order)
	}
}

func TestRepeatKeepsEnabledAndReloadsCount(t *testing.T) {
	io := ioreg.New()
	d := New(io)
	mem := &flatMem{}
	io.Write32(chanBase(2), 0x1000)
	io.Write32(chanBase(2)+4, 0x2000)
	io.Write16(chanBase(2)+8, 2)
	io.Write16(chanBase(2)+10, ctrlEnable|ctrlRepeat|uint16(TimingHBlank)<<ctrlTimingShift)

	d.NotifyHBlank()
	d.RunPending(mem)
	if cntH := io.Read16(chanBase(2) + 10); cntH&ctrlEnable == 0 {
		t.Fatal("repeat transfer should leave enable bit set")
	}
	if d.Pending() {
		t.Fatal("should not still be pending after it ran")
	}
	d.NotifyHBlank()
	if !d.Pending() {
		t.Fatal("expected repeat channel to become pending again on the next H-blank")
	}
}

// TestSoundFIFOSpecialTiming pins §4.8's channel-1/2 overrides: word count
// forced to 4, size forced to word, destination fixed.
func TestSoundFIFOSpecialTiming(t *testing.T) {
	io := ioreg.New()
	d := New(io)
	mem := &flatMem{}
	for i := uint32(0); i < 4; i++ {
		mem.Write32(0x400+i*4, 0x1000+i)
	}
	io.Write32(chanBase(1), 0x400)
	io.Write32(chanBase(1)+4, 0x600)
	io.Write16(chanBase(1)+8, 0xFF) // programmed count is ignored in FIFO mode
	io.Write16(chanBase(1)+10, ctrlEnable|ctrlRepeat|uint16(TimingSpecial)<<ctrlTimingShift)

	d.NotifySpecial(1)
	d.RunPending(mem)

	if got := mem.Read32(0x600); got != 0x1003 {
		t.Fatalf("fixed dest should hold the last of 4 words: got %#x want 0x1003", got)
	}
	if got := mem.Read32(0x604); got != 0 {
		t.Fatalf("dest must not advance in FIFO mode: got %#x", got)
	}
}

func TestFixedSourceDoesNotAdvance(t *testing.T) {
	io := ioreg.New()
	d := New(io)
	mem := &flatMem{}
	mem.Write16(0x100, 0x55AA)
	io.Write32(chanBase(1), 0x100)
	io.Write32(chanBase(1)+4, 0x200)
	io.Write16(chanBase(1)+8, 3)
	io.Write16(chanBase(1)+10, ctrlEnable|(uint16(ctlFixed)<<7))
	d.RunPending(mem)
	for i := uint32(0); i < 3; i++ {
		if got := mem.Read16(0x200 + i*2); got != 0x55AA {
			t.Fatalf("word %d: got %#x want 0x55AA (fixed source repeated)", i, got)
		}
	}
}
