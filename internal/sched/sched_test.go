package sched

import (
	"testing"

	"github.com/corvid-systems/gba-core/internal/dma"
	"github.com/corvid-systems/gba-core/internal/ioreg"
	"github.com/corvid-systems/gba-core/internal/irq"
	"github.com/corvid-systems/gba-core/internal/timer"
	"github.com/corvid-systems/gba-core/internal/video"
)

type fakeMem struct{ data [0x20000]byte }

func (m *fakeMem) Read8(addr uint32) byte        { return m.data[addr&0x1FFFF] }
func (m *fakeMem) Write8(addr uint32, v byte)    { m.data[addr&0x1FFFF] = v }
func (m *fakeMem) Read16(addr uint32) uint16     { return uint16(m.data[addr&0x1FFFF]) }
func (m *fakeMem) Write16(addr uint32, v uint16) { m.data[addr&0x1FFFF] = byte(v) }
func (m *fakeMem) Read32(addr uint32) uint32     { return uint32(m.data[addr&0x1FFFF]) }
func (m *fakeMem) Write32(addr uint32, v uint32) { m.data[addr&0x1FFFF] = byte(v) }

type fakeCPU struct {
	steps     int
	halted    bool
	iFlagClr  bool
	irqEnters int
}

func (c *fakeCPU) Step() int        { c.steps++; return 1 }
func (c *fakeCPU) Halted() bool     { return c.halted }
func (c *fakeCPU) SetHalted(v bool) { c.halted = v }
func (c *fakeCPU) IFlagClear() bool { return c.iFlagClr }
func (c *fakeCPU) EnterIRQ()        { c.irqEnters++ }

func newCoordinator() (*Coordinator, *fakeCPU, *ioreg.Registers) {
	io := ioreg.New()
	irqc := irq.New(io)
	d := dma.New(io)
	tm := timer.New(io, irqc)
	v := video.New()
	cpu := &fakeCPU{}
	return New(cpu, d, tm, v, irqc, &fakeMem{}), cpu, io
}

func TestStepRunsCPUWhenNothingElsePending(t *testing.T) {
	c, cpu, _ := newCoordinator()
	c.Step()
	if cpu.steps != 1 {
		t.Fatalf("got %d cpu steps want 1", cpu.steps)
	}
}

func TestHaltedCPUStaysHaltedWhileSourceMasked(t *testing.T) {
	c, cpu, _ := newCoordinator()
	cpu.halted = true
	c.IRQ.Request(irq.Keypad) // IE still zero, so Pending() stays false
	c.Step()
	if !cpu.halted {
		t.Fatal("halted CPU should remain halted while IE masks the source")
	}
}

func TestHaltedCPUWakesOnUnmaskedIRQ(t *testing.T) {
	c, cpu, io := newCoordinator()
	cpu.halted = true
	io.Write16(0x200, 1<<irq.Keypad) // IE enables the source; IME stays 0
	c.IRQ.Request(irq.Keypad)
	c.Step()
	if cpu.halted {
		t.Fatal("pending unmasked source should wake HALT even with IME clear")
	}
}

func TestHaltedCPUDoesNotStepWhileWaiting(t *testing.T) {
	c, cpu, _ := newCoordinator()
	cpu.halted = true
	c.Step()
	if cpu.steps != 0 {
		t.Fatal("halted CPU should not execute an instruction")
	}
}

func TestImmediateDMAPreemptsCPUStep(t *testing.T) {
	c, cpu, io := newCoordinator()
	io.Write16(0xB8, 1)      // DMA0CNT_L
	io.Write16(0xBA, 0x8000) // DMA0CNT_H enable, immediate
	c.Step()
	if cpu.steps != 0 {
		t.Fatal("pending DMA should run before any CPU instruction")
	}
	c.Step()
	if cpu.steps != 1 {
		t.Fatal("CPU should resume once the transfer drained")
	}
}

func TestDisabledChannelIgnoresTrigger(t *testing.T) {
	c, cpu, _ := newCoordinator()
	c.DMA.NotifyVBlank() // channel not enabled, so still nothing pending
	c.Step()
	if cpu.steps != 1 {
		t.Fatal("no channel enabled: CPU should have stepped")
	}
}

func TestIRQExceptionEntryWhenUnmaskedAndIMESet(t *testing.T) {
	c, cpu, io := newCoordinator()
	cpu.iFlagClr = true
	io.Write16(0x200, 1<<irq.VBlank)
	io.Write32(0x208, 1) // IME
	c.IRQ.Request(irq.VBlank)
	c.Step()
	if cpu.irqEnters != 1 {
		t.Fatalf("got %d IRQ entries want 1", cpu.irqEnters)
	}
	if cpu.steps != 0 {
		t.Fatal("exception entry should replace the instruction step")
	}
}
