package cpu

import (
	"testing"

	"github.com/corvid-systems/gba-core/internal/bitops"
)

// fakeMem is a flat little-endian byte array big enough for test programs
// and scratch loads/stores, the same shape as sched's fakeMem.
type fakeMem struct {
	data [0x10000]byte
}

func (m *fakeMem) Read8(addr uint32) byte { return m.data[addr&0xFFFF] }
func (m *fakeMem) Write8(addr uint32, v byte) { m.data[addr&0xFFFF] = v }

func (m *fakeMem) Read16(addr uint32) uint16 {
	a := addr & 0xFFFF
	return uint16(m.data[a]) | uint16(m.data[(a+1)&0xFFFF])<<8
}

func (m *fakeMem) Write16(addr uint32, v uint16) {
	a := addr & 0xFFFF
	m.data[a] = byte(v)
	m.data[(a+1)&0xFFFF] = byte(v >> 8)
}

func (m *fakeMem) Read32(addr uint32) uint32 {
	a := addr & 0xFFFF
	return uint32(m.data[a]) | uint32(m.data[(a+1)&0xFFFF])<<8 |
		uint32(m.data[(a+2)&0xFFFF])<<16 | uint32(m.data[(a+3)&0xFFFF])<<24
}

func (m *fakeMem) Write32(addr uint32, v uint32) {
	a := addr & 0xFFFF
	m.data[a] = byte(v)
	m.data[(a+1)&0xFFFF] = byte(v >> 8)
	m.data[(a+2)&0xFFFF] = byte(v >> 16)
	m.data[(a+3)&0xFFFF] = byte(v >> 24)
}

func (m *fakeMem) Read32Unaligned(addr uint32) uint32 {
	aligned := m.Read32(addr &^ 3)
	return bitops.RotateRight(aligned, uint(addr&3)*8)
}

func newCore() (*Core, *fakeMem) {
	mem := &fakeMem{}
	return New(mem), mem
}

func TestResetState(t *testing.T) {
	c, _ := newCore()
	if c.Mode() != ModeSupervisor {
		t.Fatalf("got mode %#x want SUPERVISOR", c.Mode())
	}
	if c.Thumb() {
		t.Fatal("should reset into ARM state")
	}
	if c.R(15) != 0 {
		t.Fatalf("got PC %#x want 0", c.R(15))
	}
	if c.IFlagClear() {
		t.Fatal("IRQ should be masked on reset")
	}
}

// TestArmBForward exercises a zero-offset B at 0x08000000: the documented
// PC+8 pipeline offset alone (no encoded displacement) lands at addr+8.
func TestArmBForward(t *testing.T) {
	c, mem := newCore()
	c.r[15] = 0x08000000
	mem.Write32(0x08000000, 0xEA000000)
	c.Step()
	if c.R(15) != 0x08000008 {
		t.Fatalf("got PC %#x want 0x08000008", c.R(15))
	}
}

func TestThumbBLPair(t *testing.T) {
	c, mem := newCore()
	c.setThumb(true)
	c.cpsr = (c.cpsr &^ 0x1F) | uint32(ModeUser)
	c.r[15] = 0x08000000
	mem.Write16(0x08000000, 0xF000)
	mem.Write16(0x08000002, 0xF801)

	c.Step()
	c.Step()

	if c.R(14) != 0x08000005 {
		t.Fatalf("got LR %#x want 0x08000005", c.R(14))
	}
	if c.R(15) != 0x08000006 {
		t.Fatalf("got PC %#x want 0x08000006", c.R(15))
	}
}

// TestArmMovFromPCReadsPlus8 pins the pipeline offset §3 documents: MOV R0,
// PC sees the address of the next-next instruction.
func TestArmMovFromPCReadsPlus8(t *testing.T) {
	c, mem := newCore()
	c.r[15] = 0x08000000
	mem.Write32(0x08000000, 0xE1A0000F) // MOV R0, PC
	c.Step()
	if c.R(0) != 0x08000008 {
		t.Fatalf("got r0=%#x want 0x08000008", c.R(0))
	}
}

// TestArmADCUsesCarryIn pins the carry-in edge case: with C set,
// 0xFFFFFFFF + 0 + carry wraps to zero and must carry out.
func TestArmADCUsesCarryIn(t *testing.T) {
	c, mem := newCore()
	c.r[15] = 0x08000000
	c.setFlagBit(flagC, true)
	c.SetR(1, 0xFFFFFFFF)
	c.SetR(2, 0)
	mem.Write32(0x08000000, 0xE0B10002) // ADCS R0, R1, R2
	c.Step()
	if c.R(0) != 0 {
		t.Fatalf("got r0=%#x want 0", c.R(0))
	}
	if !c.flag(flagC) {
		t.Fatal("carry-in alone should produce a carry-out")
	}
	if !c.flag(flagZ) {
		t.Fatal("Z should be set on a zero result")
	}
}

func TestBankedRegistersSurviveFIQRoundTrip(t *testing.T) {
	c, _ := newCore()
	c.SetCPSR((c.CPSR() &^ 0x1F) | uint32(ModeUser))
	for i := 0; i < 13; i++ {
		c.SetR(i, uint32(i+1)*0x11111111)
	}
	want := c.r

	c.SetCPSR((c.CPSR() &^ 0x1F) | uint32(ModeFIQ))
	for i := 8; i < 13; i++ {
		c.SetR(i, 0xDEADBEEF)
	}
	c.SetCPSR((c.CPSR() &^ 0x1F) | uint32(ModeUser))

	for i := 0; i < 13; i++ {
		if c.R(i) != want[i] {
			t.Fatalf("r%d = %#x after FIQ round trip, want %#x", i, c.R(i), want[i])
		}
	}
}

// TestBlockTransferUserBank pins STM with the S bit: the USER bank's
// registers go to memory even from a privileged mode.
func TestBlockTransferUserBank(t *testing.T) {
	c, mem := newCore()
	c.SetCPSR((c.CPSR() &^ 0x1F) | uint32(ModeUser))
	c.SetR(13, 0x1111)
	c.SetCPSR((c.CPSR() &^ 0x1F) | uint32(ModeIRQ))
	c.SetR(13, 0x2222)
	c.SetR(0, 0x4000)

	c.executeARM(0xE8C02000) // STMIA R0, {R13}^

	if got := mem.Read32(0x4000); got != 0x1111 {
		t.Fatalf("got %#x want the USER bank SP 0x1111", got)
	}
}

func TestConditionCodeTable(t *testing.T) {
	type flags struct{ n, z, cf, v bool }
	cases := []struct {
		cond uint32
		f    flags
		want bool
	}{
		{0x0, flags{z: true}, true},
		{0x0, flags{z: false}, false},
		{0x1, flags{z: false}, true},
		{0x2, flags{cf: true}, true},
		{0x3, flags{cf: false}, true},
		{0x4, flags{n: true}, true},
		{0x5, flags{n: false}, true},
		{0x6, flags{v: true}, true},
		{0x7, flags{v: false}, true},
		{0x8, flags{cf: true, z: false}, true},
		{0x8, flags{cf: true, z: true}, false},
		{0x9, flags{cf: false}, true},
		{0x9, flags{z: true}, true},
		{0xA, flags{n: true, v: true}, true},
		{0xA, flags{n: true, v: false}, false},
		{0xB, flags{n: true, v: false}, true},
		{0xC, flags{z: false, n: true, v: true}, true},
		{0xC, flags{z: true, n: true, v: true}, false},
		{0xD, flags{z: true}, true},
		{0xE, flags{}, true},
		{0xF, flags{}, false},
	}
	c, _ := newCore()
	for _, tc := range cases {
		c.cpsr = 0
		c.setFlagBit(flagN, tc.f.n)
		c.setFlagBit(flagZ, tc.f.z)
		c.setFlagBit(flagC, tc.f.cf)
		c.setFlagBit(flagV, tc.f.v)
		if got := c.evalCondition(tc.cond); got != tc.want {
			t.Fatalf("cond %#x with %+v: got %v want %v", tc.cond, tc.f, got, tc.want)
		}
	}
}

// TestArmSWISetsLRToNextInstruction exercises §4.4's exception-return
// contract: LR_svc must hold the address of the instruction after the SWI,
// so a plain MOVS PC, LR resumes past it instead of re-trapping forever.
func TestArmSWISetsLRToNextInstruction(t *testing.T) {
	c, mem := newCore()
	c.cpsr = (c.cpsr &^ 0x1F) | uint32(ModeUser)
	c.r[15] = 0x08000000
	mem.Write32(0x08000000, 0xEF000000) // SWI 0

	c.Step()

	if c.Mode() != ModeSupervisor {
		t.Fatalf("got mode %#x want SUPERVISOR", c.Mode())
	}
	if c.R(14) != 0x08000004 {
		t.Fatalf("got LR %#x want 0x08000004", c.R(14))
	}
	if c.R(15) != 0x08 {
		t.Fatalf("got PC %#x want SWI vector 0x08", c.R(15))
	}
}

// TestArmUndefinedSetsLRToNextInstruction mirrors the SWI case for an
// undecodable ARM word.
func TestArmUndefinedSetsLRToNextInstruction(t *testing.T) {
	c, mem := newCore()
	c.cpsr = (c.cpsr &^ 0x1F) | uint32(ModeUser)
	c.r[15] = 0x08000000
	mem.Write32(0x08000000, 0xEE000010) // coprocessor-space encoding, no coprocessor handler

	c.Step()

	if c.Mode() != ModeUndefined {
		t.Fatalf("got mode %#x want UNDEFINED", c.Mode())
	}
	if c.R(14) != 0x08000004 {
		t.Fatalf("got LR %#x want 0x08000004", c.R(14))
	}
	if c.R(15) != 0x04 {
		t.Fatalf("got PC %#x want UNDEFINED vector 0x04", c.R(15))
	}
}

func TestEnterIRQSetsLRAndVector(t *testing.T) {
	c, _ := newCore()
	c.cpsr = (c.cpsr &^ 0x1F) | uint32(ModeUser)
	c.setFlagBit(flagI, false)
	c.r[15] = 0x08000100

	c.EnterIRQ()

	if c.Mode() != ModeIRQ {
		t.Fatalf("got mode %#x want IRQ", c.Mode())
	}
	if c.R(14) != 0x08000104 {
		t.Fatalf("got LR %#x want 0x08000104", c.R(14))
	}
	if c.R(15) != 0x18 {
		t.Fatalf("got PC %#x want IRQ vector 0x18", c.R(15))
	}
	if !c.flag(flagI) {
		t.Fatal("I should be set after IRQ entry")
	}
}
