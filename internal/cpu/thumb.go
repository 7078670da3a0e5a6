package cpu

import "github.com/corvid-systems/gba-core/internal/bitops"

// executeThumb decodes and runs a single THUMB-state halfword, the PC
// having already been advanced past it by stepThumb. THUMB has no condition
// field of its own (format 16 carries one inline); dispatch goes by the
// fixed-width prefixes the 19 encoding forms use, most specific first so
// the narrower forms (add/sub within the "000" shift group, the hi-register
// ops within the ALU group's sibling encoding) are tried before the form
// they'd otherwise collide with.
func (c *Core) executeThumb(word uint16) int {
	switch {
	case word&0xF800 == 0x1800:
		return c.thumbAddSub(word)
	case word&0xE000 == 0x0000:
		return c.thumbMoveShifted(word)
	case word&0xE000 == 0x2000:
		return c.thumbImmediate(word)
	case word&0xFC00 == 0x4000:
		return c.thumbALU(word)
	case word&0xFC00 == 0x4400:
		return c.thumbHiReg(word)
	case word&0xF800 == 0x4800:
		return c.thumbPCRelLoad(word)
	case word&0xF200 == 0x5000:
		return c.thumbLoadStoreReg(word)
	case word&0xF200 == 0x5200:
		return c.thumbLoadStoreSigned(word)
	case word&0xE000 == 0x6000:
		return c.thumbLoadStoreImm(word)
	case word&0xF000 == 0x8000:
		return c.thumbLoadStoreHalf(word)
	case word&0xF000 == 0x9000:
		return c.thumbSPRelative(word)
	case word&0xF000 == 0xA000:
		return c.thumbLoadAddress(word)
	case word&0xFF00 == 0xB000:
		return c.thumbAddOffsetSP(word)
	case word&0xF600 == 0xB400:
		return c.thumbPushPop(word)
	case word&0xF000 == 0xC000:
		return c.thumbMultipleTransfer(word)
	case word&0xFF00 == 0xDF00:
		return c.thumbSWI(word)
	case word&0xF000 == 0xD000:
		return c.thumbCondBranch(word)
	case word&0xF800 == 0xE000:
		return c.thumbBranch(word)
	case word&0xF000 == 0xF000:
		return c.thumbLongBranchLink(word)
	default:
		c.Enter(ExceptionUndefined, c.r[15])
		return 1
	}
}

// thumbPC4 is the address THUMB's own PC-relative reads see: the
// instruction's address plus 4 (§3). stepThumb has already advanced r[15]
// to address+2, so one more halfword gets there.
func (c *Core) thumbPC4() uint32 { return c.r[15] + 2 }

// thumbMoveShifted implements format 1: LSL/LSR/ASR Rd, Rs, #Offset5.
func (c *Core) thumbMoveShifted(word uint16) int {
	op := shiftKind((word >> 11) & 0x3)
	amount := uint32((word >> 6) & 0x1F)
	rs := int((word >> 3) & 0x7)
	rd := int(word & 0x7)
	result, carry := barrelShift(op, c.R(rs), amount, c.flagCarry(), true)
	c.SetR(rd, result)
	c.setNZ(result)
	c.setFlagBit(flagC, carry)
	return 1
}

// thumbAddSub implements format 2: ADD/SUB Rd, Rs, Rn or #Imm3.
func (c *Core) thumbAddSub(word uint16) int {
	imm := word&0x0400 != 0
	sub := word&0x0200 != 0
	field := uint32((word >> 6) & 0x7)
	rs := int((word >> 3) & 0x7)
	rd := int(word & 0x7)
	op1 := c.R(rs)
	op2 := field
	if !imm {
		op2 = c.R(int(field))
	}
	var result uint32
	if sub {
		result = op1 - op2
		c.setFlagBit(flagC, !bitops.BorrowedSub(op1, op2))
		c.setFlagBit(flagV, bitops.OverflowedSub(op1, op2, result))
	} else {
		result = op1 + op2
		c.setFlagBit(flagC, bitops.CarriedAdd(op1, op2))
		c.setFlagBit(flagV, bitops.OverflowedAdd(op1, op2, result))
	}
	c.setNZ(result)
	c.SetR(rd, result)
	return 1
}

// thumbImmediate implements format 3: MOV/CMP/ADD/SUB Rd, #Imm8.
func (c *Core) thumbImmediate(word uint16) int {
	op := (word >> 11) & 0x3
	rd := int((word >> 8) & 0x7)
	imm := uint32(word & 0xFF)
	op1 := c.R(rd)
	switch op {
	case 0: // MOV
		c.SetR(rd, imm)
		c.setNZ(imm)
	case 1: // CMP
		result := op1 - imm
		c.setNZ(result)
		c.setFlagBit(flagC, !bitops.BorrowedSub(op1, imm))
		c.setFlagBit(flagV, bitops.OverflowedSub(op1, imm, result))
	case 2: // ADD
		result := op1 + imm
		c.setNZ(result)
		c.setFlagBit(flagC, bitops.CarriedAdd(op1, imm))
		c.setFlagBit(flagV, bitops.OverflowedAdd(op1, imm, result))
		c.SetR(rd, result)
	default: // SUB
		result := op1 - imm
		c.setNZ(result)
		c.setFlagBit(flagC, !bitops.BorrowedSub(op1, imm))
		c.setFlagBit(flagV, bitops.OverflowedSub(op1, imm, result))
		c.SetR(rd, result)
	}
	return 1
}

// thumbALU implements format 4: the 16 two-register ALU ops, Rd,Rs.
func (c *Core) thumbALU(word uint16) int {
	op := (word >> 6) & 0xF
	rs := int((word >> 3) & 0x7)
	rd := int(word & 0x7)
	op1 := c.R(rd)
	op2 := c.R(rs)
	cycles := 1
	switch op {
	case 0x0: // AND
		result := op1 & op2
		c.SetR(rd, result)
		c.setNZ(result)
	case 0x1: // EOR
		result := op1 ^ op2
		c.SetR(rd, result)
		c.setNZ(result)
	case 0x2: // LSL
		result, carry := barrelShift(shiftLSL, op1, op2&0xFF, c.flagCarry(), false)
		c.SetR(rd, result)
		c.setNZ(result)
		c.setFlagBit(flagC, carry)
		cycles = 2
	case 0x3: // LSR
		result, carry := barrelShift(shiftLSR, op1, op2&0xFF, c.flagCarry(), false)
		c.SetR(rd, result)
		c.setNZ(result)
		c.setFlagBit(flagC, carry)
		cycles = 2
	case 0x4: // ASR
		result, carry := barrelShift(shiftASR, op1, op2&0xFF, c.flagCarry(), false)
		c.SetR(rd, result)
		c.setNZ(result)
		c.setFlagBit(flagC, carry)
		cycles = 2
	case 0x5: // ADC
		carryIn := c.flagCarry()
		result := op1 + op2 + b2u(carryIn)
		c.SetR(rd, result)
		c.setNZ(result)
		c.setFlagBit(flagC, bitops.CarriedAdc(op1, op2, carryIn))
		c.setFlagBit(flagV, bitops.OverflowedAdd(op1, op2, result))
	case 0x6: // SBC
		carryIn := c.flagCarry()
		result := op1 - op2 - b2u(!carryIn)
		c.SetR(rd, result)
		c.setNZ(result)
		c.setFlagBit(flagC, !bitops.BorrowedSbc(op1, op2, !carryIn))
		c.setFlagBit(flagV, bitops.OverflowedSub(op1, op2, result))
	case 0x7: // ROR
		result, carry := barrelShift(shiftROR, op1, op2&0xFF, c.flagCarry(), false)
		c.SetR(rd, result)
		c.setNZ(result)
		c.setFlagBit(flagC, carry)
		cycles = 2
	case 0x8: // TST
		c.setNZ(op1 & op2)
	case 0x9: // NEG
		result := uint32(0) - op2
		c.SetR(rd, result)
		c.setNZ(result)
		c.setFlagBit(flagC, !bitops.BorrowedSub(0, op2))
		c.setFlagBit(flagV, bitops.OverflowedSub(0, op2, result))
	case 0xA: // CMP
		result := op1 - op2
		c.setNZ(result)
		c.setFlagBit(flagC, !bitops.BorrowedSub(op1, op2))
		c.setFlagBit(flagV, bitops.OverflowedSub(op1, op2, result))
	case 0xB: // CMN
		result := op1 + op2
		c.setNZ(result)
		c.setFlagBit(flagC, bitops.CarriedAdd(op1, op2))
		c.setFlagBit(flagV, bitops.OverflowedAdd(op1, op2, result))
	case 0xC: // ORR
		result := op1 | op2
		c.SetR(rd, result)
		c.setNZ(result)
	case 0xD: // MUL
		result := op1 * op2
		c.SetR(rd, result) // C/V unpredictable on multiply, left unchanged (§4.4)
		c.setNZ(result)
		cycles = 4
	case 0xE: // BIC
		result := op1 &^ op2
		c.SetR(rd, result)
		c.setNZ(result)
	default: // MVN
		result := ^op2
		c.SetR(rd, result)
		c.setNZ(result)
	}
	return cycles
}

// thumbHiReg implements format 5: ADD/CMP/MOV over the full r0-r15 register
// file, plus BX. H1/H2 extend Rd/Rs past r7 into r8-r15.
func (c *Core) thumbHiReg(word uint16) int {
	op := (word >> 8) & 0x3
	h1 := word&0x80 != 0
	h2 := word&0x40 != 0
	rs := int((word >> 3) & 0x7)
	if h2 {
		rs += 8
	}
	rd := int(word & 0x7)
	if h1 {
		rd += 8
	}
	switch op {
	case 0: // ADD
		result := c.treg(rd) + c.treg(rs)
		c.SetR(rd, result)
		if rd == 15 {
			c.r[15] = result &^ 1
			return 3
		}
		return 1
	case 1: // CMP
		op1, op2 := c.treg(rd), c.treg(rs)
		result := op1 - op2
		c.setNZ(result)
		c.setFlagBit(flagC, !bitops.BorrowedSub(op1, op2))
		c.setFlagBit(flagV, bitops.OverflowedSub(op1, op2, result))
		return 1
	case 2: // MOV
		result := c.treg(rs)
		c.SetR(rd, result)
		if rd == 15 {
			c.r[15] = result &^ 1
			return 3
		}
		return 1
	default: // BX
		target := c.treg(rs)
		c.setThumb(target&1 != 0)
		c.r[15] = target &^ 1
		return 3
	}
}

// thumbPCRelLoad implements format 6: LDR Rd, [PC, #Imm8*4].
func (c *Core) thumbPCRelLoad(word uint16) int {
	rd := int((word >> 8) & 0x7)
	imm := uint32(word&0xFF) << 2
	base := c.thumbPC4() &^ 3
	c.SetR(rd, c.mem.Read32(base+imm))
	return 3
}

// thumbLoadStoreReg implements format 7: word/byte LDR/STR, [Rb, Ro].
func (c *Core) thumbLoadStoreReg(word uint16) int {
	load := word&0x0800 != 0
	byteAccess := word&0x0400 != 0
	ro := int((word >> 6) & 0x7)
	rb := int((word >> 3) & 0x7)
	rd := int(word & 0x7)
	addr := c.R(rb) + c.R(ro)
	switch {
	case load && byteAccess:
		c.SetR(rd, uint32(c.mem.Read8(addr)))
	case load && !byteAccess:
		c.SetR(rd, c.mem.Read32Unaligned(addr))
	case !load && byteAccess:
		c.mem.Write8(addr, byte(c.R(rd)))
	default:
		c.mem.Write32(addr&^3, c.R(rd))
	}
	return 2
}

// thumbLoadStoreSigned implements format 8: STRH/LDRH/LDSB/LDSH, [Rb, Ro].
func (c *Core) thumbLoadStoreSigned(word uint16) int {
	h := word&0x0800 != 0
	s := word&0x0400 != 0
	ro := int((word >> 6) & 0x7)
	rb := int((word >> 3) & 0x7)
	rd := int(word & 0x7)
	addr := c.R(rb) + c.R(ro)
	switch {
	case !s && !h: // STRH
		c.mem.Write16(addr, uint16(c.R(rd)))
	case !s && h: // LDRH
		v := c.mem.Read16(addr)
		if addr&1 != 0 {
			v = uint16(bitops.RotateRight(uint32(v), 8))
		}
		c.SetR(rd, uint32(v))
	case s && !h: // LDSB
		c.SetR(rd, uint32(bitops.SignExtend(uint32(c.mem.Read8(addr)), 7)))
	default: // LDSH; odd address degrades to a signed byte load (§4.4)
		if addr&1 != 0 {
			c.SetR(rd, uint32(bitops.SignExtend(uint32(c.mem.Read8(addr)), 7)))
		} else {
			c.SetR(rd, uint32(bitops.SignExtend(uint32(c.mem.Read16(addr)), 15)))
		}
	}
	return 2
}

// thumbLoadStoreImm implements format 9: word/byte LDR/STR, [Rb, #Offset5].
func (c *Core) thumbLoadStoreImm(word uint16) int {
	byteAccess := word&0x1000 != 0
	load := word&0x0800 != 0
	offset5 := uint32((word >> 6) & 0x1F)
	rb := int((word >> 3) & 0x7)
	rd := int(word & 0x7)
	base := c.R(rb)
	var addr uint32
	if byteAccess {
		addr = base + offset5
	} else {
		addr = base + offset5<<2
	}
	switch {
	case load && byteAccess:
		c.SetR(rd, uint32(c.mem.Read8(addr)))
	case load && !byteAccess:
		c.SetR(rd, c.mem.Read32Unaligned(addr))
	case !load && byteAccess:
		c.mem.Write8(addr, byte(c.R(rd)))
	default:
		c.mem.Write32(addr&^3, c.R(rd))
	}
	return 2
}

// thumbLoadStoreHalf implements format 10: LDRH/STRH, [Rb, #Offset5*2].
func (c *Core) thumbLoadStoreHalf(word uint16) int {
	load := word&0x0800 != 0
	offset := uint32((word>>6)&0x1F) << 1
	rb := int((word >> 3) & 0x7)
	rd := int(word & 0x7)
	addr := c.R(rb) + offset
	if load {
		v := c.mem.Read16(addr)
		if addr&1 != 0 {
			v = uint16(bitops.RotateRight(uint32(v), 8))
		}
		c.SetR(rd, uint32(v))
	} else {
		c.mem.Write16(addr, uint16(c.R(rd)))
	}
	return 2
}

// thumbSPRelative implements format 11: LDR/STR Rd, [SP, #Imm8*4].
func (c *Core) thumbSPRelative(word uint16) int {
	load := word&0x0800 != 0
	rd := int((word >> 8) & 0x7)
	offset := uint32(word&0xFF) << 2
	addr := c.R(13) + offset
	if load {
		c.SetR(rd, c.mem.Read32Unaligned(addr))
	} else {
		c.mem.Write32(addr&^3, c.R(rd))
	}
	return 2
}

// thumbLoadAddress implements format 12: ADD Rd, PC|SP, #Imm8*4.
func (c *Core) thumbLoadAddress(word uint16) int {
	fromSP := word&0x0800 != 0
	rd := int((word >> 8) & 0x7)
	offset := uint32(word&0xFF) << 2
	var base uint32
	if fromSP {
		base = c.R(13)
	} else {
		base = c.thumbPC4() &^ 3
	}
	c.SetR(rd, base+offset)
	return 1
}

// thumbAddOffsetSP implements format 13: ADD SP, #+/-Imm7*4.
func (c *Core) thumbAddOffsetSP(word uint16) int {
	negative := word&0x80 != 0
	offset := uint32(word&0x7F) << 2
	if negative {
		c.SetR(13, c.R(13)-offset)
	} else {
		c.SetR(13, c.R(13)+offset)
	}
	return 1
}

// thumbPushPop implements format 14: PUSH/POP {Rlist}, optionally including
// LR (push) or PC (pop) via the R bit. Full-descending-stack order: the
// lowest-numbered register lands at the lowest address, LR/PC at the top.
func (c *Core) thumbPushPop(word uint16) int {
	load := word&0x0800 != 0
	includeExtra := word&0x0100 != 0
	list := word & 0xFF
	regs := make([]int, 0, 8)
	for i := 0; i < 8; i++ {
		if list&(1<<uint(i)) != 0 {
			regs = append(regs, i)
		}
	}
	count := len(regs)
	if includeExtra {
		count++
	}
	if load {
		addr := c.R(13)
		for _, r := range regs {
			c.SetR(r, c.mem.Read32(addr))
			addr += 4
		}
		if includeExtra {
			c.r[15] = c.mem.Read32(addr) &^ 1
			addr += 4
		}
		c.SetR(13, addr)
	} else {
		newSP := c.R(13) - uint32(count)*4
		addr := newSP
		for _, r := range regs {
			c.mem.Write32(addr, c.R(r))
			addr += 4
		}
		if includeExtra {
			c.mem.Write32(addr, c.R(14))
		}
		c.SetR(13, newSP)
	}
	return 1 + count
}

// thumbMultipleTransfer implements format 15: STMIA/LDMIA Rb!, {Rlist}.
func (c *Core) thumbMultipleTransfer(word uint16) int {
	load := word&0x0800 != 0
	rb := int((word >> 8) & 0x7)
	list := word & 0xFF
	addr := c.R(rb)
	n := 0
	for i := 0; i < 8; i++ {
		if list&(1<<uint(i)) == 0 {
			continue
		}
		if load {
			c.SetR(i, c.mem.Read32(addr))
		} else {
			c.mem.Write32(addr, c.R(i))
		}
		addr += 4
		n++
	}
	c.SetR(rb, addr)
	return 1 + n
}

// thumbCondBranch implements format 16: B<cond> label.
func (c *Core) thumbCondBranch(word uint16) int {
	cond := uint32((word >> 8) & 0xF)
	if !c.evalCondition(cond) {
		return 1
	}
	offset := bitops.SignExtend(uint32(word&0xFF), 7) << 1
	c.r[15] = uint32(int32(c.thumbPC4()) + offset)
	return 3
}

// thumbSWI implements format 17.
func (c *Core) thumbSWI(word uint16) int {
	c.Enter(ExceptionSWI, c.r[15])
	return 3
}

// thumbBranch implements format 18: unconditional B label.
func (c *Core) thumbBranch(word uint16) int {
	offset := bitops.SignExtend(uint32(word&0x7FF), 10) << 1
	c.r[15] = uint32(int32(c.thumbPC4()) + offset)
	return 3
}

// thumbLongBranchLink implements format 19's two halves: the H bit (bit 11)
// selects the high-offset-into-LR half or the low-offset-and-jump half.
func (c *Core) thumbLongBranchLink(word uint16) int {
	if word&0x0800 == 0 {
		return c.thumbBLFirst(word)
	}
	return c.thumbBLSecond(word)
}

func (c *Core) thumbBLFirst(word uint16) int {
	offset := bitops.SignExtend(uint32(word&0x7FF), 10) << 12
	c.r[14] = uint32(int32(c.thumbPC4()) + offset)
	return 1
}

func (c *Core) thumbBLSecond(word uint16) int {
	offsetLow := uint32(word&0x7FF) << 1
	next := c.r[15] | 1
	target := c.r[14] + offsetLow
	c.r[14] = next
	c.r[15] = target
	return 3
}
