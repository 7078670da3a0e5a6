package cpu

// shiftKind is the 2-bit shift-type field shared by data-processing operand
// 2 and load/store register-offset addressing.
type shiftKind uint32

const (
	shiftLSL shiftKind = 0
	shiftLSR shiftKind = 1
	shiftASR shiftKind = 2
	shiftROR shiftKind = 3
)

// barrelShift applies the given shift to value by amount, returning the
// result and the carry-out the flag-setting data-processing ops fold into C.
// amount==0 with kind==ROR is RRX (rotate-right-through-carry by one).
// Register-specified shifts pass amount up to 255; immediate shifts pass
// 0..31, with the LSR/ASR #0 == #32 encodings resolved by the caller
// (§4.4's barrel shifter edge cases).
func barrelShift(kind shiftKind, value uint32, amount uint32, carryIn bool, immediate bool) (result uint32, carryOut bool) {
	switch kind {
	case shiftLSL:
		return shiftLSLOp(value, amount, carryIn)
	case shiftLSR:
		return shiftLSROp(value, amount, carryIn, immediate)
	case shiftASR:
		return shiftASROp(value, amount, carryIn, immediate)
	default:
		if amount == 0 && immediate {
			return rrx(value, carryIn)
		}
		return shiftROROp(value, amount, carryIn)
	}
}

func shiftLSLOp(value, amount uint32, carryIn bool) (uint32, bool) {
	switch {
	case amount == 0:
		return value, carryIn
	case amount < 32:
		return value << amount, (value>>(32-amount))&1 != 0
	case amount == 32:
		return 0, value&1 != 0
	default:
		return 0, false
	}
}

func shiftLSROp(value, amount uint32, carryIn bool, immediate bool) (uint32, bool) {
	if amount == 0 {
		if immediate {
			amount = 32
		} else {
			return value, carryIn
		}
	}
	switch {
	case amount < 32:
		return value >> amount, (value>>(amount-1))&1 != 0
	case amount == 32:
		return 0, value&0x80000000 != 0
	default:
		return 0, false
	}
}

func shiftASROp(value, amount uint32, carryIn bool, immediate bool) (uint32, bool) {
	sval := int32(value)
	if amount == 0 {
		if immediate {
			amount = 32
		} else {
			return value, carryIn
		}
	}
	if amount >= 32 {
		if sval < 0 {
			return 0xFFFFFFFF, true
		}
		return 0, false
	}
	return uint32(sval >> amount), (value>>(amount-1))&1 != 0
}

func shiftROROp(value, amount uint32, carryIn bool) (uint32, bool) {
	if amount == 0 {
		return value, carryIn
	}
	amount &= 31
	if amount == 0 {
		return value, value&0x80000000 != 0
	}
	result := (value >> amount) | (value << (32 - amount))
	return result, result&0x80000000 != 0
}

// rrx rotates value right by one bit, shifting carryIn into bit 31.
func rrx(value uint32, carryIn bool) (uint32, bool) {
	carryOut := value&1 != 0
	result := value >> 1
	if carryIn {
		result |= 0x80000000
	}
	return result, carryOut
}
