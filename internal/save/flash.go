package save

import "time"

const (
	flash64KSize  = 64 * 1024
	flash128KSize = 128 * 1024

	sectorSize = 4 * 1024

	eraseTimeout = 500 * time.Millisecond
	writeTimeout = 10 * time.Millisecond
)

// deviceID identifies the emulated Flash chip for the 0x90 ID-mode command.
type deviceID struct {
	manufacturer byte
	device       byte
}

var (
	idPanasonic64K = deviceID{manufacturer: 0x32, device: 0x1B}
	idSanyo128K    = deviceID{manufacturer: 0x62, device: 0x13}
)

type flashCmdState int

const (
	cmdIdle flashCmdState = iota
	cmdGotAA
	cmdGot55
)

// timedOp models a pending erase/byte-write. The write/erase effect is
// applied to data immediately (so functional reads are always correct);
// pending only tracks when the host's completion poll may stop seeing a
// "busy" signal, which here is simply 0xFF at the target address — true
// for a freshly erased cell, and for a byte write once the fill value
// itself happens to be 0xFF. Absent that, the timeout is what settles it,
// per §4.5 ("completes when the host reads 0xFF ... or enough time has
// elapsed").
type timedOp struct {
	active         bool
	deadline       time.Time
	addrLo, addrHi uint32
}

type flash struct {
	data []byte
	id   deviceID

	now func() time.Time

	state    flashCmdState
	idMode   bool
	eraseArm bool // saw 0x80 command, waiting for 0x10 (chip) or 0x30 (sector)
	writeArm bool // saw 0xA0 command, next byte write is the data
	bankArm  bool // saw 0xB0 command, next write (any address) selects the bank
	bank     int  // 0 or 1, 128K variant only

	pending timedOp
}

func newFlash(size int, id deviceID) *flash {
	f := &flash{data: make([]byte, size), id: id, now: time.Now}
	for i := range f.data {
		f.data[i] = 0xFF
	}
	return f
}

func (f *flash) isSaveBackend() {}

func (f *flash) bankBase() int { return f.bank * 0x10000 }

// settlePending clears the busy window once either condition in §4.5 is met.
func (f *flash) settlePending(addr uint32) {
	if !f.pending.active {
		return
	}
	if addr >= f.pending.addrLo && addr < f.pending.addrHi && f.readRaw(addr) == 0xFF {
		f.pending.active = false
		return
	}
	if !f.now().Before(f.pending.deadline) {
		f.pending.active = false
	}
}

func (f *flash) readRaw(addr uint32) byte {
	if int(addr) < len(f.data) {
		return f.data[addr]
	}
	return 0xFF
}

func (f *flash) Read8(addr uint32) byte {
	f.settlePending(addr)
	if f.idMode && (addr&0xFFFF) < 2 {
		if addr&0xFFFF == 0 {
			return f.id.manufacturer
		}
		return f.id.device
	}
	off := uint32(f.bankBase()) + (addr & 0xFFFF)
	return f.readRaw(off)
}

func (f *flash) Write8(addr uint32, v byte) {
	a := addr & 0xFFFF

	if f.writeArm {
		f.writeArm = false
		f.state = cmdIdle
		off := uint32(f.bankBase()) + a
		if int(off) < len(f.data) {
			f.data[off] = v
			f.pending = timedOp{active: true, deadline: f.now().Add(writeTimeout), addrLo: off, addrHi: off + 1}
		}
		return
	}

	if f.bankArm {
		f.bankArm = false
		f.state = cmdIdle
		f.bank = int(v & 1)
		return
	}

	switch f.state {
	case cmdIdle:
		if a == 0x5555 && v == 0xAA {
			f.state = cmdGotAA
		}
	case cmdGotAA:
		if a == 0x2AAA && v == 0x55 {
			f.state = cmdGot55
		} else {
			f.state = cmdIdle
		}
	case cmdGot55:
		f.state = cmdIdle
		if f.eraseArm && (v == 0x10 || v == 0x30) {
			f.applyErase(a, v)
			f.eraseArm = false
			return
		}
		f.eraseArm = false
		if a != 0x5555 {
			return
		}
		switch v {
		case 0x90:
			f.idMode = true
		case 0xF0:
			f.idMode = false
		case 0x80:
			f.eraseArm = true
		case 0xA0:
			f.writeArm = true
		case 0xB0:
			if len(f.data) > 0x10000 {
				f.bankArm = true
			}
		}
	}
}

func (f *flash) applyErase(sectorAddr uint32, cmd byte) {
	base := uint32(f.bankBase())
	end := base + uint32(len(f.data))
	if len(f.data) > 0x10000 {
		end = base + 0x10000
	}
	if cmd == 0x30 {
		sector := sectorAddr >> 12
		base += sector * sectorSize
		end = base + sectorSize
	}
	for a := base; a < end && int(a) < len(f.data); a++ {
		f.data[a] = 0xFF
	}
	f.pending = timedOp{active: true, deadline: f.now().Add(eraseTimeout), addrLo: base, addrHi: end}
}

func (f *flash) Read16(addr uint32) uint16     { return uint16(f.Read8(addr)) }
func (f *flash) Write16(addr uint32, v uint16) { f.Write8(addr, byte(v)) }
func (f *flash) Read32(addr uint32) uint32     { return uint32(f.Read8(addr)) }
func (f *flash) Write32(addr uint32, v uint32) { f.Write8(addr, byte(v)) }

func (f *flash) Marshal() []byte {
	out := make([]byte, len(f.data)+1)
	copy(out, f.data)
	out[len(f.data)] = byte(f.bank)
	return out
}

func (f *flash) Unmarshal(data []byte) {
	n := len(f.data)
	if len(data) < n {
		n = len(data)
	}
	copy(f.data, data[:n])
	if len(data) > len(f.data) {
		f.bank = int(data[len(f.data)])
	}
}
