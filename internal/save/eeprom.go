package save

const (
	eepromSmallRows     = 512 / 8  // 512 B -> 64 rows, 6-bit address
	eepromLargeRows     = 8192 / 8 // 8 KiB -> 1024 rows, 14-bit address
	eepromSmallAddrBits = 6
	eepromLargeAddrBits = 14
)

type eepromPhase int

const (
	phaseCommand eepromPhase = iota
	phaseAddress
	phaseWriteData
	phaseWriteTerm
	phaseReadDummy
	phaseReadData
)

// eeprom implements the serial command/address/data bit-stream protocol
// over 16-bit accesses; only bit 0 of each access carries information
// (§4.5). Row width is always 8 bytes (64 bits). Address width (6 vs 14
// bits) is fixed per instance at construction time: on real hardware it
// tracks the cart's small/large addressing convention described in §4.6,
// so GamePak.New derives it from the same ROM-size threshold that picks
// the EEPROM trigger window, rather than from bit-stream sniffing (the
// protocol itself carries no self-describing length).
type eeprom struct {
	rows     [][8]byte
	addrBits int

	phase    eepromPhase
	cmdBits  int
	isWrite  bool
	addrSeen int
	addr     uint32
	writeBuf uint64
	readBuf  uint64
	readPos  int // counts the 4 dummy + 64 data bits of a read, 0..67
}

// newEEPROMSized constructs an EEPROM with an explicit address width
// (eepromSmallAddrBits or eepromLargeAddrBits).
func newEEPROMSized(addrBits int) *eeprom {
	rows := eepromSmallRows
	if addrBits == eepromLargeAddrBits {
		rows = eepromLargeRows
	}
	return &eeprom{rows: make([][8]byte, rows), addrBits: addrBits}
}

func (e *eeprom) isSaveBackend() {}

func (e *eeprom) Read8(addr uint32) byte        { return byte(e.Read16(addr)) }
func (e *eeprom) Write8(addr uint32, v byte)    { e.Write16(addr, uint16(v)) }
func (e *eeprom) Read32(addr uint32) uint32     { return uint32(e.Read16(addr)) }
func (e *eeprom) Write32(addr uint32, v uint32) { e.Write16(addr, uint16(v)) }

func (e *eeprom) rowForAddr() *[8]byte {
	return &e.rows[int(e.addr)%len(e.rows)]
}

func (e *eeprom) Write16(addr uint32, v uint16) {
	bit := v & 1

	switch e.phase {
	case phaseCommand:
		// Two leading '1' bits, then a read(1)/write(0) selector.
		if e.cmdBits < 2 {
			if bit != 1 {
				e.cmdBits = 0
				return
			}
			e.cmdBits++
			return
		}
		e.isWrite = bit == 0
		e.cmdBits = 0
		e.addr = 0
		e.addrSeen = 0
		e.phase = phaseAddress

	case phaseAddress:
		e.addr = (e.addr << 1) | uint32(bit)
		e.addrSeen++
		if e.addrSeen == e.addrBits {
			if e.isWrite {
				e.phase = phaseWriteData
				e.writeBuf = 0
			} else {
				e.phase = phaseReadDummy
				e.readPos = 0
				e.loadReadBuf()
			}
		}

	case phaseWriteData:
		e.writeBuf = (e.writeBuf << 1) | uint64(bit)
		e.addrSeen++
		if e.addrSeen == e.addrBits+64 {
			row := e.rowForAddr()
			w := e.writeBuf
			for i := 7; i >= 0; i-- {
				row[i] = byte(w)
				w >>= 8
			}
			e.phase = phaseWriteTerm
		}

	case phaseWriteTerm:
		// Terminator bit; its value is conventionally 0 but hardware
		// doesn't actually check it. Writing completes the command.
		e.phase = phaseCommand
		e.cmdBits = 0
	}
}

func (e *eeprom) loadReadBuf() {
	row := e.rowForAddr()
	var v uint64
	for i := 0; i < 8; i++ {
		v = (v << 8) | uint64(row[i])
	}
	e.readBuf = v
}

// Read16 drives the read side of the protocol: 4 leading zero bits
// followed by the 64 data bits, MSB first (§4.5).
func (e *eeprom) Read16(addr uint32) uint16 {
	if e.phase != phaseReadDummy && e.phase != phaseReadData {
		return 1
	}
	if e.readPos < 4 {
		e.readPos++
		if e.readPos == 4 {
			e.phase = phaseReadData
		}
		return 0
	}
	shift := 63 - (e.readPos - 4)
	bit := (e.readBuf >> uint(shift)) & 1
	e.readPos++
	if e.readPos == 68 {
		e.phase = phaseCommand
		e.cmdBits = 0
	}
	return uint16(bit)
}

func (e *eeprom) Marshal() []byte {
	out := make([]byte, 0, len(e.rows)*8+1)
	for _, row := range e.rows {
		out = append(out, row[:]...)
	}
	ab := byte(0)
	if e.addrBits == eepromLargeAddrBits {
		ab = 1
	}
	return append(out, ab)
}

func (e *eeprom) Unmarshal(data []byte) {
	n := len(e.rows) * 8
	if len(data) < n {
		n = len(data) - len(data)%8
	}
	for i := 0; i*8+8 <= n; i++ {
		copy(e.rows[i][:], data[i*8:i*8+8])
	}
}
