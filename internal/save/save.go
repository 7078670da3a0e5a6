// Package save implements the GBA's cartridge-resident save memories: SRAM,
// Flash (Atmel/Panasonic/Sanyo command protocol) and EEPROM (serial
// bit-stream protocol). The variant in play is auto-detected by scanning
// the ROM image for its ASCII identifier string, the same "scan the header
// for a marker and dispatch to a concrete implementation" shape as the
// teacher's cart.NewCartridge dispatching on the ROM header's cart-type byte.
package save

import "strings"

// Backend is the closed sum of save-memory variants the GamePak can own.
// The unexported marker method keeps the set closed to this package, the
// same intent as a Rust-style tagged enum without opening a public
// interface hierarchy.
type Backend interface {
	Read8(addr uint32) byte
	Write8(addr uint32, v byte)
	Read16(addr uint32) uint16
	Write16(addr uint32, v uint16)
	Read32(addr uint32) uint32
	Write32(addr uint32, v uint32)

	// Marshal/Unmarshal round-trip the backend's raw bytes (Flash also keeps
	// its selected bank; EEPROM appends an address-width byte that Unmarshal
	// ignores), mirroring cart.Cartridge.SaveState/LoadState in the teacher.
	// Command-sequence state (Flash's ID/erase/write mode, EEPROM's bit
	// cursor) is not saved.
	Marshal() []byte
	Unmarshal(data []byte)

	isSaveBackend()
}

// Kind identifies a Backend's variant, used for logging and by GamePak to
// pick which backend's bytes SaveData returns.
type Kind int

const (
	KindSRAM Kind = iota
	KindFlash64K
	KindFlash128K
	KindEEPROM
)

func (k Kind) String() string {
	switch k {
	case KindSRAM:
		return "SRAM"
	case KindFlash64K:
		return "FLASH64K"
	case KindFlash128K:
		return "FLASH128K"
	case KindEEPROM:
		return "EEPROM"
	default:
		return "UNKNOWN"
	}
}

var signatures = []struct {
	marker string
	kind   Kind
}{
	{"FLASH1M_V", KindFlash128K},
	{"FLASH512_V", KindFlash64K},
	{"FLASH_V", KindFlash64K},
	{"SRAM_V", KindSRAM},
}

const eepromMarker = "EEPROM_V"

// Detect scans rom for the cartridge's save-memory signature strings.
// EEPROM is orthogonal to SRAM/Flash and may coexist with either; among
// SRAM/Flash matches the last one found in the scan order wins. Absent any
// signature, SRAM is the default (per §4.5).
func Detect(rom []byte) (kind Kind, hasEEPROM bool) {
	kind = KindSRAM
	text := string(rom)
	best := -1
	for _, sig := range signatures {
		if idx := strings.LastIndex(text, sig.marker); idx > best {
			best = idx
			kind = sig.kind
		}
	}
	hasEEPROM = strings.Contains(text, eepromMarker)
	return kind, hasEEPROM
}

// New constructs the concrete Backend for kind, sized per §4.5, optionally
// restoring persisted bytes via Unmarshal when data is non-empty. kind must
// not be KindEEPROM; EEPROM's address width depends on the cart-size
// convention from §4.6, so it is built with NewEEPROM instead.
func New(kind Kind, data []byte) Backend {
	var b Backend
	switch kind {
	case KindFlash64K:
		b = newFlash(flash64KSize, idPanasonic64K)
	case KindFlash128K:
		b = newFlash(flash128KSize, idSanyo128K)
	default:
		b = newSRAM()
	}
	if len(data) > 0 {
		b.Unmarshal(data)
	}
	return b
}

// LargeAddrBits and SmallAddrBits select the EEPROM address width for
// NewEEPROM, corresponding to the 8 KiB and 512 B variants of §4.5.
const (
	SmallAddrBits = eepromSmallAddrBits
	LargeAddrBits = eepromLargeAddrBits
)

// NewEEPROM constructs an EEPROM backend with the given address width,
// optionally restoring persisted bytes.
func NewEEPROM(addrBits int, data []byte) Backend {
	b := newEEPROMSized(addrBits)
	if len(data) > 0 {
		b.Unmarshal(data)
	}
	return b
}
