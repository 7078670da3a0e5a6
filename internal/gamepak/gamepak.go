// Package gamepak implements the cartridge address-space dispatcher
// described in §4.6: ROM, the EEPROM trigger window, and the SRAM/Flash
// save backend, all behind one GamePak that supplies open-bus bytes for
// anything else. Construction is grounded on the teacher's
// cart.NewCartridge (scan a signature, pick a concrete backend).
package gamepak

import (
	"context"
	"errors"
	"fmt"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/corvid-systems/gba-core/internal/save"
)

const (
	romMask       = 32*1024*1024 - 1 // ROM_MASK, §4.6
	largeCartSize = 16 * 1024 * 1024 // carts at/above this use the narrow EEPROM window

	eepromWindowSmallLo = 0x0D000000
	eepromWindowSmallHi = 0x0DFFFFFF
	eepromWindowLargeLo = 0x0DFFFF00
	eepromWindowLargeHi = 0x0DFFFFFF
)

// RomLoadError is returned by Load when the ROM file cannot be read or
// exceeds the cartridge address space.
type RomLoadError struct{ Err error }

func (e *RomLoadError) Error() string { return fmt.Sprintf("rom load: %v", e.Err) }
func (e *RomLoadError) Unwrap() error { return e.Err }

// SaveLoadError is returned by Load when a save file exists but cannot be read.
type SaveLoadError struct{ Err error }

func (e *SaveLoadError) Error() string { return fmt.Sprintf("save load: %v", e.Err) }
func (e *SaveLoadError) Unwrap() error { return e.Err }

// GamePak owns the ROM image and the auto-detected save backend.
type GamePak struct {
	rom []byte

	bulk       save.Backend // SRAM or Flash, always present at 0x06
	eeprom     save.Backend // present only when the ROM carries an EEPROM_V signature
	hasEEPROM  bool
	largeCart  bool
	bulkKind   save.Kind

	// OpenBus supplies the fallback word for out-of-range reads: on
	// hardware this is the last value latched on the bus (typically the
	// most recently prefetched instruction). Defaults to always-zero.
	OpenBus func() uint32
}

// Load reads rom and (optionally) an existing save file concurrently and
// builds a GamePak. A missing save file is not an error: an empty backend
// is allocated, matching the teacher's SaveRAM/LoadRAM being a no-op when
// there is nothing to restore.
func Load(ctx context.Context, romPath, savePath string) (*GamePak, error) {
	var rom, saveData []byte
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		b, err := os.ReadFile(romPath)
		if err != nil {
			return &RomLoadError{Err: err}
		}
		rom = b
		return nil
	})
	g.Go(func() error {
		if savePath == "" {
			return nil
		}
		b, err := os.ReadFile(savePath)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil
			}
			return &SaveLoadError{Err: err}
		}
		saveData = b
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if len(rom) > romMask+1 {
		return nil, &RomLoadError{Err: fmt.Errorf("rom size %d exceeds %d byte cartridge space", len(rom), romMask+1)}
	}
	return New(rom, saveData), nil
}

// New builds a GamePak from an in-memory ROM image and optional persisted
// save bytes, auto-detecting the save backend per §4.5.
func New(rom []byte, saveData []byte) *GamePak {
	kind, hasEEPROM := save.Detect(rom)
	gp := &GamePak{
		rom:       rom,
		bulk:      save.New(kind, saveData),
		bulkKind:  kind,
		hasEEPROM: hasEEPROM,
		largeCart: len(rom) >= largeCartSize,
		OpenBus:   func() uint32 { return 0 },
	}
	if hasEEPROM {
		addrBits := save.SmallAddrBits
		if gp.largeCart {
			addrBits = save.LargeAddrBits
		}
		gp.eeprom = save.NewEEPROM(addrBits, saveData)
	}
	return gp
}

// BulkKind reports which SRAM/Flash variant was auto-detected.
func (g *GamePak) BulkKind() save.Kind { return g.bulkKind }

// HasEEPROM reports whether the ROM carries an EEPROM signature.
func (g *GamePak) HasEEPROM() bool { return g.hasEEPROM }

// SaveData returns the EEPROM's persisted bytes when the ROM carries an
// EEPROM signature and the bulk kind is SRAM (by signature or by default),
// and the bulk backend's persisted bytes otherwise.
func (g *GamePak) SaveData() []byte {
	if g.hasEEPROM && g.bulkKind == save.KindSRAM {
		return g.eeprom.Marshal()
	}
	return g.bulk.Marshal()
}

func (g *GamePak) inEEPROMWindow(addr uint32) bool {
	if !g.hasEEPROM {
		return false
	}
	if g.largeCart {
		return addr >= eepromWindowLargeLo && addr <= eepromWindowLargeHi
	}
	return addr >= eepromWindowSmallLo && addr <= eepromWindowSmallHi
}

func (g *GamePak) romRead(addr uint32) (byte, bool) {
	off := addr & romMask
	if int(off) >= len(g.rom) {
		return 0, false
	}
	return g.rom[off], true
}

// isROM reports whether nibble sits in one of the three wait-state ROM
// mirrors (0x08/0x0A/0x0C), with 0x0D double-booked as the EEPROM trigger
// window on carts that carry one (§4.6).
func isROM(nibble uint32) bool {
	return nibble >= 0x08 && nibble <= 0x0D
}

func isSaveBackend(nibble uint32) bool {
	return nibble == 0x0E || nibble == 0x0F
}

// Read8 dispatches a byte read by the address's high nibble (§4.6).
func (g *GamePak) Read8(addr uint32) byte {
	nibble := addr >> 24
	switch {
	case nibble == 0x0D && g.inEEPROMWindow(addr):
		return g.eeprom.Read8(addr)
	case isROM(nibble):
		if v, ok := g.romRead(addr); ok {
			return v
		}
		return byte(g.OpenBus())
	case isSaveBackend(nibble):
		return g.bulk.Read8(addr)
	default:
		return byte(g.OpenBus())
	}
}

func (g *GamePak) Write8(addr uint32, v byte) {
	nibble := addr >> 24
	switch {
	case nibble == 0x0D && g.inEEPROMWindow(addr):
		g.eeprom.Write8(addr, v)
	case isSaveBackend(nibble):
		g.bulk.Write8(addr, v)
	}
}

func (g *GamePak) Read16(addr uint32) uint16 {
	nibble := addr >> 24
	switch {
	case nibble == 0x0D && g.inEEPROMWindow(addr):
		return g.eeprom.Read16(addr)
	case isROM(nibble):
		lo, okLo := g.romRead(addr)
		hi, okHi := g.romRead(addr + 1)
		if !okLo && !okHi {
			return uint16(g.OpenBus())
		}
		return uint16(lo) | uint16(hi)<<8
	case isSaveBackend(nibble):
		return g.bulk.Read16(addr)
	default:
		return uint16(g.OpenBus())
	}
}

func (g *GamePak) Write16(addr uint32, v uint16) {
	nibble := addr >> 24
	switch {
	case nibble == 0x0D && g.inEEPROMWindow(addr):
		g.eeprom.Write16(addr, v)
	case isSaveBackend(nibble):
		g.bulk.Write16(addr, v)
	}
}

func (g *GamePak) Read32(addr uint32) uint32 {
	nibble := addr >> 24
	switch {
	case isROM(nibble):
		off := addr & romMask
		if int(off)+4 > len(g.rom) {
			return g.OpenBus()
		}
		return uint32(g.rom[off]) | uint32(g.rom[off+1])<<8 | uint32(g.rom[off+2])<<16 | uint32(g.rom[off+3])<<24
	case isSaveBackend(nibble):
		return g.bulk.Read32(addr)
	default:
		return g.OpenBus()
	}
}

func (g *GamePak) Write32(addr uint32, v uint32) {
	if isSaveBackend(addr >> 24) {
		g.bulk.Write32(addr, v)
	}
}
