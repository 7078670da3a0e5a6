// Package emu implements the top-level Machine (§4, §9): it owns every
// memory region and collaborator, wires the cyclic cpu/dma/timer/irq/sched
// handles together exactly as described in the design notes (explicit
// handle structs passed in at construction, no back-pointers from data to
// owner), and drives the cooperative step loop. Grounded on the teacher's
// emu.Machine / Machine.Step single-owner value type, generalized from a
// DMG's cpu+ppu+apu trio to the GBA's cpu+bus+dma+timer+irq+sched+video set.
package emu

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/corvid-systems/gba-core/internal/bus"
	"github.com/corvid-systems/gba-core/internal/cpu"
	"github.com/corvid-systems/gba-core/internal/dma"
	"github.com/corvid-systems/gba-core/internal/gamepak"
	"github.com/corvid-systems/gba-core/internal/irq"
	"github.com/corvid-systems/gba-core/internal/sched"
	"github.com/corvid-systems/gba-core/internal/timer"
	"github.com/corvid-systems/gba-core/internal/video"
)

// BiosLoadError is returned when the BIOS image cannot be read, mirroring
// gamepak.RomLoadError/SaveLoadError's shape (§7).
type BiosLoadError struct{ Err error }

func (e *BiosLoadError) Error() string { return fmt.Sprintf("bios load: %v", e.Err) }
func (e *BiosLoadError) Unwrap() error { return e.Err }

const biosSize = 16 * 1024

// regKeyInput is KEYINPUT, the plain (unmonitored) register the CPU reads
// the pressed-keys bitfield from. Bits are active-low on real hardware.
const regKeyInput = 0x130

// regDispStat is the word holding DISPSTAT (low halfword) and VCOUNT (high),
// regHaltCnt the word whose byte at 0x301 is HALTCNT.
const (
	regDispStat = 0x004
	regHaltCnt  = 0x300
)

// Keypad is the 10-button state plus an out-of-band quick-save request,
// sampled once per V-blank by a KeypadProvider.
type Keypad struct {
	Buttons   uint16 // bit0=A,1=B,2=Select,3=Start,4=Right,5=Left,6=Up,7=Down,8=R,9=L
	QuickSave bool
}

// FrameSink consumes a completed frame once per V-blank (§6).
type FrameSink interface {
	Present(frame *[video.Width * video.Height]uint16)
}

// AudioSink consumes interleaved stereo samples at the core's sample rate
// (§6). The DSP producing samples is a Non-goal; nothing in this core
// drives it yet, so Write is never called today but the contract is kept
// narrow and stable for a future producer to target.
type AudioSink interface {
	Write(samples []int16)
}

// KeypadProvider is polled once per V-blank for the current button state
// (§6).
type KeypadProvider interface {
	Poll() Keypad
}

// Machine is the GBA core: a single value owning every memory region and
// collaborator, driven from the outside by Run or Step. There is no global
// state; two Machines never interact.
type Machine struct {
	cfg Config

	CPU   *cpu.Core
	Bus   *bus.Bus
	DMA   *dma.Controller
	Timer *timer.Controller
	IRQ   *irq.Controller
	Video *video.Controller
	Sched *sched.Coordinator
	Pak   *gamepak.GamePak

	frames FrameSink
	audio  AudioSink
	keys   KeypadProvider

	lastQuickSave bool
	quickSaveEdge bool
}

// New wires a Machine from a BIOS image and an already-loaded GamePak. bios
// must be exactly the 16 KiB BIOS image size or shorter (it is zero-padded);
// an oversize image is an error.
func New(cfg Config, bios []byte, pak *gamepak.GamePak) (*Machine, error) {
	if len(bios) > biosSize {
		return nil, &BiosLoadError{Err: fmt.Errorf("bios image is %d bytes, exceeds %d", len(bios), biosSize)}
	}
	img := make([]byte, biosSize)
	copy(img, bios)
	b := bus.New(img, pak)

	irqc := irq.New(b.IO)
	d := dma.New(b.IO)
	tm := timer.New(b.IO, irqc)
	v := video.New()
	core := cpu.New(b)
	s := sched.New(core, d, tm, v, irqc, b)

	d.OnComplete = func(ch int) {
		irqc.Request(irq.Source(int(irq.DMA0) + ch))
	}

	// DISPSTAT's live status bits and VCOUNT come from the video controller;
	// writes to DISPSTAT's V-count-setting byte retarget the match line.
	b.IO.OnRead(regDispStat, func(aligned uint32, shift uint, mask uint32, value *uint32) {
		status := *value & 0xFFF8
		if v.InVBlank() {
			status |= 1
		}
		if v.InHBlank() {
			status |= 2
		}
		if v.Line() == v.VCountTarget {
			status |= 4
		}
		*value = uint32(v.Line())<<16 | status
	})
	b.IO.PostWrite(regDispStat, func(aligned uint32, shift uint, mask, old, newValue uint32) {
		if mask&0x0000FF00 != 0 {
			v.VCountTarget = int((newValue >> 8) & 0xFF)
		}
	})

	// A write to HALTCNT with bit 7 clear puts the CPU into HALT until an
	// enabled interrupt becomes pending; STOP (bit 7 set) is treated the same.
	b.IO.PostWrite(regHaltCnt, func(aligned uint32, shift uint, mask, old, newValue uint32) {
		if mask&0x0000FF00 != 0 {
			core.SetHalted(true)
		}
	})

	core.Reset()

	return &Machine{
		cfg:   cfg,
		CPU:   core,
		Bus:   b,
		DMA:   d,
		Timer: tm,
		IRQ:   irqc,
		Video: v,
		Sched: s,
		Pak:   pak,
	}, nil
}

// AttachFrameSink wires the collaborator a windowed (or PNG-snapshotting)
// front end presents completed frames through. Optional: with no sink
// attached the Machine never calls Present.
func (m *Machine) AttachFrameSink(s FrameSink) { m.frames = s }

// AttachAudioSink wires the collaborator samples are written through.
func (m *Machine) AttachAudioSink(s AudioSink) { m.audio = s }

// AttachKeypadProvider wires the collaborator keypad state is polled from
// once per V-blank.
func (m *Machine) AttachKeypadProvider(p KeypadProvider) { m.keys = p }

// Step runs exactly one scheduling decision (§4.11) and returns the cycles
// it consumed. Safe to call directly for frame-stepped headless tooling;
// callers that care about frame completion should check LastVideoEvents.
func (m *Machine) Step() int {
	if m.cfg.Trace {
		log.Printf("pc=%08X cpsr=%08X r0=%08X sp=%08X lr=%08X",
			m.CPU.R(15), m.CPU.CPSR(), m.CPU.R(0), m.CPU.R(13), m.CPU.R(14))
	}
	cycles := m.Sched.Step()
	if m.Sched.LastVideoEvents().FrameReady {
		m.onFrameReady()
	}
	return cycles
}

// onFrameReady polls the keypad provider (if any), writes the bitfield into
// KEYINPUT, and presents the completed frame to the frame sink.
func (m *Machine) onFrameReady() {
	if m.keys != nil {
		kp := m.keys.Poll()
		m.Bus.IO.SetRawWord32(regKeyInput, uint32(^kp.Buttons&0x3FF))
		m.quickSaveEdge = kp.QuickSave && !m.lastQuickSave
		m.lastQuickSave = kp.QuickSave
	}
	if m.frames != nil {
		m.frames.Present(m.Video.Frame())
	}
}

// QuickSaveRequested reports whether the keypad provider's quick-save key
// transitioned from released to pressed during the frame just presented.
// The Machine itself has no save-file concept; cmd/gbaemu polls this and
// writes Pak.SaveData() to the .sav path when it is true.
func (m *Machine) QuickSaveRequested() bool { return m.quickSaveEdge }

// Run drives the Machine until ctx is canceled, checked between scheduling
// decisions through RunOneFrame (§5).
// When cfg.LimitFPS is set, Run paces itself to 60 Hz by sleeping off
// whatever budget a frame's cycles didn't use.
func (m *Machine) Run(ctx context.Context) error {
	const frameInterval = time.Second / 60
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		start := time.Now()
		if err := m.RunOneFrame(ctx); err != nil {
			return err
		}
		if m.cfg.LimitFPS {
			if elapsed := time.Since(start); elapsed < frameInterval {
				time.Sleep(frameInterval - elapsed)
			}
		}
	}
}

// RunOneFrame steps the scheduler until it has produced a completed frame,
// checking ctx between every scheduling decision. A windowed front end
// calls this once per Update/Draw tick instead of Run.
func (m *Machine) RunOneFrame(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		m.Step()
		if m.Sched.LastVideoEvents().FrameReady {
			return nil
		}
	}
}
