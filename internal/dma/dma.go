// Package dma implements the GBA's four-channel DMA engine (§4.8): control
// decoding off the IoRegisters bank, a trigger bus fed by V-blank/H-blank/
// immediate/special events, and a priority-ordered copy runner that
// preempts the CPU while it drains pending channels. Grounded on the
// teacher's Bus-resident byte-copy loops, generalized to four prioritized,
// trigger-driven channels with reload semantics the DMG cartridge copies
// never needed.
package dma

import "github.com/corvid-systems/gba-core/internal/ioreg"

// Memory is the subset of Bus a DMA channel copies through.
type Memory interface {
	Read8(addr uint32) byte
	Write8(addr uint32, v byte)
	Read16(addr uint32) uint16
	Write16(addr uint32, v uint16)
	Read32(addr uint32) uint32
	Write32(addr uint32, v uint32)
}

// addrCtl encodes the inc/dec/fixed/inc-reload address-control encodings
// shared by source and destination fields.
type addrCtl uint

const (
	ctlInc       addrCtl = 0
	ctlDec       addrCtl = 1
	ctlFixed     addrCtl = 2
	ctlIncReload addrCtl = 3
)

// Timing classifies when a channel's trigger bus entry fires.
type Timing uint

const (
	TimingImmediate Timing = iota
	TimingVBlank
	TimingHBlank
	TimingSpecial
)

const (
	ctrlDestCtlShift = 5
	ctrlSrcCtlShift  = 7
	ctrlRepeat       = 1 << 9
	ctrlWordSize     = 1 << 10
	ctrlGamePakDRQ   = 1 << 11
	ctrlTimingShift  = 12
	ctrlIRQ          = 1 << 14
	ctrlEnable       = 1 << 15
)

type channel struct {
	idx int

	control uint16

	srcLatch, dstLatch uint32
	countLatch         uint32

	pending bool
}

func (c *channel) timing() Timing { return Timing((c.control >> ctrlTimingShift) & 0x3) }
func (c *channel) repeat() bool   { return c.control&ctrlRepeat != 0 }
func (c *channel) wordSize() bool { return c.control&ctrlWordSize != 0 }
func (c *channel) endIRQ() bool   { return c.control&ctrlIRQ != 0 }
func (c *channel) enabled() bool  { return c.control&ctrlEnable != 0 }

func (c *channel) destCtl() addrCtl { return addrCtl((c.control >> ctrlDestCtlShift) & 0x3) }
func (c *channel) srcCtl() addrCtl  { return addrCtl((c.control >> ctrlSrcCtlShift) & 0x3) }

// maxCount is the implicit word-count ceiling per channel (0 in the register
// means this value): 0x4000 for channels 0-2, 0x10000 for channel 3.
func (c *channel) maxCount() uint32 {
	if c.idx == 3 {
		return 0x10000
	}
	return 0x4000
}

// Controller owns the four DMA channels. It is wired onto the shared
// IoRegisters bank at construction and onto a completion callback invoked
// per channel (the caller, typically emu.Machine, forwards this to the
// interrupt controller to avoid dma depending on irq's concrete type).
type Controller struct {
	io       *ioreg.Registers
	channels [4]channel

	// OnComplete is invoked when a channel finishes and end-IRQ is set,
	// with the channel index 0-3.
	OnComplete func(ch int)
}

func chanBase(ch int) uint32 { return uint32(0xB0 + ch*0x0C) }

// New wires a Controller's four channels onto io.
func New(io *ioreg.Registers) *Controller {
	d := &Controller{io: io, OnComplete: func(int) {}}
	for i := 0; i < 4; i++ {
		n := i
		d.channels[n].idx = n
		base := chanBase(n)
		cntH := base + 8
		io.PostWrite(cntH, func(aligned uint32, shift uint, mask, old, newValue uint32) {
			if mask&0xFFFF0000 == 0 {
				return
			}
			ch := &d.channels[n]
			prevEnable := ch.control&ctrlEnable != 0
			ch.control = uint16((newValue >> 16) & 0xFFFF)
			nowEnable := ch.control&ctrlEnable != 0
			if nowEnable && !prevEnable {
				d.latch(ch)
				if ch.timing() == TimingImmediate {
					ch.pending = true
				}
			}
			if !nowEnable {
				ch.pending = false
			}
		})
	}
	return d
}

// latch loads source, destination, and count fresh from the IO registers,
// the effect of the enable bit transitioning 0->1.
func (d *Controller) latch(ch *channel) {
	ch.srcLatch = d.io.RawWord32(chanBase(ch.idx))
	ch.dstLatch = d.io.RawWord32(chanBase(ch.idx) + 4)
	ch.countLatch = d.reloadCount(ch)
}

func (d *Controller) reloadCount(ch *channel) uint32 {
	count := d.io.RawWord32(chanBase(ch.idx)+8) & 0xFFFF
	if count == 0 {
		count = ch.maxCount()
	}
	return count
}

// NotifyVBlank marks every V-blank-timed channel pending.
func (d *Controller) NotifyVBlank() { d.notify(TimingVBlank) }

// NotifyHBlank marks every H-blank-timed channel pending.
func (d *Controller) NotifyHBlank() { d.notify(TimingHBlank) }

func (d *Controller) notify(timing Timing) {
	for i := range d.channels {
		ch := &d.channels[i]
		if ch.enabled() && ch.timing() == timing {
			ch.pending = true
		}
	}
}

// NotifySpecial marks channel ch (1/2 sound-FIFO, 3 video-capture) pending
// when it is enabled with special timing.
func (d *Controller) NotifySpecial(ch int) {
	c := &d.channels[ch]
	if c.enabled() && c.timing() == TimingSpecial {
		c.pending = true
	}
}

// Pending reports whether any channel has a transfer ready to run.
func (d *Controller) Pending() bool {
	for i := range d.channels {
		if d.channels[i].pending {
			return true
		}
	}
	return false
}

// RunPending drains every pending channel in priority order (0 highest),
// each run to completion before a lower-priority channel is serviced,
// matching §4.8's "preemptible by a higher-priority channel becoming
// pending" rule applied at channel granularity. Returns the approximate
// cycle cost, one system cycle per transferred unit.
func (d *Controller) RunPending(mem Memory) int {
	cycles := 0
	for {
		idx := -1
		for i := range d.channels {
			if d.channels[i].pending {
				idx = i
				break
			}
		}
		if idx < 0 {
			return cycles
		}
		cycles += d.run(&d.channels[idx], mem)
	}
}

func step(addr uint32, ctl addrCtl, unit uint32) uint32 {
	switch ctl {
	case ctlDec:
		return addr - unit
	case ctlFixed:
		return addr
	default: // inc, inc-reload
		return addr + unit
	}
}

func (d *Controller) run(ch *channel, mem Memory) int {
	// Channels 1/2 with special timing feed the sound FIFO: four words to a
	// fixed destination, regardless of the programmed count/size/dest control.
	fifo := ch.timing() == TimingSpecial && (ch.idx == 1 || ch.idx == 2)
	word := ch.wordSize() || fifo
	count := ch.countLatch
	if fifo {
		count = 4
	}
	unit := uint32(2)
	if word {
		unit = 4
	}
	dstCtl := ch.destCtl()
	if fifo {
		dstCtl = ctlFixed
	}
	src, dst := ch.srcLatch, ch.dstLatch
	for i := uint32(0); i < count; i++ {
		if word {
			mem.Write32(dst, mem.Read32(src))
		} else {
			mem.Write16(dst, mem.Read16(src))
		}
		src = step(src, ch.srcCtl(), unit)
		dst = step(dst, dstCtl, unit)
	}
	cycles := int(count)

	ch.srcLatch, ch.dstLatch = src, dst
	ch.pending = false
	if ch.repeat() && ch.enabled() {
		// Word count always re-latches for the next trigger; destination
		// only resets to its programmed value under inc-and-reload, and
		// source never reloads (§4.8: "same encodings, no reload").
		ch.countLatch = d.reloadCount(ch)
		if ch.destCtl() == ctlIncReload {
			ch.dstLatch = d.io.RawWord32(chanBase(ch.idx) + 4)
		}
	} else {
		ch.control &^= ctrlEnable
		cntReg := d.io.RawWord32(chanBase(ch.idx) + 8)
		d.io.SetRawWord32(chanBase(ch.idx)+8, (cntReg&0x0000FFFF)|(uint32(ch.control)<<16))
	}
	if ch.endIRQ() {
		d.OnComplete(ch.idx)
	}
	return cycles
}
