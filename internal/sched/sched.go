// Package sched implements the HaltCoordinator (§4.11, §5): the single
// cooperative step loop that arbitrates CPU execution, DMA preemption, and
// HALT wake-up, then drives the video and timer collaborators by the same
// cycle delta and drains their events into dma/irq. Grounded on the
// teacher's Machine.Step single-threaded tick loop, generalized from a bare
// CPU step to a full priority chain.
package sched

import (
	"github.com/corvid-systems/gba-core/internal/dma"
	"github.com/corvid-systems/gba-core/internal/irq"
	"github.com/corvid-systems/gba-core/internal/timer"
	"github.com/corvid-systems/gba-core/internal/video"
)

// idleSliceCycles is the cycle cost attributed to a HALT step that doesn't
// yet see an unmasked wake source, keeping the loop from spinning a whole
// instruction's worth of work for nothing.
const idleSliceCycles = 4

// CPU is the subset of the ARM7TDMI core the coordinator drives.
type CPU interface {
	Step() int
	Halted() bool
	SetHalted(bool)
	IFlagClear() bool
	EnterIRQ()
}

// irqEntryCycles is the approximate cycle cost of exception entry, charged
// in place of a normal instruction step when an IRQ preempts fetch-decode.
const irqEntryCycles = 3

// Memory is the subset of Bus the DMA copy loop and video frame fill need.
type Memory interface {
	dma.Memory
	video.Memory
}

// Coordinator owns no state of its own beyond the wiring; every cycle's
// bookkeeping lives in the component it belongs to. lastVideo caches the
// previous drain's video.Events so callers that need to know about
// V-blank/frame completion don't have to re-derive it from Video directly.
type Coordinator struct {
	CPU   CPU
	DMA   *dma.Controller
	Timer *timer.Controller
	Video *video.Controller
	IRQ   *irq.Controller
	Mem   Memory

	lastVideo video.Events
}

// New wires a Coordinator from its collaborators.
func New(cpu CPU, d *dma.Controller, t *timer.Controller, v *video.Controller, irqc *irq.Controller, mem Memory) *Coordinator {
	return &Coordinator{CPU: cpu, DMA: d, Timer: t, Video: v, IRQ: irqc, Mem: mem}
}

// Step runs exactly one scheduling decision and returns the cycles consumed.
func (c *Coordinator) Step() int {
	var cycles int
	switch {
	case c.DMA.Pending():
		cycles = c.DMA.RunPending(c.Mem)
	case c.CPU.Halted():
		if c.IRQ.Pending() {
			c.CPU.SetHalted(false)
		}
		cycles = idleSliceCycles
	case c.IRQ.ShouldTakeException(c.CPU.IFlagClear()):
		c.CPU.EnterIRQ()
		cycles = irqEntryCycles
	default:
		cycles = c.CPU.Step()
	}
	if cycles <= 0 {
		cycles = 1
	}
	c.drain(cycles)
	return cycles
}

// drain steps video and timer by cycles and forwards the events they
// produced into dma's trigger bus and irq's request queue.
func (c *Coordinator) drain(cycles int) {
	c.Timer.Step(cycles)
	ev := c.Video.Step(cycles, c.Mem)
	c.lastVideo = ev
	if ev.HBlankStart {
		c.DMA.NotifyHBlank()
		c.IRQ.Request(irq.HBlank)
	}
	if ev.VBlankStart {
		c.DMA.NotifyVBlank()
		c.IRQ.Request(irq.VBlank)
	}
	if ev.VCountMatch {
		c.IRQ.Request(irq.VCountMatch)
	}
}

// LastVideoEvents reports the video.Events produced by the most recent
// Step call, letting a driving loop notice V-blank/frame completion
// without stepping Video a second time itself.
func (c *Coordinator) LastVideoEvents() video.Events { return c.lastVideo }
