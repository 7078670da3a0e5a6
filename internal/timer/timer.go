// Package timer implements the GBA's four chained hardware timers (§4.9):
// 16-bit counter/reload pairs driven by a shared prescaler table, with a
// count-up chaining mode and overflow-triggered IRQs. Cycle-accurate by
// construction — Step integrates the cycle count the caller passes in, never
// wall-clock time, generalized from the teacher's Bus.tick DIV/TIMA shape
// from one DMG timer to four chained GBA timers.
package timer

import (
	"github.com/corvid-systems/gba-core/internal/ioreg"
	"github.com/corvid-systems/gba-core/internal/irq"
)

// prescalers maps a timer's 2-bit prescaler select to its system-cycle divisor.
var prescalers = [4]int{1, 64, 256, 1024}

const (
	ctrlPrescaler = 0x3 // bits 0-1
	ctrlCountUp   = 1 << 2
	ctrlIRQ       = 1 << 6
	ctrlEnable    = 1 << 7
)

type unit struct {
	counter uint16
	reload  uint16
	control uint16
	acc     int // accumulated system cycles toward the next prescaler tick
}

// Controller owns the four timers and their IE-wired overflow requests.
type Controller struct {
	io    *ioreg.Registers
	irqc  *irq.Controller
	units [4]unit
}

func regBase(n int) uint32 { return uint32(0x100 + n*4) }

// New wires a Controller onto io, installing observers so CPU reads see a
// live counter and writes update the reload/control latches per §4.9.
func New(io *ioreg.Registers, irqc *irq.Controller) *Controller {
	c := &Controller{io: io, irqc: irqc}
	for i := 0; i < 4; i++ {
		n := i
		base := regBase(n)
		io.OnRead(base, func(aligned uint32, shift uint, mask uint32, value *uint32) {
			*value = (*value &^ 0xFFFF) | uint32(c.units[n].counter)
		})
		io.PostWrite(base, func(aligned uint32, shift uint, mask, old, newValue uint32) {
			// Low halfword write (reload); writes to the live counter only
			// take effect as the next reload value, not immediately.
			if mask&0x0000FFFF != 0 {
				c.units[n].reload = uint16(newValue & 0xFFFF)
			}
			if mask&0xFFFF0000 != 0 {
				prevEnable := c.units[n].control&ctrlEnable != 0
				ctrl := uint16((newValue >> 16) & 0x3FF)
				c.units[n].control = ctrl
				nowEnable := ctrl&ctrlEnable != 0
				if nowEnable && !prevEnable {
					c.units[n].counter = c.units[n].reload
					c.units[n].acc = 0
				}
			}
		})
	}
	return c
}

// Step advances every enabled timer by cycles system cycles, in chain order
// so a lower timer's overflow this step is visible to its count-up
// successor within the same call.
func (c *Controller) Step(cycles int) {
	chainOverflows := 0
	for i := 0; i < 4; i++ {
		u := &c.units[i]
		if u.control&ctrlEnable == 0 {
			chainOverflows = 0
			continue
		}
		countUp := i != 0 && u.control&ctrlCountUp != 0
		ticks := 0
		if countUp {
			ticks = chainOverflows
		} else {
			u.acc += cycles
			div := prescalers[u.control&ctrlPrescaler]
			ticks = u.acc / div
			u.acc %= div
		}
		overflows := 0
		for t := 0; t < ticks; t++ {
			next := uint32(u.counter) + 1
			if next > 0xFFFF {
				u.counter = u.reload
				overflows++
				if u.control&ctrlIRQ != 0 {
					c.irqc.Request(irq.Source(int(irq.Timer0) + i))
				}
			} else {
				u.counter = uint16(next)
			}
		}
		chainOverflows = overflows
	}
}
