// Package video implements the GBA's LCD controller timing (§4.12). It is
// explicitly not a PPU: no tile, sprite, or blend compositing. It tracks the
// scanline/dot grid, raises H-blank/V-blank/V-count-match events, and fills
// its frame buffer with a simple direct-color path straight from VRAM —
// enough to satisfy the frame-sink contract (§6). It raises no DMA
// video-capture event.
package video

const (
	cyclesPerDot      = 4
	dotsPerScanline   = 308
	cyclesPerScanline = dotsPerScanline * cyclesPerDot // 1232
	scanlinesPerFrame = 228
	visibleScanlines  = 160
	hblankStartCycle  = 960

	Width  = 240
	Height = 160
)

// Events reports what fired during a Step call, so the caller can drain
// them into dma/irq without video depending on either package.
type Events struct {
	HBlankStart bool
	VBlankStart bool
	VCountMatch bool
	FrameReady  bool
}

// Memory is the subset of Bus the frame fill reads VRAM from.
type Memory interface {
	Read16(addr uint32) uint16
}

// Controller tracks LCD timing and owns the displayed frame buffer.
type Controller struct {
	cycle int // cycle position within the current scanline, 0..cyclesPerScanline-1
	line  int // current scanline, 0..scanlinesPerFrame-1

	VCountTarget int

	inHBlank bool
	inVBlank bool

	frame [Width * Height]uint16
}

// New returns a Controller at the start of frame/scanline 0.
func New() *Controller { return &Controller{} }

// Frame returns the controller's displayed frame buffer (BGR555 pixels).
func (c *Controller) Frame() *[Width * Height]uint16 { return &c.frame }

// Line reports the current scanline, the value software reads from VCOUNT.
func (c *Controller) Line() int { return c.line }

// InHBlank reports whether the beam sits in the horizontal retrace period,
// the DISPSTAT H-blank status bit.
func (c *Controller) InHBlank() bool { return c.inHBlank }

// InVBlank reports whether the beam sits in the vertical retrace period,
// the DISPSTAT V-blank status bit.
func (c *Controller) InVBlank() bool { return c.inVBlank }

// Step advances the LCD timing by cycles system cycles and reports the
// events that fired, draining them is the caller's responsibility.
func (c *Controller) Step(cycles int, mem Memory) Events {
	var ev Events
	remaining := cycles
	for remaining > 0 {
		step := cyclesPerScanline - c.cycle
		if step > remaining {
			step = remaining
		}
		prevCycle := c.cycle
		c.cycle += step
		remaining -= step

		if prevCycle < hblankStartCycle && c.cycle >= hblankStartCycle && !c.inHBlank {
			c.inHBlank = true
			if c.line < visibleScanlines {
				ev.HBlankStart = true
			}
		}

		if c.cycle >= cyclesPerScanline {
			c.cycle -= cyclesPerScanline
			c.inHBlank = false
			c.line++
			if c.line >= scanlinesPerFrame {
				c.line = 0
				c.inVBlank = false
			}
			if c.line == visibleScanlines && !c.inVBlank {
				c.inVBlank = true
				ev.VBlankStart = true
				c.fillFrame(mem)
				ev.FrameReady = true
			}
			if c.line == c.VCountTarget {
				ev.VCountMatch = true
			}
		}
	}
	return ev
}

// fillFrame composites a fixed, simple direct-color image from VRAM:
// mode-3-style, one BGR555 halfword per pixel read straight from VRAM. This
// is the "enough to feed the frame sink" path (§4.12); it does not emulate
// tile/sprite/blend modes.
func (c *Controller) fillFrame(mem Memory) {
	for i := 0; i < Width*Height; i++ {
		c.frame[i] = mem.Read16(0x06000000 + uint32(i*2))
	}
}
