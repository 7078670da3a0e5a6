package emu

// Config contains settings that affect emulation behavior but not semantics:
// every field here changes how the Machine is driven, never what a guest
// program observes.
type Config struct {
	Trace    bool // log a register-state line per CPU step
	LimitFPS bool // throttle Run to ~60 Hz; headless benchmarking wants this off
}
