// Command gbaemu is the CLI entry point: it parses flags, loads the BIOS
// image and GamePak, wires the ebiten-backed frame/audio/input
// collaborators (or runs headless), and drives the Machine to completion,
// following the teacher's cmd/gbemu/main.go flag/load/run structure.
package main

import (
	"context"
	"flag"
	"fmt"
	"hash/crc32"
	"log"
	"os"
	"strings"
	"time"

	"github.com/corvid-systems/gba-core/internal/emu"
	"github.com/corvid-systems/gba-core/internal/gamepak"
)

// CLIFlags mirrors the teacher's CLIFlags struct: one field per -flag,
// populated by parseFlags.
type CLIFlags struct {
	ROMPath string
	BIOS    string
	Scale   int
	Title   string
	Trace   bool
	SaveRAM bool

	Headless bool
	Frames   int
	PNGOut   string
	Expect   string
}

func parseFlags() CLIFlags {
	var f CLIFlags
	flag.StringVar(&f.ROMPath, "rom", "", "path to ROM (.gba)")
	flag.StringVar(&f.BIOS, "bios", "", "path to GBA BIOS image")
	flag.IntVar(&f.Scale, "scale", 3, "window scale (also applied to -outpng)")
	flag.StringVar(&f.Title, "title", "gbaemu", "window title")
	flag.BoolVar(&f.Trace, "trace", false, "CPU trace log")
	flag.BoolVar(&f.SaveRAM, "save", true, "persist cartridge save RAM to ROM.sav on quick-save")

	flag.BoolVar(&f.Headless, "headless", false, "run without a window")
	flag.IntVar(&f.Frames, "frames", 300, "frames to run in headless mode")
	flag.StringVar(&f.PNGOut, "outpng", "", "write last frame to PNG at path")
	flag.StringVar(&f.Expect, "expect", "", "assert last frame's CRC32 (hex)")
	flag.Parse()
	return f
}

func savePathFor(romPath string) string {
	if romPath == "" {
		return ""
	}
	return strings.TrimSuffix(romPath, ".gba") + ".sav"
}

func runHeadless(m *emu.Machine, sink *frameSink, frames, scale int, pngPath, expectCRC string) error {
	if frames <= 0 {
		frames = 1
	}
	start := time.Now()
	for i := 0; i < frames; i++ {
		if err := m.RunOneFrame(context.Background()); err != nil {
			return err
		}
	}
	dur := time.Since(start)

	img := sink.image()
	crc := crc32.ChecksumIEEE(img.Pix)
	fps := float64(frames) / dur.Seconds()
	log.Printf("headless: frames=%d elapsed=%s fps=%.2f frame_crc32=%08x",
		frames, dur.Truncate(time.Millisecond), fps, crc)

	if pngPath != "" {
		if err := sink.saveFramePNG(pngPath, scale); err != nil {
			return fmt.Errorf("write PNG: %w", err)
		}
		log.Printf("wrote %s", pngPath)
	}
	if expectCRC != "" {
		want := strings.TrimPrefix(strings.ToLower(expectCRC), "0x")
		got := fmt.Sprintf("%08x", crc)
		if got != want {
			return fmt.Errorf("checksum mismatch: got %s, want %s", got, want)
		}
	}
	return nil
}

func mustRead(path string) []byte {
	if path == "" {
		return nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("read %s: %v", path, err)
	}
	return b
}

func main() {
	f := parseFlags()
	bios := mustRead(f.BIOS)

	savePath := savePathFor(f.ROMPath)
	pak, err := gamepak.Load(context.Background(), f.ROMPath, savePath)
	if err != nil {
		log.Fatalf("load gamepak: %v", err)
	}
	log.Printf("gamepak loaded: save kind=%v eeprom=%v", pak.BulkKind(), pak.HasEEPROM())

	cfg := emu.Config{Trace: f.Trace, LimitFPS: !f.Headless}
	m, err := emu.New(cfg, bios, pak)
	if err != nil {
		log.Fatalf("init machine: %v", err)
	}

	sink := newFrameSink()
	m.AttachFrameSink(sink)

	if f.Headless {
		if err := runHeadless(m, sink, f.Frames, f.Scale, f.PNGOut, f.Expect); err != nil {
			log.Fatal(err)
		}
		return
	}

	m.AttachAudioSink(newAudioSink())
	m.AttachKeypadProvider(newKeypadProvider())

	windowSavePath := ""
	if f.SaveRAM {
		windowSavePath = savePath
	}
	if err := runWindowed(m, sink, pak, windowSavePath, f.Title, f.Scale); err != nil {
		log.Fatal(err)
	}
}
