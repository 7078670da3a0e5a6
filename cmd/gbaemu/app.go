package main

import (
	"context"
	"log"
	"os"

	"github.com/hajimehoshi/ebiten/v2"

	"github.com/corvid-systems/gba-core/internal/emu"
	"github.com/corvid-systems/gba-core/internal/gamepak"
	"github.com/corvid-systems/gba-core/internal/video"
)

// app implements ebiten.Game, driving one Machine frame per Update call and
// presenting whatever the frame sink last received, following the teacher's
// App/ebiten.RunGame split between emulation and windowing.
type app struct {
	m        *emu.Machine
	frames   *frameSink
	savePath string
	pak      *gamepak.GamePak
}

func (a *app) Update() error {
	ctx := context.Background()
	if err := a.m.RunOneFrame(ctx); err != nil {
		return err
	}
	if a.m.QuickSaveRequested() && a.savePath != "" {
		if data := a.pak.SaveData(); data != nil {
			if err := os.WriteFile(a.savePath, data, 0o644); err != nil {
				log.Printf("save: %v", err)
			} else {
				log.Printf("wrote %s", a.savePath)
			}
		}
	}
	return nil
}

func (a *app) Draw(screen *ebiten.Image) {
	screen.DrawImage(a.frames.tex, nil)
}

func (a *app) Layout(outsideWidth, outsideHeight int) (int, int) {
	return video.Width, video.Height
}

// runWindowed opens an ebiten window and drives the machine until it closes.
func runWindowed(m *emu.Machine, frames *frameSink, pak *gamepak.GamePak, savePath string, title string, scale int) error {
	ebiten.SetWindowTitle(title)
	ebiten.SetWindowSize(video.Width*scale, video.Height*scale)
	a := &app{m: m, frames: frames, savePath: savePath, pak: pak}
	return ebiten.RunGame(a)
}
