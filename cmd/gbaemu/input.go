package main

import (
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	"github.com/corvid-systems/gba-core/internal/emu"
)

// keypadProvider is the concrete KeypadProvider: a fixed key map polled
// once per V-blank, with edge-triggered detection of the quick-save key,
// following the teacher's menu_update.go key-edge handling.
type keypadProvider struct{}

func newKeypadProvider() *keypadProvider { return &keypadProvider{} }

// bit positions match emu.Keypad.Buttons: A,B,Select,Start,Right,Left,Up,Down,R,L.
var keyMap = [10]ebiten.Key{
	ebiten.KeyX, ebiten.KeyZ, ebiten.KeyShiftRight, ebiten.KeyEnter,
	ebiten.KeyArrowRight, ebiten.KeyArrowLeft, ebiten.KeyArrowUp, ebiten.KeyArrowDown,
	ebiten.KeyS, ebiten.KeyA,
}

func (p *keypadProvider) Poll() emu.Keypad {
	var kp emu.Keypad
	for bit, key := range keyMap {
		if ebiten.IsKeyPressed(key) {
			kp.Buttons |= 1 << uint(bit)
		}
	}
	kp.QuickSave = inpututil.IsKeyJustPressed(ebiten.KeyF5)
	return kp
}
