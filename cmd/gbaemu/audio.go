package main

import (
	"encoding/binary"
	"sync"

	"github.com/hajimehoshi/ebiten/v2/audio"
)

// sampleRate matches the DMA-FIFO producers' expected output rate; the core
// never resamples so the sink plays back whatever it is handed.
const sampleRate = 32768

// audioSink is the concrete AudioSink: a small ring buffer drained by an
// io.Reader the ebiten audio.Player pulls from, following the teacher's
// apuStream shape but as a pass-through (no DSP, no buffering policy beyond
// drop-when-full — the GamePak DMA-FIFO channels are the only producer).
type audioSink struct {
	mu     sync.Mutex
	ring   []int16
	ctx    *audio.Context
	player *audio.Player
}

const ringCapacitySamples = sampleRate * 4 // ~2s of stereo int16 pairs

func newAudioSink() *audioSink {
	s := &audioSink{ctx: audio.NewContext(sampleRate)}
	p, err := s.ctx.NewPlayer(s)
	if err == nil {
		s.player = p
		s.player.Play()
	}
	return s
}

// Write appends interleaved stereo samples, dropping the oldest once the
// ring is full rather than blocking the core's step loop.
func (s *audioSink) Write(samples []int16) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ring = append(s.ring, samples...)
	if over := len(s.ring) - ringCapacitySamples; over > 0 {
		s.ring = s.ring[over:]
	}
}

// Read implements io.Reader for the ebiten audio.Player, converting
// buffered int16 pairs to little-endian bytes and padding with silence
// when the core hasn't produced enough yet.
func (s *audioSink) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	frames := len(p) / 4
	n := frames
	if n > len(s.ring)/2 {
		n = len(s.ring) / 2
	}
	i := 0
	for f := 0; f < n; f++ {
		binary.LittleEndian.PutUint16(p[i:], uint16(s.ring[f*2]))
		binary.LittleEndian.PutUint16(p[i+2:], uint16(s.ring[f*2+1]))
		i += 4
	}
	s.ring = s.ring[n*2:]
	for ; i+3 < len(p); i += 4 {
		binary.LittleEndian.PutUint16(p[i:], 0)
		binary.LittleEndian.PutUint16(p[i+2:], 0)
	}
	return len(p), nil
}
