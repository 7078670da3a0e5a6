package main

import (
	"image"
	"image/color"
	"image/png"
	"os"

	"github.com/hajimehoshi/ebiten/v2"
	"golang.org/x/image/draw"

	"github.com/corvid-systems/gba-core/internal/video"
)

// frameSink is the concrete FrameSink: it uploads each completed frame into
// an *ebiten.Image for Draw, and keeps the most recent frame around so a
// headless run can snapshot it to PNG at exit, following the teacher's
// Draw texture-upload / saveFramePNG pattern.
type frameSink struct {
	tex  *ebiten.Image
	last [video.Width * video.Height]uint16
}

func newFrameSink() *frameSink {
	return &frameSink{tex: ebiten.NewImage(video.Width, video.Height)}
}

// Present converts the GBA's BGR555 frame buffer to RGBA and uploads it.
func (s *frameSink) Present(frame *[video.Width * video.Height]uint16) {
	s.last = *frame
	pix := make([]byte, video.Width*video.Height*4)
	for i, px := range frame {
		r, g, b := bgr555ToRGB8(px)
		pix[i*4+0] = r
		pix[i*4+1] = g
		pix[i*4+2] = b
		pix[i*4+3] = 0xFF
	}
	s.tex.WritePixels(pix)
}

func bgr555ToRGB8(px uint16) (r, g, b byte) {
	r = byte((px & 0x1F) << 3)
	g = byte(((px >> 5) & 0x1F) << 3)
	b = byte(((px >> 10) & 0x1F) << 3)
	return
}

// image converts the last presented frame into a standard library image,
// the input saveFramePNG and the upscale path both work from.
func (s *frameSink) image() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, video.Width, video.Height))
	for i, px := range s.last {
		r, g, b := bgr555ToRGB8(px)
		img.Set(i%video.Width, i/video.Width, color.RGBA{r, g, b, 0xFF})
	}
	return img
}

// saveFramePNG writes the last presented frame to path. A scale above 1
// upscales it by that integer factor with golang.org/x/image/draw's
// nearest-neighbour scaler, which keeps pixel edges crisp; a scale of 1 or
// less writes it 1:1, as the teacher's saveFramePNG always did.
func (s *frameSink) saveFramePNG(path string, scale int) error {
	src := s.image()
	if scale <= 1 {
		return writePNG(path, src)
	}
	dst := image.NewRGBA(image.Rect(0, 0, video.Width*scale, video.Height*scale))
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)
	return writePNG(path, dst)
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, img)
}
