//go:build !tinygo

package hal

import (
	"image"

	"github.com/hajimehoshi/ebiten/v2"
)

// RunWindow opens a desktop window that presents the framebuffer and
// forwards keyboard input, then calls start once with the HAL. It blocks
// until the window closes.
func RunWindow(title string, cfg Config, start func(HAL)) error {
	cfg.Window = true
	hh, err := New(cfg)
	if err != nil {
		return err
	}
	h := hh.(*hostHAL)

	g := &hostGame{h: h, start: start}
	ebiten.SetWindowTitle(title)
	ebiten.SetWindowSize(h.fb.width*2, h.fb.height*2)
	ebiten.SetTPS(60)
	return ebiten.RunGame(g)
}

type hostGame struct {
	h       *hostHAL
	img     *image.RGBA
	fbImg   *ebiten.Image
	scratch []byte
	start   func(HAL)
	started bool
}

func (g *hostGame) Update() error {
	if !g.started {
		g.started = true
		if g.start != nil {
			go g.start(g.h)
		}
	}
	g.h.kbd.poll()
	g.h.t.step()
	return nil
}

func (g *hostGame) Draw(screen *ebiten.Image) {
	fb := g.h.fb
	if g.img == nil {
		g.img = image.NewRGBA(image.Rect(0, 0, fb.width, fb.height))
		g.scratch = make([]byte, len(fb.buf))
		g.fbImg = ebiten.NewImage(fb.width, fb.height)
	}

	fb.snapshotRGB565(g.scratch)

	src := g.scratch
	dst := g.img.Pix
	for i := 0; i+1 < len(src) && i/2*4+3 < len(dst); i += 2 {
		r, gg, b := rgbaFrom565(uint16(src[i]) | uint16(src[i+1])<<8)
		j := (i / 2) * 4
		dst[j+0] = r
		dst[j+1] = gg
		dst[j+2] = b
		dst[j+3] = 0xFF
	}

	g.fbImg.WritePixels(g.img.Pix)
	screen.DrawImage(g.fbImg, nil)
}

func (g *hostGame) Layout(outsideWidth, outsideHeight int) (int, int) {
	return g.h.fb.width, g.h.fb.height
}

// rgbaFrom565 expands a framebuffer pixel to 8-bit channels, scaling
// each so that a full channel maps to 255.
func rgbaFrom565(p uint16) (r, g, b uint8) {
	r = uint8(int(p>>11&0x1F) * 255 / 31)
	g = uint8(int(p>>5&0x3F) * 255 / 63)
	b = uint8(int(p&0x1F) * 255 / 31)
	return r, g, b
}
