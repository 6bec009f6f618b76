package verishot

import (
	"bytes"
	"fmt"
	"image/color"
	"image/png"

	"github.com/fogleman/gg"
	"golang.org/x/image/font/basicfont"
)

type Image []byte

// AddCaption draws the given text in a strip below the image so a saved
// verification capture is self-describing.
func (imgB Image) AddCaption(text string) ([]byte, error) {
	img, err := png.Decode(bytes.NewReader(imgB))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	const padding = 14
	const borderSize = 1

	w := img.Bounds().Dx()
	h := img.Bounds().Dy() + padding*2 + borderSize
	dc := gg.NewContext(w, h)

	dc.DrawImage(img, 0, 0)

	yLine := float64(img.Bounds().Dy())
	dc.SetColor(color.Black)
	dc.DrawLine(0, yLine, float64(w), yLine)
	dc.SetLineWidth(float64(borderSize))
	dc.Stroke()
	dc.SetColor(color.White)
	dc.DrawRectangle(0, yLine, float64(w), float64(padding*2))
	dc.Fill()
	dc.SetColor(color.Black)
	dc.SetFontFace(basicfont.Face7x13)
	dc.DrawStringAnchored(text, float64(w)/2, yLine+float64(padding), 0.5, 0.3)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dc.Image()); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}

	return buf.Bytes(), nil
}
