package verishot

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"
)

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: 200, G: 200, B: 200, A: 255})
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("Failed to encode test image: %v", err)
	}
	return buf.Bytes()
}

func TestAddCaption(t *testing.T) {
	src := testPNG(t, 320, 200)

	out, err := Image(src).AddCaption("http://localhost:3001/  [header]")
	if err != nil {
		t.Fatalf("AddCaption failed: %v", err)
	}

	decoded, err := png.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("Result is not a valid PNG: %v", err)
	}

	if decoded.Bounds().Dx() != 320 {
		t.Errorf("Expected width 320, got %d", decoded.Bounds().Dx())
	}
	if decoded.Bounds().Dy() <= 200 {
		t.Errorf("Expected caption strip to extend height beyond 200, got %d", decoded.Bounds().Dy())
	}
}

func TestAddCaptionInvalidImage(t *testing.T) {
	if _, err := Image([]byte("not a png")).AddCaption("caption"); err == nil {
		t.Error("Expected error for invalid image data")
	}
}
