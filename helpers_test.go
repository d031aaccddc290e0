package vpdiff

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

var (
	white = color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	blue  = color.NRGBA{B: 0xff, A: 0xff}
	black = color.NRGBA{A: 0xff}
)

func uniformImage(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
	return img
}

func pngBytes(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func pngBase64(t *testing.T, img image.Image) string {
	return base64.StdEncoding.EncodeToString(pngBytes(t, img))
}

// vpDocument builds a VP document embedding payload. An empty mask omits the mask region.
func vpDocument(payload, mask string) string {
	doc := "<?xml version=\"1.0\"?>\n<VisualPoint>\n  <Verification enc=\"base64\">\n    " + payload + "\n  "
	if mask != "" {
		return doc + "<Mask>" + mask + "</Mask>\n  </Verification>\n</VisualPoint>\n"
	}
	return doc + "<Mask/>\n  </Verification>\n</VisualPoint>\n"
}

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func readImage(t *testing.T, path string) *image.NRGBA {
	t.Helper()
	img, err := decodeFile(path)
	if err != nil {
		t.Fatalf("decode %s: %v", path, err)
	}
	return img
}

func nativeConfig(t *testing.T) *Config {
	cfg := DefaultConfig()
	cfg.ScratchDir = t.TempDir()
	cfg.Merger = MergerNative
	return cfg
}
