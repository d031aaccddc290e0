// Package imop implements the Porter-Duff composition operations
// used for mixing a graphic element with its backdrop.
// Porter and Duff presented in their paper 12 different composition operation,
// but the image/draw core package implements only the source-over-destination and source.
// This package is aimed to overcome the missing composite operations.
//
// It is used to lay the mask overlays (the opaque block of a negative mask and the
// outline of a positive mask) over the compared images.
package imop

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/vpcompare/vpdiff/utils"
)

const (
	Clear   = "clear"
	Copy    = "copy"
	Dst     = "dst"
	SrcOver = "src_over"
	DstOver = "dst_over"
	SrcIn   = "src_in"
	DstIn   = "dst_in"
	SrcOut  = "src_out"
	DstOut  = "dst_out"
	SrcAtop = "src_atop"
	DstAtop = "dst_atop"
	Xor     = "xor"
)

// Bitmap holds the result of a composition.
type Bitmap struct {
	Img *image.NRGBA
}

// Composite holds the currently active composition operation.
type Composite struct {
	current string
	ops     []string
}

// NewBitmap initializes a new, fully transparent Bitmap.
func NewBitmap(rect image.Rectangle) *Bitmap {
	return &Bitmap{
		Img: image.NewNRGBA(rect),
	}
}

// InitOp initializes a new Composite with SrcOver as the active operation.
func InitOp() *Composite {
	return &Composite{
		current: SrcOver,
		ops: []string{
			Clear,
			Copy,
			Dst,
			SrcOver,
			DstOver,
			SrcIn,
			DstIn,
			SrcOut,
			DstOut,
			SrcAtop,
			DstAtop,
			Xor,
		},
	}
}

// Set changes the active composition operation.
func (op *Composite) Set(cop string) error {
	if !utils.Contains(op.ops, cop) {
		return fmt.Errorf("unsupported composite operation: %q", cop)
	}
	op.current = cop
	return nil
}

// Get returns the active composition operation.
func (op *Composite) Get() string {
	return op.current
}

// Draw composes src (the element) over dst (the backdrop) and writes the
// outcome into the bitmap. Only the area shared by the three images is touched.
// A nil bitmap writes the result back into dst.
func (op *Composite) Draw(bitmap *Bitmap, src, dst *image.NRGBA) {
	out := dst
	if bitmap != nil {
		out = bitmap.Img
	}
	r := out.Bounds().Intersect(src.Bounds()).Intersect(dst.Bounds())

	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			si := src.PixOffset(x, y)
			di := dst.PixOffset(x, y)

			// A transparent element over the backdrop keeps the backdrop untouched,
			// including the color of fully transparent pixels.
			if op.current == SrcOver && src.Pix[si+3] == 0 {
				if bitmap != nil {
					copy(out.Pix[out.PixOffset(x, y):out.PixOffset(x, y)+4], dst.Pix[di:di+4])
				}
				continue
			}

			as := float64(src.Pix[si+3]) / 255
			ab := float64(dst.Pix[di+3]) / 255

			// Fs and Fb are the fractions of the source and the backdrop kept by the operation.
			var fs, fb float64
			switch op.current {
			case Clear:
				fs, fb = 0, 0
			case Copy:
				fs, fb = 1, 0
			case Dst:
				fs, fb = 0, 1
			case SrcOver:
				fs, fb = 1, 1-as
			case DstOver:
				fs, fb = 1-ab, 1
			case SrcIn:
				fs, fb = ab, 0
			case DstIn:
				fs, fb = 0, as
			case SrcOut:
				fs, fb = 1-ab, 0
			case DstOut:
				fs, fb = 0, 1-as
			case SrcAtop:
				fs, fb = ab, 1-as
			case DstAtop:
				fs, fb = 1-ab, as
			case Xor:
				fs, fb = 1-ab, 1-as
			}

			ao := as*fs + ab*fb
			var c color.NRGBA
			if ao > 0 {
				for ch := 0; ch < 3; ch++ {
					cs := float64(src.Pix[si+ch]) / 255
					cb := float64(dst.Pix[di+ch]) / 255
					// Compose the premultiplied values, then store them straight.
					co := (as*fs*cs + ab*fb*cb) / ao
					switch ch {
					case 0:
						c.R = toUint8(co)
					case 1:
						c.G = toUint8(co)
					case 2:
						c.B = toUint8(co)
					}
				}
				c.A = toUint8(ao)
			}
			out.SetNRGBA(x, y, c)
		}
	}
}

func toUint8(v float64) uint8 {
	return uint8(math.Round(utils.Clamp(v, 0, 1) * 255))
}
