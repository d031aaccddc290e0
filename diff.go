package vpdiff

import (
	"image"

	"github.com/vpcompare/vpdiff/utils"
)

// DiffResult summarizes the pixel differences between the two frames.
type DiffResult struct {
	Match           bool
	DifferentPixels int
	TotalPixels     int
	MaxDifference   int // Max color channel difference found
}

// Percent returns the share of different pixels.
func (d DiffResult) Percent() float64 {
	if d.TotalPixels == 0 {
		return 0
	}
	return float64(d.DifferentPixels) / float64(d.TotalPixels) * 100
}

// Diff compares two images of the same size pixel by pixel. A pixel differs
// when any of its channels differs by more than tolerance.
// Pixels outside the shared area are counted as different.
func Diff(a, b *image.NRGBA, tolerance int) DiffResult {
	ra, rb := a.Bounds(), b.Bounds()
	shared := ra.Intersect(rb)
	size := CommonCanvas(ra, rb)

	res := DiffResult{
		TotalPixels: size.X * size.Y,
	}
	for y := shared.Min.Y; y < shared.Max.Y; y++ {
		for x := shared.Min.X; x < shared.Max.X; x++ {
			ia, ib := a.PixOffset(x, y), b.PixOffset(x, y)

			diff := 0
			for ch := 0; ch < 4; ch++ {
				d := int(a.Pix[ia+ch]) - int(b.Pix[ib+ch])
				if d < 0 {
					d = -d
				}
				diff = utils.Max(diff, d)
			}
			res.MaxDifference = utils.Max(res.MaxDifference, diff)
			if diff > tolerance {
				res.DifferentPixels++
			}
		}
	}
	res.DifferentPixels += res.TotalPixels - shared.Dx()*shared.Dy()
	res.Match = res.DifferentPixels == 0

	return res
}
