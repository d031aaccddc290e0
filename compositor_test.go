package vpdiff

import (
	"fmt"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCompositor(t *testing.T) *Compositor {
	t.Helper()
	c, err := NewCompositor(DefaultConfig(), t.TempDir())
	require.NoError(t, err)
	return c
}

func TestCompositor_NegativeMask(t *testing.T) {
	assert := assert.New(t)
	c := newTestCompositor(t)

	img := uniformImage(20, 10, white)
	mask := &Mask{X: 5, Y: 2, Width: 6, Height: 4, Polarity: Negative}
	out := c.Composite(img, mask)

	r := mask.Bounds()
	for y := 0; y < 10; y++ {
		for x := 0; x < 20; x++ {
			if image.Pt(x, y).In(r) {
				assert.Equal(black, out.NRGBAAt(x, y), "masked pixel (%d,%d)", x, y)
			} else {
				assert.Equal(white, out.NRGBAAt(x, y), "pixel (%d,%d)", x, y)
			}
		}
	}
}

func TestCompositor_UnsetPolarityObscures(t *testing.T) {
	assert := assert.New(t)
	c := newTestCompositor(t)

	out := c.Composite(uniformImage(8, 8, blue), &Mask{X: 0, Y: 0, Width: 4, Height: 4})
	assert.Equal(black, out.NRGBAAt(1, 1))
	assert.Equal(blue, out.NRGBAAt(6, 6))
}

func TestCompositor_PositiveMask(t *testing.T) {
	for width := 1; width <= 4; width++ {
		t.Run(fmt.Sprintf("width %d", width), func(t *testing.T) {
			assert := assert.New(t)
			c := newTestCompositor(t)
			c.OutlineWidth = width

			img := uniformImage(24, 24, white)
			mask := &Mask{X: 4, Y: 4, Width: 14, Height: 12, Polarity: Positive}
			out := c.Composite(img, mask)

			// The border is drawn on every side.
			assert.NotEqual(white, out.NRGBAAt(4, 10))
			assert.NotEqual(white, out.NRGBAAt(17, 10))
			assert.NotEqual(white, out.NRGBAAt(10, 4))
			assert.NotEqual(white, out.NRGBAAt(10, 15))

			r := mask.Bounds()
			inner := r.Inset(width)
			for y := 0; y < 24; y++ {
				for x := 0; x < 24; x++ {
					p := image.Pt(x, y)
					if !p.In(r) || p.In(inner) {
						assert.Equal(white, out.NRGBAAt(x, y), "pixel (%d,%d)", x, y)
					}
				}
			}
		})
	}
}

func TestCompositor_TransparentPixelsPreserved(t *testing.T) {
	assert := assert.New(t)
	c := newTestCompositor(t)

	hidden := color.NRGBA{R: 200, G: 10, B: 10, A: 0}
	for _, polarity := range []Polarity{Negative, Positive} {
		img := uniformImage(8, 8, hidden)
		mask := &Mask{X: 0, Y: 0, Width: 6, Height: 6, Polarity: polarity}
		out := c.Composite(img, mask)

		assert.Equal(hidden, out.NRGBAAt(7, 7), string(polarity))
		assert.Equal(hidden, out.NRGBAAt(6, 0), string(polarity))
		if polarity == Negative {
			assert.Equal(black, out.NRGBAAt(0, 0))
		} else {
			// The interior of an outlined region keeps its pixels.
			assert.Equal(hidden, out.NRGBAAt(3, 3))
		}
	}
}

func TestCompositor_MaskClippedToImage(t *testing.T) {
	assert := assert.New(t)
	c := newTestCompositor(t)

	out := c.Composite(uniformImage(10, 10, white), &Mask{X: 6, Y: 6, Width: 100, Height: 100})
	assert.Equal(image.Rect(0, 0, 10, 10), out.Bounds())
	assert.Equal(black, out.NRGBAAt(9, 9))
	assert.Equal(white, out.NRGBAAt(5, 5))

	out = c.Composite(uniformImage(10, 10, white), &Mask{X: 50, Y: 50, Width: 5, Height: 5})
	assert.Equal(white, out.NRGBAAt(9, 9))
}

func TestCompositor_ApplyMask(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	c := newTestCompositor(t)

	src := uniformImage(6, 6, color.NRGBA{R: 0x20, G: 0x40, B: 0x60, A: 0xff})
	path, err := c.ApplyMask(pngBytes(t, src), nil, "expected")
	require.NoError(err)
	assert.Contains(path, c.Dir)
	assert.Equal(src.Pix, readImage(t, path).Pix)

	second, err := c.ApplyMask(pngBytes(t, src), nil, "expected")
	require.NoError(err)
	assert.NotEqual(path, second, "scratch names should not collide")

	_, err = c.ApplyMask([]byte("not an image"), nil, "actual")
	var decErr *DecodeError
	assert.ErrorAs(err, &decErr)
	assert.Equal("actual", decErr.Label)
	assert.Contains(decErr.ContentType, "text/plain")

	_, err = c.ApplyMask(nil, nil, "actual")
	assert.ErrorAs(err, &decErr)
}

func TestCompositor_ScratchName(t *testing.T) {
	assert := assert.New(t)

	assert.Regexp(`^expected-[0-9a-f-]{36}\.png$`, scratchName("expected", ".png"))
	assert.Regexp(`^login_page-[0-9a-f-]{36}\.gif$`, scratchName("/tmp/login page.vp", ".gif"))
	assert.Regexp(`^image-`, scratchName("", ".png"))
}
