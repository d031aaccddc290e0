package vpdiff

import (
	"image"
	"image/color"
	"image/draw"
	"path/filepath"

	"github.com/fogleman/gg"
	"github.com/google/uuid"
	"github.com/vpcompare/vpdiff/imop"
	"github.com/vpcompare/vpdiff/utils"
)

// Compositor renders the mask region over an image.
type Compositor struct {
	// Dir is the scratch directory receiving the composited images.
	Dir          string
	OutlineWidth int
	OutlineColor color.NRGBA
}

// NewCompositor creates a Compositor writing into dir with the outline settings of cfg.
func NewCompositor(cfg *Config, dir string) (*Compositor, error) {
	col, err := utils.HexToRGBA(cfg.OutlineColor)
	if err != nil {
		return nil, err
	}
	return &Compositor{
		Dir:          dir,
		OutlineWidth: utils.Max(cfg.OutlineWidth, 1),
		OutlineColor: col,
	}, nil
}

// ApplyMask decodes the image, renders the mask over it and saves the result
// as a new png file named after label. It returns the path of the file.
// A nil mask writes the decoded image unchanged.
func (c *Compositor) ApplyMask(data []byte, mask *Mask, label string) (string, error) {
	img, err := decodeImg(data, label)
	if err != nil {
		return "", err
	}
	img = c.Composite(img, mask)

	path := filepath.Join(c.Dir, scratchName(label, ".png"))
	if err := encodePNG(path, img); err != nil {
		return "", err
	}
	return path, nil
}

// Composite renders the mask over img in place and returns it.
// The mask is clipped to the decoded image dimensions.
func (c *Compositor) Composite(img *image.NRGBA, mask *Mask) *image.NRGBA {
	if mask == nil {
		return img
	}
	r := mask.Bounds().Intersect(img.Bounds())
	if r.Empty() {
		return img
	}

	var layer *image.NRGBA
	switch mask.Effective() {
	case Positive:
		layer = c.outline(img.Bounds(), r)
	default:
		layer = image.NewNRGBA(img.Bounds())
		draw.Draw(layer, r, image.NewUniform(color.NRGBA{A: 0xff}), image.Point{}, draw.Src)
	}

	// Only the mask rectangle is composited, the rest of the image is left as decoded.
	op := imop.InitOp()
	op.Draw(nil, layer.SubImage(r).(*image.NRGBA), img.SubImage(r).(*image.NRGBA))

	return img
}

// outline strokes the border of r on a transparent layer of the given bounds.
// The stroke stays inside r, so the pixels around the rectangle are preserved.
func (c *Compositor) outline(bounds, r image.Rectangle) *image.NRGBA {
	lw := utils.Min(c.OutlineWidth, utils.Min(r.Dx(), r.Dy())/2)

	dc := gg.NewContext(bounds.Dx(), bounds.Dy())
	dc.SetColor(c.OutlineColor)

	// Rectangles too thin to hold a border are highlighted as a whole.
	if lw < 1 {
		dc.DrawRectangle(float64(r.Min.X), float64(r.Min.Y), float64(r.Dx()), float64(r.Dy()))
		dc.Fill()
		return imgToNRGBA(dc.Image())
	}

	half := float64(lw) / 2
	dc.SetLineWidth(float64(lw))
	dc.SetLineJoin(gg.LineJoinBevel)
	dc.DrawRectangle(
		float64(r.Min.X)+half,
		float64(r.Min.Y)+half,
		float64(r.Dx()-lw),
		float64(r.Dy()-lw),
	)
	dc.Stroke()

	return imgToNRGBA(dc.Image())
}

// scratchName returns a collision resistant file name derived from label.
func scratchName(label, ext string) string {
	return sanitize(label) + "-" + uuid.Must(uuid.NewV7()).String() + ext
}

// sanitize keeps the label usable as a file name.
func sanitize(label string) string {
	base := filepath.Base(label)
	base = base[:len(base)-len(filepath.Ext(base))]
	out := make([]rune, 0, len(base))
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			out = append(out, r)
		default:
			out = append(out, '_')
		}
	}
	if len(out) == 0 {
		return "image"
	}
	return string(out)
}
