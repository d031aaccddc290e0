package vpdiff

import (
	"encoding/xml"
	"fmt"
	"image"
	"strconv"
	"strings"
)

// The anchors bounding the mask descriptor of a VP document.
const (
	MaskStartAnchor = "<Mask>"
	MaskEndAnchor   = "</Mask>"
)

// Polarity defines how a masked region is rendered.
type Polarity string

const (
	// Negative obscures the region with an opaque black rectangle.
	Negative Polarity = "negative"
	// Positive outlines the region and leaves its content visible.
	Positive Polarity = "positive"
	// Unset is used when the rectangle carries no type attribute.
	Unset Polarity = ""
)

// Mask is the rectangle descriptor found inside the mask region.
type Mask struct {
	X, Y          int
	Width, Height int
	Polarity      Polarity
}

// Bounds returns the mask as an image rectangle.
func (m *Mask) Bounds() image.Rectangle {
	return image.Rect(m.X, m.Y, m.X+m.Width, m.Y+m.Height)
}

// Effective returns the polarity used for rendering. Anything other than
// positive, the unset value included, obscures the region.
func (m *Mask) Effective() Polarity {
	if m.Polarity == Positive {
		return Positive
	}
	return Negative
}

func (m *Mask) String() string {
	return fmt.Sprintf("%s mask %dx%d at (%d,%d)", m.Effective(), m.Width, m.Height, m.X, m.Y)
}

// ExtractMaskRegion returns the text from just after the mask start anchor through the end
// of the closing anchor. Anchors found at offset 0 are treated as missing.
func ExtractMaskRegion(doc string) (string, bool) {
	start := strings.Index(doc, MaskStartAnchor)
	end := strings.Index(doc, MaskEndAnchor)
	if start <= 0 || end <= 0 {
		return "", false
	}
	from := start + len(MaskStartAnchor)
	to := end + len(MaskEndAnchor)
	if to < from {
		return "", false
	}
	return doc[from:to], true
}

// ParseMask reads the first rectangle element of a mask region. It tolerates the
// trailing closing anchor and any other surrounding markup. Missing or malformed
// coordinates default to zero.
func ParseMask(region string) (*Mask, bool) {
	dec := xml.NewDecoder(strings.NewReader(region))
	dec.Strict = false

	for {
		// A syntax error past the last rectangle candidate, such as the unmatched
		// closing anchor, ends the scan the same way io.EOF does.
		tok, err := dec.Token()
		if err != nil {
			return nil, false
		}
		el, ok := tok.(xml.StartElement)
		if !ok || !isRectElement(el.Name.Local) {
			continue
		}

		m := &Mask{}
		for _, attr := range el.Attr {
			switch strings.ToLower(attr.Name.Local) {
			case "x":
				m.X = atoi(attr.Value)
			case "y":
				m.Y = atoi(attr.Value)
			case "width":
				m.Width = atoi(attr.Value)
			case "height":
				m.Height = atoi(attr.Value)
			case "type":
				m.Polarity = Polarity(strings.ToLower(strings.TrimSpace(attr.Value)))
			}
		}
		return m, true
	}
}

// ExtractMask returns the mask rectangle of a VP document, or false if the document has none.
func ExtractMask(doc string) (*Mask, bool) {
	region, ok := ExtractMaskRegion(doc)
	if !ok {
		return nil, false
	}
	return ParseMask(region)
}

// isRectElement matches the rectangle descriptor element: Rect, Rectangle, MaskRect...
func isRectElement(name string) bool {
	return strings.Contains(strings.ToLower(name), "rect")
}

func atoi(s string) int {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	// Coordinates are sometimes serialized as floats.
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return int(f)
	}
	return 0
}
