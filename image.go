package vpdiff

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/vpcompare/vpdiff/utils"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// decodePayload decodes a base64 payload into raw image bytes.
// Line breaks and indentation inside the payload are ignored.
func decodePayload(payload, label string) ([]byte, error) {
	clean := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', '\r':
			return -1
		}
		return r
	}, payload)

	data, err := base64.StdEncoding.DecodeString(clean)
	if err != nil {
		return nil, &DecodeError{Label: label, Err: errors.Wrap(err, "invalid base64 payload")}
	}
	return data, nil
}

// decodeImg decodes the raw image bytes to type *image.NRGBA.
func decodeImg(data []byte, label string) (*image.NRGBA, error) {
	if len(data) == 0 {
		return nil, &DecodeError{Label: label, Err: errors.New("empty image")}
	}
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, &DecodeError{
			Label:       label,
			ContentType: utils.DetectContentType(data),
			Err:         err,
		}
	}
	return imgToNRGBA(src), nil
}

// DecodePayload decodes a base64 image payload to an image.
func DecodePayload(payload string) (image.Image, error) {
	data, err := decodePayload(payload, "payload")
	if err != nil {
		return nil, err
	}
	return decodeImg(data, "payload")
}

// encodePNG encodes an image into a new png file.
func encodePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "unable to create the destination file")
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return errors.Wrap(err, "unable to encode the png image")
	}
	return f.Close()
}

// decodeFile decodes an image file to type *image.NRGBA.
func decodeFile(path string) (*image.NRGBA, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "could not open the image file")
	}
	return decodeImg(data, path)
}

// imgToNRGBA converts any image type to *image.NRGBA with min-point at (0, 0).
func imgToNRGBA(img image.Image) *image.NRGBA {
	srcBounds := img.Bounds()
	if srcBounds.Min.X == 0 && srcBounds.Min.Y == 0 {
		if src0, ok := img.(*image.NRGBA); ok {
			return src0
		}
	}
	srcMinX := srcBounds.Min.X
	srcMinY := srcBounds.Min.Y

	dstBounds := srcBounds.Sub(srcBounds.Min)
	dstW := dstBounds.Dx()
	dstH := dstBounds.Dy()
	dst := image.NewNRGBA(dstBounds)

	switch src := img.(type) {
	case *image.NRGBA:
		rowSize := srcBounds.Dx() * 4
		for dstY := 0; dstY < dstH; dstY++ {
			di := dst.PixOffset(0, dstY)
			si := src.PixOffset(srcMinX, srcMinY+dstY)
			copy(dst.Pix[di:di+rowSize], src.Pix[si:si+rowSize])
		}
	case *image.YCbCr:
		for dstY := 0; dstY < dstH; dstY++ {
			di := dst.PixOffset(0, dstY)
			for dstX := 0; dstX < dstW; dstX++ {
				srcX := srcMinX + dstX
				srcY := srcMinY + dstY
				siy := src.YOffset(srcX, srcY)
				sic := src.COffset(srcX, srcY)
				r, g, b := color.YCbCrToRGB(src.Y[siy], src.Cb[sic], src.Cr[sic])
				dst.Pix[di+0] = r
				dst.Pix[di+1] = g
				dst.Pix[di+2] = b
				dst.Pix[di+3] = 0xff
				di += 4
			}
		}
	default:
		for dstY := 0; dstY < dstH; dstY++ {
			di := dst.PixOffset(0, dstY)
			for dstX := 0; dstX < dstW; dstX++ {
				c := color.NRGBAModel.Convert(img.At(srcMinX+dstX, srcMinY+dstY)).(color.NRGBA)
				dst.Pix[di+0] = c.R
				dst.Pix[di+1] = c.G
				dst.Pix[di+2] = c.B
				dst.Pix[di+3] = c.A
				di += 4
			}
		}
	}

	return dst
}
