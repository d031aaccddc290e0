package vpdiff

import (
	"context"
	"image"
	"image/color"
	"image/gif"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	"github.com/vpcompare/vpdiff/utils"
)

// Animator combines two images into a two frame looping GIF.
type Animator struct {
	// Dir is the scratch directory receiving the intermediate frames and the artifact.
	Dir        string
	Colors     int
	Fit        string
	Background color.NRGBA
	Merger     FrameMerger
}

// NewAnimator creates an Animator from cfg, writing into dir.
func NewAnimator(cfg *Config, dir string) (*Animator, error) {
	bg, err := utils.HexToRGBA(cfg.Background)
	if err != nil {
		return nil, err
	}

	var merger FrameMerger
	switch cfg.Merger {
	case MergerNative:
		merger = &NativeMerger{Delay: cfg.Delay}
	default:
		merger = &Gifsicle{Path: cfg.GifsiclePath, Delay: cfg.Delay, Colors: cfg.Colors}
	}

	return &Animator{
		Dir:        dir,
		Colors:     cfg.Colors,
		Fit:        cfg.Fit,
		Background: bg,
		Merger:     merger,
	}, nil
}

// CommonCanvas returns the canvas size fitting both images without cropping.
func CommonCanvas(a, b image.Rectangle) image.Point {
	return image.Pt(
		utils.Max(a.Dx(), b.Dx()),
		utils.Max(a.Dy(), b.Dy()),
	)
}

// Frames decodes both image files and brings them to their common canvas size.
func (a *Animator) Frames(pathA, pathB string) (*image.NRGBA, *image.NRGBA, error) {
	imgA, err := decodeFile(pathA)
	if err != nil {
		return nil, nil, err
	}
	imgB, err := decodeFile(pathB)
	if err != nil {
		return nil, nil, err
	}
	size := CommonCanvas(imgA.Bounds(), imgB.Bounds())

	return a.fit(imgA, size), a.fit(imgB, size), nil
}

// fit brings the image to the canvas size, either by placing it in the
// top left corner of a background filled canvas or by resizing it.
func (a *Animator) fit(img *image.NRGBA, size image.Point) *image.NRGBA {
	if img.Bounds().Size() == size {
		return img
	}
	if a.Fit == FitStretch {
		return imaging.Resize(img, size.X, size.Y, imaging.Lanczos)
	}
	canvas := imaging.New(size.X, size.Y, a.Background)
	return imaging.Paste(canvas, img, image.Pt(0, 0))
}

// Combine decodes both images, fits them on the common canvas and produces
// the comparison artifact. It returns the artifact path.
func (a *Animator) Combine(ctx context.Context, pathA, pathB string) (string, error) {
	frameA, frameB, err := a.Frames(pathA, pathB)
	if err != nil {
		return "", err
	}
	return a.Animate(ctx, []image.Image{frameA, frameB}, []string{pathA, pathB})
}

// Animate encodes every frame as a single frame GIF and merges them into the artifact.
// The frames are named after labels. On failure no artifact is left behind.
func (a *Animator) Animate(ctx context.Context, frames []image.Image, labels []string) (string, error) {
	if len(frames) != len(labels) {
		return "", errors.New("every frame needs a label")
	}

	paths := make([]string, 0, len(frames))
	for i, frame := range frames {
		path := filepath.Join(a.Dir, scratchName(labels[i], ".gif"))
		if err := a.encodeFrame(path, frame); err != nil {
			return "", err
		}
		paths = append(paths, path)
	}

	artifact := filepath.Join(a.Dir, scratchName("compare", ".gif"))
	f, err := os.Create(artifact)
	if err != nil {
		return "", errors.Wrap(err, "unable to create the comparison artifact")
	}

	err = a.Merger.Merge(ctx, f, paths)
	if cerr := f.Close(); err == nil && cerr != nil {
		err = errors.Wrap(cerr, "unable to write the comparison artifact")
	}
	if err != nil {
		os.Remove(artifact)
		return "", err
	}
	return artifact, nil
}

// encodeFrame writes a single frame GIF with a reduced palette.
func (a *Animator) encodeFrame(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "unable to create the frame")
	}
	if err := gif.Encode(f, img, &gif.Options{NumColors: a.Colors}); err != nil {
		f.Close()
		return errors.Wrap(err, "unable to encode the frame")
	}
	return f.Close()
}
