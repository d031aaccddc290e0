package vpdiff

import (
	"bytes"
	"context"
	"image/gif"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/vpcompare/vpdiff/utils"
)

// FrameMerger combines single frame GIF files into one looping animation written to dst.
type FrameMerger interface {
	Merge(ctx context.Context, dst io.Writer, frames []string) error
}

var (
	_ FrameMerger = (*Gifsicle)(nil)
	_ FrameMerger = (*NativeMerger)(nil)
)

// Gifsicle merges the frames by invoking the gifsicle command line utility.
type Gifsicle struct {
	Path   string
	Delay  int
	Colors int
}

// Args returns the command line arguments passed to gifsicle.
func (g *Gifsicle) Args(frames []string) []string {
	args := []string{
		"--delay=" + strconv.Itoa(g.Delay),
		"--loop",
		"--colors", strconv.Itoa(g.Colors),
	}
	return append(args, frames...)
}

// Merge runs gifsicle with its standard output redirected into dst.
// A missing binary or a non-zero exit is reported as an ExternalProcessError
// carrying the diagnostic written by the tool.
func (g *Gifsicle) Merge(ctx context.Context, dst io.Writer, frames []string) error {
	bin, err := exec.LookPath(g.Path)
	if err != nil {
		return &ExternalProcessError{Command: g.Path, Err: err}
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, g.Args(frames)...)
	cmd.Stdout = dst
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			err = ctx.Err()
		}
		return &ExternalProcessError{
			Command: g.Path,
			Output:  strings.TrimSpace(stderr.String()),
			Err:     err,
		}
	}
	return nil
}

// NativeMerger merges the frames in process with the image/gif package.
type NativeMerger struct {
	Delay int
}

// Merge decodes every frame file and encodes them as one infinitely looping GIF.
func (n *NativeMerger) Merge(ctx context.Context, dst io.Writer, frames []string) error {
	anim := &gif.GIF{LoopCount: 0}

	for _, frame := range frames {
		if err := ctx.Err(); err != nil {
			return err
		}
		g, err := decodeGIF(frame)
		if err != nil {
			return err
		}
		for _, img := range g.Image {
			anim.Image = append(anim.Image, img)
			anim.Delay = append(anim.Delay, n.Delay)
			anim.Disposal = append(anim.Disposal, gif.DisposalNone)
		}
		anim.Config.Width = utils.Max(anim.Config.Width, g.Config.Width)
		anim.Config.Height = utils.Max(anim.Config.Height, g.Config.Height)
	}
	if len(anim.Image) == 0 {
		return errors.New("no frames to merge")
	}

	return errors.Wrap(gif.EncodeAll(dst, anim), "unable to encode the animation")
}

func decodeGIF(path string) (*gif.GIF, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "unable to open the frame")
	}
	defer f.Close()

	g, err := gif.DecodeAll(f)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to decode the frame %s", path)
	}
	return g, nil
}
