package vpdiff

import (
	"context"
	"image"
	"log/slog"
	"os"
	"sync"

	"github.com/pkg/errors"
	"github.com/vpcompare/vpdiff/utils"
	"golang.org/x/sync/errgroup"
)

// State is the stage reached by a comparison request.
type State int

const (
	StateIdle State = iota
	StateLocating
	StateExtracting
	StateCompositing
	StateAnimating
	StateReady
	StateReplacing
	StateDone
	StateFailed
)

var stateNames = [...]string{
	StateIdle:        "idle",
	StateLocating:    "locating",
	StateExtracting:  "extracting",
	StateCompositing: "compositing",
	StateAnimating:   "animating",
	StateReady:       "ready",
	StateReplacing:   "replacing",
	StateDone:        "done",
	StateFailed:      "failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// ErrInvalidState is returned when an action is not allowed in the current state.
var ErrInvalidState = errors.New("invalid comparison state")

// Comparator runs the comparison pipeline.
type Comparator struct {
	cfg *Config

	// OnState, if set, is called on every state transition.
	OnState func(State)
}

// NewComparator creates a Comparator. A nil cfg uses DefaultConfig.
func NewComparator(cfg *Config) *Comparator {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	cfg.defaults()
	return &Comparator{cfg: cfg}
}

// Config returns the options used by the comparator.
func (c *Comparator) Config() *Config { return c.cfg }

// Comparison is the outcome of a comparison request, ready to be viewed and accepted.
type Comparison struct {
	ExpectedPath string
	ActualPath   string
	// Candidate is the unmodified actual payload written into the baseline on accept.
	Candidate string
	Mask      *Mask
	// Frames are the composited expected and actual images at their common canvas size.
	Frames       [2]string
	ArtifactPath string
	Diff         DiffResult
	Dir          string

	mu      sync.Mutex
	state   State
	keep    bool
	closed  bool
	onState func(State)
	logger  *slog.Logger
}

// State returns the current state of the comparison.
func (cmp *Comparison) State() State {
	cmp.mu.Lock()
	defer cmp.mu.Unlock()
	return cmp.state
}

func (cmp *Comparison) setState(s State) {
	cmp.mu.Lock()
	cmp.state = s
	cmp.mu.Unlock()

	cmp.notify(s)
}

func (cmp *Comparison) notify(s State) {
	cmp.logger.Debug("comparison state", "state", s.String(), "expected", cmp.ExpectedPath)
	if cmp.onState != nil {
		cmp.onState(s)
	}
}

// transition moves the comparison from one of the allowed states to next.
func (cmp *Comparison) transition(next State, from ...State) error {
	cmp.mu.Lock()
	cur := cmp.state
	if !utils.Contains(from, cur) {
		cmp.mu.Unlock()
		return errors.Wrapf(ErrInvalidState, "cannot move from %s to %s", cur, next)
	}
	cmp.state = next
	cmp.mu.Unlock()

	cmp.notify(next)
	return nil
}

// Compare extracts the expected and actual images, renders the mask of the expected
// VP document over both and combines them into the comparison artifact.
// Any failure aborts the request and removes its temporary files.
func (c *Comparator) Compare(ctx context.Context, expected, actual string) (*Comparison, error) {
	if expected == "" || actual == "" {
		return nil, ErrInputSelection
	}

	dir, err := os.MkdirTemp(c.cfg.ScratchDir, "vpdiff-*")
	if err != nil {
		return nil, errors.Wrap(err, "unable to create the scratch directory")
	}

	cmp := &Comparison{
		ExpectedPath: expected,
		ActualPath:   actual,
		Dir:          dir,
		keep:         c.cfg.KeepFiles,
		onState:      c.OnState,
		logger:       c.cfg.Logger,
	}
	if err := c.run(ctx, cmp); err != nil {
		cmp.setState(StateFailed)
		cmp.logger.Error("comparison failed", "expected", expected, "actual", actual, "error", err)
		cmp.Close()
		return nil, err
	}
	cmp.setState(StateReady)

	return cmp, nil
}

func (c *Comparator) run(ctx context.Context, cmp *Comparison) error {
	compositor, err := NewCompositor(c.cfg, cmp.Dir)
	if err != nil {
		return err
	}
	animator, err := NewAnimator(c.cfg, cmp.Dir)
	if err != nil {
		return err
	}

	cmp.setState(StateLocating)
	data, err := os.ReadFile(cmp.ExpectedPath)
	if err != nil {
		return &ExtractionError{Path: cmp.ExpectedPath, Err: err}
	}
	doc := string(data)
	baseline, err := Extract(doc)
	if err != nil {
		return &ExtractionError{Path: cmp.ExpectedPath, Err: err}
	}
	if mask, ok := ExtractMask(doc); ok {
		cmp.Mask = mask
		cmp.logger.Debug("mask found", "mask", mask.String())
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	cmp.setState(StateExtracting)
	cmp.Candidate, err = ExtractExternal(ctx, cmp.ActualPath, cmp.Dir)
	if err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	cmp.setState(StateCompositing)

	// The expected and actual images share no state and are composited concurrently.
	var composited [2]string
	g, gctx := errgroup.WithContext(ctx)
	for i, src := range []struct{ payload, label string }{
		{baseline, "expected"},
		{cmp.Candidate, "actual"},
	} {
		i, src := i, src
		g.Go(func() error {
			raw, err := decodePayload(src.payload, src.label)
			if err != nil {
				return err
			}
			if err := gctx.Err(); err != nil {
				return err
			}
			path, err := compositor.ApplyMask(raw, cmp.Mask, src.label)
			if err != nil {
				return err
			}
			composited[i] = path
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	cmp.setState(StateAnimating)
	frameA, frameB, err := animator.Frames(composited[0], composited[1])
	if err != nil {
		return err
	}
	cmp.Diff = Diff(frameA, frameB, c.cfg.Tolerance)
	c.cfg.Logger.Debug("frames ready",
		"width", frameA.Bounds().Dx(),
		"height", frameA.Bounds().Dy(),
		"different_pixels", cmp.Diff.DifferentPixels,
	)

	// Keep the canvas sized frames, they are served next to the artifact.
	for i, img := range []*image.NRGBA{frameA, frameB} {
		if err := encodePNG(composited[i], img); err != nil {
			return err
		}
		cmp.Frames[i] = composited[i]
	}

	cmp.ArtifactPath, err = animator.Animate(ctx,
		[]image.Image{frameA, frameB},
		[]string{"expected", "actual"},
	)
	return err
}

// Accept writes the actual payload into the expected VP document. The payload to
// replace is located again in the current file content; when it cannot be found the
// document is left untouched and false is returned without error.
func (cmp *Comparison) Accept(ctx context.Context) (bool, error) {
	if err := cmp.transition(StateReplacing, StateReady); err != nil {
		return false, err
	}
	if err := ctx.Err(); err != nil {
		cmp.setState(StateReady)
		return false, err
	}

	replaced, err := ReplaceFile(cmp.ExpectedPath, cmp.Candidate)
	if err != nil {
		cmp.setState(StateFailed)
		return false, err
	}
	if !replaced {
		cmp.logger.Debug("baseline payload not found, nothing replaced", "expected", cmp.ExpectedPath)
	}
	cmp.setState(StateDone)

	return replaced, nil
}

// Dismiss ends the comparison without touching the baseline.
func (cmp *Comparison) Dismiss() error {
	return cmp.transition(StateDone, StateReady)
}

// SaveArtifact copies the comparison artifact to dst.
func (cmp *Comparison) SaveArtifact(dst string) error {
	if cmp.ArtifactPath == "" {
		return errors.Wrap(ErrInvalidState, "no comparison artifact")
	}
	return copyFile(cmp.ArtifactPath, dst)
}

// Close removes the temporary files of the comparison unless they are kept by configuration.
func (cmp *Comparison) Close() error {
	cmp.mu.Lock()
	defer cmp.mu.Unlock()

	if cmp.closed || cmp.keep {
		return nil
	}
	cmp.closed = true
	return os.RemoveAll(cmp.Dir)
}
