package vpdiff

import (
	"context"
	"encoding/base64"
	"image/color"
	"image/gif"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// comparisonFixture writes an expected VP document masking its top left corner and an actual png.
func comparisonFixture(t *testing.T, maskType string) (expected, actual string) {
	t.Helper()
	dir := t.TempDir()

	mask := `<Rect x="0" y="0" width="2" height="2" type="` + maskType + `"/>`
	expected = writeFile(t, dir, "login", []byte(vpDocument(pngBase64(t, uniformImage(6, 4, white)), mask)))
	actual = writeFile(t, dir, "login.png", pngBytes(t, uniformImage(6, 4, blue)))
	return expected, actual
}

func TestComparator_Compare(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	expected, actual := comparisonFixture(t, "negative")

	var states []State
	c := NewComparator(nativeConfig(t))
	c.OnState = func(s State) { states = append(states, s) }

	cmp, err := c.Compare(context.Background(), expected, actual)
	require.NoError(err)
	defer cmp.Close()

	assert.Equal(StateReady, cmp.State())
	assert.Equal([]State{StateLocating, StateExtracting, StateCompositing, StateAnimating, StateReady}, states)
	assert.Equal(&Mask{Width: 2, Height: 2, Polarity: Negative}, cmp.Mask)

	raw, err := os.ReadFile(actual)
	require.NoError(err)
	assert.Equal(base64.StdEncoding.EncodeToString(raw), cmp.Candidate)

	// The mask is rendered over both images.
	for i, bg := range []color.NRGBA{white, blue} {
		frame := readImage(t, cmp.Frames[i])
		assert.Equal(black, frame.NRGBAAt(1, 1))
		assert.Equal(bg, frame.NRGBAAt(4, 3))
	}
	assert.False(cmp.Diff.Match)
	assert.Equal(24, cmp.Diff.TotalPixels)
	assert.Equal(20, cmp.Diff.DifferentPixels)

	f, err := os.Open(cmp.ArtifactPath)
	require.NoError(err)
	anim, err := gif.DecodeAll(f)
	f.Close()
	require.NoError(err)
	assert.Len(anim.Image, 2)

	require.NoError(cmp.Close())
	assert.NoDirExists(cmp.Dir)
	assert.NoError(cmp.Close())
}

func TestComparator_Accept(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	expected, actual := comparisonFixture(t, "positive")
	c := NewComparator(nativeConfig(t))

	cmp, err := c.Compare(context.Background(), expected, actual)
	require.NoError(err)
	defer cmp.Close()

	replaced, err := cmp.Accept(context.Background())
	require.NoError(err)
	assert.True(replaced)
	assert.Equal(StateDone, cmp.State())

	payload, err := ExtractFile(expected)
	require.NoError(err)
	assert.Equal(cmp.Candidate, payload)

	// The mask survives the replacement.
	data, err := os.ReadFile(expected)
	require.NoError(err)
	m, ok := ExtractMask(string(data))
	assert.True(ok)
	assert.Equal(Positive, m.Polarity)

	_, err = cmp.Accept(context.Background())
	assert.ErrorIs(err, ErrInvalidState)
	assert.ErrorIs(cmp.Dismiss(), ErrInvalidState)
}

func TestComparator_AcceptChangedBaseline(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	expected, actual := comparisonFixture(t, "negative")
	c := NewComparator(nativeConfig(t))

	cmp, err := c.Compare(context.Background(), expected, actual)
	require.NoError(err)
	defer cmp.Close()

	// The baseline lost its payload while the comparison was open.
	require.NoError(os.WriteFile(expected, []byte("<VisualPoint/>"), 0644))

	replaced, err := cmp.Accept(context.Background())
	assert.NoError(err)
	assert.False(replaced)
	assert.Equal(StateDone, cmp.State())

	data, err := os.ReadFile(expected)
	require.NoError(err)
	assert.Equal("<VisualPoint/>", string(data))
}

func TestComparator_AcceptCancelled(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	expected, actual := comparisonFixture(t, "negative")
	cmp, err := NewComparator(nativeConfig(t)).Compare(context.Background(), expected, actual)
	require.NoError(err)
	defer cmp.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = cmp.Accept(ctx)
	assert.ErrorIs(err, context.Canceled)
	assert.Equal(StateReady, cmp.State())
}

func TestComparator_Dismiss(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	expected, actual := comparisonFixture(t, "negative")
	before, err := os.ReadFile(expected)
	require.NoError(err)

	cmp, err := NewComparator(nativeConfig(t)).Compare(context.Background(), expected, actual)
	require.NoError(err)
	defer cmp.Close()

	assert.NoError(cmp.Dismiss())
	assert.Equal(StateDone, cmp.State())

	after, err := os.ReadFile(expected)
	require.NoError(err)
	assert.Equal(before, after)
}

func TestComparator_Errors(t *testing.T) {
	assert := assert.New(t)

	cfg := nativeConfig(t)
	c := NewComparator(cfg)
	dir := t.TempDir()

	_, err := c.Compare(context.Background(), "", "shot.png")
	assert.ErrorIs(err, ErrInputSelection)

	actual := writeFile(t, dir, "shot.png", pngBytes(t, uniformImage(2, 2, blue)))

	noPayload := writeFile(t, dir, "empty", []byte("<VisualPoint/>"))
	_, err = c.Compare(context.Background(), noPayload, actual)
	var extErr *ExtractionError
	assert.ErrorAs(err, &extErr)
	assert.Equal(noPayload, extErr.Path)

	corrupt := writeFile(t, dir, "corrupt", []byte(vpDocument(base64.StdEncoding.EncodeToString([]byte("garbage")), "")))
	_, err = c.Compare(context.Background(), corrupt, actual)
	var decErr *DecodeError
	assert.ErrorAs(err, &decErr)
	assert.Equal("expected", decErr.Label)

	_, err = c.Compare(context.Background(), corrupt, filepath.Join(dir, "notes.txt"))
	assert.ErrorIs(err, ErrUnsupportedFile)

	var states []State
	c.OnState = func(s State) { states = append(states, s) }
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	valid := writeFile(t, dir, "valid", []byte(vpDocument(pngBase64(t, uniformImage(2, 2, white)), "")))
	_, err = c.Compare(ctx, valid, actual)
	assert.ErrorIs(err, context.Canceled)
	assert.Equal(StateFailed, states[len(states)-1])

	// Failed comparisons leave no scratch directory behind.
	entries, err := os.ReadDir(cfg.ScratchDir)
	assert.NoError(err)
	assert.Empty(entries)
}

func TestComparator_RemoteDownloadCancelled(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer srv.Close()
	defer close(release)

	expected, _ := comparisonFixture(t, "negative")
	cfg := nativeConfig(t)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := NewComparator(cfg).Compare(ctx, expected, srv.URL+"/shot.png")
	assert.ErrorIs(err, context.DeadlineExceeded)
	assert.Less(time.Since(start), 5*time.Second)

	entries, err := os.ReadDir(cfg.ScratchDir)
	require.NoError(err)
	assert.Empty(entries)
}

func TestComparator_KeepFiles(t *testing.T) {
	require := require.New(t)

	expected, actual := comparisonFixture(t, "negative")
	cfg := nativeConfig(t)
	cfg.KeepFiles = true

	cmp, err := NewComparator(cfg).Compare(context.Background(), expected, actual)
	require.NoError(err)
	require.NoError(cmp.Close())
	assert.DirExists(t, cmp.Dir)
	assert.FileExists(t, cmp.ArtifactPath)
}

func TestComparator_StateString(t *testing.T) {
	assert.Equal(t, "ready", StateReady.String())
	assert.Equal(t, "failed", StateFailed.String())
	assert.Equal(t, "unknown", State(42).String())
}
