package vpdiff

import (
	"context"
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/vpcompare/vpdiff/utils"
)

// The anchors bounding the image payload of a VP document.
const (
	PayloadStartAnchor = "<Verification "
	PayloadEndAnchor   = "<Mask"
)

// rasterExtensions lists the raw image files accepted as the actual image.
var rasterExtensions = []string{".png", ".jpg", ".jpeg"}

// Span is the byte range of a payload inside its document.
type Span struct {
	Start, End int
}

// Locate finds the image payload of a VP document and returns its byte range.
// The payload starts after the first '>' following the start anchor and ends
// before the first end anchor, both trimmed of surrounding whitespace.
func Locate(doc string) (Span, bool) {
	start := strings.Index(doc, PayloadStartAnchor)
	if start == -1 {
		return Span{}, false
	}
	idx := strings.Index(doc[start:], PayloadEndAnchor)
	if idx <= 0 {
		return Span{}, false
	}
	end := start + idx

	// Trim the whitespace around the region, then skip the remainder of the opening tag.
	lo, hi := start, end
	for hi > lo && isSpace(doc[hi-1]) {
		hi--
	}
	if gt := strings.IndexByte(doc[lo:hi], '>'); gt != -1 {
		lo += gt + 1
	}
	for lo < hi && isSpace(doc[lo]) {
		lo++
	}
	for hi > lo && isSpace(doc[hi-1]) {
		hi--
	}
	return Span{Start: lo, End: hi}, true
}

// Extract returns the base64 image payload embedded in a VP document.
func Extract(doc string) (string, error) {
	span, ok := Locate(doc)
	if !ok {
		return "", ErrPayloadNotFound
	}
	return doc[span.Start:span.End], nil
}

// ExtractFile reads a VP document from disk and returns its payload.
func ExtractFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", &ExtractionError{Path: path, Err: err}
	}
	payload, err := Extract(string(data))
	if err != nil {
		return "", &ExtractionError{Path: path, Err: err}
	}
	return payload, nil
}

// ExtractExternal returns the payload of the actual image. Files without extension
// are treated as VP documents, raster images are base64 encoded as a whole.
// Remote images are downloaded into dir first, the download stops once ctx is done.
func ExtractExternal(ctx context.Context, path, dir string) (string, error) {
	if utils.IsValidUrl(path) {
		return extractRemote(ctx, path, dir)
	}

	ext := strings.ToLower(fileExt(path))
	switch {
	case ext == "":
		return ExtractFile(path)
	case utils.Contains(rasterExtensions, ext):
		data, err := os.ReadFile(path)
		if err != nil {
			return "", &ExtractionError{Path: path, Err: err}
		}
		return base64.StdEncoding.EncodeToString(data), nil
	default:
		return "", &ExtractionError{Path: path, Err: errors.Wrapf(ErrUnsupportedFile, "extension %q", ext)}
	}
}

// extractRemote downloads the image found at uri and encodes it by the extension of the URL path.
func extractRemote(ctx context.Context, uri, dir string) (string, error) {
	ext := strings.ToLower(fileExt(utils.URLPath(uri)))
	if !utils.Contains(rasterExtensions, ext) {
		return "", &ExtractionError{Path: uri, Err: errors.Wrapf(ErrUnsupportedFile, "extension %q", ext)}
	}
	f, err := utils.DownloadImage(ctx, uri, dir)
	if err != nil {
		return "", &ExtractionError{Path: uri, Err: err}
	}
	defer os.Remove(f.Name())
	defer f.Close()

	data, err := os.ReadFile(f.Name())
	if err != nil {
		return "", &ExtractionError{Path: uri, Err: err}
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// Replace substitutes the first occurrence of oldPayload with newPayload.
// The document is returned unchanged with false if the payload anchors
// cannot be located in it.
func Replace(doc, oldPayload, newPayload string) (string, bool) {
	span, ok := Locate(doc)
	if !ok {
		return doc, false
	}
	// An empty payload has no textual occurrence, so splice it at its location.
	if oldPayload == "" {
		return doc[:span.Start] + newPayload + doc[span.End:], true
	}
	if !strings.Contains(doc, oldPayload) {
		return doc, false
	}
	return strings.Replace(doc, oldPayload, newPayload, 1), true
}

// ReplaceFile re-reads the VP document at path, locates its current payload and
// overwrites it with newPayload. It reports false without writing when the anchors
// are no longer present.
func ReplaceFile(path, newPayload string) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return false, errors.Wrap(err, "unable to read the VP document")
	}
	doc := string(data)

	oldPayload, err := Extract(doc)
	if err != nil {
		return false, nil
	}
	updated, ok := Replace(doc, oldPayload, newPayload)
	if !ok {
		return false, nil
	}
	if err := writeFileAtomic(path, []byte(updated)); err != nil {
		return false, err
	}
	return true, nil
}

// writeFileAtomic writes data into a sibling temporary file and renames it over path.
func writeFileAtomic(path string, data []byte) error {
	mode := os.FileMode(0644)
	if fi, err := os.Stat(path); err == nil {
		mode = fi.Mode().Perm()
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+"-*")
	if err != nil {
		return errors.Wrap(err, "unable to create the temporary VP document")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrap(err, "unable to write the VP document")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "unable to write the VP document")
	}
	if err := os.Chmod(tmp.Name(), mode); err != nil {
		return errors.Wrap(err, "unable to set the VP document permissions")
	}
	return errors.Wrap(os.Rename(tmp.Name(), path), "unable to replace the VP document")
}

// fileExt returns the extension of path. A name whose only dot is the leading
// one, such as ".login", has no extension.
func fileExt(path string) string {
	base := filepath.Base(path)
	if strings.LastIndexByte(base, '.') <= 0 {
		return ""
	}
	return filepath.Ext(base)
}

func isSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', '\v', '\f':
		return true
	}
	return false
}
