package vpdiff

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// maxWorkers sets the maximum number of concurrently running workers.
const maxWorkers = 20

// Ops describes a non interactive comparison run. Expected and Actual are either
// two files or two directories; in the latter case every VP document of Expected
// is compared against the actual file of the same name.
type Ops struct {
	Expected, Actual, Output string
	Workers                  int
	// Accept replaces every baseline with its actual image after the artifact is saved.
	Accept bool
}

// Result holds the relevant information about a comparison and the generated artifact.
type Result struct {
	Expected string
	Actual   string
	Artifact string
	Diff     DiffResult
	Accepted bool
	Err      error
}

// Execute runs the comparisons and saves the artifacts into Output.
// Per file failures are reported in the results and do not stop the run.
func (op *Ops) Execute(ctx context.Context, c *Comparator) ([]Result, error) {
	if op.Expected == "" || op.Actual == "" {
		return nil, ErrInputSelection
	}
	fi, err := os.Stat(op.Expected)
	if err != nil {
		return nil, &ExtractionError{Path: op.Expected, Err: err}
	}

	if !fi.IsDir() {
		dst := op.Output
		if dst == "" || isDir(dst) {
			dst = filepath.Join(dst, ArtifactName(op.Expected))
		}
		return []Result{op.process(ctx, c, op.Expected, op.Actual, dst)}, nil
	}

	if op.Output == "" {
		op.Output = "."
	}
	if err := os.MkdirAll(op.Output, 0755); err != nil {
		return nil, errors.Wrap(err, "unable to create the output directory")
	}

	// Limit the concurrently running workers to maxWorkers.
	if op.Workers <= 0 || op.Workers > maxWorkers {
		op.Workers = runtime.NumCPU()
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	ch := make(chan Result)
	paths, errc := walkDir(ctx, op.Expected)

	var wg sync.WaitGroup
	wg.Add(op.Workers)
	for i := 0; i < op.Workers; i++ {
		go func() {
			defer wg.Done()
			op.consumer(ctx, c, ch, paths)
		}()
	}

	// Close the channel after the values are consumed.
	go func() {
		defer close(ch)
		wg.Wait()
	}()

	var results []Result
	for res := range ch {
		results = append(results, res)
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].Expected < results[j].Expected
	})

	if err := <-errc; err != nil {
		return results, err
	}
	return results, nil
}

// consumer reads the VP documents from the paths channel and compares them against their actual image.
func (op *Ops) consumer(ctx context.Context, c *Comparator, res chan<- Result, paths <-chan string) {
	for src := range paths {
		var r Result
		actual, err := findActual(op.Actual, filepath.Base(src))
		if err != nil {
			r = Result{Expected: src, Err: err}
		} else {
			r = op.process(ctx, c, src, actual, filepath.Join(op.Output, ArtifactName(src)))
		}

		select {
		case <-ctx.Done():
			return
		case res <- r:
		}
	}
}

// process compares one pair of files and copies the artifact to dst.
func (op *Ops) process(ctx context.Context, c *Comparator, expected, actual, dst string) Result {
	r := Result{Expected: expected, Actual: actual}

	cmp, err := c.Compare(ctx, expected, actual)
	if err != nil {
		r.Err = err
		return r
	}
	defer cmp.Close()

	r.Diff = cmp.Diff
	if err := cmp.SaveArtifact(dst); err != nil {
		r.Err = err
		return r
	}
	r.Artifact = dst

	if op.Accept {
		r.Accepted, r.Err = cmp.Accept(ctx)
	} else {
		r.Err = cmp.Dismiss()
	}
	return r
}

// walkDir starts a new goroutine to walk the specified directory tree
// in recursive manner and sends the path of each VP document to a new channel.
// It finishes in case the context is cancelled.
func walkDir(ctx context.Context, src string) (<-chan string, <-chan error) {
	pathChan := make(chan string)
	errChan := make(chan error, 1)

	go func() {
		// Close the paths channel after Walk returns.
		defer close(pathChan)

		errChan <- filepath.Walk(src, func(path string, f os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if !f.Mode().IsRegular() || fileExt(f.Name()) != "" {
				return nil
			}

			select {
			case <-ctx.Done():
				return errors.New("directory walk cancelled")
			case pathChan <- path:
			}
			return nil
		})
	}()
	return pathChan, errChan
}

// findActual looks up the actual file matching the VP document name in dir.
func findActual(dir, name string) (string, error) {
	for _, ext := range append([]string{""}, rasterExtensions...) {
		path := filepath.Join(dir, name+ext)
		if fi, err := os.Stat(path); err == nil && fi.Mode().IsRegular() {
			return path, nil
		}
	}
	return "", &ExtractionError{Path: filepath.Join(dir, name), Err: errors.New("no matching actual file")}
}

// ArtifactName returns the artifact file name of a VP document.
func ArtifactName(expected string) string {
	base := filepath.Base(expected)
	return strings.TrimPrefix(strings.TrimSuffix(base, fileExt(base)), ".") + ".gif"
}

func isDir(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.IsDir()
}

// copyFile copies the content of src into a newly created dst file.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return errors.Wrap(err, "unable to open the comparison artifact")
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return errors.Wrap(err, "unable to create the destination file")
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return errors.Wrap(err, "unable to copy the comparison artifact")
	}
	return out.Close()
}
