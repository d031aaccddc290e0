package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"image/png"
	"io"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/vpcompare/vpdiff"
	"github.com/vpcompare/vpdiff/utils"
	"github.com/vpcompare/vpdiff/viewer"
	"golang.org/x/term"
)

const HelpBanner = `
┬  ┬┌─┐┌┬┐┬┌─┐┌─┐
└┐┌┘├─┘ │││├┤ ├┤
 └┘ ┴  ─┴┘┴└  └

Visual point baseline comparison.
    Version: %s

Usage:
    vpdiff compare -expected VP -actual VP|IMAGE|URL [-out FILE|DIR] [-accept]
    vpdiff serve   -expected VP -actual VP|IMAGE|URL [-addr :8080]
    vpdiff accept  -expected VP -actual VP|IMAGE|URL
    vpdiff extract -in VP [-out FILE] [-mask]

`

// pipeName is the file name that indicates stdout is being used.
const pipeName = "-"

// Version indicates the current build version.
var Version string

// spinner used to instantiate and call the progress indicator.
var spinner *utils.Spinner

// options holds the flags shared by the subcommands running a comparison.
type options struct {
	expected, actual string
	config, merger   string
	verbose          bool
}

func (o *options) register(fs *flag.FlagSet) {
	fs.StringVar(&o.expected, "expected", "", "Expected VP document")
	fs.StringVar(&o.actual, "actual", "", "Actual VP document, png/jpg image or image URL")
	fs.StringVar(&o.config, "config", "", "YAML config file")
	fs.StringVar(&o.merger, "merger", "", "Frame merger: gifsicle or native")
	fs.BoolVar(&o.verbose, "v", false, "Verbose logging")
}

// comparator builds the comparator from the config file and the flags.
func (o *options) comparator() (*vpdiff.Comparator, error) {
	cfg := vpdiff.DefaultConfig()
	if o.config != "" {
		var err error
		if cfg, err = vpdiff.LoadConfig(o.config); err != nil {
			return nil, err
		}
	}
	if o.merger != "" {
		cfg.Merger = o.merger
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}

	// Failures are reported by the command itself, the library logs are only shown in verbose mode.
	if o.verbose {
		cfg.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	} else {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return vpdiff.NewComparator(cfg), nil
}

func main() {
	log.SetFlags(0)

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	// Cancel the running comparison on CTRL-C and restore the cursor visibility.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	spinner = utils.NewSpinner(fmt.Sprintf("%s %s",
		utils.DecorateText("⚡ VPDIFF", utils.StatusMessage),
		utils.DecorateText("is comparing the images...", utils.DefaultMessage)),
		time.Millisecond*200, true)
	defer spinner.RestoreCursor()

	var err error
	switch cmd, args := os.Args[1], os.Args[2:]; cmd {
	case "compare":
		err = runCompare(ctx, args)
	case "serve":
		err = runServe(ctx, args)
	case "accept":
		err = runAccept(ctx, args)
	case "extract":
		err = runExtract(args)
	case "-h", "-help", "--help", "help":
		usage()
		return
	default:
		usage()
		log.Fatalf(utils.DecorateText("unknown command %q", utils.ErrorMessage), cmd)
	}

	if err != nil {
		spinner.Stop()
		if errors.Is(err, vpdiff.ErrInputSelection) {
			usage()
		}
		log.Fatalf("%s %s",
			utils.DecorateText("\nError:", utils.ErrorMessage),
			utils.DecorateText(err.Error(), utils.DefaultMessage),
		)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, HelpBanner, Version)
}

// runCompare produces the comparison artifact of a file pair or of two directories.
func runCompare(ctx context.Context, args []string) error {
	var o options
	fs := flag.NewFlagSet("compare", flag.ExitOnError)
	o.register(fs)
	out := fs.String("out", "", "Artifact file or directory")
	accept := fs.Bool("accept", false, "Replace the expected images without asking")
	workers := fs.Int("conc", runtime.NumCPU(), "Number of comparisons to run concurrently")
	fs.Parse(args)

	c, err := o.comparator()
	if err != nil {
		return err
	}
	if o.expected == "" || o.actual == "" {
		return vpdiff.ErrInputSelection
	}

	now := time.Now()
	defer func() {
		fmt.Fprintf(os.Stderr, "\nExecution time: %s\n",
			utils.DecorateText(utils.FormatTime(time.Since(now)), utils.SuccessMessage))
	}()

	fi, err := os.Stat(o.expected)
	if err == nil && !fi.IsDir() && !*accept && isInteractive() {
		return compareInteractive(ctx, c, o.expected, o.actual, *out, o.verbose)
	}

	op := &vpdiff.Ops{
		Expected: o.expected,
		Actual:   o.actual,
		Output:   *out,
		Workers:  *workers,
		Accept:   *accept,
	}
	spinner.Start()
	results, err := op.Execute(ctx, c)
	spinner.Stop()

	for _, res := range results {
		printStatus(res)
	}
	return err
}

// compareInteractive compares a single file pair and asks whether the baseline should be replaced.
func compareInteractive(ctx context.Context, c *vpdiff.Comparator, expected, actual, out string, verbose bool) error {
	spinner.Start()
	cmp, err := c.Compare(ctx, expected, actual)
	spinner.Stop()
	if err != nil {
		return err
	}
	defer cmp.Close()

	dst := out
	if dst == "" || isDir(dst) {
		dst = filepath.Join(dst, vpdiff.ArtifactName(expected))
	}
	if err := cmp.SaveArtifact(dst); err != nil {
		return err
	}
	printStatus(vpdiff.Result{Expected: expected, Actual: actual, Artifact: dst, Diff: cmp.Diff})

	if !confirm("\nReplace the expected image with the actual image? [y/N] ") {
		return cmp.Dismiss()
	}
	replaced, err := cmp.Accept(ctx)
	if err != nil {
		return err
	}
	printReplaced(os.Stderr, expected, replaced, verbose)
	return nil
}

// runServe hosts the comparison in the browser until it is accepted or dismissed.
func runServe(ctx context.Context, args []string) error {
	var o options
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	o.register(fs)
	addr := fs.String("addr", "localhost:8080", "Listen address")
	fs.Parse(args)

	c, err := o.comparator()
	if err != nil {
		return err
	}

	spinner.Start()
	cmp, err := c.Compare(ctx, o.expected, o.actual)
	spinner.Stop()
	if err != nil {
		return err
	}
	defer cmp.Close()

	ln, err := net.Listen("tcp", *addr)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	v := viewer.New(cmp, c.Config().Logger)
	v.OnDone = cancel
	srv := &http.Server{Handler: v.Handler(), ReadHeaderTimeout: 10 * time.Second}

	errc := make(chan error, 1)
	go func() {
		errc <- srv.Serve(ln)
	}()
	fmt.Fprintf(os.Stderr, "\nThe comparison is available at: %s\n",
		utils.DecorateText("http://"+ln.Addr().String(), utils.SuccessMessage))

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
	defer done()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	switch cmp.State() {
	case vpdiff.StateDone:
		fmt.Fprintln(os.Stderr, utils.DecorateText("\nComparison closed.", utils.SuccessMessage))
	default:
		fmt.Fprintln(os.Stderr, utils.DecorateText("\nComparison interrupted.", utils.StatusMessage))
	}
	return nil
}

// runAccept writes the actual image into the expected VP document without rendering the artifact.
func runAccept(ctx context.Context, args []string) error {
	var o options
	fs := flag.NewFlagSet("accept", flag.ExitOnError)
	o.register(fs)
	fs.Parse(args)

	if o.expected == "" || o.actual == "" {
		return vpdiff.ErrInputSelection
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	dir, err := os.MkdirTemp("", "vpdiff-*")
	if err != nil {
		return err
	}
	defer os.RemoveAll(dir)

	candidate, err := vpdiff.ExtractExternal(ctx, o.actual, dir)
	if err != nil {
		return err
	}
	replaced, err := vpdiff.ReplaceFile(o.expected, candidate)
	if err != nil {
		return err
	}
	printReplaced(os.Stderr, o.expected, replaced, o.verbose)
	return nil
}

// runExtract decodes the payload of a VP document into an image file or prints its mask.
func runExtract(args []string) error {
	fs := flag.NewFlagSet("extract", flag.ExitOnError)
	in := fs.String("in", "", "VP document")
	out := fs.String("out", pipeName, "Destination png file")
	mask := fs.Bool("mask", false, "Print the mask descriptor")
	fs.Parse(args)

	if *in == "" {
		return vpdiff.ErrInputSelection
	}
	data, err := os.ReadFile(*in)
	if err != nil {
		return &vpdiff.ExtractionError{Path: *in, Err: err}
	}

	if *mask {
		m, ok := vpdiff.ExtractMask(string(data))
		if !ok {
			fmt.Println("no mask")
			return nil
		}
		fmt.Println(m)
		return nil
	}

	payload, err := vpdiff.Extract(string(data))
	if err != nil {
		return &vpdiff.ExtractionError{Path: *in, Err: err}
	}
	img, err := vpdiff.DecodePayload(payload)
	if err != nil {
		return err
	}

	var dst io.Writer
	if *out == pipeName {
		if term.IsTerminal(int(os.Stdout.Fd())) {
			return errors.New("`-` should be used with a pipe for stdout")
		}
		dst = os.Stdout
	} else {
		f, err := os.Create(*out)
		if err != nil {
			return fmt.Errorf("unable to create the destination file: %w", err)
		}
		defer f.Close()
		dst = f
	}
	return png.Encode(dst, img)
}

// printStatus displays the relevant information about a comparison.
func printStatus(res vpdiff.Result) {
	if res.Err != nil {
		fmt.Fprintf(os.Stderr, "%s %s",
			utils.DecorateText("\nError comparing "+filepath.Base(res.Expected)+":", utils.ErrorMessage),
			utils.DecorateText(fmt.Sprintf("\n\tReason: %v\n", res.Err), utils.DefaultMessage),
		)
		return
	}

	summary := "identical"
	if !res.Diff.Match {
		summary = fmt.Sprintf("%d of %d pixels differ (%.2f%%)",
			res.Diff.DifferentPixels, res.Diff.TotalPixels, res.Diff.Percent())
	}
	fmt.Fprintf(os.Stderr, "\nThe comparison of %s has been saved as: %s %s\n",
		filepath.Base(res.Expected),
		utils.DecorateText(res.Artifact, utils.SuccessMessage),
		summary,
	)
	if res.Accepted {
		printReplaced(os.Stderr, res.Expected, true, false)
	}
}

// printReplaced reports an accepted baseline. A baseline which no longer holds
// its payload is skipped silently, the notice is only shown in verbose mode.
func printReplaced(w io.Writer, expected string, replaced, verbose bool) {
	if !replaced {
		if verbose {
			fmt.Fprintf(w, "%s\n",
				utils.DecorateText("The expected payload could not be located, nothing was replaced.", utils.StatusMessage))
		}
		return
	}
	fmt.Fprintf(w, "%s %s\n",
		utils.DecorateText("Expected image replaced with actual image:", utils.SuccessMessage),
		filepath.Base(expected))
}

// isInteractive reports whether both stdin and stderr are attached to a terminal.
func isInteractive() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stderr.Fd()))
}

func confirm(prompt string) bool {
	fmt.Fprint(os.Stderr, prompt)
	answer, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	}
	return false
}

func isDir(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.IsDir()
}
