package progress

import (
	"fmt"
	"io"
	"os"
	"sync/atomic"
	"time"

	"github.com/schollz/progressbar/v3"
)

// Tracker reports download bytes or converted rows.
type Tracker struct {
	bar       *progressbar.ProgressBar
	out       io.Writer
	unit      string
	current   atomic.Int64
	startTime time.Time
}

// NewBytes creates a byte-counting bar for a download of total bytes.
// Tracker implements io.Writer so it can sit in an io.MultiWriter.
func NewBytes(description string, total int64, out io.Writer) *Tracker {
	if out == nil {
		out = os.Stderr
	}
	t := &Tracker{out: out, unit: "bytes", startTime: time.Now()}
	t.bar = progressbar.NewOptions64(
		total,
		progressbar.OptionSetWriter(out),
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionShowCount(),
		progressbar.OptionFullWidth(),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionOnCompletion(func() { fmt.Fprintln(out) }),
	)
	return t
}

// NewRows creates a row counter of unknown total; the compressed inputs
// give no cheap row count up front.
func NewRows(description string, out io.Writer) *Tracker {
	if out == nil {
		out = os.Stderr
	}
	t := &Tracker{out: out, unit: "rows", startTime: time.Now()}
	t.bar = progressbar.NewOptions64(
		-1,
		progressbar.OptionSetWriter(out),
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("rows"),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionSetRenderBlankState(true),
	)
	return t
}

// Add increments the progress counter.
func (t *Tracker) Add(n int64) {
	t.current.Add(n)
	t.bar.Add64(n)
}

// Write counts len(p) bytes.
func (t *Tracker) Write(p []byte) (int, error) {
	t.Add(int64(len(p)))
	return len(p), nil
}

// Current returns the current count.
func (t *Tracker) Current() int64 {
	return t.current.Load()
}

// Finish completes the bar and prints a throughput summary.
func (t *Tracker) Finish() {
	t.bar.Finish()

	elapsed := time.Since(t.startTime)
	perSec := float64(t.current.Load()) / elapsed.Seconds()

	fmt.Fprintln(t.out)
	fmt.Fprintf(t.out, "%d %s in %s (%.0f %s/sec)\n",
		t.current.Load(), t.unit, elapsed.Round(time.Millisecond), perSec, t.unit)
}

// Abort stops rendering without the summary line.
func (t *Tracker) Abort() {
	t.bar.Exit()
}
