// Package progress implements functionality of printing a progress
// bar to the terminal window
package progress

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// Bar implements progress bar functionality that must be manually
// managed: call Increment after each iteration and Display whenever
// an updated bar should be printed. A postfix slot carries a live
// metric such as the current loss.
type Bar struct {
	width           float64
	maxProgress     float64
	currentProgress float64
	postfix         string
	bar             strings.Builder
	out             io.Writer
	startTime       time.Time
}

// New returns a new Bar that is width characters wide and reaches
// 100% after max Increment() calls.
func New(width, max int) *Bar {
	return &Bar{
		width:       float64(width),
		maxProgress: float64(max),
		out:         os.Stdout,
		startTime:   time.Now(),
	}
}

// Increment increments the internal progress counter. Each time an
// iteration is performed, Increment should be called.
func (b *Bar) Increment() {
	if b.currentProgress < b.maxProgress {
		b.currentProgress++
	}
}

// SetPostfix sets the text shown after the bar, e.g. "loss: 0.3127".
func (b *Bar) SetPostfix(format string, args ...interface{}) {
	b.postfix = fmt.Sprintf(format, args...)
}

// Display displays the progress bar on the screen, overwriting the
// previously displayed bar.
func (b *Bar) Display() {
	b.bar.Reset()
	b.bar.Write([]byte("|"))

	currentProg := b.currentProgress / b.maxProgress * b.width
	for i := 0.0; i < currentProg; i++ {
		b.bar.Write([]byte("█"))
	}
	for i := currentProg; i < b.width; i++ {
		b.bar.Write([]byte(" "))
	}
	b.bar.Write([]byte(fmt.Sprintf("| [%.2f%v | elapsed: %v]",
		b.currentProgress/b.maxProgress*100, "%",
		time.Since(b.startTime).Truncate(time.Second))))
	if b.postfix != "" {
		b.bar.Write([]byte(" " + b.postfix))
	}

	fmt.Fprintf(b.out, "\n\033[1A\033[K%v", b.bar.String())
}

// Done prints a final newline after the last Display.
func (b *Bar) Done() {
	fmt.Fprintln(b.out)
}
