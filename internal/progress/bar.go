// Package progress renders a single-line terminal progress bar.
package progress

import (
	"fmt"
	"io"
	"strings"
)

const (
	barLength  = 30
	titleWidth = 50
)

// Bar draws "title |████░░░░| 40.0% (4/10)" on one line, redrawn in place.
// It is not safe for concurrent use; callers serialize updates.
type Bar struct {
	out       io.Writer
	title     string
	total     int
	processed int
}

// NewBar creates a bar writing to out.
func NewBar(out io.Writer, title string) *Bar {
	return &Bar{out: out, title: title}
}

func (b *Bar) SetTotal(n int) {
	b.total = n
}

func (b *Bar) Increment(label string) {
	b.processed++
	if label != "" {
		b.title = label
	}
	b.render()
}

// Finish draws the final state and moves to the next line.
func (b *Bar) Finish() {
	b.render()
	fmt.Fprintln(b.out)
}

func (b *Bar) render() {
	if b.total == 0 {
		fmt.Fprint(b.out, "\rNo items to process.")
		return
	}
	ratio := float64(b.processed) / float64(b.total)
	complete := int(ratio*barLength + 0.5)
	if complete > barLength {
		complete = barLength
	}
	bar := strings.Repeat("█", complete) + strings.Repeat("░", barLength-complete)
	fmt.Fprintf(b.out, "\r%-*s |%s| %.1f%% (%d/%d)", titleWidth, b.title, bar, ratio*100, b.processed, b.total)
}
