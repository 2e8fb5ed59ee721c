package simulation

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/thinkparq/fsstrata/usage/pkg/operation"
	"golang.org/x/term"
)

// progressInterval limits how often the status line is redrawn.
const progressInterval = 200 * time.Millisecond

// progress draws a single status line. A nil progress does nothing.
type progress struct {
	w     io.Writer
	steps int
	last  time.Time
	width int
}

// newProgress returns nil unless w is a terminal.
func newProgress(w io.Writer, steps int) *progress {
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return nil
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil || width < 20 {
		width = 80
	}
	return &progress{w: f, steps: steps, width: width}
}

func (p *progress) update(step int, op operation.Operation) {
	if p == nil || time.Since(p.last) < progressInterval {
		return
	}
	p.last = time.Now()
	line := fmt.Sprintf("step %d/%d: %s %s", step, p.steps, op.Command(), op.Target())
	if len(line) > p.width-1 {
		line = line[:p.width-1]
	}
	fmt.Fprintf(p.w, "\r\033[K%s", line)
}

func (p *progress) done() {
	if p == nil {
		return
	}
	fmt.Fprint(p.w, "\r\033[K")
}
