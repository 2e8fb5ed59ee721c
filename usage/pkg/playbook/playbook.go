// Package playbook reads and writes the line based playbook format. A playbook holds one
// operation per line. Blank lines and lines starting with '#' are ignored, which is also how the
// writer records its header so that every written playbook can be read back unchanged.
package playbook

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"github.com/thinkparq/fsstrata/usage/pkg/operation"
	"github.com/thinkparq/fsstrata/usage/pkg/simerr"
)

const (
	// InputName is the playbook a replay reads from the simulation directory.
	InputName = "playbook"
	// OutputName is the playbook a run records into the simulation directory.
	OutputName = "simulation.playbook"
	// maxLineLength bounds a single line. Generator arguments are the only unbounded tokens.
	maxLineLength = 1 << 20
)

// Read parses every operation in r. A single malformed line rejects the whole playbook and a
// playbook without operations is rejected as well.
func Read(r io.Reader) ([]operation.Operation, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineLength)

	var ops []operation.Operation
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		op, err := operation.Parse(line)
		if err != nil {
			var pbErr *simerr.PlaybookError
			if errors.As(err, &pbErr) {
				pbErr.LineNo = lineNo
				return nil, pbErr
			}
			return nil, &simerr.PlaybookError{LineNo: lineNo, Line: line, Reason: err.Error()}
		}
		ops = append(ops, op)
	}
	if err := scanner.Err(); err != nil {
		return nil, &simerr.PlaybookError{LineNo: lineNo + 1, Reason: fmt.Sprintf("unable to read line: %s", err)}
	}
	if len(ops) == 0 {
		return nil, &simerr.PlaybookError{Reason: "no operations defined"}
	}
	return ops, nil
}

// ReadFile reads the playbook at path from fsys.
func ReadFile(fsys afero.Fs, path string) ([]operation.Operation, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: unable to open playbook: %w", simerr.ErrPlaybook, err)
	}
	defer f.Close()
	ops, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return ops, nil
}

// Writer records executed operations. Call Flush once the run is over.
type Writer struct {
	w     *bufio.Writer
	count int
}

// Header is written as comment lines at the top of a playbook.
type Header struct {
	RunID   uuid.UUID
	Model   string
	Seed    *uint64
	Started time.Time
}

func (h Header) lines() []string {
	lines := []string{
		"fsstrata playbook",
		"run: " + h.RunID.String(),
	}
	if h.Model != "" {
		lines = append(lines, "model: "+h.Model)
	}
	if h.Seed != nil {
		lines = append(lines, fmt.Sprintf("seed: %d", *h.Seed))
	}
	if !h.Started.IsZero() {
		lines = append(lines, "started: "+h.Started.UTC().Format(time.RFC3339))
	}
	return lines
}

// NewWriter writes the header to w and returns a Writer appending to it.
func NewWriter(w io.Writer, h Header) (*Writer, error) {
	pw := &Writer{w: bufio.NewWriter(w)}
	for _, l := range h.lines() {
		if _, err := fmt.Fprintf(pw.w, "# %s\n", l); err != nil {
			return nil, fmt.Errorf("unable to write playbook header: %w", err)
		}
	}
	return pw, nil
}

func (pw *Writer) Write(op operation.Operation) error {
	if _, err := pw.w.WriteString(op.PlaybookLine() + "\n"); err != nil {
		return fmt.Errorf("unable to record %s: %w", op.Command(), err)
	}
	pw.count++
	return nil
}

// Count returns the number of recorded operations.
func (pw *Writer) Count() int {
	return pw.count
}

func (pw *Writer) Flush() error {
	return pw.w.Flush()
}
