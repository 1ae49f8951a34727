// Package linear renders a run as chronological, name-prefixed log lines.
package linear

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"go.trai.ch/orca/internal/ui/output"
	"go.trai.ch/orca/internal/ui/style"
)

// prefixPalette colors node prefixes; a name always maps to the same color.
var prefixPalette = []lipgloss.Color{style.Iris, style.Cyan, style.Green, style.Yellow, "#EC4899", "#14B8A6"}

// Renderer implements ports.Renderer for non-interactive output. Command
// output goes to stdout, lifecycle lines go to stderr.
type Renderer struct {
	stdout io.Writer
	stderr io.Writer
	output *termenv.Output

	mu      sync.Mutex
	nodes   map[string]*nodeState
	pending map[string]*bytes.Buffer
}

type nodeState struct {
	name      string
	prefix    string
	startTime time.Time
}

// NewRenderer creates a Renderer. Nil writers mean os.Stdout and os.Stderr.
func NewRenderer(stdout, stderr io.Writer) *Renderer {
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}
	return &Renderer{
		stdout:  stdout,
		stderr:  stderr,
		output:  output.NewCI(stderr),
		nodes:   make(map[string]*nodeState),
		pending: make(map[string]*bytes.Buffer),
	}
}

// Start does nothing; the renderer writes synchronously.
func (r *Renderer) Start(context.Context) error {
	return nil
}

// Stop prints any partial lines still buffered.
func (r *Renderer) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for spanID := range r.pending {
		r.flushLocked(spanID)
	}
	return nil
}

// Wait does nothing.
func (r *Renderer) Wait() error {
	return nil
}

// OnPlanEmit prints the number of planned nodes.
func (r *Renderer) OnPlanEmit(nodes []string, _ map[string][]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, _ = fmt.Fprintf(r.stderr, "Planning to run %d node(s)\n", len(nodes))
}

// OnTaskStart prints the start line.
func (r *Renderer) OnTaskStart(spanID, _, name string, startTime time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := &nodeState{name: name, prefix: r.prefix(name), startTime: startTime}
	r.nodes[spanID] = n
	r.pending[spanID] = new(bytes.Buffer)

	_, _ = fmt.Fprintf(r.stderr, "%s Starting...\n", n.prefix)
}

// OnTaskLog prints the complete lines in data and keeps a trailing partial
// line for the next call.
func (r *Renderer) OnTaskLog(spanID string, data []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, ok := r.nodes[spanID]
	if !ok {
		return
	}

	buf := r.pending[spanID]
	buf.Write(data)
	for {
		i := bytes.IndexByte(buf.Bytes(), '\n')
		if i < 0 {
			break
		}
		r.printLocked(n, buf.Next(i+1))
	}
}

// OnTaskComplete prints the outcome line.
func (r *Renderer) OnTaskComplete(spanID string, endTime time.Time, err error, cached bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, ok := r.nodes[spanID]
	if !ok {
		return
	}
	r.flushLocked(spanID)

	d := endTime.Sub(n.startTime).Round(time.Millisecond)
	switch {
	case err != nil:
		_, _ = fmt.Fprintf(r.stderr, "%s %s Failed after %v: %v\n", n.prefix, r.colored(style.Cross, style.Red), d, err)
	case cached:
		_, _ = fmt.Fprintf(r.stderr, "%s %s Cached\n", n.prefix, r.colored(style.Cached, style.Slate))
	default:
		_, _ = fmt.Fprintf(r.stderr, "%s %s Completed in %v\n", n.prefix, r.colored(style.Check, style.Green), d)
	}

	delete(r.nodes, spanID)
	delete(r.pending, spanID)
}

func (r *Renderer) flushLocked(spanID string) {
	n, ok := r.nodes[spanID]
	if !ok {
		return
	}
	if buf := r.pending[spanID]; buf.Len() > 0 {
		r.printLocked(n, buf.Bytes())
		buf.Reset()
	}
}

func (r *Renderer) printLocked(n *nodeState, line []byte) {
	line = bytes.TrimSuffix(line, []byte("\n"))
	line = bytes.TrimSuffix(line, []byte("\r"))
	if len(line) == 0 {
		return
	}
	_, _ = fmt.Fprintf(r.stdout, "[%s] %s\n", n.name, line)
}

func (r *Renderer) prefix(name string) string {
	c := prefixPalette[xxhash.Sum64String(name)%uint64(len(prefixPalette))]
	return r.colored("["+name+"]", c)
}

func (r *Renderer) colored(s string, c lipgloss.Color) string {
	return r.output.String(s).Foreground(r.output.Color(string(c))).String()
}
