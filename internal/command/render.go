package command

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"charm.land/lipgloss/v2"
	"github.com/rivo/uniseg"
	"golang.org/x/term"

	"github.com/joeycumines/go-cbt/internal/tree"
)

var stateStyles = map[tree.State]lipgloss.Style{
	tree.Idle:    lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
	tree.Running: lipgloss.NewStyle().Foreground(lipgloss.Color("3")),
	tree.Success: lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Bold(true),
	tree.Failure: lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),
	tree.Halted:  lipgloss.NewStyle().Foreground(lipgloss.Color("5")),
	tree.Exit:    lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
}

var nameStyle = lipgloss.NewStyle().Bold(true)

// colorEnabled resolves the color option (auto, always or never) for w.
// auto means w is a terminal and NO_COLOR is unset.
func colorEnabled(mode string, w io.Writer) bool {
	switch mode {
	case "always":
		return true
	case "never":
		return false
	}
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := w.(interface{ Fd() uintptr })
	return ok && term.IsTerminal(int(f.Fd()))
}

// renderer prints node transitions as they happen, and the final tree.
type renderer struct {
	mu    sync.Mutex
	w     io.Writer
	color bool
	last  map[tree.ID]tree.State
}

func newRenderer(w io.Writer, color bool) *renderer {
	return &renderer{
		w:     w,
		color: color,
		last:  make(map[tree.ID]tree.State),
	}
}

func (r *renderer) state(s tree.State) string {
	if !r.color {
		return s.String()
	}
	return stateStyles[s].Render(s.String())
}

func (r *renderer) name(s string) string {
	if !r.color {
		return s
	}
	return nameStyle.Render(s)
}

// Hooks prints a line whenever a node publishes a state different from the
// last one it published.
func (r *renderer) Hooks() tree.Hooks {
	return tree.Hooks{
		OnState: func(n *tree.Node, s tree.State) {
			r.mu.Lock()
			defer r.mu.Unlock()
			if prev, ok := r.last[n.ID()]; ok && prev == s {
				return
			}
			r.last[n.ID()] = s
			_, _ = fmt.Fprintf(r.w, "%s %s -> %s\n", n.Type(), r.name(n.Name()), r.state(s))
		},
	}
}

// Tree prints the nodes of snap as an indented table.
func (r *renderer) Tree(snap []tree.NodeSnapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()

	width := 0
	for _, n := range snap {
		width = max(width, 2*n.Depth+uniseg.StringWidth(n.Name))
	}
	for _, n := range snap {
		label := strings.Repeat("  ", n.Depth) + n.Name
		kind := n.Type
		if n.Policy != "" {
			kind = n.Policy
		}
		state := n.State
		if s, err := tree.ParseState(n.State); err == nil {
			state = r.state(s)
		}
		_, _ = fmt.Fprintf(r.w, "%s  %-9s  %s  ticks=%d\n", r.name(pad(label, width)), kind, state, n.Ticks)
	}
}

// pad right-pads s with spaces to width terminal cells.
func pad(s string, width int) string {
	if w := uniseg.StringWidth(s); w < width {
		return s + strings.Repeat(" ", width-w)
	}
	return s
}
