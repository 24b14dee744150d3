package progress

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"atomicgo.dev/cursor"
	"github.com/fatih/color"
)

const barWidth = 24

var (
	barColor  = color.New(color.FgCyan)
	descColor = color.New(color.Bold)
	pctColor  = color.New(color.FgHiBlack)
)

// Renderer draws the progress tree in place on a terminal, one row per
// visible node. Rows of an expandable group collapse into the group's row.
type Renderer struct {
	mu    sync.Mutex
	w     io.Writer
	root  *Group
	lines int
}

func NewRenderer(w io.Writer) *Renderer {
	return &Renderer{w: w}
}

// Watch attaches the renderer to the tree root; every tree update redraws.
func (r *Renderer) Watch(root *Group) {
	r.root = root
	root.Attach(r.redraw)
}

// Stop detaches and leaves the last frame on screen.
func (r *Renderer) Stop() {
	if r.root != nil {
		r.root.Attach(nil)
	}
}

func (r *Renderer) redraw() {
	r.mu.Lock()
	defer r.mu.Unlock()

	var rows []string
	collectRows(r.root, 0, &rows)

	if r.lines > 0 {
		cursor.ClearLinesUp(r.lines)
		cursor.StartOfLine()
	}
	for _, row := range rows {
		cursor.ClearLine()
		fmt.Fprintln(r.w, row)
	}
	r.lines = len(rows)
}

func collectRows(n Node, depth int, rows *[]string) {
	*rows = append(*rows, formatRow(n, depth))
	g, ok := n.(*Group)
	if !ok || g.IsExpandable() {
		return
	}
	for _, c := range g.Children() {
		collectRows(c, depth+1, rows)
	}
}

func formatRow(n Node, depth int) string {
	completed, total := n.Completed(), n.Total()
	fraction := 0.0
	if total > 0 {
		fraction = completed / total
		if fraction > 1 {
			fraction = 1
		}
	}
	filled := int(fraction * barWidth)
	bar := barColor.Sprint(strings.Repeat("━", filled)) + strings.Repeat("╌", barWidth-filled)
	return fmt.Sprintf("%s%s %s %s",
		strings.Repeat("  ", depth),
		descColor.Sprint(n.Description()),
		bar,
		pctColor.Sprintf("%3.0f%%", fraction*100),
	)
}
