package core

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/encodeous/bgpsim/state"
	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
)

// Labeler resolves node ids to display names.
type Labeler interface {
	Label(id state.NodeId) string
}

var (
	selectedColor = color.New(color.FgGreen, color.Bold)
	pathColor     = color.New(color.FgCyan)
)

// FormatPath renders a nearest-first path with labels, e.g. "AS1 → AS6".
func FormatPath(l Labeler, path []state.NodeId) string {
	if len(path) == 0 {
		return "(none)"
	}
	parts := make([]string, 0, len(path))
	for _, id := range path {
		parts = append(parts, l.Label(id))
	}
	return strings.Join(parts, " → ")
}

// RenderTables writes one table per node, in id order.
func RenderTables(w io.Writer, l Labeler, tables state.Tables) {
	for _, id := range tables.Ids() {
		RenderTable(w, l, id, tables.Get(id))
	}
}

// RenderTable writes the routes of a single node.
func RenderTable(w io.Writer, l Labeler, id state.NodeId, tbl *state.RouteTable) {
	_, _ = fmt.Fprintf(w, "%s (%s)\n", l.Label(id), id)
	routes := tbl.All()
	if len(routes) == 0 {
		_, _ = fmt.Fprintln(w, "  (no routes)")
		return
	}
	tw := tablewriter.NewWriter(w)
	tw.SetHeader([]string{"Destination", "AS Path", "Local Pref", "Best"})
	tw.SetAutoFormatHeaders(false)
	tw.SetAutoWrapText(false)
	for _, r := range routes {
		row := []string{
			r.Prefix.String(),
			FormatPath(l, r.Path),
			strconv.Itoa(r.LocalPref),
			"",
		}
		if r.Selected {
			row[3] = "*"
			for i := range row {
				row[i] = selectedColor.Sprint(row[i])
			}
		}
		tw.Append(row)
	}
	tw.Render()
}

// DescribeEvent is the one line summary shown when an event is played.
func DescribeEvent(l Labeler, step, total int, e state.Event) string {
	prefix := fmt.Sprintf("[%d/%d] %s", step, total, e.Message)
	switch e.Kind {
	case state.EventAdvertise:
		return fmt.Sprintf("%s: path %s, local pref %d", prefix, pathColor.Sprint(FormatPath(l, e.Path)), e.LocalPref)
	case state.EventComplete:
		return fmt.Sprintf("%s: %s uses %s", prefix, l.Label(e.Observer), selectedColor.Sprint(FormatPath(l, e.Path)))
	}
	return prefix
}
