package globalroute

import (
	"bytes"
	"context"
	"fmt"
	"slices"

	"github.com/goccy/go-graphviz"
)

// ToDOT draws the bucket graph of a plan as an undirected Graphviz graph.
// Buckets are pinned at their grid position; edges are labelled with
// usage/capacity and colored by utilization.
func ToDOT(pl *Plan) string {
	var buf bytes.Buffer
	buf.WriteString("graph G {\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontsize=12, width=0.6, height=0.4];\n")
	buf.WriteString("  edge [fontsize=10];\n")
	buf.WriteString("\n")

	for i := range pl.Grid.Len() {
		c, r := pl.Grid.Cell(i)
		fmt.Fprintf(&buf, "  %q [label=%q, pos=\"%d,%d!\"];\n", bucketID(i), fmt.Sprint(i), c*2, r*2)
	}

	buf.WriteString("\n")
	keys := make([][2]int, 0, len(pl.Capacity))
	for k := range pl.Capacity {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b [2]int) int {
		if a[0] != b[0] {
			return a[0] - b[0]
		}
		return a[1] - b[1]
	})
	for _, k := range keys {
		label := fmt.Sprintf("%g/%g", pl.Usage[k], pl.Capacity[k])
		fmt.Fprintf(&buf, "  %q -- %q [label=%q, color=%q, penwidth=%.1f];\n",
			bucketID(k[0]), bucketID(k[1]), label, heat(pl.Utilization(k[0], k[1])), 1+2*min(pl.Utilization(k[0], k[1]), 2))
	}

	buf.WriteString("}\n")
	return buf.String()
}

func bucketID(i int) string { return fmt.Sprintf("b%d", i) }

// heat maps utilization to an edge color.
func heat(u float64) string {
	switch {
	case u > 1:
		return "red"
	case u > 0.75:
		return "orange"
	case u > 0:
		return "forestgreen"
	default:
		return "grey"
	}
}

// RenderSVG renders a DOT graph produced by [ToDOT] to SVG. Node positions
// are pinned, so the neato layout engine is used.
func RenderSVG(ctx context.Context, dot string) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()
	gv.SetLayout(graphviz.NEATO)

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return buf.Bytes(), nil
}
