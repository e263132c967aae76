package routing

import (
	"bytes"
	"context"
	"fmt"

	"github.com/goccy/go-graphviz"

	"github.com/1broseidon/projectmapper/internal/config"
)

// ToDOT renders the routing described by cfg as a Graphviz digraph: one
// node per source and sink, one edge per region.
func ToDOT(cfg *config.RuntimeConfig) string {
	var buf bytes.Buffer
	buf.WriteString("digraph routing {\n")
	buf.WriteString("  rankdir=LR;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white];\n")
	buf.WriteString("\n")

	for _, src := range cfg.Sources {
		label := fmt.Sprintf("%s\n%s", displayName(src.Name, "source", src.ID), src.Kind)
		if src.Kind == config.SourceURI {
			label += "\n" + src.URI
		}
		fmt.Fprintf(&buf, "  %q [label=%q, fillcolor=lightblue];\n", sourceNode(src.ID), label)
	}
	for _, sink := range cfg.Sinks {
		label := fmt.Sprintf("%s\n%s", displayName(sink.Name, "sink", sink.ID), sink.Presentation)
		fmt.Fprintf(&buf, "  %q [label=%q];\n", sinkNode(sink.ID), label)
	}

	buf.WriteString("\n")
	for _, r := range cfg.Regions {
		fmt.Fprintf(&buf, "  %q -> %q [label=%q];\n",
			sourceNode(r.SourceID), sinkNode(r.SinkID), displayName(r.Name, "region", r.ID))
	}

	buf.WriteString("}\n")
	return buf.String()
}

func sourceNode(id uint32) string { return fmt.Sprintf("source-%d", id) }
func sinkNode(id uint32) string   { return fmt.Sprintf("sink-%d", id) }

func displayName(name, kind string, id uint32) string {
	if name != "" {
		return name
	}
	return fmt.Sprintf("%s %d", kind, id)
}

// RenderSVG renders a DOT graph to SVG using Graphviz.
func RenderSVG(ctx context.Context, dot string) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

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
