// Package render draws a compiled stage pipeline as a Graphviz DOT graph.
package render

import (
	"io"
	"time"

	"github.com/dominikbraun/graph"
	"github.com/dominikbraun/graph/draw"
	"github.com/pkg/errors"
	"gopkg.in/go-playground/colors.v1" //nolint

	"github.com/randalmurphal/researchflow/pkg/pipeline"
)

const maxRGB = 240

// endLabel is how the terminal vertex is shown.
const endLabel = "END"

// DOT writes the stages and edges as a directed DOT graph.
// When timings are given, each timed stage is labeled with its duration
// and colored from blue (fastest) to red (slowest).
func DOT(w io.Writer, stages []string, edges [][2]string, timings map[string]time.Duration) error {
	g := graph.New(graph.StringHash, graph.Directed())

	palette, err := durationColors(timings)
	if err != nil {
		return errors.Wrap(err, "unable to build palette")
	}

	for _, id := range stages {
		attrs := []func(*graph.VertexProperties){
			graph.VertexAttribute("shape", "box"),
		}
		if d, ok := timings[id]; ok {
			attrs = append(attrs,
				graph.VertexAttribute("xlabel", d.String()),
				graph.VertexAttribute("color", palette[id]),
			)
		}
		if err := g.AddVertex(id, attrs...); err != nil {
			return errors.Wrapf(err, "unable to add vertex %s", id)
		}
	}

	if err := g.AddVertex(endLabel, graph.VertexAttribute("shape", "doublecircle")); err != nil {
		return errors.Wrap(err, "unable to add end vertex")
	}

	for _, e := range edges {
		to := e[1]
		if to == pipeline.END {
			to = endLabel
		}
		if err := g.AddEdge(e[0], to); err != nil {
			return errors.Wrapf(err, "unable to add edge from %s to %s", e[0], to)
		}
	}

	if err := draw.DOT(g, w); err != nil {
		return errors.Wrap(err, "unable to write dot")
	}
	return nil
}

// durationColors maps each timed stage to a hex color on a blue to red scale.
func durationColors(timings map[string]time.Duration) (map[string]string, error) {
	palette := make(map[string]string, len(timings))
	if len(timings) == 0 {
		return palette, nil
	}

	var minValue, maxValue time.Duration
	first := true
	for _, d := range timings {
		if first || d < minValue {
			minValue = d
		}
		if first || d > maxValue {
			maxValue = d
		}
		first = false
	}

	for id, d := range timings {
		fraction := 1.0
		if maxValue > minValue {
			fraction = float64(d-minValue) / float64(maxValue-minValue)
		}

		red := maxRGB * fraction
		blue := maxRGB - red

		c, err := colors.RGB(uint8(red), 0, uint8(blue))
		if err != nil {
			return nil, errors.Wrap(err, "unable to get colour")
		}
		palette[id] = c.ToHEX().String()
	}
	return palette, nil
}
