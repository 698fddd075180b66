// Package snapshot reads and writes graph snapshots.
//
// Two formats are supported:
//   - a single JSON document {"edge_weight_model", "people", "edges"}
//   - a CSV pair: one nodes file (one row per person) and one edges file
//
// Both are explicit codec boundaries: the core graph never touches files.
// Symmetric connections are collapsed to a single edge entry with
// symmetric=true on save and mirrored again on load.
//
// Legacy snapshots written before the distance weight model stored raw
// "strength" weights (bigger = closer, arbitrary scale). Those are detected
// (by the edge_weight_model marker in JSON, by out-of-range or fractional
// weights in CSV) and converted to distances on load; see legacy.go.
package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/nickadesina/soc-cli/pkg/graph"
)

// DistanceWeightModel marks snapshots whose edge weights are already
// closeness distances in [1, 12].
const DistanceWeightModel = "distance_v2"

// ErrMalformed reports a snapshot that could not be decoded at all, as
// opposed to one that decoded but failed graph validation.
var ErrMalformed = errors.New("malformed snapshot")

// EdgeEntry is one serialized connection.
type EdgeEntry struct {
	Source    string             `json:"source"`
	Target    string             `json:"target"`
	Weight    float64            `json:"weight"`
	Contexts  map[string]float64 `json:"contexts,omitempty"`
	Symmetric bool               `json:"symmetric"`
}

// Document is the on-disk JSON shape.
type Document struct {
	EdgeWeightModel string                `json:"edge_weight_model"`
	People          []*graph.PersonRecord `json:"people"`
	Edges           []EdgeEntry           `json:"edges"`
}

// SaveJSON writes the graph to path as an indented JSON snapshot.
func SaveJSON(path string, g *graph.Graph) error {
	doc := Document{
		EdgeWeightModel: DistanceWeightModel,
		People:          g.People(),
		Edges:           CollapseEdges(g),
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// LoadJSON reads a snapshot from path. A missing file yields an empty
// graph, matching load-or-init CLI semantics.
func LoadJSON(path string) (*graph.Graph, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return graph.New(), nil
	}
	if err != nil {
		return nil, err
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	g := graph.New()
	for _, person := range doc.People {
		if err := g.AddPerson(person, false); err != nil {
			return nil, err
		}
	}
	if err := applyEdgeEntries(g, doc.Edges, doc.EdgeWeightModel != DistanceWeightModel); err != nil {
		return nil, err
	}
	return g, nil
}

// CollapseEdges flattens the graph's directed edges, merging mirrored pairs
// with equal weight and contexts into single symmetric entries.
func CollapseEdges(g *graph.Graph) []EdgeEntry {
	edges := g.Edges()
	byPair := make(map[[2]string]graph.DirectedEdge, len(edges))
	for _, e := range edges {
		byPair[[2]string{e.Source, e.Target}] = e
	}

	out := make([]EdgeEntry, 0, len(edges))
	emitted := make(map[[2]string]bool)
	for _, e := range edges {
		if emitted[[2]string{e.Source, e.Target}] {
			continue
		}
		reverse, hasReverse := byPair[[2]string{e.Target, e.Source}]
		if hasReverse && reverse.Weight == e.Weight && contextsEqual(reverse.Contexts, e.Contexts) {
			// Canonical ordering keeps output stable across runs.
			pair := [2]string{e.Source, e.Target}
			if pair[0] > pair[1] {
				pair[0], pair[1] = pair[1], pair[0]
			}
			out = append(out, EdgeEntry{
				Source:    pair[0],
				Target:    pair[1],
				Weight:    float64(e.Weight),
				Contexts:  toFloatContexts(e.Contexts),
				Symmetric: true,
			})
			emitted[[2]string{e.Source, e.Target}] = true
			emitted[[2]string{e.Target, e.Source}] = true
			continue
		}
		out = append(out, EdgeEntry{
			Source:   e.Source,
			Target:   e.Target,
			Weight:   float64(e.Weight),
			Contexts: toFloatContexts(e.Contexts),
		})
		emitted[[2]string{e.Source, e.Target}] = true
	}
	return out
}

// applyEdgeEntries replays edge entries onto a graph, converting legacy
// strength weights to distances when convertLegacy is set.
func applyEdgeEntries(g *graph.Graph, entries []EdgeEntry, convertLegacy bool) error {
	convert := identityWeight
	if convertLegacy {
		weights := make([]float64, len(entries))
		for i, e := range entries {
			weights[i] = e.Weight
		}
		convert = legacyStrengthConverter(weights)
	}

	for _, e := range entries {
		weight, err := checkedWeight(convert(e.Weight))
		if err != nil {
			return fmt.Errorf("edge %s->%s: %w", e.Source, e.Target, err)
		}
		rawContexts := e.Contexts
		if convertLegacy {
			// Old files tallied contexts as floats; round rather than
			// reject, the provenance is informational.
			rawContexts = make(map[string]float64, len(e.Contexts))
			for k, v := range e.Contexts {
				if math.IsNaN(v) || math.IsInf(v, 0) {
					continue
				}
				rawContexts[k] = math.Round(v)
			}
		}
		contexts, err := intContexts(rawContexts)
		if err != nil {
			return fmt.Errorf("edge %s->%s: %w", e.Source, e.Target, err)
		}
		if err := g.AddConnection(e.Source, e.Target, weight, contexts, e.Symmetric); err != nil {
			return err
		}
	}
	return nil
}

// checkedWeight rejects non-finite and non-integer weights before they can
// reach the graph, per the invalid-delta contract.
func checkedWeight(w float64) (int, error) {
	if math.IsNaN(w) || math.IsInf(w, 0) {
		return 0, fmt.Errorf("%w: weight must be finite", graph.ErrInvalidDelta)
	}
	if w != math.Trunc(w) {
		return 0, fmt.Errorf("%w: weight must be an integer, got %v", graph.ErrInvalidDelta, w)
	}
	return int(w), nil
}

func intContexts(contexts map[string]float64) (map[string]int, error) {
	if len(contexts) == 0 {
		return nil, nil
	}
	out := make(map[string]int, len(contexts))
	for name, v := range contexts {
		iv, err := checkedWeight(v)
		if err != nil {
			return nil, fmt.Errorf("context %q: %w", name, err)
		}
		out[name] = iv
	}
	return out, nil
}

func toFloatContexts(contexts map[string]int) map[string]float64 {
	if len(contexts) == 0 {
		return nil
	}
	out := make(map[string]float64, len(contexts))
	for k, v := range contexts {
		out[k] = float64(v)
	}
	return out
}

func contextsEqual(a, b map[string]int) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}
