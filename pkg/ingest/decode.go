package ingest

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/nickadesina/soc-cli/pkg/graph"
)

// rawEvent is the wire form of one event, discriminated by Type.
type rawEvent struct {
	Type string `json:"type"`

	// person events
	Person    *graph.PersonRecord `json:"person,omitempty"`
	Overwrite bool                `json:"overwrite,omitempty"`
	TopK      *int                `json:"top_k,omitempty"`

	// edge events
	Source      string         `json:"source,omitempty"`
	Target      string         `json:"target,omitempty"`
	WeightDelta int            `json:"weight_delta,omitempty"`
	Contexts    map[string]int `json:"contexts,omitempty"`
	Symmetric   *bool          `json:"symmetric,omitempty"`
}

// DecodeEvents reads a JSON array of events.
//
// Each element carries a "type" discriminator:
//
//	{"type": "person", "person": {...}, "overwrite": true, "top_k": 5}
//	{"type": "edge", "source": "a", "target": "b", "weight_delta": 2}
//
// Edge events default to symmetric when "symmetric" is omitted, matching
// the connection endpoints.
func DecodeEvents(r io.Reader) ([]Event, error) {
	var raws []rawEvent
	if err := json.NewDecoder(r).Decode(&raws); err != nil {
		return nil, fmt.Errorf("decode events: %w", err)
	}

	events := make([]Event, 0, len(raws))
	for i, raw := range raws {
		switch raw.Type {
		case "person":
			if raw.Person == nil {
				return nil, fmt.Errorf("event %d: person event without a person record", i)
			}
			events = append(events, PersonEvent{
				Person:    raw.Person,
				Overwrite: raw.Overwrite,
				AutoTopK:  raw.TopK,
			})
		case "edge":
			symmetric := true
			if raw.Symmetric != nil {
				symmetric = *raw.Symmetric
			}
			events = append(events, EdgeEvent{
				Source:      raw.Source,
				Target:      raw.Target,
				WeightDelta: raw.WeightDelta,
				Contexts:    raw.Contexts,
				Symmetric:   symmetric,
			})
		default:
			return nil, fmt.Errorf("event %d: unknown type %q", i, raw.Type)
		}
	}
	return events, nil
}
