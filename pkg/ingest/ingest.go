// Package ingest applies batches of person and edge events to a graph.
//
// Events arrive as a mixed ordered stream. Person events may trigger
// inference-driven auto-connection; edge events are applied verbatim.
//
// Example:
//
//	svc := ingest.NewService(g, ingest.Options{AutoConnect: true, AutoTopK: inference.TopKAll})
//	err := svc.Apply(ctx, []ingest.Event{
//		ingest.PersonEvent{Person: alice},
//		ingest.EdgeEvent{Source: "alice", Target: "bob", WeightDelta: 2, Symmetric: true},
//	})
package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/nickadesina/soc-cli/pkg/graph"
	"github.com/nickadesina/soc-cli/pkg/inference"
)

// Event is one unit of graph mutation. PersonEvent and EdgeEvent are the
// only implementations.
type Event interface {
	apply(ctx context.Context, s *Service) error
}

// PersonEvent upserts one person record.
type PersonEvent struct {
	Person    *graph.PersonRecord
	Overwrite bool

	// AutoTopK overrides the service-level budget for this event only.
	// Nil means inherit.
	AutoTopK *int
}

// EdgeEvent adjusts one connection by a weight delta.
type EdgeEvent struct {
	Source      string
	Target      string
	WeightDelta int
	Contexts    map[string]int
	Symmetric   bool
}

// Options configures a Service.
type Options struct {
	// AutoConnect runs relationship inference for every person event.
	AutoConnect bool

	// AutoTopK caps the number of inferred edges per person.
	// inference.TopKAll keeps every relevant candidate.
	AutoTopK int

	// Now supplies "today" for decision-node recency scoring.
	// Defaults to time.Now.
	Now func() time.Time

	Logger *log.Logger
}

// Service applies event streams to a single graph.
type Service struct {
	graph  *graph.Graph
	opts   Options
	logger *log.Logger
}

// NewService wires a service around g.
func NewService(g *graph.Graph, opts Options) *Service {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Service{graph: g, opts: opts, logger: logger}
}

// Apply runs the events in order, stopping at the first failure.
//
// Events already applied before a failure stay applied; the stream is not
// transactional. The returned error names the offending event's position.
func (s *Service) Apply(ctx context.Context, events []Event) error {
	for i, event := range events {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := event.apply(ctx, s); err != nil {
			return fmt.Errorf("event %d: %w", i, err)
		}
	}
	return nil
}

// ApplyPerson upserts one person, honoring the service's auto-connect
// policy. Helper for callers outside batch flows.
func (s *Service) ApplyPerson(ctx context.Context, person *graph.PersonRecord, overwrite bool) error {
	return PersonEvent{Person: person, Overwrite: overwrite}.apply(ctx, s)
}

// ApplyEdge adjusts one connection. Helper for callers outside batch flows.
func (s *Service) ApplyEdge(ctx context.Context, event EdgeEvent) error {
	return event.apply(ctx, s)
}

func (e PersonEvent) apply(_ context.Context, s *Service) error {
	if !s.opts.AutoConnect {
		return s.graph.AddPerson(e.Person, e.Overwrite)
	}
	topK := s.opts.AutoTopK
	if e.AutoTopK != nil {
		topK = *e.AutoTopK
	}
	edges, err := inference.UpsertWithAutoEdges(s.graph, e.Person, e.Overwrite, topK, s.opts.Now())
	if err != nil {
		return err
	}
	s.logger.Debug("person ingested", "id", e.Person.ID, "auto_edges", len(edges))
	return nil
}

func (e EdgeEvent) apply(_ context.Context, s *Service) error {
	err := s.graph.AddConnection(e.Source, e.Target, e.WeightDelta, e.Contexts, e.Symmetric)
	if err != nil {
		return fmt.Errorf("edge %s->%s: %w", e.Source, e.Target, err)
	}
	return nil
}
