package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nickadesina/soc-cli/pkg/graph"
	"github.com/nickadesina/soc-cli/pkg/inference"
)

var fixedNow = time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

func newService(t *testing.T, autoConnect bool) (*Service, *graph.Graph) {
	t.Helper()
	g := graph.New()
	svc := NewService(g, Options{
		AutoConnect: autoConnect,
		AutoTopK:    inference.TopKAll,
		Now:         func() time.Time { return fixedNow },
	})
	return svc, g
}

func TestApplyMixedStream(t *testing.T) {
	svc, g := newService(t, true)

	events := []Event{
		PersonEvent{Person: &graph.PersonRecord{ID: "alice", Schools: []string{"stanford"}, Employers: []string{"acme"}}},
		PersonEvent{Person: &graph.PersonRecord{ID: "bob", Schools: []string{"stanford"}, Employers: []string{"acme"}}},
		EdgeEvent{Source: "alice", Target: "bob", WeightDelta: -2, Symmetric: true},
	}
	require.NoError(t, svc.Apply(context.Background(), events))

	// The second person event auto-connected alice and bob at distance 8;
	// the manual edge event then tightened the tie by 2.
	w, ok := g.EdgeWeight("alice", "bob")
	require.True(t, ok)
	assert.Equal(t, 6, w)
	w, _ = g.EdgeWeight("bob", "alice")
	assert.Equal(t, 6, w)
}

func TestApplyStopsAtFirstFailure(t *testing.T) {
	svc, g := newService(t, true)

	events := []Event{
		PersonEvent{Person: &graph.PersonRecord{ID: "alice"}},
		EdgeEvent{Source: "alice", Target: "ghost", WeightDelta: 1, Symmetric: true},
		PersonEvent{Person: &graph.PersonRecord{ID: "never"}},
	}
	err := svc.Apply(context.Background(), events)
	require.ErrorIs(t, err, graph.ErrNotFound)
	assert.Contains(t, err.Error(), "event 1")

	// Events before the failure stay applied, later ones never run.
	assert.True(t, g.HasPerson("alice"))
	assert.False(t, g.HasPerson("never"))
}

func TestAutoConnectDisabled(t *testing.T) {
	svc, g := newService(t, false)

	require.NoError(t, svc.Apply(context.Background(), []Event{
		PersonEvent{Person: &graph.PersonRecord{ID: "alice", Schools: []string{"stanford"}, Employers: []string{"acme"}}},
		PersonEvent{Person: &graph.PersonRecord{ID: "bob", Schools: []string{"stanford"}, Employers: []string{"acme"}}},
	}))
	assert.Equal(t, 0, g.EdgeCount())
}

func TestPerEventTopKOverride(t *testing.T) {
	svc, g := newService(t, true)

	require.NoError(t, svc.ApplyPerson(context.Background(), &graph.PersonRecord{
		ID: "a", Schools: []string{"stanford"}, Employers: []string{"acme"},
	}, false))
	require.NoError(t, svc.ApplyPerson(context.Background(), &graph.PersonRecord{
		ID: "b", Schools: []string{"stanford"}, Employers: []string{"acme"},
	}, false))

	zero := 0
	err := svc.Apply(context.Background(), []Event{
		PersonEvent{Person: &graph.PersonRecord{
			ID: "c", Schools: []string{"stanford"}, Employers: []string{"acme"},
		}, AutoTopK: &zero},
	})
	require.NoError(t, err)

	// c's event carried a zero budget, so c got no inferred edges even
	// though the service default keeps all.
	assert.Equal(t, 0, g.Degree("c"))
	w, ok := g.EdgeWeight("a", "b")
	require.True(t, ok)
	assert.Equal(t, 8, w)
}

func TestApplyHonorsContextCancellation(t *testing.T) {
	svc, g := newService(t, true)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := svc.Apply(ctx, []Event{
		PersonEvent{Person: &graph.PersonRecord{ID: "alice"}},
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, g.HasPerson("alice"))
}
