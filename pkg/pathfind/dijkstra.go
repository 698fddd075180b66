// Package pathfind answers "how close are X and Y" over the weighted graph.
//
// The engine is a Dijkstra variant that consumes stored edge distances
// directly as traversal cost. Weights in the graph are always positive
// integers (the graph deletes any edge driven to zero or below), which is
// exactly the non-negativity precondition Dijkstra needs.
//
// Example:
//
//	result, err := pathfind.ShortestPath(g, "alice", "carol")
//	switch {
//	case errors.Is(err, pathfind.ErrNoPath):
//		fmt.Println("no route")
//	case err != nil:
//		return err
//	default:
//		fmt.Printf("%v cost=%d strength=%d\n", result.NodeIDs, result.TotalCost, result.TotalStrength)
//	}
package pathfind

import (
	"container/heap"
	"errors"
	"fmt"

	"github.com/nickadesina/soc-cli/pkg/graph"
	"github.com/nickadesina/soc-cli/pkg/inference"
)

// ErrNoPath reports that both endpoints exist but no route connects them.
// It is a query outcome, not a failure; service layers translate it to an
// empty result rather than an error status.
var ErrNoPath = errors.New("no path between nodes")

// DefaultDepthLimit bounds DepthLimitedPath when the caller passes 0.
const DefaultDepthLimit = 23

// PathNode carries one node on a found path together with the descriptive
// metadata the presentation layer shows. None of these fields ever feed
// the cost computation.
type PathNode struct {
	ID               string         `json:"id"`
	Name             string         `json:"name"`
	Degree           int            `json:"degree"`
	Tier             int            `json:"tier,omitempty"`
	DependencyWeight int            `json:"dependency_weight"`
	Location         string         `json:"location,omitempty"`
	Societies        map[string]int `json:"societies,omitempty"`
}

// PathEdge is one traversed edge with its stored weight and provenance.
type PathEdge struct {
	Source   string         `json:"source"`
	Target   string         `json:"target"`
	Weight   int            `json:"weight"`
	Contexts map[string]int `json:"contexts"`
}

// PathResult is a found route from start to goal inclusive.
//
// TotalCost is the sum of traversed edge weights, the quantity Dijkstra
// minimized. TotalStrength is the human-facing closeness rollup: the sum
// over traversed edges of (MaxDistance+1 - weight), so short strong ties
// score high and long weak chains score low. This inverse-distance
// definition is the canonical one; snapshots predating it are converted on
// load, not reinterpreted here.
type PathResult struct {
	NodeIDs       []string   `json:"node_ids"`
	Nodes         []PathNode `json:"nodes"`
	Edges         []PathEdge `json:"edges"`
	TotalCost     int        `json:"total_cost"`
	TotalStrength int        `json:"total_strength"`
}

// frontierItem is one entry in the priority queue.
type frontierItem struct {
	id   string
	cost int
}

// frontier orders by cumulative cost, then lexicographically by node id so
// that equal-cost paths resolve deterministically.
type frontier []frontierItem

func (f frontier) Len() int { return len(f) }
func (f frontier) Less(i, j int) bool {
	if f[i].cost != f[j].cost {
		return f[i].cost < f[j].cost
	}
	return f[i].id < f[j].id
}
func (f frontier) Swap(i, j int)      { f[i], f[j] = f[j], f[i] }
func (f *frontier) Push(x any)        { *f = append(*f, x.(frontierItem)) }
func (f *frontier) Pop() any {
	old := *f
	n := len(old)
	item := old[n-1]
	*f = old[:n-1]
	return item
}

// ShortestPath runs Dijkstra from startID to goalID over the directed edge
// set, using each stored edge weight directly as its traversal cost.
//
// Errors: graph.ErrNotFound when either endpoint is absent, ErrNoPath when
// the endpoints exist but are disconnected.
func ShortestPath(g *graph.Graph, startID, goalID string) (*PathResult, error) {
	if !g.HasPerson(startID) {
		return nil, fmt.Errorf("%w: person %q", graph.ErrNotFound, startID)
	}
	if !g.HasPerson(goalID) {
		return nil, fmt.Errorf("%w: person %q", graph.ErrNotFound, goalID)
	}

	dist := map[string]int{startID: 0}
	prev := make(map[string]string)
	done := make(map[string]bool)

	pq := &frontier{{id: startID, cost: 0}}
	heap.Init(pq)

	for pq.Len() > 0 {
		current := heap.Pop(pq).(frontierItem)
		if done[current.id] {
			continue
		}
		done[current.id] = true

		if current.id == goalID {
			return buildResult(g, tracePath(prev, startID, goalID))
		}

		for _, edge := range g.Neighbors(current.id) {
			if done[edge.Target] {
				continue
			}
			next := current.cost + edge.Weight
			if best, seen := dist[edge.Target]; !seen || next < best {
				dist[edge.Target] = next
				prev[edge.Target] = current.id
				heap.Push(pq, frontierItem{id: edge.Target, cost: next})
			}
		}
	}

	return nil, ErrNoPath
}

func tracePath(prev map[string]string, startID, goalID string) []string {
	path := []string{goalID}
	for path[len(path)-1] != startID {
		path = append(path, prev[path[len(path)-1]])
	}
	// Reverse in place.
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

// DepthLimitedPath finds any route from startID to goalID using DFS bounded
// by depthLimit hops (DefaultDepthLimit when 0). Unlike ShortestPath it
// ignores weights during the search; the returned result still reports the
// stored weights of the edges it happened to take. Useful as a cheap
// reachability probe on dense graphs.
func DepthLimitedPath(g *graph.Graph, startID, goalID string, depthLimit int) (*PathResult, error) {
	if !g.HasPerson(startID) {
		return nil, fmt.Errorf("%w: person %q", graph.ErrNotFound, startID)
	}
	if !g.HasPerson(goalID) {
		return nil, fmt.Errorf("%w: person %q", graph.ErrNotFound, goalID)
	}
	if depthLimit <= 0 {
		depthLimit = DefaultDepthLimit
	}

	visited := map[string]bool{}
	var path []string

	var dfs func(current string, depth int) bool
	dfs = func(current string, depth int) bool {
		if depth > depthLimit {
			return false
		}
		path = append(path, current)
		visited[current] = true
		if current == goalID {
			return true
		}
		for _, edge := range g.Neighbors(current) {
			if visited[edge.Target] {
				continue
			}
			if dfs(edge.Target, depth+1) {
				return true
			}
		}
		path = path[:len(path)-1]
		visited[current] = false
		return false
	}

	if !dfs(startID, 0) {
		return nil, ErrNoPath
	}
	return buildResult(g, path)
}

func buildResult(g *graph.Graph, nodeIDs []string) (*PathResult, error) {
	result := &PathResult{NodeIDs: nodeIDs}

	for i := 0; i+1 < len(nodeIDs); i++ {
		source, target := nodeIDs[i], nodeIDs[i+1]
		weight, ok := g.EdgeWeight(source, target)
		if !ok {
			return nil, fmt.Errorf("%w: edge %s->%s vanished during traversal", graph.ErrNotFound, source, target)
		}
		result.TotalCost += weight
		result.TotalStrength += inference.MaxDistance + 1 - weight
		result.Edges = append(result.Edges, PathEdge{
			Source:   source,
			Target:   target,
			Weight:   weight,
			Contexts: g.EdgeContexts(source, target),
		})
	}

	for _, id := range nodeIDs {
		person, err := g.GetPerson(id)
		if err != nil {
			return nil, err
		}
		result.Nodes = append(result.Nodes, PathNode{
			ID:               person.ID,
			Name:             person.Name,
			Degree:           g.Degree(person.ID),
			Tier:             person.Tier,
			DependencyWeight: person.DependencyWeight,
			Location:         person.Location,
			Societies:        person.Societies,
		})
	}
	return result, nil
}
