// Package inference converts attribute overlap between two people into a
// bounded integer closeness distance, and proposes edges for a new record
// against everyone already in the graph.
//
// The pipeline has three stages:
//
//	Score    -> Evidence (tagged integer contributions + explicit flag)
//	MapScore -> distance in [1, 12], or gated out below the relevance floor
//	Propose  -> top-K admission over all candidates (explicit never dropped)
//
// All arithmetic is deterministic integer math so results are reproducible
// across runs and platforms.
//
// Example:
//
//	ev := inference.Score(alice, bob, time.Now())
//	if dist, ok := inference.MapScore(ev.Total(), ev.Explicit); ok {
//		g.AddConnection(alice.ID, bob.ID, dist, ev.Contexts(), true)
//	}
//
// ELI12:
//
// Imagine guessing how close two people are without asking them. Went to
// the same school? A few points. Worked at the same company? More points.
// One of them literally lists the other as family? Lots of points, and now
// you are not guessing anymore. Each category has a ceiling so that, say,
// twelve shared schools can't fake a childhood friendship, and weak hunches
// below a floor are thrown away entirely.
package inference

import (
	"time"

	"github.com/nickadesina/soc-cli/pkg/graph"
)

// Per-category score caps. The caps exist specifically to stop any single
// dense attribute category from creating runaway cliques.
const (
	capSchools    = 6
	capEmployers  = 8
	capEcosystems = 4
	capPlatforms  = 2
	capLocation   = 2
	capDecision   = 10
	capSocieties  = 8

	pointsPerSchool    = 3
	pointsPerEmployer  = 4
	pointsPerEcosystem = 2
	pointsPerPlatform  = 1

	declaredOutboundPoints = 12 // a lists b
	declaredInboundPoints  = 10 // b lists a
	alliancePoints         = 2  // per direction carrying an alliance signal
)

// Evidence is the fixed, enumerated breakdown of one pairwise scoring run.
// Every category is an explicit named integer field summed explicitly, so a
// typo in a category name is a compile error rather than silent zero.
type Evidence struct {
	// Explicit ties (dominant signal).
	DeclaredOutbound int // subject lists the candidate
	DeclaredInbound  int // candidate lists the subject
	Alliance         int

	// Inferred category overlap, each pre-capped.
	Schools    int
	Employers  int
	Ecosystems int
	Platforms  int
	Location   int
	Decision   int
	Societies  int

	// Small assortativity nudge, never a traversal cost input.
	TierAffinity int

	// Explicit is true when any declared-tie condition fired.
	Explicit bool
}

// Total sums every contribution.
func (e Evidence) Total() int {
	return e.DeclaredOutbound + e.DeclaredInbound + e.Alliance +
		e.Schools + e.Employers + e.Ecosystems + e.Platforms + e.Location +
		e.Decision + e.Societies + e.TierAffinity
}

// Contexts renders the non-zero contributions as an edge context map, the
// provenance stored alongside auto-created edges.
func (e Evidence) Contexts() map[string]int {
	out := make(map[string]int)
	put := func(name string, v int) {
		if v != 0 {
			out[name] = v
		}
	}
	put("declared", e.DeclaredOutbound+e.DeclaredInbound+e.Alliance)
	put("school", e.Schools)
	put("employer", e.Employers)
	put("ecosystem", e.Ecosystems)
	put("platform", e.Platforms)
	put("location", e.Location)
	put("decision", e.Decision)
	put("society", e.Societies)
	put("tier", e.TierAffinity)
	return out
}

// Score computes the evidence between two records as of today.
//
// today anchors the decision-node recency buckets; passing a fixed date
// makes scoring fully reproducible in tests.
func Score(a, b *graph.PersonRecord, today time.Time) Evidence {
	var ev Evidence

	if linked, alliance := a.LinksTo(b.ID); linked {
		ev.DeclaredOutbound = declaredOutboundPoints
		ev.Explicit = true
		if alliance {
			ev.Alliance += alliancePoints
		}
	}
	if linked, alliance := b.LinksTo(a.ID); linked {
		ev.DeclaredInbound = declaredInboundPoints
		ev.Explicit = true
		if alliance {
			ev.Alliance += alliancePoints
		}
	}

	ev.Schools = capped(capSchools, overlapPoints(pointsPerSchool, a.Schools, b.Schools))
	ev.Employers = capped(capEmployers, overlapPoints(pointsPerEmployer, a.Employers, b.Employers))
	ev.Ecosystems = capped(capEcosystems, overlapPoints(pointsPerEcosystem, a.Ecosystems, b.Ecosystems))
	ev.Platforms = capped(capPlatforms, keyOverlapPoints(pointsPerPlatform, a.Platforms, b.Platforms))
	if a.Location != "" && a.Location == b.Location {
		ev.Location = capLocation
	}
	ev.Decision = capped(capDecision, decisionOverlapScore(a.DecisionNodes, b.DecisionNodes, today))
	ev.Societies = capped(capSocieties, societyScore(a.Societies, b.Societies))
	ev.TierAffinity = tierAssortativity(a.Tier, b.Tier)

	return ev
}

func capped(cap, v int) int {
	if v > cap {
		return cap
	}
	return v
}

func overlapPoints(weight int, a, b []string) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	set := make(map[string]struct{}, len(a))
	for _, v := range a {
		set[v] = struct{}{}
	}
	count := 0
	seen := make(map[string]struct{}, len(b))
	for _, v := range b {
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		if _, ok := set[v]; ok {
			count++
		}
	}
	return weight * count
}

func keyOverlapPoints(weight int, a, b map[string]string) int {
	count := 0
	for key := range a {
		if _, ok := b[key]; ok {
			count++
		}
	}
	return weight * count
}

func societyScore(a, b map[string]int) int {
	score := 0
	for name, rankA := range a {
		rankB, ok := b[name]
		if !ok {
			continue
		}
		diff := rankA - rankB
		if diff < 0 {
			diff = -diff
		}
		points := 4 - diff
		if points < 1 {
			points = 1
		}
		score += points
	}
	return score
}

func tierAssortativity(tierA, tierB int) int {
	// Tier 0 means absent; absent tiers contribute nothing.
	if tierA == 0 || tierB == 0 {
		return 0
	}
	diff := tierA - tierB
	if diff < 0 {
		diff = -diff
	}
	switch diff {
	case 0:
		return 2
	case 1:
		return 1
	default:
		return 0
	}
}

// decisionOverlapScore groups both sides' decision nodes by organization
// and sums the best pairwise score per shared org, per the rules in
// pairDecisionScore.
func decisionOverlapScore(nodesA, nodesB []graph.DecisionNode, today time.Time) int {
	byOrgA := groupByOrg(nodesA)
	byOrgB := groupByOrg(nodesB)

	score := 0
	for org, spansA := range byOrgA {
		spansB, shared := byOrgB[org]
		if !shared {
			continue
		}
		best := 0
		for _, a := range spansA {
			for _, b := range spansB {
				if s := pairDecisionScore(a, b, today); s > best {
					best = s
				}
			}
		}
		score += best
	}
	return score
}

type dateSpan struct {
	start, end time.Time
}

func groupByOrg(nodes []graph.DecisionNode) map[string][]dateSpan {
	byOrg := make(map[string][]dateSpan)
	for _, node := range nodes {
		if node.Org == "" {
			continue
		}
		byOrg[node.Org] = append(byOrg[node.Org], dateSpan{node.ParseStart(), node.ParseEnd()})
	}
	return byOrg
}

// pairDecisionScore scores one (a-entry, b-entry) combination:
//   - overlapping tenures score 6 (open-ended End is unbounded future; a
//     missing Start on either side yields no overlap credit)
//   - otherwise score by recency of the more recent defined reference date
//     (End, else Start): under 3 years ago 3, under 7 years 2, else 1
//   - no usable reference date on either side scores 1
func pairDecisionScore(a, b dateSpan, today time.Time) int {
	if spansOverlap(a, b) {
		return 6
	}
	yearsA, okA := yearsAgo(referenceDate(a), today)
	yearsB, okB := yearsAgo(referenceDate(b), today)
	if !okA || !okB {
		return 1
	}
	mostRecent := yearsA
	if yearsB < mostRecent {
		mostRecent = yearsB
	}
	switch {
	case mostRecent < 3:
		return 3
	case mostRecent < 7:
		return 2
	default:
		return 1
	}
}

func spansOverlap(a, b dateSpan) bool {
	if a.start.IsZero() || b.start.IsZero() {
		return false
	}
	aEnd, bEnd := a.end, b.end
	if aEnd.IsZero() {
		aEnd = maxDate
	}
	if bEnd.IsZero() {
		bEnd = maxDate
	}
	return !aEnd.Before(b.start) && !bEnd.Before(a.start)
}

func referenceDate(s dateSpan) time.Time {
	if !s.end.IsZero() {
		return s.end
	}
	return s.start
}

func yearsAgo(value, today time.Time) (int, bool) {
	if value.IsZero() {
		return 0, false
	}
	days := int(today.Sub(value).Hours() / 24)
	if days < 0 {
		return 0, true
	}
	return days / 365, true
}

// maxDate stands in for "still ongoing" on open-ended tenures.
var maxDate = time.Date(9999, time.December, 31, 0, 0, 0, 0, time.UTC)
