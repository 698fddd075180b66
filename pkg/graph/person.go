// Package graph provides the in-memory weighted relationship graph for the
// social closeness engine.
//
// The graph owns all PersonRecords and the weighted edges between them.
// Edge weights are integer distances (lower = closer) and double as the
// traversal cost for shortest-path queries. Every mutation is applied under
// strict invariants:
//   - edge weights are always positive integers
//   - a weight driven to zero or below removes the edge and its context map
//   - no self-loop edge can ever exist
//   - removing a person cascades to every incident edge and to every
//     family/friends link elsewhere in the graph that points at them
//
// Example Usage:
//
//	g := graph.New()
//
//	alice := &graph.PersonRecord{ID: "alice", Name: "Alice", Schools: []string{"Stanford"}}
//	bob := &graph.PersonRecord{ID: "bob", Name: "Bob", Schools: []string{"Stanford"}}
//
//	g.AddPerson(alice, false)
//	g.AddPerson(bob, false)
//
//	// Distance 8, remembered as coming from a shared school.
//	g.AddConnection("alice", "bob", 8, map[string]int{"school": 8}, true)
//
//	for _, e := range g.Neighbors("alice") {
//		fmt.Printf("%s -> %s (%d)\n", "alice", e.Target, e.Weight)
//	}
//
// Thread Safety:
//
//	Individual calls are guarded by an RWMutex, but compound operations
//	(read-then-write sequences such as upsert-with-auto-edges) must be
//	serialized by the caller. The graph is a single-writer/multi-reader
//	structure, not a transactional store.
package graph

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// ISODateLayout is the calendar date format used on decision nodes.
const ISODateLayout = "2006-01-02"

// DefaultDependencyWeight is assigned when a record does not set one.
const DefaultDependencyWeight = 3

var validate = validator.New()

// DecisionNode records a seat of influence a person holds or held: an
// organization, the role within it, and an optional tenure window.
//
// Start and End are ISO calendar dates ("2006-01-02") or empty. An
// unparsable date is a soft failure: scoring treats it as absent instead of
// rejecting the record, so ParseStart/ParseEnd never return errors.
type DecisionNode struct {
	Org   string `json:"org" yaml:"org"`
	Role  string `json:"role" yaml:"role"`
	Start string `json:"start,omitempty" yaml:"start,omitempty"`
	End   string `json:"end,omitempty" yaml:"end,omitempty"`
}

// ParseStart returns the start date, or zero time if unset or malformed.
func (d DecisionNode) ParseStart() time.Time {
	return parseISODate(d.Start)
}

// ParseEnd returns the end date, or zero time if unset or malformed.
// A zero end on a set start means the tenure is still open.
func (d DecisionNode) ParseEnd() time.Time {
	return parseISODate(d.End)
}

func parseISODate(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	t, err := time.Parse(ISODateLayout, value)
	if err != nil {
		// Malformed dates degrade to "no reference date" rather than
		// failing ingestion of the whole record.
		return time.Time{}
	}
	return t
}

// FamilyFriendLink is an explicitly declared relationship to another person.
// AllianceSignal marks the link as socially or strategically active, which
// strengthens the explicit-tie evidence.
type FamilyFriendLink struct {
	PersonID       string `json:"person_id" yaml:"person_id"`
	Relationship   string `json:"relationship" yaml:"relationship"`
	AllianceSignal bool   `json:"alliance_signal" yaml:"alliance_signal"`
}

// PersonRecord is the attribute container for one person in the graph.
//
// Descriptive-only fields: Tier, DependencyWeight, Societies and Notes never
// feed traversal cost. Tier contributes only a small assortativity bonus and
// Societies a capped overlap bonus during evidence scoring; neither is read
// anywhere else in the core.
//
// Field conventions:
//   - Tier: 0 means absent, otherwise 1 (highest) .. 4 (lowest)
//   - DependencyWeight: 1 (strongest) .. 5 (weakest), defaulted to 3
//   - Societies: society name -> rank, rank 1 (strongest) .. 5
//   - Platforms: platform -> handle; only the key set is evidence
//
// Records are replaced wholesale on update, never patched in place.
type PersonRecord struct {
	ID                 string             `json:"id" yaml:"id" validate:"required"`
	Name               string             `json:"name" yaml:"name"`
	Schools            []string           `json:"schools" yaml:"schools"`
	Employers          []string           `json:"employers" yaml:"employers"`
	Location           string             `json:"location" yaml:"location"`
	Tier               int                `json:"tier,omitempty" yaml:"tier,omitempty" validate:"omitempty,min=1,max=4"`
	DependencyWeight   int                `json:"dependency_weight" yaml:"dependency_weight" validate:"omitempty,min=1,max=5"`
	DecisionNodes      []DecisionNode     `json:"decision_nodes" yaml:"decision_nodes"`
	Platforms          map[string]string  `json:"platforms" yaml:"platforms"`
	Societies          map[string]int     `json:"societies" yaml:"societies" validate:"omitempty,dive,min=1,max=5"`
	Ecosystems         []string           `json:"ecosystems" yaml:"ecosystems"`
	FamilyFriendsLinks []FamilyFriendLink `json:"family_friends_links" yaml:"family_friends_links"`
	Notes              string             `json:"notes" yaml:"notes"`
}

// Normalize fills defaults and deduplicates family/friends links in place.
// Called by Validate, exposed for codecs that build records field by field.
func (p *PersonRecord) Normalize() {
	if p.DependencyWeight == 0 {
		p.DependencyWeight = DefaultDependencyWeight
	}
	p.FamilyFriendsLinks = dedupeLinks(p.FamilyFriendsLinks)
}

// Validate normalizes the record and checks its invariants.
// Returns an error wrapping ErrValidation describing the first violation.
func (p *PersonRecord) Validate() error {
	p.Normalize()
	if strings.TrimSpace(p.ID) == "" {
		return fmt.Errorf("%w: id cannot be empty", ErrValidation)
	}
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, summarizeValidatorError(err))
	}
	return nil
}

// LinksTo reports whether the record declares a family/friends link to id,
// and whether any such link carries an alliance signal.
func (p *PersonRecord) LinksTo(id string) (linked, alliance bool) {
	for _, link := range p.FamilyFriendsLinks {
		if link.PersonID != id {
			continue
		}
		linked = true
		if link.AllianceSignal {
			alliance = true
		}
	}
	return linked, alliance
}

// Clone returns a deep copy. The graph stores and returns copies so callers
// cannot mutate graph state through shared slices and maps.
func (p *PersonRecord) Clone() *PersonRecord {
	if p == nil {
		return nil
	}
	out := *p
	out.Schools = append([]string(nil), p.Schools...)
	out.Employers = append([]string(nil), p.Employers...)
	out.Ecosystems = append([]string(nil), p.Ecosystems...)
	out.DecisionNodes = append([]DecisionNode(nil), p.DecisionNodes...)
	out.FamilyFriendsLinks = append([]FamilyFriendLink(nil), p.FamilyFriendsLinks...)
	if p.Platforms != nil {
		out.Platforms = make(map[string]string, len(p.Platforms))
		for k, v := range p.Platforms {
			out.Platforms[k] = v
		}
	}
	if p.Societies != nil {
		out.Societies = make(map[string]int, len(p.Societies))
		for k, v := range p.Societies {
			out.Societies[k] = v
		}
	}
	return &out
}

func dedupeLinks(links []FamilyFriendLink) []FamilyFriendLink {
	if len(links) == 0 {
		return links
	}
	type key struct {
		id, rel  string
		alliance bool
	}
	seen := make(map[key]struct{}, len(links))
	out := links[:0]
	for _, link := range links {
		link.PersonID = strings.TrimSpace(link.PersonID)
		link.Relationship = strings.TrimSpace(link.Relationship)
		k := key{link.PersonID, link.Relationship, link.AllianceSignal}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, link)
	}
	return out
}

func summarizeValidatorError(err error) string {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return fmt.Sprintf("field %s failed %q constraint", fe.Field(), fe.Tag())
	}
	return err.Error()
}
