package snapshot

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/nickadesina/soc-cli/pkg/graph"
)

// Default delimiters for the tabular format. List-valued fields are joined
// with ListDelimiter; map-valued fields become key=value pairs joined with
// ListDelimiter.
//
// Known limitation, kept deliberately: keys containing the delimiters are
// not escaped, so a society named "a=b" round-trips wrong. Structured
// fields (decision nodes, family/friends links) avoid the problem by
// embedding JSON in the cell instead.
const (
	ListDelimiter = "|"
	KVDelimiter   = "="
)

var nodeHeader = []string{
	"id", "name", "schools", "employers", "societies", "location", "tier",
	"dependency_weight", "decision_nodes", "platforms", "ecosystems",
	"family_friends_links", "notes",
}

var edgeHeader = []string{"source", "target", "weight", "contexts", "symmetric"}

// SaveCSV writes the graph as a nodes file and an edges file.
func SaveCSV(nodesPath, edgesPath string, g *graph.Graph) error {
	if err := writeNodesCSV(nodesPath, g); err != nil {
		return err
	}
	return writeEdgesCSV(edgesPath, g)
}

func writeNodesCSV(path string, g *graph.Graph) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(nodeHeader); err != nil {
		return err
	}
	for _, p := range g.People() {
		decisionNodes, err := json.Marshal(p.DecisionNodes)
		if err != nil {
			return fmt.Errorf("person %q: %w", p.ID, err)
		}
		links, err := json.Marshal(p.FamilyFriendsLinks)
		if err != nil {
			return fmt.Errorf("person %q: %w", p.ID, err)
		}
		tier := ""
		if p.Tier != 0 {
			tier = strconv.Itoa(p.Tier)
		}
		row := []string{
			p.ID,
			p.Name,
			strings.Join(p.Schools, ListDelimiter),
			strings.Join(p.Employers, ListDelimiter),
			joinIntMap(p.Societies),
			p.Location,
			tier,
			strconv.Itoa(p.DependencyWeight),
			string(decisionNodes),
			joinStringMap(p.Platforms),
			strings.Join(p.Ecosystems, ListDelimiter),
			string(links),
			p.Notes,
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func writeEdgesCSV(path string, g *graph.Graph) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(edgeHeader); err != nil {
		return err
	}
	for _, e := range CollapseEdges(g) {
		row := []string{
			e.Source,
			e.Target,
			strconv.FormatFloat(e.Weight, 'f', -1, 64),
			joinFloatMap(e.Contexts),
			strconv.FormatBool(e.Symmetric),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// LoadCSV reads a nodes/edges file pair. Either file may be missing, in
// which case its side of the graph is simply empty.
func LoadCSV(nodesPath, edgesPath string) (*graph.Graph, error) {
	g := graph.New()

	if err := readNodesCSV(nodesPath, g); err != nil {
		return nil, err
	}
	if err := readEdgesCSV(edgesPath, g); err != nil {
		return nil, err
	}
	return g, nil
}

func readNodesCSV(path string, g *graph.Graph) error {
	rows, header, err := readCSVFile(path)
	if err != nil || rows == nil {
		return err
	}
	col := indexColumns(header)

	for _, row := range rows {
		get := func(name string) string {
			i, ok := col[name]
			if !ok || i >= len(row) {
				return ""
			}
			return row[i]
		}
		tier := 0
		if raw := get("tier"); raw != "" {
			tier, err = strconv.Atoi(raw)
			if err != nil {
				return fmt.Errorf("%w: tier %q", ErrMalformed, raw)
			}
		}
		depWeight := graph.DefaultDependencyWeight
		if raw := get("dependency_weight"); raw != "" {
			depWeight, err = strconv.Atoi(raw)
			if err != nil {
				return fmt.Errorf("%w: dependency_weight %q", ErrMalformed, raw)
			}
		}
		societies, err := parseIntMap(get("societies"))
		if err != nil {
			return err
		}
		var decisionNodes []graph.DecisionNode
		if err := parseJSONCell(get("decision_nodes"), &decisionNodes); err != nil {
			return fmt.Errorf("decision_nodes: %w", err)
		}
		var links []graph.FamilyFriendLink
		if err := parseJSONCell(get("family_friends_links"), &links); err != nil {
			return fmt.Errorf("family_friends_links: %w", err)
		}

		person := &graph.PersonRecord{
			ID:                 get("id"),
			Name:               get("name"),
			Schools:            splitList(get("schools")),
			Employers:          splitList(get("employers")),
			Societies:          societies,
			Location:           get("location"),
			Tier:               tier,
			DependencyWeight:   depWeight,
			DecisionNodes:      decisionNodes,
			Platforms:          parseStringMap(get("platforms")),
			Ecosystems:         splitList(get("ecosystems")),
			FamilyFriendsLinks: links,
			Notes:              get("notes"),
		}
		if err := g.AddPerson(person, false); err != nil {
			return err
		}
	}
	return nil
}

func readEdgesCSV(path string, g *graph.Graph) error {
	rows, header, err := readCSVFile(path)
	if err != nil || rows == nil {
		return err
	}
	col := indexColumns(header)

	entries := make([]EdgeEntry, 0, len(rows))
	for _, row := range rows {
		get := func(name string) string {
			i, ok := col[name]
			if !ok || i >= len(row) {
				return ""
			}
			return row[i]
		}
		weight, err := strconv.ParseFloat(get("weight"), 64)
		if err != nil {
			return fmt.Errorf("%w: weight %q", ErrMalformed, get("weight"))
		}
		contexts, err := parseFloatMap(get("contexts"))
		if err != nil {
			return err
		}
		symmetric := false
		if raw := get("symmetric"); raw != "" {
			symmetric, err = strconv.ParseBool(raw)
			if err != nil {
				return fmt.Errorf("%w: symmetric %q", ErrMalformed, raw)
			}
		}
		entries = append(entries, EdgeEntry{
			Source:    get("source"),
			Target:    get("target"),
			Weight:    weight,
			Contexts:  contexts,
			Symmetric: symmetric,
		})
	}

	weights := make([]float64, len(entries))
	for i, e := range entries {
		weights[i] = e.Weight
	}
	convertLegacy := len(weights) > 0 && !looksLikeDistanceWeights(weights)
	return applyEdgeEntries(g, entries, convertLegacy)
}

func readCSVFile(path string) ([][]string, []string, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if len(records) == 0 {
		return nil, nil, nil
	}
	return records[1:], records[0], nil
}

func indexColumns(header []string) map[string]int {
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[name] = i
	}
	return col
}

func splitList(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ListDelimiter)
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseStringMap(value string) map[string]string {
	if value == "" {
		return nil
	}
	out := make(map[string]string)
	for _, entry := range strings.Split(value, ListDelimiter) {
		key, val, ok := strings.Cut(entry, KVDelimiter)
		if !ok || key == "" {
			continue
		}
		out[key] = val
	}
	return out
}

func parseIntMap(value string) (map[string]int, error) {
	if value == "" {
		return nil, nil
	}
	out := make(map[string]int)
	for _, entry := range strings.Split(value, ListDelimiter) {
		key, val, ok := strings.Cut(entry, KVDelimiter)
		if !ok || key == "" {
			continue
		}
		n, err := strconv.Atoi(val)
		if err != nil {
			return nil, fmt.Errorf("%w: map[%s]=%q is not an integer", ErrMalformed, key, val)
		}
		out[key] = n
	}
	return out, nil
}

func parseFloatMap(value string) (map[string]float64, error) {
	if value == "" {
		return nil, nil
	}
	out := make(map[string]float64)
	for _, entry := range strings.Split(value, ListDelimiter) {
		key, val, ok := strings.Cut(entry, KVDelimiter)
		if !ok || key == "" {
			continue
		}
		n, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: context[%s]=%q is not numeric", ErrMalformed, key, val)
		}
		out[key] = n
	}
	return out, nil
}

func parseJSONCell(value string, target any) error {
	if value == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(value), target); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}

func joinIntMap(m map[string]int) string {
	parts := make([]string, 0, len(m))
	for _, k := range sortedKeys(m) {
		parts = append(parts, k+KVDelimiter+strconv.Itoa(m[k]))
	}
	return strings.Join(parts, ListDelimiter)
}

func joinStringMap(m map[string]string) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(m))
	for _, k := range keys {
		parts = append(parts, k+KVDelimiter+m[k])
	}
	return strings.Join(parts, ListDelimiter)
}

func joinFloatMap(m map[string]float64) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(m))
	for _, k := range keys {
		parts = append(parts, k+KVDelimiter+strconv.FormatFloat(m[k], 'f', -1, 64))
	}
	return strings.Join(parts, ListDelimiter)
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
