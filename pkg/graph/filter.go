package graph

// Criteria selects people by attribute. Zero-valued fields are ignored, so
// an empty Criteria matches everyone.
//
// Matching semantics by attribute shape:
//   - list-valued attributes (School, Employer, Ecosystem): membership,
//     the value must be an element of the record's list
//   - map-valued attributes: Society/Platform match on key presence alone,
//     SocietyRanks is a sub-map match (every key must be present with
//     exactly that rank)
//   - scalar attributes (Name, Location, Tier): equality
type Criteria struct {
	Name      string
	Location  string
	Tier      int
	School    string
	Employer  string
	Ecosystem string
	Society   string
	Platform  string

	SocietyRanks map[string]int
}

// FilterPeople returns copies of every record matching the criteria,
// sorted by id.
func (g *Graph) FilterPeople(c Criteria) []*PersonRecord {
	matched := make([]*PersonRecord, 0)
	for _, person := range g.People() {
		if c.matches(person) {
			matched = append(matched, person)
		}
	}
	return matched
}

func (c Criteria) matches(p *PersonRecord) bool {
	if c.Name != "" && p.Name != c.Name {
		return false
	}
	if c.Location != "" && p.Location != c.Location {
		return false
	}
	if c.Tier != 0 && p.Tier != c.Tier {
		return false
	}
	if c.School != "" && !contains(p.Schools, c.School) {
		return false
	}
	if c.Employer != "" && !contains(p.Employers, c.Employer) {
		return false
	}
	if c.Ecosystem != "" && !contains(p.Ecosystems, c.Ecosystem) {
		return false
	}
	if c.Society != "" {
		if _, ok := p.Societies[c.Society]; !ok {
			return false
		}
	}
	if c.Platform != "" {
		if _, ok := p.Platforms[c.Platform]; !ok {
			return false
		}
	}
	for society, rank := range c.SocietyRanks {
		if p.Societies[society] != rank {
			return false
		}
	}
	return true
}

func contains(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}
