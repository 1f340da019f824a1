package models

import "strings"

// HasTag reports whether the plan carries a tag equal to name, ignoring case
func (p *Plan) HasTag(name string) bool {
	for _, t := range p.Tags {
		if strings.EqualFold(t, name) {
			return true
		}
	}
	return false
}

// HasAnyTag reports whether the plan carries at least one of the given tags.
// Tag comparison is case-insensitive.
func (p *Plan) HasAnyTag(names []string) bool {
	for _, name := range names {
		if p.HasTag(name) {
			return true
		}
	}
	return false
}

// MatchesQuery performs a case-insensitive substring match of query against the
// title, description, location and every tag. An empty query matches everything.
func (p *Plan) MatchesQuery(query string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return true
	}
	if strings.Contains(strings.ToLower(p.Title), q) ||
		strings.Contains(strings.ToLower(p.Description), q) ||
		strings.Contains(strings.ToLower(p.Location), q) {
		return true
	}
	for _, t := range p.Tags {
		if strings.Contains(strings.ToLower(t), q) {
			return true
		}
	}
	return false
}

// HasStatus reports whether the plan status is one of statuses
func (p *Plan) HasStatus(statuses []PlanStatus) bool {
	for _, s := range statuses {
		if p.Status == s {
			return true
		}
	}
	return false
}
