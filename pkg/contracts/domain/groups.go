package domain

import (
	"fmt"
	"sort"
)

// UnassignedGroup is the explicit bucket for subjects without a mapping
// when the caller opts in to keeping them (see dataprocessing.AssignGroups).
const UnassignedGroup = "Unassigned"

// GroupMap maps subject identifiers to experimental group labels. A
// subject belongs to exactly one group per session; conflicting
// assignments are rejected at construction time so aggregation never has
// to arbitrate membership.
type GroupMap struct {
	bySubject map[string]string
}

// NewGroupMap returns an empty mapping.
func NewGroupMap() *GroupMap {
	return &GroupMap{bySubject: make(map[string]string)}
}

// NewGroupMapFromAssignments builds a mapping from the configuration
// shape {group label -> subject IDs}. A subject listed under two
// different labels is a configuration error.
func NewGroupMapFromAssignments(assignments map[string][]string) (*GroupMap, error) {
	m := NewGroupMap()
	labels := make([]string, 0, len(assignments))
	for label := range assignments {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	for _, label := range labels {
		for _, subject := range assignments[label] {
			if err := m.Assign(subject, label); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

// Assign maps a subject to a group. Re-assigning the same pair is a
// no-op; mapping the subject to a different group is an error.
func (m *GroupMap) Assign(subjectID, group string) error {
	if subjectID == "" {
		return fmt.Errorf("group assignment with empty subject id for group %q", group)
	}
	if group == "" {
		return fmt.Errorf("group assignment with empty group label for subject %q", subjectID)
	}
	if prev, ok := m.bySubject[subjectID]; ok && prev != group {
		return fmt.Errorf("subject %q assigned to both group %q and group %q", subjectID, prev, group)
	}
	m.bySubject[subjectID] = group
	return nil
}

// Lookup returns the group for a subject.
func (m *GroupMap) Lookup(subjectID string) (string, bool) {
	g, ok := m.bySubject[subjectID]
	return g, ok
}

// Subjects returns all mapped subject identifiers, sorted.
func (m *GroupMap) Subjects() []string {
	out := make([]string, 0, len(m.bySubject))
	for s := range m.bySubject {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Groups returns the distinct group labels, sorted.
func (m *GroupMap) Groups() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, g := range m.bySubject {
		if _, ok := seen[g]; !ok {
			seen[g] = struct{}{}
			out = append(out, g)
		}
	}
	sort.Strings(out)
	return out
}

// Len returns the number of mapped subjects.
func (m *GroupMap) Len() int { return len(m.bySubject) }
