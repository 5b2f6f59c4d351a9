package visibility

import (
	"sort"

	"github.com/fieldops/taskboard/internal/domain"
)

// Set is a lookup set of user ids.
type Set map[string]struct{}

// NewSet builds a set from ids.
func NewSet(ids ...string) Set {
	s := make(Set, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Has reports membership.
func (s Set) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Add inserts id.
func (s Set) Add(id string) { s[id] = struct{}{} }

// Len returns the number of ids.
func (s Set) Len() int { return len(s) }

// IDs returns the members in ascending order.
func (s Set) IDs() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// VisibleUsers returns the ids of every user whose records current may see. current must not be
// nil; callers guard on an authenticated session before reaching this point.
func (p *Policy) VisibleUsers(current *domain.User, roster []domain.User) Set {
	visible := NewSet(current.ID)
	rule := p.Rule(current.Role)

	switch rule.Mode {
	case ModeAll:
		for _, u := range roster {
			visible.Add(u.ID)
		}
	case ModeSubordinates:
		p.collectSubordinates(current, roster, rule, visible)
	}
	return visible
}

// collectSubordinates walks the reporting tree breadth-first. Every report is traversed, but only
// those whose role current outranks join the visible set; a peer manager in the chain hides
// itself, not its reports. The visited set stops manager cycles.
func (p *Policy) collectSubordinates(current *domain.User, roster []domain.User, rule Rule, visible Set) {
	reports := make(map[string][]*domain.User, len(roster))
	for i := range roster {
		u := &roster[i]
		if u.ManagerID == nil || *u.ManagerID == "" || *u.ManagerID == u.ID {
			continue
		}
		reports[*u.ManagerID] = append(reports[*u.ManagerID], u)
	}

	type node struct {
		id    string
		depth int
	}
	visited := NewSet(current.ID)
	queue := []node{{id: current.ID}}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		if !rule.Transitive && n.depth >= 1 {
			continue
		}
		for _, u := range reports[n.id] {
			if visited.Has(u.ID) {
				continue
			}
			visited.Add(u.ID)
			if p.Outranks(current.Role, u.Role) {
				visible.Add(u.ID)
			}
			queue = append(queue, node{id: u.ID, depth: n.depth + 1})
		}
	}
}

// Scope is the resolved visibility of one caller.
type Scope struct {
	SelfID   string
	Role     domain.Role
	Visible  Set
	selfOnly bool
}

// Scope resolves the caller's visible set and packages it for filtering.
func (p *Policy) Scope(current *domain.User, roster []domain.User) Scope {
	return p.ScopeFromIDs(current.ID, current.Role, p.VisibleUsers(current, roster).IDs())
}

// ScopeFromIDs rebuilds a scope from a previously resolved id list, e.g. a cached one.
func (p *Policy) ScopeFromIDs(selfID string, role domain.Role, ids []string) Scope {
	visible := NewSet(ids...)
	visible.Add(selfID)
	return Scope{
		SelfID:   selfID,
		Role:     role,
		Visible:  visible,
		selfOnly: p.SelfOnly(role),
	}
}

// SelfOnly reports whether the scope is pinned to the caller.
func (s Scope) SelfOnly() bool { return s.selfOnly }

// Allows reports whether records owned by ownerID are visible. Self-only roles match on their
// own id even if Visible were ever wider.
func (s Scope) Allows(ownerID string) bool {
	if s.selfOnly {
		return ownerID == s.SelfID
	}
	return s.Visible.Has(ownerID)
}

// UserIDs returns the ids the scope allows, sorted.
func (s Scope) UserIDs() []string {
	if s.selfOnly {
		return []string{s.SelfID}
	}
	return s.Visible.IDs()
}

// Owned is any record carrying an owning-user reference.
type Owned interface {
	OwnerID() string
}

// Filter keeps the records scope allows, preserving order.
func Filter[T Owned](records []T, scope Scope) []T {
	out := make([]T, 0, len(records))
	for _, r := range records {
		if scope.Allows(r.OwnerID()) {
			out = append(out, r)
		}
	}
	return out
}

// FilterUsers keeps the roster entries scope allows.
func FilterUsers(roster []domain.User, scope Scope) []domain.User {
	out := make([]domain.User, 0, len(roster))
	for _, u := range roster {
		if scope.Allows(u.ID) {
			out = append(out, u)
		}
	}
	return out
}
