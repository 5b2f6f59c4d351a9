// Package visibility decides which users' records a caller may see.
//
// The role hierarchy is declared once as an adjacency table (role to the roles it directly
// outranks) and evaluated by a single transitive-closure routine. Every screen that lists tasks,
// activity logs, planner events or performance rows goes through the same Scope.
package visibility

import "github.com/fieldops/taskboard/internal/domain"

// Mode selects how a role's visible set is computed.
type Mode int

const (
	// ModeSelf limits the visible set to the caller.
	ModeSelf Mode = iota
	// ModeSubordinates walks the manager chain below the caller.
	ModeSubordinates
	// ModeAll exposes the whole roster.
	ModeAll
)

func (m Mode) String() string {
	switch m {
	case ModeSubordinates:
		return "subordinates"
	case ModeAll:
		return "all"
	default:
		return "self"
	}
}

// Rule declares the visibility of one role.
type Rule struct {
	Mode Mode
	// Outranks lists the roles directly below this one.
	Outranks []domain.Role
	// Transitive extends Outranks and the manager chain past the first level.
	Transitive bool
}

// Policy is an immutable, precomputed role hierarchy.
type Policy struct {
	rules   map[domain.Role]Rule
	closure map[domain.Role]map[domain.Role]struct{}
}

// NewPolicy builds a policy from a rule table. Roles absent from the table are self-only.
func NewPolicy(rules map[domain.Role]Rule) *Policy {
	p := &Policy{
		rules:   make(map[domain.Role]Rule, len(rules)),
		closure: make(map[domain.Role]map[domain.Role]struct{}, len(rules)),
	}
	for role, rule := range rules {
		rule.Outranks = append([]domain.Role(nil), rule.Outranks...)
		p.rules[role] = rule
	}
	for role := range p.rules {
		p.closure[role] = p.outranked(role)
	}
	return p
}

// DefaultPolicy is the organisation-wide hierarchy: admins see everyone, supervisors see their
// whole reporting tree, junior supervisors and team members see only themselves.
func DefaultPolicy() *Policy {
	return NewPolicy(map[domain.Role]Rule{
		domain.RoleAdmin: {
			Mode:       ModeAll,
			Outranks:   []domain.Role{domain.RoleSupervisor},
			Transitive: true,
		},
		domain.RoleSupervisor: {
			Mode:       ModeSubordinates,
			Outranks:   []domain.Role{domain.RoleJuniorSupervisor},
			Transitive: true,
		},
		domain.RoleJuniorSupervisor: {
			Mode:     ModeSelf,
			Outranks: []domain.Role{domain.RoleTeamMember},
		},
		domain.RoleTeamMember: {Mode: ModeSelf},
	})
}

// outranked computes the set of roles below role. Non-transitive rules stop at the first level.
func (p *Policy) outranked(role domain.Role) map[domain.Role]struct{} {
	out := map[domain.Role]struct{}{}
	rule, ok := p.rules[role]
	if !ok {
		return out
	}
	if !rule.Transitive {
		for _, r := range rule.Outranks {
			out[r] = struct{}{}
		}
		return out
	}

	stack := append([]domain.Role(nil), rule.Outranks...)
	for len(stack) > 0 {
		next := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if next == role {
			continue
		}
		if _, seen := out[next]; seen {
			continue
		}
		out[next] = struct{}{}
		stack = append(stack, p.rules[next].Outranks...)
	}
	return out
}

// Rule returns the rule for role, falling back to self-only.
func (p *Policy) Rule(role domain.Role) Rule {
	if rule, ok := p.rules[role]; ok {
		return rule
	}
	return Rule{Mode: ModeSelf}
}

// SelfOnly reports whether role can only ever see its own records.
func (p *Policy) SelfOnly(role domain.Role) bool {
	return p.Rule(role).Mode == ModeSelf
}

// Outranks reports whether role a sits above role b in the hierarchy.
func (p *Policy) Outranks(a, b domain.Role) bool {
	_, ok := p.closure[a][b]
	return ok
}
