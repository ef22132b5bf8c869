package v1

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

const (
	// MaxControls is the number of control groups an experiment can have (Control and Control2).
	MaxControls = 2
	// MaxTests is the number of test arms an experiment can have (Test through Test9).
	MaxTests = 9
)

type RoleKind string

const (
	RoleControl RoleKind = "Control"
	RoleTest    RoleKind = "Test"
)

// Role is one of Control, Control2, Test, Test2 ... Test9. Index 1 is the bare name.
type Role struct {
	Kind  RoleKind
	Index int
}

func (r Role) String() string {
	if r.Index <= 1 {
		return string(r.Kind)
	}
	return fmt.Sprintf("%s%d", r.Kind, r.Index)
}

// Valid reports whether the role is part of the recognized set.
func (r Role) Valid() bool {
	switch r.Kind {
	case RoleControl:
		return r.Index >= 1 && r.Index <= MaxControls
	case RoleTest:
		return r.Index >= 1 && r.Index <= MaxTests
	}
	return false
}

// ParseRoleName parses a role name such as "Control2" or "Test". Matching is
// case insensitive; "Test1" is the same role as "Test".
func ParseRoleName(name string) (Role, error) {
	lower := strings.ToLower(strings.TrimSpace(name))
	var role Role
	var suffix string
	switch {
	case strings.HasPrefix(lower, "control"):
		role.Kind, suffix = RoleControl, lower[len("control"):]
	case strings.HasPrefix(lower, "test"):
		role.Kind, suffix = RoleTest, lower[len("test"):]
	default:
		return Role{}, errors.Errorf("unknown role %q", name)
	}
	role.Index = 1
	if suffix != "" {
		n, err := strconv.Atoi(suffix)
		if err != nil {
			return Role{}, errors.Errorf("unknown role %q", name)
		}
		role.Index = n
	}
	if !role.Valid() {
		return Role{}, errors.Errorf("role %q is out of range", name)
	}
	return role, nil
}

// Arm pairs a test role with the group identifier playing it.
type Arm struct {
	Name  string `json:"name" yaml:"name"`
	Group string `json:"group" yaml:"group"`
}

// RoleAssignment maps experiment roles to group identifiers.
type RoleAssignment struct {
	Control string `json:"control" yaml:"control"`
	// Control2 is an optional redundant control, empty when absent.
	Control2 string `json:"control2,omitempty" yaml:"control2,omitempty"`
	// Tests are ordered by role index.
	Tests []Arm `json:"tests" yaml:"tests"`
}

// HasControl2 reports whether a second control group is assigned.
func (r RoleAssignment) HasControl2() bool {
	return r.Control2 != ""
}

// AssignmentFromMap builds an assignment from role names to group identifiers,
// the shape used in funnel configuration files:
//
//	groups:
//	  Control: A
//	  Control2: A2
//	  Test: B
func AssignmentFromMap(groups map[string]string) (RoleAssignment, error) {
	var assignment RoleAssignment
	seen := map[Role]string{}
	for name, group := range groups {
		role, err := ParseRoleName(name)
		if err != nil {
			return RoleAssignment{}, err
		}
		if group == "" {
			return RoleAssignment{}, errors.Errorf("role %s has no group", name)
		}
		if other, ok := seen[role]; ok {
			return RoleAssignment{}, errors.Errorf("role %s assigned twice (%s, %s)", role, other, group)
		}
		seen[role] = group
	}

	roles := make([]Role, 0, len(seen))
	for role := range seen {
		roles = append(roles, role)
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i].Index < roles[j].Index })

	for _, role := range roles {
		group := seen[role]
		switch {
		case role.Kind == RoleControl && role.Index == 1:
			assignment.Control = group
		case role.Kind == RoleControl:
			assignment.Control2 = group
		default:
			assignment.Tests = append(assignment.Tests, Arm{Name: role.String(), Group: group})
		}
	}

	if assignment.Control == "" {
		return RoleAssignment{}, errors.New("no Control group assigned")
	}
	if len(assignment.Tests) == 0 {
		return RoleAssignment{}, errors.New("no Test group assigned")
	}
	return assignment, nil
}
