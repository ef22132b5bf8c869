package abtest

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	v1 "github.com/mixbaba/mixbaba/pkg/apis/abtest/v1"
)

// groupNameRegexp matches identifiers that start with a role token. Anything after
// the token, minus an optional separator, must be the role index.
var groupNameRegexp = regexp.MustCompile(`(?i)^\s*(control|test)[\s_-]?(.*?)\s*$`)

// ParseRole maps a group identifier such as "control", "Control2" or "test_3" to a
// role. ok is false when the identifier does not start with a role token. A
// non-nil diagnostic means the identifier looked like a role but could not be
// used: the suffix was not an integer or was out of range.
func ParseRole(group string) (role v1.Role, ok bool, diag *v1.Diagnostic) {
	m := groupNameRegexp.FindStringSubmatch(group)
	if m == nil {
		return v1.Role{}, false, nil
	}

	role.Kind = v1.RoleTest
	if strings.EqualFold(m[1], "control") {
		role.Kind = v1.RoleControl
	}
	role.Index = 1

	if m[2] != "" {
		n, err := strconv.Atoi(m[2])
		if err != nil {
			return v1.Role{}, false, &v1.Diagnostic{
				Severity: v1.SeverityWarning,
				Group:    group,
				Message:  fmt.Sprintf("cannot parse %q as a %s index, group ignored", m[2], strings.ToLower(string(role.Kind))),
			}
		}
		role.Index = n
	}

	if !role.Valid() {
		limit := v1.MaxTests
		if role.Kind == v1.RoleControl {
			limit = v1.MaxControls
		}
		return v1.Role{}, false, &v1.Diagnostic{
			Severity: v1.SeverityWarning,
			Group:    group,
			Message:  fmt.Sprintf("%s index %d outside 1..%d, group ignored", strings.ToLower(string(role.Kind)), role.Index, limit),
		}
	}
	return role, true, nil
}

// InferRoles derives a role assignment from the observed group identifiers.
// Identifiers are visited in sorted order so the result does not depend on map
// iteration; when two identifiers claim the same role the first one wins and the
// other is reported.
func InferRoles(groups []string) (v1.RoleAssignment, []v1.Diagnostic) {
	sorted := append([]string(nil), groups...)
	sort.Strings(sorted)

	var diags []v1.Diagnostic
	claimed := map[v1.Role]string{}
	for _, group := range sorted {
		role, ok, diag := ParseRole(group)
		if diag != nil {
			diags = append(diags, *diag)
		}
		if !ok {
			continue
		}
		if other, taken := claimed[role]; taken {
			diags = append(diags, v1.Diagnostic{
				Severity: v1.SeverityWarning,
				Group:    group,
				Message:  fmt.Sprintf("role %s already taken by %q, group ignored", role, other),
			})
			continue
		}
		claimed[role] = group
	}

	var assignment v1.RoleAssignment
	assignment.Control = claimed[v1.Role{Kind: v1.RoleControl, Index: 1}]
	assignment.Control2 = claimed[v1.Role{Kind: v1.RoleControl, Index: 2}]
	for i := 1; i <= v1.MaxTests; i++ {
		role := v1.Role{Kind: v1.RoleTest, Index: i}
		if group, ok := claimed[role]; ok {
			assignment.Tests = append(assignment.Tests, v1.Arm{Name: role.String(), Group: group})
		}
	}

	if assignment.Control == "" && assignment.Control2 != "" {
		diags = append(diags, v1.Diagnostic{
			Severity: v1.SeverityWarning,
			Group:    assignment.Control2,
			Message:  "second control found without a primary control",
		})
	}
	return assignment, diags
}
