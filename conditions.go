package sentinel

import "github.com/xraph/sentinel/policy"

// matchConditions reports whether a permission's conditions are satisfied
// by the request context. Every condition key must be present in the
// context with an equal value; a permission with no conditions always
// matches.
func matchConditions(p policy.Permission, reqContext map[string]string) bool {
	if len(p.Conditions) == 0 {
		return true
	}
	for key, want := range p.Conditions {
		got, ok := reqContext[key]
		if !ok || got != want {
			return false
		}
	}
	return true
}
