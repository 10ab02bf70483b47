package ratelimit

import "strings"

// Match returns the first rule for method and path, or nil
func Match(method, path string, rules []Rule) *Rule {
	segments := splitPath(path)
	for i := range rules {
		rule := &rules[i]
		if rule.Method != method {
			continue
		}
		if matchSegments(splitPath(rule.Pattern), segments) {
			return rule
		}
	}
	return nil
}

func matchSegments(pattern, path []string) bool {
	if len(pattern) != len(path) {
		return false
	}
	for i, p := range pattern {
		if p != "*" && p != path[i] {
			return false
		}
	}
	return true
}

func splitPath(p string) []string {
	p = strings.Trim(p, "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}
