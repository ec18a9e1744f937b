package domain

import "strings"

// dependencyTokenPrefix marks a job parameter whose value is supplied by
// another job's output at execution time.
const dependencyTokenPrefix = "_xJobDependency:"

// DependencyToken builds the reference token for a job's output.
func DependencyToken(jobID string) string {
	return dependencyTokenPrefix + jobID
}

// ParseDependencyToken returns the referenced job id when v is a dependency
// token.
func ParseDependencyToken(v any) (string, bool) {
	s, ok := v.(string)
	if !ok || !strings.HasPrefix(s, dependencyTokenPrefix) {
		return "", false
	}
	id := strings.TrimPrefix(s, dependencyTokenPrefix)
	if id == "" {
		return "", false
	}
	return id, true
}
