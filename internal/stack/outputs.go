// File: internal/stack/outputs.go
// Brief: Run-scoped output store and ${stack.Output} reference resolution.

package stack

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// OutputKey uniquely identifies one value produced by a completed stack.
type OutputKey struct {
	Stack  string
	Output string
}

func (k OutputKey) String() string {
	return k.Stack + "." + k.Output
}

// refPattern matches an output reference embedded in a parameter value,
// e.g. "${network.VpcId}".
var refPattern = regexp.MustCompile(`\$\{([A-Za-z0-9_-]+)\.([A-Za-z0-9_-]+)\}`)

// OutputStore holds the outputs produced during one orchestration run.
// The executor is the only writer; applies are sequential, so no locking is
// needed. The store is not persisted: a re-entered run repopulates it from the
// backend as already-complete stacks are re-applied.
type OutputStore struct {
	values map[OutputKey]string
}

func NewOutputStore() *OutputStore {
	return &OutputStore{values: map[OutputKey]string{}}
}

// Put records every output of a completed stack, replacing any previous entry
// for the same stack so a no-change re-apply still refreshes the store.
func (s *OutputStore) Put(stackName string, outputs map[string]string) {
	for key := range s.values {
		if key.Stack == stackName {
			delete(s.values, key)
		}
	}
	for name, value := range outputs {
		s.values[OutputKey{Stack: stackName, Output: name}] = value
	}
}

func (s *OutputStore) Get(key OutputKey) (string, bool) {
	v, ok := s.values[key]
	return v, ok
}

// Outputs returns a copy of the stored outputs for one stack.
func (s *OutputStore) Outputs(stackName string) map[string]string {
	out := map[string]string{}
	for key, v := range s.values {
		if key.Stack == stackName {
			out[key.Output] = v
		}
	}
	return out
}

// Resolve expands every ${stack.Output} reference in the definition's
// parameters. A reference to an absent output fails with
// UnresolvedOutputError: the graph guarantees dependencies complete first, so
// a miss here is an ordering bug rather than a backend condition.
func (s *OutputStore) Resolve(def *Definition) (map[string]string, error) {
	resolved := make(map[string]string, len(def.Parameters))
	names := make([]string, 0, len(def.Parameters))
	for name := range def.Parameters {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		expanded, err := s.ExpandValue(def.Name, name, def.Parameters[name])
		if err != nil {
			return nil, err
		}
		resolved[name] = expanded
	}
	return resolved, nil
}

// ExpandValue expands every ${stack.Output} reference embedded in value.
// owner and field name the consuming stack/setting for error reporting.
func (s *OutputStore) ExpandValue(owner, field, value string) (string, error) {
	var resolveErr error
	expanded := refPattern.ReplaceAllStringFunc(value, func(match string) string {
		groups := refPattern.FindStringSubmatch(match)
		key := OutputKey{Stack: groups[1], Output: groups[2]}
		v, ok := s.values[key]
		if !ok && resolveErr == nil {
			resolveErr = &UnresolvedOutputError{Stack: owner, Parameter: field, Ref: key}
		}
		return v
	})
	if resolveErr != nil {
		return "", resolveErr
	}
	return expanded, nil
}

// ParseRef parses a bare "stack.Output" reference, used by config fields that
// hold a single reference rather than an embedded one.
func ParseRef(ref string) (OutputKey, error) {
	parts := strings.SplitN(strings.TrimSpace(ref), ".", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return OutputKey{}, fmt.Errorf("invalid output reference %q (expected stack.Output)", ref)
	}
	return OutputKey{Stack: parts[0], Output: parts[1]}, nil
}
