package akashica

import (
	"encoding/json"
	"strings"
)

// RepositoryPath addresses a file or directory inside a changeset as an
// ordered sequence of name components. Components are case-sensitive
// and may contain any character except '/'. The zero value is the
// repository root.
type RepositoryPath struct {
	components []string
}

// NewPath parses a slash-delimited string into a RepositoryPath. Empty
// segments are dropped, so leading, trailing and duplicate slashes
// normalize away: "/a//b/" and "a/b" are the same path.
func NewPath(s string) RepositoryPath {
	var components []string
	for _, c := range strings.Split(s, "/") {
		if c != "" {
			components = append(components, c)
		}
	}
	return RepositoryPath{components: components}
}

// PathFromComponents builds a path from explicit components. Empty
// components are dropped.
func PathFromComponents(components ...string) RepositoryPath {
	p := RepositoryPath{}
	for _, c := range components {
		if c != "" {
			p.components = append(p.components, c)
		}
	}
	return p
}

// IsRoot reports whether p is the repository root.
func (p RepositoryPath) IsRoot() bool {
	return len(p.components) == 0
}

// Components returns the path's name components. The returned slice
// must not be mutated.
func (p RepositoryPath) Components() []string {
	return p.components
}

// Name returns the final component, or "" for the root.
func (p RepositoryPath) Name() string {
	if len(p.components) == 0 {
		return ""
	}
	return p.components[len(p.components)-1]
}

// Parent returns the path with the final component removed. The parent
// of the root is the root.
func (p RepositoryPath) Parent() RepositoryPath {
	if len(p.components) == 0 {
		return p
	}
	return RepositoryPath{components: p.components[:len(p.components)-1]}
}

// Join returns the path extended by one child component.
func (p RepositoryPath) Join(name string) RepositoryPath {
	if name == "" {
		return p
	}
	components := make([]string, len(p.components)+1)
	copy(components, p.components)
	components[len(p.components)] = name
	return RepositoryPath{components: components}
}

// Equal reports component-wise equality.
func (p RepositoryPath) Equal(q RepositoryPath) bool {
	if len(p.components) != len(q.components) {
		return false
	}
	for i, c := range p.components {
		if q.components[i] != c {
			return false
		}
	}
	return true
}

func (p RepositoryPath) String() string {
	return strings.Join(p.components, "/")
}

// MarshalJSON encodes the path in its slash-delimited string form.
func (p RepositoryPath) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

// UnmarshalJSON decodes a slash-delimited string, normalizing it the
// same way NewPath does.
func (p *RepositoryPath) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*p = NewPath(s)
	return nil
}
