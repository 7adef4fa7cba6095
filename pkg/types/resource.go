// Package types holds the data model shared across the RTRM core packages:
// resource identifiers, resource requests, working modes and bindings
// (spec.md §3). Keeping these in one leaf package lets pkg/rtree,
// pkg/accounter, pkg/schedulable and pkg/policy depend on a common
// vocabulary without depending on each other.
package types

import (
	"fmt"
	"strconv"
	"strings"
)

// ResourceType is one of the closed set of resource kinds a Path segment
// can name (spec.md §3).
type ResourceType int

const (
	System ResourceType = iota
	Group
	Node
	CPU
	GPU
	Accelerator
	ProcessingElement
	Memory
	Network
	IO
	Custom
)

var resourceTypeNames = map[ResourceType]string{
	System:            "sys",
	Group:             "grp",
	Node:              "node",
	CPU:               "cpu",
	GPU:               "gpu",
	Accelerator:       "acc",
	ProcessingElement: "pe",
	Memory:            "mem",
	Network:           "net",
	IO:                "io",
	Custom:            "custom",
}

var resourceTypeByName = func() map[string]ResourceType {
	m := make(map[string]ResourceType, len(resourceTypeNames))
	for t, n := range resourceTypeNames {
		m[n] = t
	}
	return m
}()

func (t ResourceType) String() string {
	if n, ok := resourceTypeNames[t]; ok {
		return n
	}
	return "unknown"
}

// ParseResourceType maps a path-segment prefix (e.g. "cpu", "pe") to its
// ResourceType. Unknown prefixes resolve to Custom rather than erroring,
// matching the original's handling of platform-specific resource names.
func ParseResourceType(s string) ResourceType {
	if t, ok := resourceTypeByName[s]; ok {
		return t
	}
	return Custom
}

// Sentinel IDs, per spec.md §3 ("id ∈ ℕ ∪ {ANY, NONE}").
const (
	IDAny  = -1
	IDNone = -2
)

// Segment is one (type, id) step of a resource Path.
type Segment struct {
	Type ResourceType
	ID   int
}

func (s Segment) String() string {
	switch s.ID {
	case IDAny:
		return s.Type.String()
	case IDNone:
		return s.Type.String() + "-"
	default:
		return s.Type.String() + strconv.Itoa(s.ID)
	}
}

// Path is a typed path of segments, totally ordered lexicographically on
// segments (spec.md §3). A Path with no concrete id at any level is a
// *template* path; otherwise it is *exact*.
type Path []Segment

// ParsePath parses the original tool's dotted notation ("sys0.cpu0.pe2",
// "sys0.cpu.pe" for a template) into a Path.
func ParsePath(s string) (Path, error) {
	if s == "" {
		return nil, fmt.Errorf("empty resource path")
	}
	parts := strings.Split(s, ".")
	path := make(Path, 0, len(parts))
	for _, p := range parts {
		if p == "" {
			return nil, fmt.Errorf("empty path segment in %q", s)
		}
		i := 0
		for i < len(p) && !(p[i] >= '0' && p[i] <= '9') && p[i] != '-' {
			i++
		}
		typeName := p[:i]
		idPart := p[i:]
		seg := Segment{Type: ParseResourceType(typeName)}
		switch {
		case idPart == "":
			seg.ID = IDAny
		case idPart == "-":
			seg.ID = IDNone
		default:
			n, err := strconv.Atoi(idPart)
			if err != nil {
				return nil, fmt.Errorf("invalid resource id in segment %q: %w", p, err)
			}
			seg.ID = n
		}
		path = append(path, seg)
	}
	return path, nil
}

// MustParsePath is ParsePath for callers (tests, static config) that already
// know the path is well-formed.
func MustParsePath(s string) Path {
	p, err := ParsePath(s)
	if err != nil {
		panic(err)
	}
	return p
}

func (p Path) String() string {
	parts := make([]string, len(p))
	for i, s := range p {
		parts[i] = s.String()
	}
	return strings.Join(parts, ".")
}

// IsTemplate reports whether the path has no concrete id at any level.
func (p Path) IsTemplate() bool {
	for _, s := range p {
		if s.ID != IDAny {
			return false
		}
	}
	return true
}

// IsExact reports whether every segment names a concrete id.
func (p Path) IsExact() bool {
	for _, s := range p {
		if s.ID == IDAny {
			return false
		}
	}
	return true
}

// HasPrefix reports whether parent is a prefix of p (the parent relation,
// spec.md §3).
func (p Path) HasPrefix(parent Path) bool {
	if len(parent) > len(p) {
		return false
	}
	for i, s := range parent {
		if p[i] != s {
			return false
		}
	}
	return true
}

// Matches reports whether the exact path p satisfies the (possibly
// template) path tmpl: same length, and every concrete segment of tmpl
// equals the corresponding segment of p.
func (p Path) Matches(tmpl Path) bool {
	if len(p) != len(tmpl) {
		return false
	}
	for i, s := range tmpl {
		if s.ID == IDAny {
			if p[i].Type != s.Type {
				return false
			}
			continue
		}
		if p[i] != s {
			return false
		}
	}
	return true
}

// Less implements the total lexicographic order on segments (spec.md §3).
func (p Path) Less(other Path) bool {
	for i := 0; i < len(p) && i < len(other); i++ {
		if p[i].Type != other[i].Type {
			return p[i].Type < other[i].Type
		}
		if p[i].ID != other[i].ID {
			return p[i].ID < other[i].ID
		}
	}
	return len(p) < len(other)
}

// Clone returns an independent copy of the path.
func (p Path) Clone() Path {
	c := make(Path, len(p))
	copy(c, p)
	return c
}
