// Package graph holds the task relationship graph model.
package graph

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/taskctx/internal/domain"
)

// RelationshipType is a directed edge label between two tasks.
type RelationshipType string

// Supported relationship types.
const (
	DependsOn RelationshipType = "DEPENDS_ON"
	RelatedTo RelationshipType = "RELATED_TO"
	Blocks    RelationshipType = "BLOCKS"
	PartOf    RelationshipType = "PART_OF"
)

// IsValid reports whether t is a supported relationship type.
func (t RelationshipType) IsValid() bool {
	switch t {
	case DependsOn, RelatedTo, Blocks, PartOf:
		return true
	}
	return false
}

// ParseRelationshipType normalizes s (case-insensitive) into a RelationshipType.
func ParseRelationshipType(s string) (RelationshipType, error) {
	t := RelationshipType(strings.ToUpper(strings.TrimSpace(s)))
	if !t.IsValid() {
		return "", fmt.Errorf("relationship type %q: %w", s, domain.ErrInvalidInput)
	}
	return t, nil
}

// Edge is a directed, typed relationship.
type Edge struct {
	Source string
	Target string
	Type   RelationshipType
}

// NewEdge validates and creates an Edge. Self-relationships are rejected.
func NewEdge(source, target string, t RelationshipType) (Edge, error) {
	if source == "" || target == "" {
		return Edge{}, fmt.Errorf("source and target are required: %w", domain.ErrInvalidInput)
	}
	if source == target {
		return Edge{}, fmt.Errorf("task cannot relate to itself: %w", domain.ErrInvalidInput)
	}
	if !t.IsValid() {
		return Edge{}, fmt.Errorf("relationship type %q: %w", t, domain.ErrInvalidInput)
	}
	return Edge{Source: source, Target: target, Type: t}, nil
}

// Other returns the endpoint of e opposite to id.
func (e Edge) Other(id string) string {
	if e.Source == id {
		return e.Target
	}
	return e.Source
}

// Node is a task snapshot taken at traversal time.
type Node struct {
	ID          string
	Title       string
	Description string
	Status      string
	Priority    string
}

// Graph is a flattened traversal result.
type Graph struct {
	Nodes []Node
	Edges []Edge
}

// Neighbor is a task adjacent to the queried task.
type Neighbor struct {
	Node Node
	Type RelationshipType
}
