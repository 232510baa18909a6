package taskctx

import (
	domgraph "github.com/kailas-cloud/taskctx/internal/domain/graph"
	"github.com/kailas-cloud/taskctx/internal/domain/search/result"
)

// RelationshipType labels a directed edge between two tasks.
type RelationshipType string

// Supported relationship types.
const (
	DependsOn RelationshipType = "DEPENDS_ON"
	RelatedTo RelationshipType = "RELATED_TO"
	Blocks    RelationshipType = "BLOCKS"
	PartOf    RelationshipType = "PART_OF"
)

// Result is a ranked task or transcript.
type Result struct {
	Kind      string // "task" or "transcript"
	ID        string
	Title     string
	Snippet   string
	Relevance float64 // cosine similarity, 1.0 for substring matches
}

// Node is a task in a relationship graph.
type Node struct {
	ID          string
	Title       string
	Description string
	Status      string
	Priority    string
}

// Edge is a directed relationship.
type Edge struct {
	Source string
	Target string
	Type   RelationshipType
}

// Graph is the neighbourhood of a task.
type Graph struct {
	Nodes []Node
	Edges []Edge
}

// Neighbor is a task adjacent to the queried one.
type Neighbor struct {
	Node Node
	Type RelationshipType
}

// HealthStatus represents the aggregated system health.
type HealthStatus struct {
	Status string            // "ok", "degraded", "error"
	Checks map[string]string // component -> "ok"/"error"/"disabled"
}

func resultsFromDomain(rs []result.Result) []Result {
	out := make([]Result, len(rs))
	for i, r := range rs {
		out[i] = Result{
			Kind:      string(r.Kind()),
			ID:        r.ID(),
			Title:     r.Title(),
			Snippet:   r.Snippet(),
			Relevance: r.Relevance(),
		}
	}
	return out
}

func nodeFromDomain(n domgraph.Node) Node {
	return Node{
		ID:          n.ID,
		Title:       n.Title,
		Description: n.Description,
		Status:      n.Status,
		Priority:    n.Priority,
	}
}

func graphFromDomain(g domgraph.Graph) Graph {
	out := Graph{
		Nodes: make([]Node, len(g.Nodes)),
		Edges: make([]Edge, len(g.Edges)),
	}
	for i, n := range g.Nodes {
		out.Nodes[i] = nodeFromDomain(n)
	}
	for i, e := range g.Edges {
		out.Edges[i] = Edge{Source: e.Source, Target: e.Target, Type: RelationshipType(e.Type)}
	}
	return out
}
