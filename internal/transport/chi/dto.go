package chi

import (
	"time"

	domgraph "github.com/kailas-cloud/taskctx/internal/domain/graph"
	"github.com/kailas-cloud/taskctx/internal/domain/search/result"
	domusage "github.com/kailas-cloud/taskctx/internal/domain/usage"
)

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type resultItem struct {
	Type      string  `json:"type"`
	ID        string  `json:"id"`
	Title     string  `json:"title"`
	Snippet   string  `json:"snippet"`
	Relevance float64 `json:"relevance"`
}

type resultsResponse struct {
	Results []resultItem `json:"results"`
}

type relationshipRequest struct {
	SourceTaskID     string `json:"sourceTaskId"`
	TargetTaskID     string `json:"targetTaskId"`
	RelationshipType string `json:"relationshipType"`
}

type taskNode struct {
	ID               string `json:"id"`
	Title            string `json:"title"`
	Description      string `json:"description,omitempty"`
	Status           string `json:"status,omitempty"`
	Priority         string `json:"priority,omitempty"`
	RelationshipType string `json:"relationshipType,omitempty"`
}

type relatedResponse struct {
	Tasks []taskNode `json:"tasks"`
}

type graphEdge struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Type   string `json:"type"`
}

type graphResponse struct {
	Nodes         []taskNode  `json:"nodes"`
	Relationships []graphEdge `json:"relationships"`
}

type budgetStatus struct {
	TokensLimit     int64      `json:"tokens_limit"`
	TokensRemaining int64      `json:"tokens_remaining"`
	IsExhausted     bool       `json:"is_exhausted"`
	ResetsAt        *time.Time `json:"resets_at,omitempty"`
}

type usageResponse struct {
	Period           string       `json:"period"`
	PeriodStartAt    *time.Time   `json:"period_start_at,omitempty"`
	PeriodEndAt      *time.Time   `json:"period_end_at,omitempty"`
	TokensUsed       int64        `json:"tokens_used"`
	EmbeddingTokens  int64        `json:"embedding_tokens"`
	CompletionTokens int64        `json:"completion_tokens"`
	Budget           budgetStatus `json:"budget"`
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func resultsToDTO(results []result.Result) []resultItem {
	items := make([]resultItem, len(results))
	for i, r := range results {
		items[i] = resultItem{
			Type:      string(r.Kind()),
			ID:        r.ID(),
			Title:     r.Title(),
			Snippet:   r.Snippet(),
			Relevance: r.Relevance(),
		}
	}
	return items
}

func nodeToDTO(n domgraph.Node) taskNode {
	return taskNode{
		ID:          n.ID,
		Title:       n.Title,
		Description: n.Description,
		Status:      n.Status,
		Priority:    n.Priority,
	}
}

func graphToDTO(g domgraph.Graph) graphResponse {
	resp := graphResponse{
		Nodes:         make([]taskNode, len(g.Nodes)),
		Relationships: make([]graphEdge, len(g.Edges)),
	}
	for i, n := range g.Nodes {
		resp.Nodes[i] = nodeToDTO(n)
	}
	for i, e := range g.Edges {
		resp.Relationships[i] = graphEdge{Source: e.Source, Target: e.Target, Type: string(e.Type)}
	}
	return resp
}

func usageToDTO(r *domusage.Report) usageResponse {
	b := r.Budget()
	tok := r.Tokens()
	return usageResponse{
		Period:           string(r.Period()),
		PeriodStartAt:    millisToTime(r.PeriodStart()),
		PeriodEndAt:      millisToTime(r.PeriodEnd()),
		TokensUsed:       tok.Total(),
		EmbeddingTokens:  tok.Embedding,
		CompletionTokens: tok.Completion,
		Budget: budgetStatus{
			TokensLimit:     b.TokensLimit,
			TokensRemaining: b.TokensRemaining,
			IsExhausted:     b.Exhausted(),
			ResetsAt:        millisToTime(b.ResetsAt),
		},
	}
}
