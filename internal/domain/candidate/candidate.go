package candidate

import "strings"

// Kind is the entity type a candidate was projected from.
type Kind string

// Candidate kinds.
const (
	KindTask       Kind = "task"
	KindTranscript Kind = "transcript"
)

// IsValid checks if the kind is one of the supported values.
func (k Kind) IsValid() bool {
	return k == KindTask || k == KindTranscript
}

// Candidate is a task or transcript projected into the text fields needed for relevance scoring.
// It is built fresh per request and never cached.
type Candidate struct {
	kind          Kind
	id            string
	primaryText   string
	secondaryText string
	content       string
}

// New creates a candidate. content is the full transcript body and is empty for tasks.
func New(kind Kind, id, primaryText, secondaryText, content string) Candidate {
	return Candidate{
		kind:          kind,
		id:            id,
		primaryText:   primaryText,
		secondaryText: secondaryText,
		content:       content,
	}
}

// Kind returns the entity type.
func (c *Candidate) Kind() Kind { return c.kind }

// ID returns the entity identifier.
func (c *Candidate) ID() string { return c.id }

// PrimaryText returns the task title or meeting title.
func (c *Candidate) PrimaryText() string { return c.primaryText }

// SecondaryText returns the task description or transcript summary.
func (c *Candidate) SecondaryText() string { return c.secondaryText }

// Content returns the full transcript content (empty for tasks).
func (c *Candidate) Content() string { return c.content }

// EmbeddingText is the text sent to the embedding provider.
func (c *Candidate) EmbeddingText() string {
	return strings.TrimSpace(c.primaryText + " " + c.secondaryText)
}

// Filter bounds a candidate fetch. The principal is assumed to be authorized
// for WorkspaceID before the filter is built.
type Filter struct {
	Principal     string
	WorkspaceID   string // empty = every workspace the principal can read
	ExcludeTaskID string
	Contains      string // optional case-insensitive substring, pushed down to the store
	Limit         int
}
