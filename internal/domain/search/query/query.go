// Package query holds the validated free-text search query.
package query

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/taskctx/internal/domain"
)

// MaxLength is the maximum accepted query length in bytes.
const MaxLength = 4096

// Query is a validated search request issued by a principal.
type Query struct {
	text      string
	workspace string
	principal string
}

// New validates and creates a Query. Text is trimmed; workspace is optional.
func New(text, workspace, principal string) (Query, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Query{}, fmt.Errorf("query is required: %w", domain.ErrInvalidInput)
	}
	if len(text) > MaxLength {
		return Query{}, fmt.Errorf("query too long (max %d chars): %w", MaxLength, domain.ErrInvalidInput)
	}
	if principal == "" {
		return Query{}, fmt.Errorf("principal is required: %w", domain.ErrUnauthorized)
	}
	return Query{text: text, workspace: strings.TrimSpace(workspace), principal: principal}, nil
}

// Text returns the query text.
func (q Query) Text() string { return q.text }

// Workspace returns the workspace scope, empty when unscoped.
func (q Query) Workspace() string { return q.workspace }

// Principal returns the requesting principal id.
func (q Query) Principal() string { return q.principal }

// Scoped reports whether the query is limited to one workspace.
func (q Query) Scoped() bool { return q.workspace != "" }
