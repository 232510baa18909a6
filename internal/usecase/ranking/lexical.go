package ranking

import (
	"strings"

	"github.com/kailas-cloud/taskctx/internal/domain/candidate"
)

// LexicalRelevance is the constant relevance of every lexical match.
const LexicalRelevance = 1.0

// Lexical keeps the candidates whose primary text, secondary text or content contains
// the query, ignoring case. Tasks come first, then transcripts, each capped; the
// result is not re-sorted since every match scores LexicalRelevance.
// No threshold applies.
func Lexical(query string, tasks, transcripts []candidate.Candidate, taskCap, transcriptCap int) []Scored {
	needle := strings.ToLower(strings.TrimSpace(query))
	out := make([]Scored, 0, taskCap+transcriptCap)
	out = appendMatches(out, needle, tasks, taskCap)
	out = appendMatches(out, needle, transcripts, transcriptCap)
	return out
}

func appendMatches(out []Scored, needle string, cands []candidate.Candidate, limit int) []Scored {
	if needle == "" {
		return out
	}
	n := 0
	for i := range cands {
		if limit > 0 && n >= limit {
			break
		}
		if !Matches(&cands[i], needle) {
			continue
		}
		out = append(out, Scored{Candidate: cands[i], Relevance: LexicalRelevance})
		n++
	}
	return out
}

// Matches reports whether any text field of c contains needle. needle must be lower case.
func Matches(c *candidate.Candidate, needle string) bool {
	for _, field := range []string{c.PrimaryText(), c.SecondaryText(), c.Content()} {
		if strings.Contains(strings.ToLower(field), needle) {
			return true
		}
	}
	return false
}
