// Package usage holds LLM token usage reports.
package usage

import "fmt"

// Period is the aggregation granularity.
type Period string

// Aggregation period constants.
const (
	PeriodDay   Period = "day"
	PeriodMonth Period = "month"
	PeriodTotal Period = "total"
)

// ParsePeriod validates a period name. Empty means day.
func ParsePeriod(s string) (Period, error) {
	switch p := Period(s); p {
	case "":
		return PeriodDay, nil
	case PeriodDay, PeriodMonth, PeriodTotal:
		return p, nil
	}
	return "", fmt.Errorf("invalid period %q", s)
}

// Budget is a token budget snapshot.
type Budget struct {
	TokensLimit     int64 // 0 = unlimited
	TokensRemaining int64
	ResetsAt        int64 // unix millis, 0 when the period has no end
}

// Exhausted reports whether a limited budget has no tokens left.
func (b Budget) Exhausted() bool {
	return b.TokensLimit > 0 && b.TokensRemaining <= 0
}

// Tokens splits consumption by provider call: query and candidate embeddings
// versus transcript snippet completions.
type Tokens struct {
	Embedding  int64
	Completion int64
}

// Total returns the combined count charged against the budget.
func (t Tokens) Total() int64 { return t.Embedding + t.Completion }

// Report is an LLM usage report for a time period.
type Report struct {
	period      Period
	periodStart int64
	periodEnd   int64
	tokens      Tokens
	budget      Budget
}

// NewReport creates a usage report.
func NewReport(period Period, start, end int64, tokens Tokens, b Budget) Report {
	return Report{
		period:      period,
		periodStart: start,
		periodEnd:   end,
		tokens:      tokens,
		budget:      b,
	}
}

// Period returns the aggregation granularity.
func (r *Report) Period() Period { return r.period }

// PeriodStart returns the period start timestamp (unix millis).
func (r *Report) PeriodStart() int64 { return r.periodStart }

// PeriodEnd returns the period end timestamp (unix millis).
func (r *Report) PeriodEnd() int64 { return r.periodEnd }

// TokensUsed returns tokens consumed within the period.
func (r *Report) TokensUsed() int64 { return r.tokens.Total() }

// Tokens returns consumption within the period split by call kind.
func (r *Report) Tokens() Tokens { return r.tokens }

// Budget returns the budget status.
func (r *Report) Budget() Budget { return r.budget }
