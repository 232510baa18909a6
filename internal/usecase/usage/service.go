// Package usage reports LLM token consumption against the configured budget.
package usage

import (
	"context"
	"time"

	domusage "github.com/kailas-cloud/taskctx/internal/domain/usage"
)

// Service handles usage reporting.
type Service struct {
	br  BudgetReader
	now func() time.Time
}

// New creates a Service. br can be nil (lexical mode, nothing is consumed).
func New(br BudgetReader) *Service {
	return &Service{br: br, now: func() time.Time { return time.Now().UTC() }}
}

// GetReport builds a usage report for the given period.
// The total period has no boundaries and reports the monthly counters.
func (s *Service) GetReport(_ context.Context, period domusage.Period) domusage.Report {
	now := s.now()
	var start, end int64
	var limit, remaining int64
	var used domusage.Tokens

	switch period {
	case domusage.PeriodDay:
		dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		start = dayStart.UnixMilli()
		end = dayStart.AddDate(0, 0, 1).UnixMilli()
		if s.br != nil {
			limit = s.br.DailyLimit()
			used = s.br.DailySpend()
			remaining = s.br.RemainingDaily()
		}
	case domusage.PeriodMonth:
		monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
		start = monthStart.UnixMilli()
		end = monthStart.AddDate(0, 1, 0).UnixMilli()
		if s.br != nil {
			limit = s.br.MonthlyLimit()
			used = s.br.MonthlySpend()
			remaining = s.br.RemainingMonthly()
		}
	default:
		if s.br != nil {
			limit = s.br.MonthlyLimit()
			used = s.br.MonthlySpend()
			remaining = s.br.RemainingMonthly()
		}
	}

	b := domusage.Budget{TokensLimit: limit, TokensRemaining: remaining, ResetsAt: end}
	return domusage.NewReport(period, start, end, used, b)
}
