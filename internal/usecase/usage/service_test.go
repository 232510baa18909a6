package usage

import (
	"context"
	"testing"
	"time"

	domusage "github.com/kailas-cloud/taskctx/internal/domain/usage"
)

// --- Mock ---

type mockBudgetReader struct {
	dailyLimit       int64
	monthlyLimit     int64
	daily            domusage.Tokens
	monthly          domusage.Tokens
	remainingDaily   int64
	remainingMonthly int64
}

func (m *mockBudgetReader) DailyLimit() int64             { return m.dailyLimit }
func (m *mockBudgetReader) MonthlyLimit() int64           { return m.monthlyLimit }
func (m *mockBudgetReader) DailySpend() domusage.Tokens   { return m.daily }
func (m *mockBudgetReader) MonthlySpend() domusage.Tokens { return m.monthly }
func (m *mockBudgetReader) RemainingDaily() int64         { return m.remainingDaily }
func (m *mockBudgetReader) RemainingMonthly() int64       { return m.remainingMonthly }

var fixedNow = time.Date(2026, 2, 14, 15, 30, 0, 0, time.UTC)

func newService(br BudgetReader) *Service {
	s := New(br)
	s.now = func() time.Time { return fixedNow }
	return s
}

// --- Tests ---

func TestGetReport_DailyPeriod(t *testing.T) {
	br := &mockBudgetReader{
		dailyLimit:       10000,
		daily:            domusage.Tokens{Embedding: 2600, Completion: 400},
		remainingDaily:   7000,
		monthlyLimit:     100000,
		monthly:          domusage.Tokens{Embedding: 50000},
		remainingMonthly: 50000,
	}
	r := newService(br).GetReport(context.Background(), domusage.PeriodDay)

	if r.Period() != domusage.PeriodDay {
		t.Errorf("expected period %q, got %q", domusage.PeriodDay, r.Period())
	}

	dayStart := time.Date(2026, 2, 14, 0, 0, 0, 0, time.UTC)
	if r.PeriodStart() != dayStart.UnixMilli() {
		t.Errorf("expected period start %d, got %d", dayStart.UnixMilli(), r.PeriodStart())
	}
	dayEnd := dayStart.Add(24 * time.Hour)
	if r.PeriodEnd() != dayEnd.UnixMilli() {
		t.Errorf("expected period end %d, got %d", dayEnd.UnixMilli(), r.PeriodEnd())
	}

	b := r.Budget()
	if b.TokensLimit != 10000 {
		t.Errorf("expected limit 10000, got %d", b.TokensLimit)
	}
	if b.TokensRemaining != 7000 {
		t.Errorf("expected remaining 7000, got %d", b.TokensRemaining)
	}
	if b.ResetsAt != dayEnd.UnixMilli() {
		t.Errorf("expected reset at %d, got %d", dayEnd.UnixMilli(), b.ResetsAt)
	}
	if b.Exhausted() {
		t.Error("budget should not be exhausted")
	}
	if r.TokensUsed() != 3000 {
		t.Errorf("expected tokens 3000, got %d", r.TokensUsed())
	}
	if tok := r.Tokens(); tok.Embedding != 2600 || tok.Completion != 400 {
		t.Errorf("expected 2600 embedding / 400 completion, got %+v", tok)
	}
}

func TestGetReport_MonthlyPeriod(t *testing.T) {
	br := &mockBudgetReader{
		monthlyLimit:     100000,
		monthly:          domusage.Tokens{Embedding: 70000, Completion: 10000},
		remainingMonthly: 20000,
	}
	r := newService(br).GetReport(context.Background(), domusage.PeriodMonth)

	monthStart := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	if r.PeriodStart() != monthStart.UnixMilli() {
		t.Errorf("expected period start %d, got %d", monthStart.UnixMilli(), r.PeriodStart())
	}
	monthEnd := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	if r.PeriodEnd() != monthEnd.UnixMilli() {
		t.Errorf("expected period end %d, got %d", monthEnd.UnixMilli(), r.PeriodEnd())
	}
	if r.Budget().TokensLimit != 100000 || r.TokensUsed() != 80000 {
		t.Errorf("unexpected report: limit %d used %d", r.Budget().TokensLimit, r.TokensUsed())
	}
}

func TestGetReport_TotalPeriod(t *testing.T) {
	br := &mockBudgetReader{
		monthlyLimit:     100000,
		monthly:          domusage.Tokens{Embedding: 100000},
		remainingMonthly: 0,
	}
	r := newService(br).GetReport(context.Background(), domusage.PeriodTotal)

	if r.PeriodStart() != 0 || r.PeriodEnd() != 0 {
		t.Errorf("expected no boundaries for total, got %d..%d", r.PeriodStart(), r.PeriodEnd())
	}
	if !r.Budget().Exhausted() {
		t.Error("budget should be exhausted when remaining is 0")
	}
}

func TestGetReport_NilBudgetReader(t *testing.T) {
	r := newService(nil).GetReport(context.Background(), domusage.PeriodDay)

	if r.Budget().TokensLimit != 0 || r.TokensUsed() != 0 {
		t.Errorf("expected empty report, got limit %d used %d", r.Budget().TokensLimit, r.TokensUsed())
	}
	if r.Budget().Exhausted() {
		t.Error("nil budget reader should not be exhausted")
	}
}

func TestGetReport_Unlimited(t *testing.T) {
	br := &mockBudgetReader{daily: domusage.Tokens{Embedding: 42}, remainingDaily: -1}
	r := newService(br).GetReport(context.Background(), domusage.PeriodDay)

	if r.Budget().Exhausted() {
		t.Error("unlimited budget should never be exhausted")
	}
	if r.Budget().TokensRemaining != -1 {
		t.Errorf("expected -1 remaining, got %d", r.Budget().TokensRemaining)
	}
}
