package usage

import domusage "github.com/kailas-cloud/taskctx/internal/domain/usage"

// BudgetReader provides read-only access to token budget state.
type BudgetReader interface {
	DailyLimit() int64
	MonthlyLimit() int64
	DailySpend() domusage.Tokens
	MonthlySpend() domusage.Tokens
	RemainingDaily() int64
	RemainingMonthly() int64
}
