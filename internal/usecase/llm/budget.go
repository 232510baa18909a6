package llm

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/taskctx/internal/domain"
	domusage "github.com/kailas-cloud/taskctx/internal/domain/usage"
)

// Kind names the provider call that tokens are charged to.
type Kind string

const (
	// KindEmbedding covers query and candidate embeddings.
	KindEmbedding Kind = "embedding"
	// KindCompletion covers transcript snippet refinement.
	KindCompletion Kind = "completion"
)

var kinds = [...]Kind{KindEmbedding, KindCompletion}

// BudgetAction defines what happens to embedding calls once a cap is reached.
type BudgetAction string

const (
	// BudgetActionWarn logs and lets embeddings through.
	BudgetActionWarn BudgetAction = "warn"
	// BudgetActionReject fails embeddings with domain.ErrQuotaExceeded.
	BudgetActionReject BudgetAction = "reject"
)

// BudgetStore is the persistence interface for budget counters.
type BudgetStore interface {
	IncrBy(ctx context.Context, key string, val int64) error
	Get(ctx context.Context, key string) (int64, error)
}

// window is one accounting period. Its counters restart when floor(now) moves past start.
type window struct {
	name   string
	layout string
	limit  int64
	floor  func(time.Time) time.Time
	start  time.Time
	spent  domusage.Tokens
}

func newWindow(name, layout string, limit int64, floor func(time.Time) time.Time, now time.Time) *window {
	return &window{name: name, layout: layout, limit: limit, floor: floor, start: floor(now)}
}

func (w *window) roll(now time.Time) {
	if s := w.floor(now); s.After(w.start) {
		w.start = s
		w.spent = domusage.Tokens{}
	}
}

func (w *window) add(k Kind, n int64) {
	if k == KindCompletion {
		w.spent.Completion += n
		return
	}
	w.spent.Embedding += n
}

func (w *window) set(k Kind, n int64) {
	if k == KindCompletion {
		w.spent.Completion = n
		return
	}
	w.spent.Embedding = n
}

func (w *window) exhausted() bool {
	return w.limit > 0 && w.spent.Total() >= w.limit
}

// remaining is -1 for an uncapped window and never below 0 otherwise.
func (w *window) remaining() int64 {
	if w.limit == 0 {
		return -1
	}
	return max(w.limit-w.spent.Total(), 0)
}

// key is taskctx:budget:{provider}:{kind}:{daily|monthly}:{date}.
func (w *window) key(provider string, k Kind, t time.Time) string {
	return fmt.Sprintf("%sbudget:%s:%s:%s:%s", domain.KeyPrefix, provider, k, w.name, t.Format(w.layout))
}

// BudgetTracker meters provider tokens per call kind against shared daily and
// monthly caps. Counters live in memory and are written behind to an optional store.
//
// Once a cap is reached, embeddings follow the configured action. Completions are
// refused either way: refinement is optional and the snippet falls back to the summary.
type BudgetTracker struct {
	mu       sync.Mutex
	provider string
	action   BudgetAction
	day      *window
	month    *window
	store    BudgetStore
	logger   *zap.Logger
	now      func() time.Time
}

// NewBudgetTracker creates a tracker. A zero limit leaves that window uncapped.
func NewBudgetTracker(
	provider string, dailyLimit, monthlyLimit int64,
	action BudgetAction, logger *zap.Logger,
) *BudgetTracker {
	if action == "" {
		action = BudgetActionWarn
	}
	now := time.Now().UTC()
	return &BudgetTracker{
		provider: provider,
		action:   action,
		day:      newWindow("daily", "2006-01-02", dailyLimit, truncateToDay, now),
		month:    newWindow("monthly", "2006-01", monthlyLimit, truncateToMonth, now),
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithStore attaches a persistence store and loads the current counters from it.
func (b *BudgetTracker) WithStore(ctx context.Context, store BudgetStore) *BudgetTracker {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.store = store
	now := b.now()
	for _, w := range []*window{b.day, b.month} {
		w.roll(now)
		for _, k := range kinds {
			key := w.key(b.provider, k, now)
			val, err := store.Get(ctx, key)
			if err != nil {
				b.logger.Warn("Failed to load budget counter", zap.String("key", key), zap.Error(err))
				continue
			}
			w.set(k, val)
		}
	}

	b.logger.Info("Budget loaded from store",
		zap.String("provider", b.provider),
		zap.Int64("daily_embedding", b.day.spent.Embedding),
		zap.Int64("daily_completion", b.day.spent.Completion),
		zap.Int64("monthly_embedding", b.month.spent.Embedding),
		zap.Int64("monthly_completion", b.month.spent.Completion),
	)
	return b
}

// Check reports whether a call of the given kind may spend tokens now.
func (b *BudgetTracker) Check(_ context.Context, kind Kind) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	w := b.exhaustedLocked()
	if w == nil {
		return nil
	}
	if kind == KindCompletion || b.action == BudgetActionReject {
		return fmt.Errorf("%s budget spent, %s refused: %w", w.name, kind, domain.ErrQuotaExceeded)
	}

	b.logger.Warn("Token budget exceeded",
		zap.String("provider", b.provider),
		zap.String("window", w.name),
		zap.Int64("limit", w.limit),
		zap.Int64("embedding_tokens", w.spent.Embedding),
		zap.Int64("completion_tokens", w.spent.Completion),
	)
	return nil
}

// AllowCompletion reports whether snippet refinement may call the completer.
func (b *BudgetTracker) AllowCompletion() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.exhaustedLocked() == nil
}

func (b *BudgetTracker) exhaustedLocked() *window {
	now := b.now()
	for _, w := range []*window{b.day, b.month} {
		w.roll(now)
		if w.exhausted() {
			return w
		}
	}
	return nil
}

// Record charges tokens consumed by a completed call of the given kind.
func (b *BudgetTracker) Record(kind Kind, tokens int64) {
	b.mu.Lock()
	now := b.now()
	keys := make([]string, 0, 2)
	for _, w := range []*window{b.day, b.month} {
		w.roll(now)
		w.add(kind, tokens)
		keys = append(keys, w.key(b.provider, kind, now))
	}
	store := b.store
	b.mu.Unlock()

	if store == nil {
		return
	}

	// Detached from the request context so a cancelled request still gets billed.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for _, key := range keys {
		if err := store.IncrBy(ctx, key, tokens); err != nil {
			b.logger.Warn("Failed to persist budget counter", zap.String("key", key), zap.Error(err))
		}
	}
}

// DailyLimit returns the daily token cap, 0 when uncapped.
func (b *BudgetTracker) DailyLimit() int64 { return b.day.limit }

// MonthlyLimit returns the monthly token cap, 0 when uncapped.
func (b *BudgetTracker) MonthlyLimit() int64 { return b.month.limit }

// DailySpend returns today's consumption per call kind.
func (b *BudgetTracker) DailySpend() domusage.Tokens { return b.snapshot(b.day).spent }

// MonthlySpend returns this month's consumption per call kind.
func (b *BudgetTracker) MonthlySpend() domusage.Tokens { return b.snapshot(b.month).spent }

// RemainingDaily returns tokens left today, -1 when uncapped.
func (b *BudgetTracker) RemainingDaily() int64 {
	w := b.snapshot(b.day)
	return w.remaining()
}

// RemainingMonthly returns tokens left this month, -1 when uncapped.
func (b *BudgetTracker) RemainingMonthly() int64 {
	w := b.snapshot(b.month)
	return w.remaining()
}

func (b *BudgetTracker) snapshot(w *window) window {
	b.mu.Lock()
	defer b.mu.Unlock()
	w.roll(b.now())
	return *w
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func truncateToMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
