package reporter

import (
	"sync"
	"time"
)

// DefaultDelays - паузы после 1-й, 2-й ... неудачи подряд, дальше последняя
var DefaultDelays = []time.Duration{
	5 * time.Second,
	15 * time.Second,
	30 * time.Second,
	time.Minute,
	2 * time.Minute,
	5 * time.Minute,
}

// Backoff запрещает отправку после неудач. Успех сбрасывает счетчик
type Backoff struct {
	mu          sync.Mutex
	delays      []time.Duration
	failures    int
	nextAllowed time.Time
	now         func() time.Time
}

func NewBackoff(delays ...time.Duration) *Backoff {
	if len(delays) == 0 {
		delays = DefaultDelays
	}
	return &Backoff{
		delays: delays,
		now:    time.Now,
	}
}

// SetClock подменяет часы (для тестов)
func (b *Backoff) SetClock(now func() time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.now = now
}

// CanSend - пауза после последней неудачи истекла
func (b *Backoff) CanSend() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return !b.now().Before(b.nextAllowed)
}

func (b *Backoff) Success() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.nextAllowed = b.now()
}

// Failure учитывает неудачу и возвращает паузу до следующей попытки
func (b *Backoff) Failure() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures++
	idx := min(b.failures-1, len(b.delays)-1)
	delay := b.delays[idx]
	b.nextAllowed = b.now().Add(delay)
	return delay
}

func (b *Backoff) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}

func (b *Backoff) NextAllowed() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.nextAllowed
}
