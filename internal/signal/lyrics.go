package signal

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/patou-app/moderation-cli/pkg/lyrics"
)

// circuitBreaker tracks consecutive failures to skip a flaky upstream.
type circuitBreaker struct {
	mu          sync.Mutex
	failures    int
	lastFailure time.Time
	openUntil   time.Time
	threshold   int           // consecutive failures to trip
	window      time.Duration // failures must occur within this window
	cooldown    time.Duration // how long the circuit stays open
}

func newCircuitBreaker(threshold int, window, cooldown time.Duration) *circuitBreaker {
	return &circuitBreaker{
		threshold: threshold,
		window:    window,
		cooldown:  cooldown,
	}
}

func (cb *circuitBreaker) isOpen() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return time.Now().Before(cb.openUntil)
}

func (cb *circuitBreaker) recordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	now := time.Now()
	if now.Sub(cb.lastFailure) > cb.window {
		cb.failures = 0
	}
	cb.failures++
	cb.lastFailure = now
	if cb.failures >= cb.threshold {
		cb.openUntil = now.Add(cb.cooldown)
		zap.L().Warn("signal: lyrics circuit breaker opened",
			zap.Int("failures", cb.failures),
			zap.Duration("cooldown", cb.cooldown),
		)
	}
}

func (cb *circuitBreaker) recordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failures = 0
}

// LyricsFetcher looks up lyrics as best-effort evidence. Absence and
// transport failures both degrade to empty text; the breaker skips
// lookups entirely while the upstream is flaky (3 failures within 30s
// opens the circuit for 60s).
type LyricsFetcher struct {
	client  lyrics.Client
	breaker *circuitBreaker
	timeout time.Duration
}

// NewLyricsFetcher creates a LyricsFetcher. A nil client disables lookups.
func NewLyricsFetcher(client lyrics.Client, timeout time.Duration) *LyricsFetcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &LyricsFetcher{
		client:  client,
		breaker: newCircuitBreaker(3, 30*time.Second, 60*time.Second),
		timeout: timeout,
	}
}

// Fetch returns the lyrics text and whether anything was found. Never
// fails: lyrics are optional and their absence must not block moderation.
func (f *LyricsFetcher) Fetch(ctx context.Context, title, artist string) (string, bool) {
	if f.client == nil || f.breaker.isOpen() {
		return "", false
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	text, err := f.client.Search(ctx, title, artist)
	if err != nil {
		f.breaker.recordFailure()
		zap.L().Debug("signal: lyrics lookup failed, continuing without lyrics",
			zap.String("title", title),
			zap.String("artist", artist),
			zap.Error(err),
		)
		return "", false
	}

	f.breaker.recordSuccess()
	return text, text != ""
}
