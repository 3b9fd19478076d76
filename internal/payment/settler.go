package payment

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/example/cab-booking/internal/models"
)

// Outcome is the result of one settlement attempt.
type Outcome struct {
	Success       bool
	TransactionID string
}

// Settler confirms that a non-cash payment method actually transferred
// funds. Cash never reaches a Settler.
type Settler interface {
	Settle(ctx context.Context, p models.Payment) (Outcome, error)
}

// SimulatedSettler stands in for a payment gateway: a fixed delay, then
// success with the configured probability. The delay is not cancellable
// mid-flight; a request that reached the provider must run to its verdict.
type SimulatedSettler struct {
	Delay       time.Duration
	SuccessRate float64

	mu  sync.Mutex
	rnd *rand.Rand
	now func() time.Time
}

func NewSimulatedSettler(delay time.Duration, successRate float64, seed int64) *SimulatedSettler {
	return &SimulatedSettler{
		Delay:       delay,
		SuccessRate: successRate,
		rnd:         rand.New(rand.NewSource(seed)),
		now:         time.Now,
	}
}

func (s *SimulatedSettler) Settle(_ context.Context, _ models.Payment) (Outcome, error) {
	if s.Delay > 0 {
		time.Sleep(s.Delay)
	}
	s.mu.Lock()
	ok := s.rnd.Float64() < s.SuccessRate
	now := s.now()
	s.mu.Unlock()
	if !ok {
		return Outcome{}, nil
	}
	return Outcome{Success: true, TransactionID: "TXN" + now.Format("20060102150405")}, nil
}
