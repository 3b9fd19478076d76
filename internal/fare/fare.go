// Package fare prices rides. Distance is a stand-in generator, not a
// geodesic computation: the booking flow never parses the submitted
// coordinates, it draws a pseudo-random distance instead.
package fare

import (
	"fmt"
	"math/rand"
	"sync"

	"github.com/example/cab-booking/internal/models"
)

type rate struct {
	base  float64
	perKm float64
}

var rates = map[models.CabType]rate{
	models.CabMini:   {base: 25, perKm: 12},
	models.CabSedan:  {base: 35, perKm: 15},
	models.CabSUV:    {base: 50, perKm: 20},
	models.CabLuxury: {base: 80, perKm: 30},
}

var fallbackRate = rate{base: 30, perKm: 13}

// Estimate returns base + distance*rate for the cab type. Unknown types
// price at the fallback rate rather than failing. Full float precision is
// kept; rounding happens only at presentation time.
func Estimate(distanceKm float64, t models.CabType) float64 {
	r, ok := rates[t]
	if !ok {
		r = fallbackRate
	}
	return r.base + distanceKm*r.perKm
}

// Format renders an amount for display with two decimal digits.
func Format(amount float64) string {
	return fmt.Sprintf("%.2f", amount)
}

// Estimator draws ride distances. The rand source is injectable so tests
// can pin a seed.
type Estimator struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

func NewEstimator(seed int64) *Estimator {
	return &Estimator{rnd: rand.New(rand.NewSource(seed))}
}

// Distance returns a pseudo-random ride length in km, in [5, 21).
func (e *Estimator) Distance() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return float64(5+e.rnd.Intn(16)) + e.rnd.Float64()
}
