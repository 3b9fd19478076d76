// Package fleet manages the pool of bookable cabs.
package fleet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/example/cab-booking/internal/apperr"
	"github.com/example/cab-booking/internal/models"
	"github.com/example/cab-booking/internal/observability"
	"github.com/example/cab-booking/internal/storage"
)

// seedPlan is the initial fleet created by Seed on an empty store.
var seedPlan = []struct {
	t models.CabType
	n int
}{
	{models.CabMini, 3},
	{models.CabSedan, 3},
	{models.CabSUV, 2},
	{models.CabLuxury, 2},
}

// Registry allocates and releases cabs. With AtomicClaim set it uses the
// store's conditional flip so two concurrent allocations can never pick the
// same cab; without it, it reproduces the original find-then-flip sequence,
// races included.
type Registry struct {
	Cabs        storage.CabStore
	AtomicClaim bool
	Logger      *slog.Logger
}

func NewRegistry(cabs storage.CabStore, atomicClaim bool, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{Cabs: cabs, AtomicClaim: atomicClaim, Logger: logger}
}

// Seed bootstraps the fleet once at process start. It is idempotent: a
// non-empty store is left untouched.
func (r *Registry) Seed(ctx context.Context) error {
	n, err := r.Cabs.Count(ctx)
	if err != nil {
		return fmt.Errorf("fleet count: %w", err)
	}
	if n > 0 {
		return nil
	}
	for _, s := range seedPlan {
		for i := 0; i < s.n; i++ {
			cab := models.Cab{ID: uuid.NewString(), Type: s.t, IsAvailable: true}
			if err := r.Cabs.Insert(ctx, cab); err != nil {
				return fmt.Errorf("seed %s cab: %w", s.t, err)
			}
		}
	}
	r.Logger.Info("fleet seeded", "cabs", 10)
	return nil
}

// FindOrCreateAvailable resolves a cab of the requested type. When the type
// is exhausted a new unit is created and persisted; the fleet only ever
// grows. Invalid types fail allocation.
//
// In atomic mode the returned cab is already flipped unavailable; callers
// still call SetAvailability afterwards, which is then a harmless repeat.
func (r *Registry) FindOrCreateAvailable(ctx context.Context, t models.CabType) (models.Cab, error) {
	if !models.ValidCabType(t) {
		return models.Cab{}, &apperr.AllocationError{CabType: string(t)}
	}

	var (
		cab models.Cab
		err error
	)
	if r.AtomicClaim {
		cab, err = r.Cabs.Claim(ctx, t)
	} else {
		cab, err = r.Cabs.FirstAvailable(ctx, t)
	}
	if err == nil {
		return cab, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return models.Cab{}, fmt.Errorf("find available %s: %w", t, err)
	}

	cab = models.Cab{ID: uuid.NewString(), Type: t, IsAvailable: !r.AtomicClaim}
	if err := r.Cabs.Insert(ctx, cab); err != nil {
		return models.Cab{}, fmt.Errorf("grow fleet with %s: %w", t, err)
	}
	observability.FleetGrownTotal.WithLabelValues(string(t)).Inc()
	r.Logger.Info("fleet grown", "cab_id", cab.ID, "type", t)
	return cab, nil
}

// SetAvailability writes the availability flag unconditionally. Unknown ids
// return storage.ErrNotFound; release paths treat that as ignorable.
func (r *Registry) SetAvailability(ctx context.Context, cabID string, available bool) error {
	return r.Cabs.SetAvailability(ctx, cabID, available)
}

// Available lists every cab currently marked available.
func (r *Registry) Available(ctx context.Context) ([]models.Cab, error) {
	all, err := r.Cabs.List(ctx)
	if err != nil {
		return nil, err
	}
	out := all[:0:0]
	for _, c := range all {
		if c.IsAvailable {
			out = append(out, c)
		}
	}
	return out, nil
}

// ByType lists available cabs of one type. Invalid types yield an empty
// list, matching the original repository behavior.
func (r *Registry) ByType(ctx context.Context, t models.CabType) ([]models.Cab, error) {
	if !models.ValidCabType(t) {
		return nil, nil
	}
	all, err := r.Cabs.List(ctx)
	if err != nil {
		return nil, err
	}
	out := all[:0:0]
	for _, c := range all {
		if c.Type == t && c.IsAvailable {
			out = append(out, c)
		}
	}
	return out, nil
}
