package fleet

import (
	"context"
	"sync"
	"testing"

	"github.com/example/cab-booking/internal/apperr"
	"github.com/example/cab-booking/internal/models"
	"github.com/example/cab-booking/internal/storage"
)

func newRegistry(t *testing.T, atomic bool) *Registry {
	t.Helper()
	return NewRegistry(storage.NewMemoryStores().Cabs, atomic, nil)
}

func TestSeedIsIdempotent(t *testing.T) {
	r := newRegistry(t, true)
	ctx := context.Background()
	if err := r.Seed(ctx); err != nil {
		t.Fatal(err)
	}
	n, _ := r.Cabs.Count(ctx)
	if n != 10 {
		t.Fatalf("seed created %d cabs, want 10", n)
	}
	if err := r.Seed(ctx); err != nil {
		t.Fatal(err)
	}
	n, _ = r.Cabs.Count(ctx)
	if n != 10 {
		t.Fatalf("second seed changed fleet size to %d", n)
	}

	minis, _ := r.ByType(ctx, models.CabMini)
	suvs, _ := r.ByType(ctx, models.CabSUV)
	if len(minis) != 3 || len(suvs) != 2 {
		t.Fatalf("seed mix wrong: %d minis, %d suvs", len(minis), len(suvs))
	}
}

func TestFindOrCreateReturnsRequestedType(t *testing.T) {
	r := newRegistry(t, true)
	ctx := context.Background()
	if err := r.Seed(ctx); err != nil {
		t.Fatal(err)
	}
	cab, err := r.FindOrCreateAvailable(ctx, models.CabSedan)
	if err != nil {
		t.Fatal(err)
	}
	if cab.Type != models.CabSedan {
		t.Fatalf("got %s, want Sedan", cab.Type)
	}
}

func TestFindOrCreateGrowsFleetOnExhaustion(t *testing.T) {
	r := newRegistry(t, true)
	ctx := context.Background()
	// empty fleet: every request creates a unit
	cab, err := r.FindOrCreateAvailable(ctx, models.CabLuxury)
	if err != nil {
		t.Fatal(err)
	}
	if cab.Type != models.CabLuxury {
		t.Fatalf("got %s", cab.Type)
	}
	n, _ := r.Cabs.Count(ctx)
	if n != 1 {
		t.Fatalf("fleet size %d, want 1", n)
	}
}

func TestFindOrCreateRejectsUnknownType(t *testing.T) {
	r := newRegistry(t, true)
	_, err := r.FindOrCreateAvailable(context.Background(), "Tractor")
	if !apperr.IsAllocation(err) {
		t.Fatalf("want AllocationError, got %v", err)
	}
}

func TestAtomicClaimNeverDoubleAllocates(t *testing.T) {
	r := newRegistry(t, true)
	ctx := context.Background()
	if err := r.Seed(ctx); err != nil {
		t.Fatal(err)
	}

	const workers = 16
	var wg sync.WaitGroup
	got := make(chan string, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cab, err := r.FindOrCreateAvailable(ctx, models.CabMini)
			if err != nil {
				t.Error(err)
				return
			}
			got <- cab.ID
		}()
	}
	wg.Wait()
	close(got)

	seen := map[string]bool{}
	for id := range got {
		if seen[id] {
			t.Fatalf("cab %s allocated twice", id)
		}
		seen[id] = true
	}
}

// The faithful mode reproduces the original read-check-then-act hazard:
// allocation does not reserve, so a second request that arrives before the
// availability flip observes the same cab.
func TestFaithfulModeAllowsDoubleSelection(t *testing.T) {
	r := newRegistry(t, false)
	ctx := context.Background()
	if err := r.Seed(ctx); err != nil {
		t.Fatal(err)
	}

	first, err := r.FindOrCreateAvailable(ctx, models.CabSUV)
	if err != nil {
		t.Fatal(err)
	}
	// availability not yet flipped, as between workflow steps 3 and 6
	second, err := r.FindOrCreateAvailable(ctx, models.CabSUV)
	if err != nil {
		t.Fatal(err)
	}
	if first.ID != second.ID {
		t.Fatalf("expected the hazard to surface: got %s then %s", first.ID, second.ID)
	}
}

func TestSetAvailabilityUnknownCab(t *testing.T) {
	r := newRegistry(t, true)
	err := r.SetAvailability(context.Background(), "missing", true)
	if err == nil {
		t.Fatal("want error for unknown cab")
	}
}

func TestReleaseMakesCabAllocatableAgain(t *testing.T) {
	r := newRegistry(t, true)
	ctx := context.Background()
	cab, err := r.FindOrCreateAvailable(ctx, models.CabMini)
	if err != nil {
		t.Fatal(err)
	}
	if err := r.SetAvailability(ctx, cab.ID, true); err != nil {
		t.Fatal(err)
	}
	again, err := r.FindOrCreateAvailable(ctx, models.CabMini)
	if err != nil {
		t.Fatal(err)
	}
	if again.ID != cab.ID {
		t.Fatalf("released cab should be reused: got %s, want %s", again.ID, cab.ID)
	}
}
