package registry

import (
	"fmt"
	"sync"
	"testing"

	"github.com/bcdannyboy/sabrcal/market"
	"github.com/bcdannyboy/sabrcal/models"
)

func TestRepositoryPutGet(t *testing.T) {
	t.Parallel()
	r := NewRepository[int]()
	if _, ok := r.Get("missing"); ok {
		t.Fatalf("expected missing handle")
	}
	r.Put("b", 2)
	r.Put("a", 1)
	r.Put("b", 3)

	if v, ok := r.Get("b"); !ok || v != 3 {
		t.Fatalf("Get(b) = %d, %v; want 3, true", v, ok)
	}
	if got := r.Handles(); len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("Handles = %v", got)
	}
	r.Delete("a")
	if r.Len() != 1 {
		t.Fatalf("Len = %d after delete, want 1", r.Len())
	}
}

func TestRepositoryConcurrentPut(t *testing.T) {
	t.Parallel()
	r := NewRepository[int]()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r.Put(fmt.Sprintf("h%d", i), i)
		}(i)
	}
	wg.Wait()
	if r.Len() != 50 {
		t.Fatalf("Len = %d, want 50", r.Len())
	}
}

func TestRegistriesAreIndependent(t *testing.T) {
	t.Parallel()
	s, err := models.NewCalibrationSettings(0.5, market.Linear, "usd")
	if err != nil {
		t.Fatalf("settings: %v", err)
	}
	a, b := New(), New()
	a.Settings.Put("usd", s)
	if _, ok := b.Settings.Get("usd"); ok {
		t.Fatalf("registries share state")
	}
	if got, ok := a.Settings.Get("usd"); !ok || got.Beta != 0.5 {
		t.Fatalf("Get(usd) = %+v, %v", got, ok)
	}
}
