package registry

import (
	"sort"
	"sync"

	"github.com/bcdannyboy/sabrcal/models"
)

// Repository maps handles to values. It is safe for concurrent use.
type Repository[T any] struct {
	mu    sync.RWMutex
	items map[string]T
}

func NewRepository[T any]() *Repository[T] {
	return &Repository[T]{items: make(map[string]T)}
}

// Put stores v under handle, replacing any previous value.
func (r *Repository[T]) Put(handle string, v T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[handle] = v
}

func (r *Repository[T]) Get(handle string) (T, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.items[handle]
	return v, ok
}

func (r *Repository[T]) Delete(handle string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.items, handle)
}

func (r *Repository[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}

// Handles returns the stored handles in sorted order.
func (r *Repository[T]) Handles() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.items))
	for h := range r.items {
		out = append(out, h)
	}
	sort.Strings(out)
	return out
}

// Registry holds everything a calibration run refers to by handle.
type Registry struct {
	Settings     *Repository[models.CalibrationSettings]
	Calibrations *Repository[*models.Calibration]
	Surfaces     *Repository[*models.ParameterSurface]
}

func New() *Registry {
	return &Registry{
		Settings:     NewRepository[models.CalibrationSettings](),
		Calibrations: NewRepository[*models.Calibration](),
		Surfaces:     NewRepository[*models.ParameterSurface](),
	}
}
