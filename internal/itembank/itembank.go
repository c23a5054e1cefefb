package itembank

import (
	"context"
	"fmt"

	"github.com/mmogame/backend/internal/models"
)

// Filter narrows the candidate item set of a game.
type Filter struct {
	Category string
}

// Adapter serves and judges the questions of one bank kind.
type Adapter interface {
	Kind() models.BankKind
	ItemIDs(ctx context.Context, f Filter) ([]int64, error)
	Items(ctx context.Context, ids []int64) ([]models.Item, error)
	Check(item *models.Item, answer string) models.CheckResult
}

// Registry maps bank kinds to adapters. It is built once at startup and
// read-only afterwards.
type Registry struct {
	adapters map[models.BankKind]Adapter
}

func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[models.BankKind]Adapter, len(adapters))}
	for _, a := range adapters {
		r.adapters[a.Kind()] = a
	}
	return r
}

// DefaultRegistry wires every built-in adapter over one store.
func DefaultRegistry(store *Store) *Registry {
	return NewRegistry(NewMultiChoice(store), NewShortAnswer(store))
}

func (r *Registry) Lookup(kind models.BankKind) (Adapter, error) {
	a, ok := r.adapters[kind]
	if !ok {
		return nil, fmt.Errorf("unknown item bank %q", kind)
	}
	return a, nil
}

// bank is the storage half shared by the built-in adapters.
type bank struct {
	kind  models.BankKind
	store *Store
}

func (b bank) Kind() models.BankKind { return b.kind }

func (b bank) ItemIDs(ctx context.Context, f Filter) ([]int64, error) {
	return b.store.ItemIDs(ctx, b.kind, f.Category)
}

func (b bank) Items(ctx context.Context, ids []int64) ([]models.Item, error) {
	return b.store.Items(ctx, ids)
}
