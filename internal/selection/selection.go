package selection

import (
	"context"
	"fmt"
	"math/rand"
	"sort"

	"github.com/mmogame/backend/internal/itembank"
	"github.com/mmogame/backend/internal/models"
)

// Ledger is the part of the stat ledger item selection depends on.
type Ledger interface {
	StatsForItems(ctx context.Context, scope models.Scope, target models.Target, itemIDs []int64) (map[int64]models.Stat, error)
	MarkUsed(ctx context.Context, scope models.Scope, target models.Target, itemIDs []int64) error
}

type Selector struct {
	ledger Ledger
}

func NewSelector(ledger Ledger) *Selector {
	return &Selector{ledger: ledger}
}

type candidate struct {
	id      int64
	correct int
	used    int
	tie     float64
}

// less orders by (correct, used, random tie-break, id) ascending.
func less(a, b candidate) bool {
	if a.correct != b.correct {
		return a.correct < b.correct
	}
	if a.used != b.used {
		return a.used < b.used
	}
	if a.tie != b.tie {
		return a.tie < b.tie
	}
	return a.id < b.id
}

// Select picks up to count items for target, preferring items the target
// has answered correctly least often and seen least often. The picked items
// are returned in random order and each gets its usage counter bumped. An
// empty bank yields an empty result, not an error.
func (s *Selector) Select(ctx context.Context, bank itembank.Adapter, filter itembank.Filter, scope models.Scope, target models.Target, count int) ([]models.Item, error) {
	if count <= 0 {
		return nil, nil
	}

	ids, err := bank.ItemIDs(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("candidate items: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	stats, err := s.ledger.StatsForItems(ctx, scope, target, ids)
	if err != nil {
		return nil, fmt.Errorf("candidate stats: %w", err)
	}

	cands := make([]candidate, len(ids))
	for i, id := range ids {
		st := stats[id]
		cands[i] = candidate{id: id, correct: st.CountCorrect, used: st.CountUsed, tie: rand.Float64()}
	}
	sort.Slice(cands, func(i, j int) bool { return less(cands[i], cands[j]) })

	if count > len(cands) {
		count = len(cands)
	}
	chosen := make([]int64, count)
	for i := range chosen {
		chosen[i] = cands[i].id
	}

	items, err := bank.Items(ctx, chosen)
	if err != nil {
		return nil, fmt.Errorf("load items: %w", err)
	}
	rand.Shuffle(len(items), func(i, j int) { items[i], items[j] = items[j], items[i] })

	if err := s.ledger.MarkUsed(ctx, scope, target, chosen); err != nil {
		return nil, fmt.Errorf("mark used: %w", err)
	}
	return items, nil
}
