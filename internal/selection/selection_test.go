package selection

import (
	"context"
	"testing"

	"github.com/mmogame/backend/internal/database/dbtest"
	"github.com/mmogame/backend/internal/itembank"
	"github.com/mmogame/backend/internal/ledger"
	"github.com/mmogame/backend/internal/models"
)

func setup(t *testing.T, n int) (*Selector, *ledger.Store, itembank.Adapter, models.Scope, models.Target, []int64) {
	t.Helper()
	db := dbtest.Open(t)
	gameID := dbtest.InsertGame(t, db, "alone", "multichoice", 2, 0, 5)
	playerID := dbtest.InsertPlayer(t, db, "p1")
	ids := dbtest.InsertItems(t, db, n)
	ls := ledger.NewStore(db)
	bank := itembank.NewMultiChoice(itembank.NewStore(db))
	return NewSelector(ls), ls, bank, models.Scope{GameID: gameID, NumGame: 1}, models.PlayerTarget(playerID), ids
}

func TestSelectExhaustive(t *testing.T) {
	sel, ls, bank, scope, target, ids := setup(t, 6)
	ctx := context.Background()

	for _, count := range []int{6, 10} {
		items, err := sel.Select(ctx, bank, itembank.Filter{}, scope, target, count)
		if err != nil {
			t.Fatalf("Select(%d) error = %v", count, err)
		}
		if len(items) != len(ids) {
			t.Fatalf("Select(%d) = %d items, want %d", count, len(items), len(ids))
		}
		seen := map[int64]int{}
		for _, it := range items {
			seen[it.ID]++
		}
		for _, id := range ids {
			if seen[id] != 1 {
				t.Errorf("Select(%d) returned item %d %d times, want once", count, id, seen[id])
			}
		}
	}

	stats, err := ls.StatsForItems(ctx, scope, target, ids)
	if err != nil {
		t.Fatalf("StatsForItems() error = %v", err)
	}
	for _, id := range ids {
		if stats[id].CountUsed != 2 {
			t.Errorf("item %d count_used = %d, want 2", id, stats[id].CountUsed)
		}
	}
}

func TestSelectPrefersUnansweredAndUnused(t *testing.T) {
	sel, ls, bank, scope, target, ids := setup(t, 4)
	ctx := context.Background()

	// ids[0] answered correctly, ids[1] used twice, ids[2] used once, ids[3] untouched.
	if err := ls.MarkUsed(ctx, scope, target, []int64{ids[0], ids[1], ids[1], ids[2]}); err != nil {
		t.Fatalf("MarkUsed() error = %v", err)
	}
	if _, err := ls.MarkAnswer(ctx, scope, target, ids[0], true); err != nil {
		t.Fatalf("MarkAnswer() error = %v", err)
	}

	tests := []struct {
		count int
		want  []int64
	}{
		{1, []int64{ids[3]}},
	}
	for _, tt := range tests {
		items, err := sel.Select(ctx, bank, itembank.Filter{}, scope, target, tt.count)
		if err != nil {
			t.Fatalf("Select(%d) error = %v", tt.count, err)
		}
		if len(items) != len(tt.want) || items[0].ID != tt.want[0] {
			t.Errorf("Select(%d) = %v, want %v", tt.count, items, tt.want)
		}
	}

	// Now ids[2] and ids[3] are both used once; the answered item stays last.
	items, err := sel.Select(ctx, bank, itembank.Filter{}, scope, target, 3)
	if err != nil {
		t.Fatalf("Select(3) error = %v", err)
	}
	for _, it := range items {
		if it.ID == ids[0] {
			t.Errorf("Select(3) picked correctly answered item %d", ids[0])
		}
	}
}

func TestSelectEmptyBank(t *testing.T) {
	sel, _, bank, scope, target, _ := setup(t, 0)

	items, err := sel.Select(context.Background(), bank, itembank.Filter{}, scope, target, 3)
	if err != nil {
		t.Fatalf("Select(empty) error = %v", err)
	}
	if len(items) != 0 {
		t.Errorf("Select(empty) = %v, want none", items)
	}
}

func TestLessOrdering(t *testing.T) {
	tests := []struct {
		a, b candidate
		want bool
	}{
		{candidate{id: 2, correct: 0, used: 5}, candidate{id: 1, correct: 1, used: 0}, true},
		{candidate{id: 2, used: 1}, candidate{id: 1, used: 2}, true},
		{candidate{id: 2, tie: 0.1}, candidate{id: 1, tie: 0.2}, true},
		{candidate{id: 1, tie: 0.5}, candidate{id: 2, tie: 0.5}, true},
		{candidate{id: 2, tie: 0.5}, candidate{id: 1, tie: 0.5}, false},
	}
	for _, tt := range tests {
		if got := less(tt.a, tt.b); got != tt.want {
			t.Errorf("less(%+v, %+v) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}
