package ledger

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"testing"

	"github.com/mmogame/backend/internal/database/dbtest"
	"github.com/mmogame/backend/internal/models"
)

func newTestStore(t *testing.T) (*Store, models.Scope, int64) {
	t.Helper()
	db := dbtest.Open(t)
	gameID := dbtest.InsertGame(t, db, "alone", "multichoice", 2, 0, 5)
	playerID := dbtest.InsertPlayer(t, db, "p1")
	return NewStore(db), models.Scope{GameID: gameID, NumGame: 1}, playerID
}

func TestGetOrCreatePlayer(t *testing.T) {
	s, _, _ := newTestStore(t)
	ctx := context.Background()

	a, err := s.GetOrCreatePlayer(ctx, models.PlayerDevice, "device-123")
	if err != nil {
		t.Fatalf("GetOrCreatePlayer() error = %v", err)
	}
	b, err := s.GetOrCreatePlayer(ctx, models.PlayerDevice, "device-123")
	if err != nil {
		t.Fatalf("GetOrCreatePlayer() second call error = %v", err)
	}
	if a.ID != b.ID {
		t.Errorf("GetOrCreatePlayer() ids = %d, %d, want equal", a.ID, b.ID)
	}
	if a.ExternalID == "device-123" || len(a.ExternalID) != 64 {
		t.Errorf("device external id = %q, want 64-char digest", a.ExternalID)
	}

	c, err := s.GetOrCreatePlayer(ctx, models.PlayerJoinCode, "device-123")
	if err != nil {
		t.Fatalf("GetOrCreatePlayer() join code error = %v", err)
	}
	if c.ID == a.ID {
		t.Errorf("join code player shares id %d with device player", c.ID)
	}
	if c.ExternalID != "device-123" {
		t.Errorf("join code external id = %q, want raw value", c.ExternalID)
	}
}

func TestGradeNonNegative(t *testing.T) {
	s, scope, playerID := newTestStore(t)
	ctx := context.Background()

	g, err := s.GetOrCreateGrade(ctx, scope, playerID)
	if err != nil {
		t.Fatalf("GetOrCreateGrade() error = %v", err)
	}

	deltas := []struct{ d, d2 float64 }{
		{-1, -2}, {3, 1}, {-1, -5}, {-4, 0}, {1, 2}, {3, -1},
	}
	sum, sum2 := 0.0, 0.0
	for i, dd := range deltas {
		g, err = s.AddScore(ctx, g.ID, dd.d, dd.d2)
		if err != nil {
			t.Fatalf("AddScore(%v) error = %v", dd, err)
		}
		sum = math.Max(0, sum+dd.d)
		sum2 = math.Max(0, sum2+dd.d2)

		if g.SumScore < 0 || g.SumScore2 < 0 {
			t.Errorf("step %d: sumscore=%f sumscore2=%f, want both >= 0", i, g.SumScore, g.SumScore2)
		}
		if g.SumScore != sum || g.SumScore2 != sum2 {
			t.Errorf("step %d: sums = (%f, %f), want (%f, %f)", i, g.SumScore, g.SumScore2, sum, sum2)
		}
		if g.CountScore != i+1 {
			t.Errorf("step %d: countscore = %d, want %d", i, g.CountScore, i+1)
		}
		if want := g.SumScore / float64(g.CountScore); math.Abs(g.Score-want) > 1e-12 {
			t.Errorf("step %d: score = %f, want %f", i, g.Score, want)
		}
	}
}

func TestAddScoreUnknownGrade(t *testing.T) {
	s, _, _ := newTestStore(t)
	g, err := s.AddScore(context.Background(), 9999, 1, 1)
	if !errors.Is(err, models.ErrNotFound) {
		t.Errorf("AddScore(unknown grade) = %v, %v, want ErrNotFound", g, err)
	}
}

func TestAddScoreRolledBackWithTx(t *testing.T) {
	s, scope, playerID := newTestStore(t)
	ctx := context.Background()
	db := s.db.(*sql.DB)

	g, err := s.GetOrCreateGrade(ctx, scope, playerID)
	if err != nil {
		t.Fatalf("GetOrCreateGrade() error = %v", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("BeginTx() error = %v", err)
	}
	inTx, err := s.WithTx(tx).AddScore(ctx, g.ID, 3, 1)
	if err != nil {
		t.Fatalf("AddScore(tx) error = %v", err)
	}
	if inTx.SumScore != 3 {
		t.Errorf("AddScore(tx) sumscore = %f, want 3", inTx.SumScore)
	}
	if err := tx.Rollback(); err != nil {
		t.Fatalf("Rollback() error = %v", err)
	}

	after, err := s.GetGradeByID(ctx, g.ID)
	if err != nil {
		t.Fatalf("GetGradeByID() error = %v", err)
	}
	if after.SumScore != 0 || after.CountScore != 0 {
		t.Errorf("after rollback sums = (%f, %d), want zero", after.SumScore, after.CountScore)
	}
}

func TestGradeSeededFromPreviousGeneration(t *testing.T) {
	s, scope, playerID := newTestStore(t)
	ctx := context.Background()

	g, err := s.GetOrCreateGrade(ctx, scope, playerID)
	if err != nil {
		t.Fatalf("GetOrCreateGrade() error = %v", err)
	}
	if err := s.SetNickname(ctx, g.ID, "ada"); err != nil {
		t.Fatalf("SetNickname() error = %v", err)
	}
	if _, err := s.AddScore(ctx, g.ID, 5, 0); err != nil {
		t.Fatalf("AddScore() error = %v", err)
	}

	next := models.Scope{GameID: scope.GameID, NumGame: scope.NumGame + 1}
	ng, err := s.GetOrCreateGrade(ctx, next, playerID)
	if err != nil {
		t.Fatalf("GetOrCreateGrade(next) error = %v", err)
	}
	if ng.Nickname != "ada" {
		t.Errorf("new generation nickname = %q, want %q", ng.Nickname, "ada")
	}
	if ng.SumScore != 0 || ng.CountScore != 0 || ng.Score != 0 {
		t.Errorf("new generation scores = (%f, %d, %f), want zero", ng.SumScore, ng.CountScore, ng.Score)
	}
}

func TestGetGradeNotFound(t *testing.T) {
	s, scope, _ := newTestStore(t)
	_, err := s.GetGrade(context.Background(), scope, 9999)
	if !errors.Is(err, models.ErrNotFound) {
		t.Errorf("GetGrade(missing) error = %v, want ErrNotFound", err)
	}
}

func TestStatPercentConsistency(t *testing.T) {
	s, scope, playerID := newTestStore(t)
	ctx := context.Background()
	target := models.PlayerTarget(playerID)
	const itemID = 42

	st, err := s.GetStat(ctx, scope, target, itemID)
	if err != nil || st != nil {
		t.Fatalf("GetStat(absent) = %v, %v, want nil, nil", st, err)
	}

	if err := s.MarkUsed(ctx, scope, target, []int64{itemID}); err != nil {
		t.Fatalf("MarkUsed() error = %v", err)
	}
	st, err = s.GetStat(ctx, scope, target, itemID)
	if err != nil {
		t.Fatalf("GetStat() error = %v", err)
	}
	if st.CountUsed != 1 || st.Percent != nil {
		t.Errorf("after MarkUsed: used=%d percent=%v, want 1 and nil", st.CountUsed, st.Percent)
	}

	answers := []bool{true, false, false, true, true}
	correct, wrong := 0, 0
	for i, ok := range answers {
		if ok {
			correct++
		} else {
			wrong++
		}
		st, err = s.MarkAnswer(ctx, scope, target, itemID, ok)
		if err != nil {
			t.Fatalf("MarkAnswer(%v) error = %v", ok, err)
		}
		want := float64(correct) / float64(correct+wrong)
		if st.Percent == nil || math.Abs(*st.Percent-want) > 1e-12 {
			t.Errorf("answer %d: percent = %v, want %f", i, st.Percent, want)
		}
		if st.CountCorrect != correct || st.CountError != wrong {
			t.Errorf("answer %d: counts = (%d, %d), want (%d, %d)", i, st.CountCorrect, st.CountError, correct, wrong)
		}
		if st.IsLastCorrect != ok {
			t.Errorf("answer %d: is_last_correct = %v, want %v", i, st.IsLastCorrect, ok)
		}
		if !ok && st.TimeError == 0 {
			t.Errorf("answer %d: time_error not stamped", i)
		}
	}
	if st.CountUsed != 1 {
		t.Errorf("count_used = %d, want 1", st.CountUsed)
	}

	agg, err := s.GetStat(ctx, scope, target, 0)
	if err != nil {
		t.Fatalf("GetStat(aggregate) error = %v", err)
	}
	if agg == nil || agg.CountCorrect != correct || agg.CountError != wrong {
		t.Errorf("aggregate row = %+v, want %d correct %d wrong", agg, correct, wrong)
	}
}

func TestStatsForItemsSeparatesTargets(t *testing.T) {
	s, scope, playerID := newTestStore(t)
	ctx := context.Background()

	if err := s.MarkUsed(ctx, scope, models.PlayerTarget(playerID), []int64{1, 2}); err != nil {
		t.Fatalf("MarkUsed(player) error = %v", err)
	}
	if err := s.MarkUsed(ctx, scope, models.TeamTarget(7), []int64{2, 3}); err != nil {
		t.Fatalf("MarkUsed(team) error = %v", err)
	}

	got, err := s.StatsForItems(ctx, scope, models.PlayerTarget(playerID), []int64{1, 2, 3})
	if err != nil {
		t.Fatalf("StatsForItems() error = %v", err)
	}
	if len(got) != 2 {
		t.Errorf("StatsForItems(player) = %d rows, want 2", len(got))
	}
	if _, ok := got[3]; ok {
		t.Errorf("StatsForItems(player) leaked team row for item 3")
	}

	if err := s.MarkUsed(ctx, scope, models.Target{}, []int64{1}); err == nil {
		t.Errorf("MarkUsed(empty target) succeeded, want error")
	}
}

func TestLeaderboardAndRank(t *testing.T) {
	s, scope, p1 := newTestStore(t)
	ctx := context.Background()
	db := s.db.(*sql.DB)
	p2 := dbtest.InsertPlayer(t, db, "p2")
	p3 := dbtest.InsertPlayer(t, db, "p3")

	scores := map[int64]float64{p1: 2, p2: 5, p3: 2}
	grades := map[int64]*models.Grade{}
	for pid, sc := range scores {
		g, err := s.GetOrCreateGrade(ctx, scope, pid)
		if err != nil {
			t.Fatalf("GetOrCreateGrade() error = %v", err)
		}
		if grades[pid], err = s.AddScore(ctx, g.ID, sc, 0); err != nil {
			t.Fatalf("AddScore() error = %v", err)
		}
	}

	entries, err := s.Leaderboard(ctx, scope, 10)
	if err != nil {
		t.Fatalf("Leaderboard() error = %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("Leaderboard() = %d entries, want 3", len(entries))
	}
	if entries[0].PlayerID != p2 || entries[0].Rank != 1 {
		t.Errorf("first entry = %+v, want player %d rank 1", entries[0], p2)
	}
	if entries[1].Rank != 2 || entries[2].Rank != 2 {
		t.Errorf("tied ranks = %d, %d, want 2, 2", entries[1].Rank, entries[2].Rank)
	}

	rank, err := s.Rank(ctx, grades[p3])
	if err != nil {
		t.Fatalf("Rank() error = %v", err)
	}
	if rank != 2 {
		t.Errorf("Rank(p3) = %d, want 2", rank)
	}
}
