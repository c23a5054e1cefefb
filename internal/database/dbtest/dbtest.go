// Package dbtest provides a migrated in-memory sqlite database for store tests.
package dbtest

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/mmogame/backend/internal/database"
)

var seq atomic.Int64

// Open returns a fresh migrated database private to the calling test.
func Open(t testing.TB) *sql.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, seq.Add(1))

	db, err := database.Open(context.Background(), database.DriverSQLite, dsn)
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := database.Migrate(db, database.DriverSQLite); err != nil {
		t.Fatalf("migrate test database: %v", err)
	}
	return db
}

// InsertGame creates a game row with the given model and bank and returns its id.
func InsertGame(t testing.TB, db *sql.DB, model, bank string, maxAlone, timeLimit, perPairing int) int64 {
	t.Helper()
	var id int64
	err := db.QueryRow(
		`INSERT INTO games (name, model, bank_kind, numgame, max_alone, score_win, score_lose, score_draw,
		                    time_limit, questions_per_pairing, enabled, time_created)
		 VALUES ($1, $2, $3, 1, $4, 3, -1, 1, $5, $6, 1, 0)
		 RETURNING id`,
		"test "+model, model, bank, maxAlone, timeLimit, perPairing,
	).Scan(&id)
	if err != nil {
		t.Fatalf("insert game: %v", err)
	}
	return id
}

// InsertPlayer creates a player row and returns its id.
func InsertPlayer(t testing.TB, db *sql.DB, externalID string) int64 {
	t.Helper()
	var id int64
	err := db.QueryRow(
		`INSERT INTO players (kind, external_id, time_created) VALUES ('account', $1, 0) RETURNING id`,
		externalID,
	).Scan(&id)
	if err != nil {
		t.Fatalf("insert player: %v", err)
	}
	return id
}

// InsertItems creates n multiple-choice items whose answer is "a" and returns their ids.
func InsertItems(t testing.TB, db *sql.DB, n int) []int64 {
	t.Helper()
	ids := make([]int64, 0, n)
	for i := 0; i < n; i++ {
		var id int64
		err := db.QueryRow(
			`INSERT INTO items (bank_kind, category, prompt, choices, answer, time_created)
			 VALUES ('multichoice', '', $1, '["a","b","c"]', 'a', 0) RETURNING id`,
			fmt.Sprintf("question %d", i+1),
		).Scan(&id)
		if err != nil {
			t.Fatalf("insert item: %v", err)
		}
		ids = append(ids, id)
	}
	return ids
}
