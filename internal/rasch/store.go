package rasch

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/mmogame/backend/internal/database"
	"github.com/mmogame/backend/internal/ledger"
	"github.com/mmogame/backend/internal/models"
)

type Store struct {
	db     *sql.DB
	grades *ledger.Store
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db, grades: ledger.NewStore(db)}
}

// Save persists one estimation run and writes each person's ability back
// to their grade in the same transaction. The snapshot key for (game,
// numgame, user) is reused when present; its previous item and person rows
// are replaced, so a key always reflects exactly one run.
func (s *Store) Save(ctx context.Context, scope models.Scope, userID int64, res *Result) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, models.NewStorageError("begin save estimation", err)
	}
	defer tx.Rollback()

	var keyID int64
	err = tx.QueryRowContext(ctx,
		`INSERT INTO estimation_keys (game_id, numgame, user_id, time_created)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (game_id, numgame, user_id) DO UPDATE SET time_created = excluded.time_created
		 RETURNING id`,
		scope.GameID, scope.NumGame, userID, time.Now().Unix(),
	).Scan(&keyID)
	if err != nil {
		return 0, models.NewStorageError("save estimation key", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM estimation_items WHERE key_id = $1`, keyID); err != nil {
		return 0, models.NewStorageError("clear item estimates", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM estimation_persons WHERE key_id = $1`, keyID); err != nil {
		return 0, models.NewStorageError("clear person estimates", err)
	}

	for _, it := range res.Items {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO estimation_items (key_id, item_id, b, se_b, infit, outfit, std_infit, std_outfit,
			                               count0, count1, countnull, percent, extreme)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
			keyID, it.ItemID, it.B, database.NullFloat(it.SE), database.NullFloat(it.Infit), database.NullFloat(it.Outfit),
			database.NullFloat(it.StdInfit), database.NullFloat(it.StdOutfit),
			it.Count0, it.Count1, it.CountNull, database.NullFloat(it.Percent), database.BoolInt(it.Extreme),
		)
		if err != nil {
			return 0, models.NewStorageError("save item estimate", err)
		}
	}
	for _, p := range res.Persons {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO estimation_persons (key_id, player_id, theta, extreme) VALUES ($1, $2, $3, $4)`,
			keyID, p.PlayerID, p.Theta, database.BoolInt(p.Extreme),
		)
		if err != nil {
			return 0, models.NewStorageError("save person estimate", err)
		}
	}

	grades := s.grades.WithTx(tx)
	for _, p := range res.Persons {
		if err := grades.SetTheta(ctx, scope, p.PlayerID, p.Theta); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, models.NewStorageError("commit estimation", err)
	}
	return keyID, nil
}

// Load reads a snapshot back by key id.
func (s *Store) Load(ctx context.Context, keyID int64) (*models.EstimationSnapshot, error) {
	var snap models.EstimationSnapshot
	err := s.db.QueryRowContext(ctx,
		`SELECT id, game_id, numgame, user_id, time_created FROM estimation_keys WHERE id = $1`, keyID,
	).Scan(&snap.Key.ID, &snap.Key.GameID, &snap.Key.NumGame, &snap.Key.UserID, &snap.Key.TimeCreated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, models.NewStorageError("load estimation key", err)
	}

	if snap.Items, err = s.loadItems(ctx, keyID); err != nil {
		return nil, err
	}
	if snap.Persons, err = s.loadPersons(ctx, keyID); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (s *Store) loadItems(ctx context.Context, keyID int64) ([]models.ItemEstimate, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT item_id, b, se_b, infit, outfit, std_infit, std_outfit, count0, count1, countnull, percent, extreme
		 FROM estimation_items WHERE key_id = $1 ORDER BY id`,
		keyID,
	)
	if err != nil {
		return nil, models.NewStorageError("load item estimates", err)
	}
	defer rows.Close()

	var out []models.ItemEstimate
	for rows.Next() {
		var it models.ItemEstimate
		var se, infit, outfit, stdInfit, stdOutfit, percent sql.NullFloat64
		var extreme int
		if err := rows.Scan(&it.ItemID, &it.B, &se, &infit, &outfit, &stdInfit, &stdOutfit,
			&it.Count0, &it.Count1, &it.CountNull, &percent, &extreme); err != nil {
			return nil, models.NewStorageError("scan item estimate", err)
		}
		it.SE = database.FloatPtr(se)
		it.Infit = database.FloatPtr(infit)
		it.Outfit = database.FloatPtr(outfit)
		it.StdInfit = database.FloatPtr(stdInfit)
		it.StdOutfit = database.FloatPtr(stdOutfit)
		it.Percent = database.FloatPtr(percent)
		it.Extreme = extreme == 1
		out = append(out, it)
	}
	if err := rows.Err(); err != nil {
		return nil, models.NewStorageError("load item estimates", err)
	}
	return out, nil
}

func (s *Store) loadPersons(ctx context.Context, keyID int64) ([]models.PersonEstimate, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT player_id, theta, extreme FROM estimation_persons WHERE key_id = $1 ORDER BY id`,
		keyID,
	)
	if err != nil {
		return nil, models.NewStorageError("load person estimates", err)
	}
	defer rows.Close()

	var out []models.PersonEstimate
	for rows.Next() {
		var p models.PersonEstimate
		var extreme int
		if err := rows.Scan(&p.PlayerID, &p.Theta, &extreme); err != nil {
			return nil, models.NewStorageError("scan person estimate", err)
		}
		p.Extreme = extreme == 1
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, models.NewStorageError("load person estimates", err)
	}
	return out, nil
}
