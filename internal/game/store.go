package game

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/mmogame/backend/internal/database"
	"github.com/mmogame/backend/internal/models"
)

type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

const gameCols = `id, name, model, bank_kind, category, numgame, max_alone,
	score_win, score_lose, score_draw, time_limit, questions_per_pairing, enabled, time_created`

func scanGame(row interface{ Scan(...any) error }) (*models.Game, error) {
	var g models.Game
	var enabled int
	err := row.Scan(&g.ID, &g.Name, &g.Model, &g.BankKind, &g.Category, &g.NumGame, &g.MaxAlone,
		&g.Scores.Win, &g.Scores.Lose, &g.Scores.Draw, &g.TimeLimit, &g.QuestionsPerPairing, &enabled, &g.TimeCreated)
	if err != nil {
		return nil, err
	}
	g.Enabled = enabled != 0
	return &g, nil
}

// CreateGame inserts a game at generation 1.
func (s *Store) CreateGame(ctx context.Context, g *models.Game) error {
	g.NumGame = 1
	g.TimeCreated = time.Now().Unix()
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO games (name, model, bank_kind, category, numgame, max_alone, score_win, score_lose, score_draw,
		                    time_limit, questions_per_pairing, enabled, time_created)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		 RETURNING id`,
		g.Name, g.Model, g.BankKind, g.Category, g.NumGame, g.MaxAlone, g.Scores.Win, g.Scores.Lose, g.Scores.Draw,
		g.TimeLimit, g.QuestionsPerPairing, database.BoolInt(g.Enabled), g.TimeCreated,
	).Scan(&g.ID)
	return models.NewStorageError("create game", err)
}

func (s *Store) GetGame(ctx context.Context, id int64) (*models.Game, error) {
	g, err := scanGame(s.db.QueryRowContext(ctx, `SELECT `+gameCols+` FROM games WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, models.NewStorageError("get game", err)
	}
	return g, nil
}

func (s *Store) ListEnabledGames(ctx context.Context) ([]models.Game, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+gameCols+` FROM games WHERE enabled = 1 ORDER BY id`)
	if err != nil {
		return nil, models.NewStorageError("list games", err)
	}
	defer rows.Close()

	var out []models.Game
	for rows.Next() {
		g, err := scanGame(rows)
		if err != nil {
			return nil, models.NewStorageError("scan game", err)
		}
		out = append(out, *g)
	}
	if err := rows.Err(); err != nil {
		return nil, models.NewStorageError("list games", err)
	}
	return out, nil
}

// AdvanceGeneration starts a new generation of the game. Grades, stats and
// pairings of earlier generations are left untouched.
func (s *Store) AdvanceGeneration(ctx context.Context, id int64) (*models.Game, error) {
	g, err := scanGame(s.db.QueryRowContext(ctx,
		`UPDATE games SET numgame = numgame + 1 WHERE id = $1 RETURNING `+gameCols, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, models.NewStorageError("advance generation", err)
	}
	return g, nil
}

func (s *Store) SetEnabled(ctx context.Context, id int64, enabled bool) error {
	res, err := s.db.ExecContext(ctx, `UPDATE games SET enabled = $1 WHERE id = $2`, database.BoolInt(enabled), id)
	if err != nil {
		return models.NewStorageError("set enabled", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.ErrNotFound
	}
	return nil
}
