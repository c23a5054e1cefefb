package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mmogame/backend/internal/database"
	"github.com/mmogame/backend/internal/models"
)

// Store keeps players, grades and the per-item usage ledger.
type Store struct {
	db database.Querier
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// WithTx returns a store whose statements run inside tx.
func (s *Store) WithTx(tx *sql.Tx) *Store {
	return &Store{db: tx}
}

// ── Grades ──────────────────────────────────────────────

const gradeCols = `id, game_id, numgame, player_id, avatar_id, nickname, color_palette_id,
	sumscore, countscore, score, sumscore2, theta, count_alone, time_modified`

func scanGrade(row interface{ Scan(...any) error }) (*models.Grade, error) {
	var g models.Grade
	var theta sql.NullFloat64
	err := row.Scan(&g.ID, &g.GameID, &g.NumGame, &g.PlayerID, &g.AvatarID, &g.Nickname, &g.ColorPaletteID,
		&g.SumScore, &g.CountScore, &g.Score, &g.SumScore2, &theta, &g.CountAlone, &g.TimeModified)
	if err != nil {
		return nil, err
	}
	g.Theta = database.FloatPtr(theta)
	return &g, nil
}

// GetGrade returns models.ErrNotFound when the player has no grade in scope.
func (s *Store) GetGrade(ctx context.Context, scope models.Scope, playerID int64) (*models.Grade, error) {
	g, err := scanGrade(s.db.QueryRowContext(ctx,
		`SELECT `+gradeCols+` FROM grades WHERE game_id = $1 AND numgame = $2 AND player_id = $3`,
		scope.GameID, scope.NumGame, playerID,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, models.NewStorageError("get grade", err)
	}
	return g, nil
}

func (s *Store) GetGradeByID(ctx context.Context, id int64) (*models.Grade, error) {
	g, err := scanGrade(s.db.QueryRowContext(ctx, `SELECT `+gradeCols+` FROM grades WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, models.NewStorageError("get grade", err)
	}
	return g, nil
}

// GetOrCreateGrade lazily creates the player's grade for a generation. A new
// grade inherits avatar, nickname and palette from the player's most recent
// earlier generation; scores always start at zero.
func (s *Store) GetOrCreateGrade(ctx context.Context, scope models.Scope, playerID int64) (*models.Grade, error) {
	g, err := s.GetGrade(ctx, scope, playerID)
	if err == nil {
		return g, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}

	var avatarID, paletteID int
	var nickname string
	err = s.db.QueryRowContext(ctx,
		`SELECT avatar_id, nickname, color_palette_id FROM grades
		 WHERE game_id = $1 AND player_id = $2 AND numgame < $3
		 ORDER BY numgame DESC LIMIT 1`,
		scope.GameID, playerID, scope.NumGame,
	).Scan(&avatarID, &nickname, &paletteID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, models.NewStorageError("get previous grade", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO grades (game_id, numgame, player_id, avatar_id, nickname, color_palette_id, time_modified)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (game_id, numgame, player_id) DO NOTHING`,
		scope.GameID, scope.NumGame, playerID, avatarID, nickname, paletteID, time.Now().Unix(),
	)
	if err != nil {
		return nil, models.NewStorageError("create grade", err)
	}
	return s.GetGrade(ctx, scope, playerID)
}

// AddScore applies one scored result to a grade. Both running sums are
// clamped at zero and score is recomputed from the clamped sum in the same
// statement, so concurrent updates never interleave half-applied.
func (s *Store) AddScore(ctx context.Context, gradeID int64, delta, delta2 float64) (*models.Grade, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE grades SET
		     sumscore = CASE WHEN sumscore + $1 < 0 THEN 0 ELSE sumscore + $1 END,
		     sumscore2 = CASE WHEN sumscore2 + $2 < 0 THEN 0 ELSE sumscore2 + $2 END,
		     score = (CASE WHEN sumscore + $1 < 0 THEN 0 ELSE sumscore + $1 END) / (countscore + 1),
		     countscore = countscore + 1,
		     time_modified = $3
		 WHERE id = $4`,
		delta, delta2, time.Now().Unix(), gradeID,
	)
	if err != nil {
		return nil, models.NewStorageError("add score", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, models.NewStorageError("add score", err)
	}
	if n == 0 {
		return nil, models.ErrNotFound
	}
	return s.GetGradeByID(ctx, gradeID)
}

func (s *Store) SetTheta(ctx context.Context, scope models.Scope, playerID int64, theta float64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE grades SET theta = $1 WHERE game_id = $2 AND numgame = $3 AND player_id = $4`,
		theta, scope.GameID, scope.NumGame, playerID,
	)
	return models.NewStorageError("set theta", err)
}

func (s *Store) SetNickname(ctx context.Context, gradeID int64, nickname string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE grades SET nickname = $1, time_modified = $2 WHERE id = $3`,
		nickname, time.Now().Unix(), gradeID,
	)
	return models.NewStorageError("set nickname", err)
}

// ── Stats ───────────────────────────────────────────────

const statCols = `id, game_id, numgame, item_id, player_id, team_id, count_used, count_correct,
	count_error, time_error, percent, is_last_correct`

func scanStat(row interface{ Scan(...any) error }) (*models.Stat, error) {
	var st models.Stat
	var percent sql.NullFloat64
	var lastCorrect int
	err := row.Scan(&st.ID, &st.GameID, &st.NumGame, &st.ItemID, &st.PlayerID, &st.TeamID,
		&st.CountUsed, &st.CountCorrect, &st.CountError, &st.TimeError, &percent, &lastCorrect)
	if err != nil {
		return nil, err
	}
	st.Percent = database.FloatPtr(percent)
	st.IsLastCorrect = lastCorrect == 1
	return &st, nil
}

// GetStat returns nil without error when no row exists; callers treat that
// as all-zero counters.
func (s *Store) GetStat(ctx context.Context, scope models.Scope, target models.Target, itemID int64) (*models.Stat, error) {
	st, err := scanStat(s.db.QueryRowContext(ctx,
		`SELECT `+statCols+` FROM stats
		 WHERE game_id = $1 AND numgame = $2 AND item_id = $3 AND player_id = $4 AND team_id = $5`,
		scope.GameID, scope.NumGame, itemID, target.PlayerID, target.TeamID,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, models.NewStorageError("get stat", err)
	}
	return st, nil
}

// StatsForItems returns the existing stat rows of target for the given items, keyed by item id.
func (s *Store) StatsForItems(ctx context.Context, scope models.Scope, target models.Target, itemIDs []int64) (map[int64]models.Stat, error) {
	out := make(map[int64]models.Stat, len(itemIDs))
	if len(itemIDs) == 0 {
		return out, nil
	}

	inClause, inArgs := database.InClause(itemIDs, 5)
	args := append([]any{scope.GameID, scope.NumGame, target.PlayerID, target.TeamID}, inArgs...)
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+statCols+` FROM stats
		 WHERE game_id = $1 AND numgame = $2 AND player_id = $3 AND team_id = $4
		   AND item_id IN (`+inClause+`)`,
		args...,
	)
	if err != nil {
		return nil, models.NewStorageError("stats for items", err)
	}
	defer rows.Close()

	for rows.Next() {
		st, err := scanStat(rows)
		if err != nil {
			return nil, models.NewStorageError("scan stat", err)
		}
		out[st.ItemID] = *st
	}
	if err := rows.Err(); err != nil {
		return nil, models.NewStorageError("stats for items", err)
	}
	return out, nil
}

// MarkUsed records that each item was served to target, creating rows as needed.
func (s *Store) MarkUsed(ctx context.Context, scope models.Scope, target models.Target, itemIDs []int64) error {
	if !target.Valid() {
		return fmt.Errorf("mark used: invalid target %+v", target)
	}
	for _, itemID := range itemIDs {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO stats (game_id, numgame, item_id, player_id, team_id, count_used)
			 VALUES ($1, $2, $3, $4, $5, 1)
			 ON CONFLICT (game_id, numgame, item_id, player_id, team_id)
			 DO UPDATE SET count_used = stats.count_used + 1`,
			scope.GameID, scope.NumGame, itemID, target.PlayerID, target.TeamID,
		)
		if err != nil {
			return models.NewStorageError("mark used", err)
		}
	}
	return nil
}

// MarkAnswer records one judged answer on the item row and on the target's
// aggregate row (item 0). percent is recomputed from the new counters.
func (s *Store) MarkAnswer(ctx context.Context, scope models.Scope, target models.Target, itemID int64, correct bool) (*models.Stat, error) {
	if !target.Valid() {
		return nil, fmt.Errorf("mark answer: invalid target %+v", target)
	}
	nCorrect, nError := 0, 1
	if correct {
		nCorrect, nError = 1, 0
	}
	now := time.Now().Unix()
	var timeError int64
	if !correct {
		timeError = now
	}

	rows := []int64{itemID}
	if itemID != 0 {
		rows = append(rows, 0)
	}
	for _, id := range rows {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO stats (game_id, numgame, item_id, player_id, team_id,
			                    count_correct, count_error, time_error, percent, is_last_correct)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			 ON CONFLICT (game_id, numgame, item_id, player_id, team_id) DO UPDATE SET
			     count_correct = stats.count_correct + excluded.count_correct,
			     count_error = stats.count_error + excluded.count_error,
			     time_error = CASE WHEN excluded.count_error > 0 THEN excluded.time_error ELSE stats.time_error END,
			     percent = CAST(stats.count_correct + excluded.count_correct AS DOUBLE PRECISION)
			         / (stats.count_correct + excluded.count_correct + stats.count_error + excluded.count_error),
			     is_last_correct = excluded.is_last_correct`,
			scope.GameID, scope.NumGame, id, target.PlayerID, target.TeamID,
			nCorrect, nError, timeError, float64(nCorrect), database.BoolInt(correct),
		)
		if err != nil {
			return nil, models.NewStorageError("mark answer", err)
		}
	}
	return s.GetStat(ctx, scope, target, itemID)
}
