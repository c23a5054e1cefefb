package ledger

import (
	"context"

	"github.com/mmogame/backend/internal/models"
)

// Leaderboard returns the top grades of a generation. Equal scores share a rank.
func (s *Store) Leaderboard(ctx context.Context, scope models.Scope, limit int) ([]models.LeaderboardEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT player_id, nickname, avatar_id, score, countscore,
		        RANK() OVER (ORDER BY score DESC) AS rank
		 FROM grades
		 WHERE game_id = $1 AND numgame = $2 AND countscore > 0
		 ORDER BY score DESC, countscore DESC, id
		 LIMIT $3`,
		scope.GameID, scope.NumGame, limit,
	)
	if err != nil {
		return nil, models.NewStorageError("leaderboard", err)
	}
	defer rows.Close()

	var entries []models.LeaderboardEntry
	for rows.Next() {
		var e models.LeaderboardEntry
		if err := rows.Scan(&e.PlayerID, &e.Nickname, &e.AvatarID, &e.Score, &e.Count, &e.Rank); err != nil {
			return nil, models.NewStorageError("scan leaderboard entry", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, models.NewStorageError("leaderboard", err)
	}
	return entries, nil
}

// Rank returns the 1-based position of a grade within its generation, or 0
// when the player has not scored yet.
func (s *Store) Rank(ctx context.Context, g *models.Grade) (int, error) {
	if g.CountScore == 0 {
		return 0, nil
	}
	scope := g.Scope()
	var above int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM grades
		 WHERE game_id = $1 AND numgame = $2 AND countscore > 0 AND score > $3`,
		scope.GameID, scope.NumGame, g.Score,
	).Scan(&above)
	if err != nil {
		return 0, models.NewStorageError("rank", err)
	}
	return above + 1, nil
}
