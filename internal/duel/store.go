package duel

import (
	"context"
	"database/sql"
	"errors"

	"github.com/mmogame/backend/internal/database"
	"github.com/mmogame/backend/internal/models"
)

// Store holds pairings and attempts. Conditional single-row updates stand
// in for compare-and-swap; the pairing and attempt rows of a new pairing
// are written in one transaction.
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

type scanner interface{ Scan(...any) error }

// ── Pairings ────────────────────────────────────────────

const pairingCols = `p.id, p.game_id, p.numgame, p.player1, p.player2, p.timestart1, p.timestart2,
	p.timeclose1, p.timeclose2, p.time_limit, p.closed1, p.closed2`

func scanPairing(row scanner) (*models.Pairing, error) {
	var p models.Pairing
	var closed1, closed2 int
	err := row.Scan(&p.ID, &p.GameID, &p.NumGame, &p.Player1, &p.Player2, &p.TimeStart1, &p.TimeStart2,
		&p.TimeClose1, &p.TimeClose2, &p.TimeLimit, &closed1, &closed2)
	if err != nil {
		return nil, err
	}
	p.IsClosed1 = closed1 == 1
	p.IsClosed2 = closed2 == 1
	return &p, nil
}

func (s *Store) GetPairing(ctx context.Context, id int64) (*models.Pairing, error) {
	p, err := scanPairing(s.db.QueryRowContext(ctx, `SELECT `+pairingCols+` FROM pairings p WHERE p.id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, models.NewStorageError("get pairing", err)
	}
	return p, nil
}

// FindResumable returns the player's in-progress pairing: one where the
// player's side has started and is not yet closed. It returns nil when
// there is none.
func (s *Store) FindResumable(ctx context.Context, scope models.Scope, playerID int64) (*models.Pairing, error) {
	p, err := scanPairing(s.db.QueryRowContext(ctx,
		`SELECT `+pairingCols+` FROM pairings p
		 WHERE p.game_id = $1 AND p.numgame = $2
		   AND ((p.player1 = $3 AND p.closed1 = 0 AND p.timestart1 <> 0)
		     OR (p.player2 = $3 AND p.closed2 = 0 AND p.timestart2 <> 0))
		 ORDER BY p.id
		 LIMIT 1`,
		scope.GameID, scope.NumGame, playerID,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, models.NewStorageError("find resumable pairing", err)
	}
	return p, nil
}

// OpenPairings lists pairings another player finished alone, closest score
// first. candidates, when non-empty, restricts the openers considered.
func (s *Store) OpenPairings(ctx context.Context, scope models.Scope, playerID int64, myScore float64, candidates []int64, limit int) ([]models.Pairing, error) {
	query := `SELECT ` + pairingCols + ` FROM pairings p
		 JOIN grades g ON g.game_id = p.game_id AND g.numgame = p.numgame AND g.player_id = p.player1
		 WHERE p.game_id = $1 AND p.numgame = $2 AND p.player2 = 0 AND p.closed1 = 1 AND p.player1 <> $3`
	args := []any{scope.GameID, scope.NumGame, playerID, myScore, limit}
	if len(candidates) > 0 {
		inClause, inArgs := database.InClause(candidates, len(args)+1)
		query += ` AND p.player1 IN (` + inClause + `)`
		args = append(args, inArgs...)
	}
	query += ` ORDER BY ROUND(1000000 * ABS(g.score - $4)), p.id LIMIT $5`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, models.NewStorageError("open pairings", err)
	}
	defer rows.Close()

	var out []models.Pairing
	for rows.Next() {
		p, err := scanPairing(rows)
		if err != nil {
			return nil, models.NewStorageError("scan pairing", err)
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, models.NewStorageError("open pairings", err)
	}
	return out, nil
}

// CountOpen counts pairings the player opened that still have no opponent.
func (s *Store) CountOpen(ctx context.Context, scope models.Scope, playerID int64) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM pairings WHERE game_id = $1 AND numgame = $2 AND player1 = $3 AND player2 = 0`,
		scope.GameID, scope.NumGame, playerID,
	).Scan(&n)
	if err != nil {
		return 0, models.NewStorageError("count open pairings", err)
	}
	return n, nil
}

// CreatePairing inserts a pairing opened by player1 together with one
// attempt per item, numbered from 1.
func (s *Store) CreatePairing(ctx context.Context, scope models.Scope, player1 int64, timeLimit int, itemIDs []int64, now int64) (*models.Pairing, error) {
	var id int64
	err := database.InTx(ctx, s.db, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx,
			`INSERT INTO pairings (game_id, numgame, player1, timestart1, time_limit)
			 VALUES ($1, $2, $3, $4, $5)
			 RETURNING id`,
			scope.GameID, scope.NumGame, player1, now, timeLimit,
		).Scan(&id)
		if err != nil {
			return models.NewStorageError("create pairing", err)
		}
		for i, itemID := range itemIDs {
			if err := insertAttempt(ctx, tx, scope, player1, id, i+1, itemID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &models.Pairing{
		ID:         id,
		GameID:     scope.GameID,
		NumGame:    scope.NumGame,
		Player1:    player1,
		TimeStart1: now,
		TimeLimit:  timeLimit,
	}, nil
}

// JoinPairing claims an open pairing for player2, copies player1's item
// sequence for the new side and takes the pairing off player1's alone
// counter, all in one transaction. It reports false when another player
// claimed the pairing first.
func (s *Store) JoinPairing(ctx context.Context, pairingID, player2 int64, now int64) (bool, error) {
	joined := false
	err := database.InTx(ctx, s.db, func(tx *sql.Tx) error {
		var scope models.Scope
		var player1 int64
		err := tx.QueryRowContext(ctx,
			`UPDATE pairings SET player2 = $1, timestart2 = $2
			 WHERE id = $3 AND player2 = 0 AND closed1 = 1 AND closed2 = 0
			 RETURNING game_id, numgame, player1`,
			player2, now, pairingID,
		).Scan(&scope.GameID, &scope.NumGame, &player1)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return models.NewStorageError("join pairing", err)
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO attempts (game_id, numgame, player_id, pairing_id, attempt_num, item_id)
			 SELECT a.game_id, a.numgame, CAST($1 AS BIGINT), a.pairing_id, a.attempt_num, a.item_id
			 FROM attempts a JOIN pairings p ON p.id = a.pairing_id AND a.player_id = p.player1
			 WHERE a.pairing_id = $2
			 ORDER BY a.attempt_num`,
			player2, pairingID,
		)
		if err != nil {
			return models.NewStorageError("mirror attempts", err)
		}
		if err := adjustAlone(ctx, tx, scope, player1, -1); err != nil {
			return err
		}
		joined = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return joined, nil
}

// CloseSide sets the closed flag of one side. Closing side 1 before anyone
// joined leaves the pairing waiting alone, which bumps player1's alone
// counter in the same transaction. It reports false when the side was
// already closed.
func (s *Store) CloseSide(ctx context.Context, pairingID int64, side int, now int64) (bool, error) {
	query := `UPDATE pairings SET closed1 = 1, timeclose1 = $1 WHERE id = $2 AND closed1 = 0
		RETURNING game_id, numgame, player1, player2`
	if side == 2 {
		query = `UPDATE pairings SET closed2 = 1, timeclose2 = $1 WHERE id = $2 AND closed2 = 0
			RETURNING game_id, numgame, player1, player2`
	}
	closed := false
	err := database.InTx(ctx, s.db, func(tx *sql.Tx) error {
		var scope models.Scope
		var player1, player2 int64
		err := tx.QueryRowContext(ctx, query, now, pairingID).Scan(&scope.GameID, &scope.NumGame, &player1, &player2)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return models.NewStorageError("close side", err)
		}
		closed = true
		if side == 1 && player2 == 0 {
			return adjustAlone(ctx, tx, scope, player1, 1)
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return closed, nil
}

// adjustAlone moves the count of pairings the player finished and nobody
// joined yet. The counter never drops below zero.
func adjustAlone(ctx context.Context, tx *sql.Tx, scope models.Scope, playerID int64, delta int) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE grades SET count_alone = CASE WHEN count_alone + $1 < 0 THEN 0 ELSE count_alone + $1 END
		 WHERE game_id = $2 AND numgame = $3 AND player_id = $4`,
		delta, scope.GameID, scope.NumGame, playerID,
	)
	return models.NewStorageError("adjust alone", err)
}

// ── Attempts ────────────────────────────────────────────

const attemptCols = `id, game_id, numgame, player_id, pairing_id, attempt_num, item_id, time_start,
	time_close, time_answered, user_answer, is_correct, fraction, score, timed_out`

func scanAttempt(row scanner) (*models.Attempt, error) {
	var a models.Attempt
	var timedOut int
	err := row.Scan(&a.ID, &a.GameID, &a.NumGame, &a.PlayerID, &a.PairingID, &a.Num, &a.ItemID, &a.TimeStart,
		&a.TimeClose, &a.TimeAnswered, &a.UserAnswer, &a.IsCorrect, &a.Fraction, &a.Score, &timedOut)
	if err != nil {
		return nil, err
	}
	a.TimedOut = timedOut == 1
	return &a, nil
}

func insertAttempt(ctx context.Context, tx *sql.Tx, scope models.Scope, playerID, pairingID int64, num int, itemID int64) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO attempts (game_id, numgame, player_id, pairing_id, attempt_num, item_id)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		scope.GameID, scope.NumGame, playerID, pairingID, num, itemID,
	)
	return models.NewStorageError("create attempt", err)
}

// CreateAttempt inserts a single attempt outside any pairing and returns
// it. A nil attempt with a nil error means another request already took
// attempt number num for the player.
func (s *Store) CreateAttempt(ctx context.Context, scope models.Scope, playerID int64, num int, itemID int64) (*models.Attempt, error) {
	var id int64
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO attempts (game_id, numgame, player_id, pairing_id, attempt_num, item_id)
		 VALUES ($1, $2, $3, 0, $4, $5)
		 ON CONFLICT (game_id, numgame, player_id, pairing_id, attempt_num) DO NOTHING
		 RETURNING id`,
		scope.GameID, scope.NumGame, playerID, num, itemID,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, models.NewStorageError("create attempt", err)
	}
	return s.GetAttempt(ctx, id)
}

func (s *Store) GetAttempt(ctx context.Context, id int64) (*models.Attempt, error) {
	a, err := scanAttempt(s.db.QueryRowContext(ctx, `SELECT `+attemptCols+` FROM attempts WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, models.NewStorageError("get attempt", err)
	}
	return a, nil
}

// AttemptByNum returns the attempt a player holds at position num of a pairing.
func (s *Store) AttemptByNum(ctx context.Context, pairingID, playerID int64, num int) (*models.Attempt, error) {
	a, err := scanAttempt(s.db.QueryRowContext(ctx,
		`SELECT `+attemptCols+` FROM attempts WHERE pairing_id = $1 AND player_id = $2 AND attempt_num = $3`,
		pairingID, playerID, num,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, models.NewStorageError("get attempt", err)
	}
	return a, nil
}

// PendingAttempts lists the player's unjudged attempts in a pairing (0 for
// solo play) ordered by attempt number.
func (s *Store) PendingAttempts(ctx context.Context, scope models.Scope, playerID, pairingID int64) ([]models.Attempt, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+attemptCols+` FROM attempts
		 WHERE game_id = $1 AND numgame = $2 AND player_id = $3 AND pairing_id = $4 AND is_correct = -1
		 ORDER BY attempt_num, id`,
		scope.GameID, scope.NumGame, playerID, pairingID,
	)
	if err != nil {
		return nil, models.NewStorageError("pending attempts", err)
	}
	defer rows.Close()

	var out []models.Attempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, models.NewStorageError("scan attempt", err)
		}
		out = append(out, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, models.NewStorageError("pending attempts", err)
	}
	return out, nil
}

// MaxAttemptNum returns the highest attempt number the player has used in
// a pairing (0 for solo play).
func (s *Store) MaxAttemptNum(ctx context.Context, scope models.Scope, playerID, pairingID int64) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(attempt_num), 0) FROM attempts
		 WHERE game_id = $1 AND numgame = $2 AND player_id = $3 AND pairing_id = $4`,
		scope.GameID, scope.NumGame, playerID, pairingID,
	).Scan(&n)
	if err != nil {
		return 0, models.NewStorageError("max attempt num", err)
	}
	return n, nil
}

// StartAttempt stamps the start time and deadline the first time an
// attempt is served. A zero time limit leaves the deadline unset.
func (s *Store) StartAttempt(ctx context.Context, id int64, now int64, timeLimit int) error {
	var timeClose int64
	if timeLimit > 0 {
		timeClose = now + int64(timeLimit)
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE attempts SET time_start = $1, time_close = $2 WHERE id = $3 AND time_start = 0`,
		now, timeClose, id,
	)
	return models.NewStorageError("start attempt", err)
}

// Judgement is the outcome written to an attempt when it closes.
type Judgement struct {
	Answer   string
	Correct  bool
	Fraction float64
	TimedOut bool
}

// JudgeAttempt closes a pending attempt. It reports false when the attempt
// was already judged, which makes duplicate submissions harmless.
func (s *Store) JudgeAttempt(ctx context.Context, id int64, j Judgement, now int64) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE attempts SET is_correct = $1, fraction = $2, user_answer = $3, timed_out = $4, time_answered = $5
		 WHERE id = $6 AND is_correct = -1`,
		database.BoolInt(j.Correct), j.Fraction, j.Answer, database.BoolInt(j.TimedOut), now, id,
	)
	if err != nil {
		return false, models.NewStorageError("judge attempt", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, models.NewStorageError("judge attempt", err)
	}
	return n == 1, nil
}

func (s *Store) SetAttemptScore(ctx context.Context, id int64, score float64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE attempts SET score = $1 WHERE id = $2`, score, id)
	return models.NewStorageError("set attempt score", err)
}

// ClosedAttempts lists every judged attempt of a generation in id order,
// the raw material of the estimation response matrix.
func (s *Store) ClosedAttempts(ctx context.Context, scope models.Scope) ([]models.Attempt, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+attemptCols+` FROM attempts
		 WHERE game_id = $1 AND numgame = $2 AND is_correct <> -1
		 ORDER BY id`,
		scope.GameID, scope.NumGame,
	)
	if err != nil {
		return nil, models.NewStorageError("closed attempts", err)
	}
	defer rows.Close()

	var out []models.Attempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, models.NewStorageError("scan attempt", err)
		}
		out = append(out, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, models.NewStorageError("closed attempts", err)
	}
	return out, nil
}
