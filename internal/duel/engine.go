package duel

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/mmogame/backend/internal/database"
	"github.com/mmogame/backend/internal/ledger"
	"github.com/mmogame/backend/internal/metrics"
	"github.com/mmogame/backend/internal/models"
)

// maxJoinCandidates bounds how many open pairings are tried per request.
const maxJoinCandidates = 5

// ItemSource picks the question sequence of a newly opened pairing.
type ItemSource func(ctx context.Context, count int) ([]int64, error)

type PairingOptions struct {
	// MaxAlone caps the pairings a player may have waiting for an opponent.
	// Zero or less disables the cap.
	MaxAlone int
	// Match enables joining pairings opened by other players.
	Match bool
	// Candidates, when set, restricts which openers may be joined.
	Candidates []int64
	Questions  int
	TimeLimit  int
	Items      ItemSource
}

// Outcome describes one closed attempt.
type Outcome struct {
	AttemptID int64   `json:"attempt_id"`
	Correct   bool    `json:"correct"`
	Fraction  float64 `json:"fraction"`
	TimedOut  bool    `json:"timed_out"`
	// Settled is true once both players' results for the question are known.
	Settled       bool    `json:"settled"`
	Score         float64 `json:"score"`
	OpponentScore float64 `json:"opponent_score"`
}

// Engine is the ADuel pairing state machine. It keeps no state between
// calls; every decision re-reads the store.
type Engine struct {
	store  *Store
	ledger *ledger.Store
	now    func() time.Time
}

func NewEngine(store *Store, ledger *ledger.Store) *Engine {
	return &Engine{store: store, ledger: ledger, now: time.Now}
}

// inTx runs fn with the pairing store and the ledger bound to a single
// transaction, so a closed attempt and its scoring commit together.
func (e *Engine) inTx(ctx context.Context, fn func(st *Store, lg *ledger.Store) error) error {
	return database.InTx(ctx, e.store.db, func(tx *sql.Tx) error {
		return fn(e.store.WithTx(tx), e.ledger.WithTx(tx))
	})
}

// Store exposes the pairing store to callers that read pairings directly.
func (e *Engine) Store() *Store { return e.store }

// GetOrCreatePairing resumes the player's in-progress pairing, joins an
// open pairing of a similarly scored player, or opens a new one. A nil
// pairing with a nil error means the player must wait for an opponent.
func (e *Engine) GetOrCreatePairing(ctx context.Context, scope models.Scope, playerID int64, opts PairingOptions) (*models.Pairing, error) {
	p, err := e.store.FindResumable(ctx, scope, playerID)
	if err != nil {
		return nil, err
	}
	if p != nil {
		metrics.PairingOutcomes.WithLabelValues("resumed").Inc()
		return p, nil
	}

	grade, err := e.ledger.GetOrCreateGrade(ctx, scope, playerID)
	if err != nil {
		return nil, fmt.Errorf("get grade: %w", err)
	}
	now := e.now().Unix()

	if grade.CountAlone > 0 && opts.Match {
		open, err := e.store.OpenPairings(ctx, scope, playerID, grade.Score, opts.Candidates, maxJoinCandidates)
		if err != nil {
			return nil, err
		}
		for _, cand := range open {
			joined, err := e.store.JoinPairing(ctx, cand.ID, playerID, now)
			if err != nil {
				return nil, err
			}
			if !joined {
				metrics.PairingOutcomes.WithLabelValues("join_lost").Inc()
				continue
			}
			cand.Player2 = playerID
			cand.TimeStart2 = now
			cand.NewPlayer2 = true
			metrics.PairingOutcomes.WithLabelValues("joined").Inc()
			log.Printf("[duel] player %d joined pairing %d of player %d", playerID, cand.ID, cand.Player1)
			return &cand, nil
		}
	}

	// Two players polling at once may both get here and each open a
	// pairing instead of one joining the other. The extra pairing is
	// joined on a later poll.
	waiting, err := e.store.CountOpen(ctx, scope, playerID)
	if err != nil {
		return nil, err
	}
	if opts.MaxAlone > 0 && waiting >= opts.MaxAlone {
		metrics.PairingOutcomes.WithLabelValues("wait").Inc()
		return nil, nil
	}

	itemIDs, err := opts.Items(ctx, opts.Questions)
	if err != nil {
		return nil, fmt.Errorf("select items: %w", err)
	}
	if len(itemIDs) == 0 {
		return nil, models.ErrNoItems
	}

	p, err = e.store.CreatePairing(ctx, scope, playerID, opts.TimeLimit, itemIDs, now)
	if err != nil {
		return nil, err
	}
	p.NewPlayer1 = true
	metrics.PairingOutcomes.WithLabelValues("created").Inc()
	return p, nil
}

// GetOrCreateAttempt returns the player's next open attempt in the pairing,
// stamping its start time and deadline the first time it is served.
// Pending attempts whose deadline passed are closed as timed out on the
// way. A nil attempt means the player's side has no questions left.
func (e *Engine) GetOrCreateAttempt(ctx context.Context, p *models.Pairing, playerID int64, rules models.ScoreRules) (*models.Attempt, error) {
	if p.Side(playerID) == 0 {
		return nil, models.ErrNotFound
	}

	pending, err := e.store.PendingAttempts(ctx, models.Scope{GameID: p.GameID, NumGame: p.NumGame}, playerID, p.ID)
	if err != nil {
		return nil, err
	}

	now := e.now().Unix()
	for i := range pending {
		a := &pending[i]
		if a.Expired(now) {
			if _, err := e.timeout(ctx, p, a, rules, now); err != nil {
				return nil, err
			}
			continue
		}
		if a.TimeStart == 0 {
			if err := e.store.StartAttempt(ctx, a.ID, now, p.TimeLimit); err != nil {
				return nil, err
			}
			return e.store.GetAttempt(ctx, a.ID)
		}
		return a, nil
	}
	return nil, nil
}

// Answer judges a submitted answer for one attempt of the pairing. An answer
// that arrives after the deadline closes the attempt as timed out instead.
// The judgement and its scoring commit together; on error the attempt stays
// pending and the answer may be resubmitted.
func (e *Engine) Answer(ctx context.Context, p *models.Pairing, attemptID, playerID int64, answer string, result models.CheckResult, rules models.ScoreRules) (*Outcome, error) {
	a, err := e.store.GetAttempt(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	if a.PairingID != p.ID || a.PlayerID != playerID {
		return nil, models.ErrNotFound
	}
	if !a.Pending() {
		return nil, models.ErrClosed
	}

	now := e.now().Unix()
	if a.Expired(now) {
		out, err := e.timeout(ctx, p, a, rules, now)
		if err != nil {
			return nil, err
		}
		if out == nil {
			return nil, models.ErrClosed
		}
		return out, nil
	}

	var out *Outcome
	err = e.inTx(ctx, func(st *Store, lg *ledger.Store) error {
		ok, err := st.JudgeAttempt(ctx, a.ID, Judgement{Answer: answer, Correct: result.Correct, Fraction: result.Fraction}, now)
		if err != nil {
			return err
		}
		if !ok {
			return models.ErrClosed
		}
		a.IsCorrect = models.AttemptWrong
		if result.Correct {
			a.IsCorrect = models.AttemptCorrect
		}
		a.Fraction = result.Fraction
		a.UserAnswer = answer
		out, err = settle(ctx, st, lg, p, a, rules)
		return err
	})
	if err != nil {
		return nil, err
	}
	observeAnswer(a)
	return out, nil
}

// timeout closes an expired attempt as a wrong answer. It returns nil when
// a concurrent request closed the attempt first.
func (e *Engine) timeout(ctx context.Context, p *models.Pairing, a *models.Attempt, rules models.ScoreRules, now int64) (*Outcome, error) {
	var out *Outcome
	err := e.inTx(ctx, func(st *Store, lg *ledger.Store) error {
		ok, err := st.JudgeAttempt(ctx, a.ID, Judgement{TimedOut: true}, now)
		if err != nil || !ok {
			return err
		}
		a.IsCorrect = models.AttemptWrong
		a.TimedOut = true
		out, err = settle(ctx, st, lg, p, a, rules)
		return err
	})
	if err != nil || out == nil {
		return nil, err
	}
	metrics.AttemptTimeouts.WithLabelValues(string(models.ModelADuel)).Inc()
	observeAnswer(a)
	out.TimedOut = true
	return out, nil
}

func observeAnswer(a *models.Attempt) {
	result := "wrong"
	if a.TimedOut {
		result = "timeout"
	} else if a.IsCorrect == models.AttemptCorrect {
		result = "correct"
	}
	metrics.AnswersTotal.WithLabelValues(string(models.ModelADuel), result).Inc()
}

// settle records a closed attempt in the ledger. Player2's attempt decides
// the question: it is scored against player1's attempt with the same number.
func settle(ctx context.Context, st *Store, lg *ledger.Store, p *models.Pairing, a *models.Attempt, rules models.ScoreRules) (*Outcome, error) {
	scope := models.Scope{GameID: p.GameID, NumGame: p.NumGame}
	correct := a.IsCorrect == models.AttemptCorrect

	if _, err := lg.MarkAnswer(ctx, scope, models.PlayerTarget(a.PlayerID), a.ItemID, correct); err != nil {
		return nil, fmt.Errorf("mark answer: %w", err)
	}

	out := &Outcome{AttemptID: a.ID, Correct: correct, Fraction: a.Fraction, TimedOut: a.TimedOut}
	if p.Side(a.PlayerID) != 2 {
		return out, nil
	}

	first, err := st.AttemptByNum(ctx, p.ID, p.Player1, a.Num)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}
	correct1 := first != nil && first.IsCorrect == models.AttemptCorrect

	mine, theirs, err := closeSide(ctx, st, lg, p.ID, a.PlayerID, correct1, correct, rules)
	if err != nil {
		return nil, err
	}
	if err := st.SetAttemptScore(ctx, a.ID, mine); err != nil {
		return nil, err
	}
	if first != nil {
		if err := st.SetAttemptScore(ctx, first.ID, theirs); err != nil {
			return nil, err
		}
	}
	out.Settled = true
	out.Score = mine
	out.OpponentScore = theirs
	return out, nil
}

// Score applies the duel scoring rule to one question: equal results draw,
// otherwise the correct side wins.
func Score(correct1, correct2 bool, rules models.ScoreRules) (score1, score2 float64) {
	switch {
	case correct1 == correct2:
		return rules.Draw, rules.Draw
	case correct1:
		return rules.Win, rules.Lose
	default:
		return rules.Lose, rules.Win
	}
}

// CloseSide scores one question of a joined pairing and credits both
// players' grades in one transaction. It returns the caller's score first.
func (e *Engine) CloseSide(ctx context.Context, pairingID, callerID int64, correct1, correct2 bool, rules models.ScoreRules) (float64, float64, error) {
	var mine, theirs float64
	err := e.inTx(ctx, func(st *Store, lg *ledger.Store) error {
		var err error
		mine, theirs, err = closeSide(ctx, st, lg, pairingID, callerID, correct1, correct2, rules)
		return err
	})
	if err != nil {
		return 0, 0, err
	}
	return mine, theirs, nil
}

func closeSide(ctx context.Context, st *Store, lg *ledger.Store, pairingID, callerID int64, correct1, correct2 bool, rules models.ScoreRules) (float64, float64, error) {
	p, err := st.GetPairing(ctx, pairingID)
	if err != nil {
		return 0, 0, err
	}
	side := p.Side(callerID)
	if side == 0 {
		return 0, 0, models.ErrNotFound
	}
	if p.Player2 == 0 {
		return 0, 0, fmt.Errorf("pairing %d has no opponent", pairingID)
	}

	scope := models.Scope{GameID: p.GameID, NumGame: p.NumGame}
	score1, score2 := Score(correct1, correct2, rules)
	if err := credit(ctx, lg, scope, p.Player1, score1, correct1); err != nil {
		return 0, 0, err
	}
	if err := credit(ctx, lg, scope, p.Player2, score2, correct2); err != nil {
		return 0, 0, err
	}

	if side == 1 {
		return score1, score2, nil
	}
	return score2, score1, nil
}

// credit adds a duel result to a grade. The secondary sum counts correct answers.
func credit(ctx context.Context, lg *ledger.Store, scope models.Scope, playerID int64, score float64, correct bool) error {
	g, err := lg.GetOrCreateGrade(ctx, scope, playerID)
	if err != nil {
		return fmt.Errorf("get grade: %w", err)
	}
	var delta2 float64
	if correct {
		delta2 = 1
	}
	if _, err := lg.AddScore(ctx, g.ID, score, delta2); err != nil {
		return fmt.Errorf("add score: %w", err)
	}
	return nil
}

// FinishSide closes the player's side once no questions are left. Player1
// closing before anyone joined leaves the pairing waiting alone; the store
// bumps their alone counter in the same transaction.
func (e *Engine) FinishSide(ctx context.Context, p *models.Pairing, playerID int64) error {
	side := p.Side(playerID)
	if side == 0 {
		return models.ErrNotFound
	}
	closed, err := e.store.CloseSide(ctx, p.ID, side, e.now().Unix())
	if err != nil {
		return err
	}
	if !closed {
		return nil
	}
	if side == 1 {
		p.IsClosed1 = true
	} else {
		p.IsClosed2 = true
	}
	return nil
}
