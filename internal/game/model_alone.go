package game

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/mmogame/backend/internal/database"
	"github.com/mmogame/backend/internal/duel"
	"github.com/mmogame/backend/internal/itembank"
	"github.com/mmogame/backend/internal/ledger"
	"github.com/mmogame/backend/internal/metrics"
	"github.com/mmogame/backend/internal/models"
	"github.com/mmogame/backend/internal/rasch"
)

// Alone is the solo quiz: one question at a time, the grade moves by the
// answer's credit fraction.
type Alone struct {
	d   Deps
	now func() time.Time
}

func NewAlone(d Deps) *Alone {
	return &Alone{d: d, now: time.Now}
}

func (m *Alone) Kind() models.ModelKind { return models.ModelAlone }

// slotRetries bounds how often Next re-reads after losing an attempt
// number to a concurrent request of the same player.
const slotRetries = 3

func (m *Alone) Next(ctx context.Context, game *models.Game, playerID int64, _ NextOptions) (*models.Turn, error) {
	scope := game.Scope()
	if _, err := m.d.Ledger.GetOrCreateGrade(ctx, scope, playerID); err != nil {
		return nil, fmt.Errorf("get grade: %w", err)
	}
	for try := 0; try < slotRetries; try++ {
		turn, err := m.next(ctx, game, playerID)
		if err != nil || turn != nil {
			return turn, err
		}
	}
	return nil, fmt.Errorf("player %d: attempt number taken %d times in a row", playerID, slotRetries)
}

// next serves the oldest live pending attempt or opens a new one. A nil
// turn means a concurrent request took the new attempt's number first.
// The number is read before the pending list so that an attempt created
// in between collides with ours instead of being missed.
func (m *Alone) next(ctx context.Context, game *models.Game, playerID int64) (*models.Turn, error) {
	scope := game.Scope()
	num, err := m.d.Attempts.MaxAttemptNum(ctx, scope, playerID, 0)
	if err != nil {
		return nil, err
	}
	pending, err := m.d.Attempts.PendingAttempts(ctx, scope, playerID, 0)
	if err != nil {
		return nil, err
	}
	now := m.now().Unix()
	for i := range pending {
		a := &pending[i]
		if a.Expired(now) {
			if _, err := m.timeout(ctx, game, a, now); err != nil {
				return nil, err
			}
			continue
		}
		return m.serve(ctx, game, a, now)
	}

	bank, err := m.d.Banks.Lookup(game.BankKind)
	if err != nil {
		return nil, err
	}
	items, err := m.d.Selector.Select(ctx, bank, itembank.Filter{Category: game.Category}, scope, models.PlayerTarget(playerID), 1)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, models.ErrNoItems
	}

	a, err := m.d.Attempts.CreateAttempt(ctx, scope, playerID, num+1, items[0].ID)
	if err != nil || a == nil {
		return nil, err
	}
	return m.serve(ctx, game, a, now)
}

// serve stamps a fresh attempt and returns it with its question.
func (m *Alone) serve(ctx context.Context, game *models.Game, a *models.Attempt, now int64) (*models.Turn, error) {
	if a.TimeStart == 0 {
		if err := m.d.Attempts.StartAttempt(ctx, a.ID, now, game.TimeLimit); err != nil {
			return nil, err
		}
		started, err := m.d.Attempts.GetAttempt(ctx, a.ID)
		if err != nil {
			return nil, err
		}
		a = started
	}
	_, item, err := loadItem(ctx, m.d.Banks, game, a.ItemID)
	if err != nil {
		return nil, err
	}
	return &models.Turn{Status: models.TurnPlay, Attempt: a, Item: item}, nil
}

func (m *Alone) Answer(ctx context.Context, game *models.Game, playerID, attemptID int64, answer string) (*models.AnswerResponse, error) {
	a, err := m.d.Attempts.GetAttempt(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	if a.PlayerID != playerID || a.PairingID != 0 || a.GameID != game.ID {
		return nil, models.ErrNotFound
	}
	if !a.Pending() {
		return nil, models.ErrClosed
	}

	now := m.now().Unix()
	if a.Expired(now) {
		resp, err := m.timeout(ctx, game, a, now)
		if err != nil {
			return nil, err
		}
		if resp == nil {
			return nil, models.ErrClosed
		}
		return resp, nil
	}

	bank, item, err := loadItem(ctx, m.d.Banks, game, a.ItemID)
	if err != nil {
		return nil, err
	}
	result := bank.Check(item, answer)

	var resp *models.AnswerResponse
	err = m.inTx(ctx, func(st *duel.Store, lg *ledger.Store) error {
		ok, err := st.JudgeAttempt(ctx, a.ID, duel.Judgement{Answer: answer, Correct: result.Correct, Fraction: result.Fraction}, now)
		if err != nil {
			return err
		}
		if !ok {
			return models.ErrClosed
		}
		a.Fraction = result.Fraction
		a.IsCorrect = models.AttemptWrong
		if result.Correct {
			a.IsCorrect = models.AttemptCorrect
		}
		resp, err = settleAlone(ctx, st, lg, game.Scope(), a)
		return err
	})
	if err != nil {
		return nil, err
	}
	observeAlone(a)
	return resp, nil
}

// timeout closes an expired attempt without credit. It returns nil when a
// concurrent request closed it first.
func (m *Alone) timeout(ctx context.Context, game *models.Game, a *models.Attempt, now int64) (*models.AnswerResponse, error) {
	var resp *models.AnswerResponse
	err := m.inTx(ctx, func(st *duel.Store, lg *ledger.Store) error {
		ok, err := st.JudgeAttempt(ctx, a.ID, duel.Judgement{TimedOut: true}, now)
		if err != nil || !ok {
			return err
		}
		a.IsCorrect = models.AttemptWrong
		a.Fraction = 0
		a.TimedOut = true
		resp, err = settleAlone(ctx, st, lg, game.Scope(), a)
		return err
	})
	if err != nil || resp == nil {
		return nil, err
	}
	metrics.AttemptTimeouts.WithLabelValues(string(models.ModelAlone)).Inc()
	observeAlone(a)
	return resp, nil
}

// inTx binds the attempt store and the ledger to one transaction so that a
// judged attempt is never committed without its credit.
func (m *Alone) inTx(ctx context.Context, fn func(st *duel.Store, lg *ledger.Store) error) error {
	return database.InTx(ctx, m.d.DB, func(tx *sql.Tx) error {
		return fn(m.d.Attempts.WithTx(tx), m.d.Ledger.WithTx(tx))
	})
}

func observeAlone(a *models.Attempt) {
	result := "wrong"
	if a.TimedOut {
		result = "timeout"
	} else if a.IsCorrect == models.AttemptCorrect {
		result = "correct"
	}
	metrics.AnswersTotal.WithLabelValues(string(models.ModelAlone), result).Inc()
}

func settleAlone(ctx context.Context, st *duel.Store, lg *ledger.Store, scope models.Scope, a *models.Attempt) (*models.AnswerResponse, error) {
	correct := a.IsCorrect == models.AttemptCorrect
	if _, err := lg.MarkAnswer(ctx, scope, models.PlayerTarget(a.PlayerID), a.ItemID, correct); err != nil {
		return nil, fmt.Errorf("mark answer: %w", err)
	}

	grade, err := lg.GetOrCreateGrade(ctx, scope, a.PlayerID)
	if err != nil {
		return nil, fmt.Errorf("get grade: %w", err)
	}
	var delta2 float64
	if correct {
		delta2 = 1
	}
	grade, err = lg.AddScore(ctx, grade.ID, a.Fraction, delta2)
	if err != nil {
		return nil, fmt.Errorf("add score: %w", err)
	}
	if err := st.SetAttemptScore(ctx, a.ID, a.Fraction); err != nil {
		return nil, err
	}

	return &models.AnswerResponse{
		AttemptID: a.ID,
		Correct:   correct,
		Fraction:  a.Fraction,
		TimedOut:  a.TimedOut,
		Settled:   true,
		Score:     a.Fraction,
		Grade:     grade,
	}, nil
}

// Responses covers solo attempts only.
func (m *Alone) Responses(ctx context.Context, game *models.Game, numGame int) (*rasch.Responses, error) {
	scope := models.Scope{GameID: game.ID, NumGame: numGame}
	return responsesOf(ctx, m.d.Attempts, scope, func(a *models.Attempt) bool { return a.PairingID == 0 })
}
