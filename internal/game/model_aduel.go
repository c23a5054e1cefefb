package game

import (
	"context"
	"errors"
	"fmt"

	"github.com/mmogame/backend/internal/duel"
	"github.com/mmogame/backend/internal/itembank"
	"github.com/mmogame/backend/internal/models"
	"github.com/mmogame/backend/internal/rasch"
)

// maxPairingHops bounds how many finished pairings one Next call steps over
// before telling the player to poll again.
const maxPairingHops = 3

// ADuel is the asynchronous duel: both players answer the same questions
// at different times and each question is scored once both have answered.
type ADuel struct {
	d Deps
}

func NewADuel(d Deps) *ADuel {
	return &ADuel{d: d}
}

func (m *ADuel) Kind() models.ModelKind { return models.ModelADuel }

func (m *ADuel) pairingOptions(game *models.Game, playerID int64, opts NextOptions) duel.PairingOptions {
	scope := game.Scope()
	return duel.PairingOptions{
		MaxAlone:   game.MaxAlone,
		Match:      true,
		Candidates: opts.Opponents,
		Questions:  game.QuestionsPerPairing,
		TimeLimit:  game.TimeLimit,
		Items: func(ctx context.Context, count int) ([]int64, error) {
			bank, err := m.d.Banks.Lookup(game.BankKind)
			if err != nil {
				return nil, err
			}
			items, err := m.d.Selector.Select(ctx, bank, itembank.Filter{Category: game.Category}, scope, models.PlayerTarget(playerID), count)
			if err != nil {
				return nil, err
			}
			ids := make([]int64, len(items))
			for i, it := range items {
				ids[i] = it.ID
			}
			return ids, nil
		},
	}
}

func (m *ADuel) Next(ctx context.Context, game *models.Game, playerID int64, opts NextOptions) (*models.Turn, error) {
	scope := game.Scope()
	popts := m.pairingOptions(game, playerID, opts)

	for hop := 0; hop < maxPairingHops; hop++ {
		p, err := m.d.Engine.GetOrCreatePairing(ctx, scope, playerID, popts)
		if err != nil {
			return nil, err
		}
		if p == nil {
			return waiting(), nil
		}

		a, err := m.d.Engine.GetOrCreateAttempt(ctx, p, playerID, game.Scores)
		if err != nil {
			return nil, err
		}
		if a == nil {
			if err := m.d.Engine.FinishSide(ctx, p, playerID); err != nil {
				return nil, fmt.Errorf("finish pairing %d: %w", p.ID, err)
			}
			continue
		}

		_, item, err := loadItem(ctx, m.d.Banks, game, a.ItemID)
		if err != nil {
			return nil, err
		}
		return &models.Turn{
			Status:   models.TurnPlay,
			Pairing:  p,
			Opponent: p.Opponent(playerID),
			Attempt:  a,
			Item:     item,
		}, nil
	}
	return waiting(), nil
}

func (m *ADuel) Answer(ctx context.Context, game *models.Game, playerID, attemptID int64, answer string) (*models.AnswerResponse, error) {
	a, err := m.d.Attempts.GetAttempt(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	if a.GameID != game.ID || a.PairingID == 0 || a.PlayerID != playerID {
		return nil, models.ErrNotFound
	}
	p, err := m.d.Attempts.GetPairing(ctx, a.PairingID)
	if err != nil {
		return nil, err
	}

	bank, item, err := loadItem(ctx, m.d.Banks, game, a.ItemID)
	if err != nil {
		return nil, err
	}
	out, err := m.d.Engine.Answer(ctx, p, a.ID, playerID, answer, bank.Check(item, answer), game.Scores)
	if err != nil {
		return nil, err
	}

	resp := &models.AnswerResponse{
		AttemptID:     out.AttemptID,
		Correct:       out.Correct,
		Fraction:      out.Fraction,
		TimedOut:      out.TimedOut,
		Settled:       out.Settled,
		Score:         out.Score,
		OpponentScore: out.OpponentScore,
	}
	grade, err := m.d.Ledger.GetGrade(ctx, models.Scope{GameID: p.GameID, NumGame: p.NumGame}, playerID)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}
	resp.Grade = grade
	return resp, nil
}

// Responses covers duel attempts only.
func (m *ADuel) Responses(ctx context.Context, game *models.Game, numGame int) (*rasch.Responses, error) {
	scope := models.Scope{GameID: game.ID, NumGame: numGame}
	return responsesOf(ctx, m.d.Attempts, scope, func(a *models.Attempt) bool { return a.PairingID != 0 })
}
