package game

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/mmogame/backend/internal/duel"
	"github.com/mmogame/backend/internal/itembank"
	"github.com/mmogame/backend/internal/ledger"
	"github.com/mmogame/backend/internal/models"
)

const (
	DefaultQuestionsPerPairing = 5
	DefaultLeaderboardLimit    = 20
	MaxLeaderboardLimit        = 100
)

var DefaultScores = models.ScoreRules{Win: 3, Lose: -1, Draw: 1}

type Service struct {
	games    *Store
	registry *Registry
	ledger   *ledger.Store
	duels    *duel.Store
	items    *itembank.Store
}

func NewService(games *Store, registry *Registry, ledger *ledger.Store, duels *duel.Store, items *itembank.Store) *Service {
	return &Service{games: games, registry: registry, ledger: ledger, duels: duels, items: items}
}

// playable loads a game and its model, refusing disabled games.
func (s *Service) playable(ctx context.Context, gameID int64) (*models.Game, Model, error) {
	game, err := s.games.GetGame(ctx, gameID)
	if err != nil {
		return nil, nil, err
	}
	if !game.Enabled {
		return nil, nil, models.ErrDisabled
	}
	m, err := s.registry.Lookup(game.Model)
	if err != nil {
		return nil, nil, err
	}
	return game, m, nil
}

// Next serves the player's next question. A waiting turn means the player
// should poll again later.
func (s *Service) Next(ctx context.Context, gameID, playerID int64, opts NextOptions) (*models.Turn, error) {
	game, m, err := s.playable(ctx, gameID)
	if err != nil {
		return nil, err
	}
	return m.Next(ctx, game, playerID, opts)
}

func (s *Service) Answer(ctx context.Context, gameID, playerID, attemptID int64, answer string) (*models.AnswerResponse, error) {
	game, m, err := s.playable(ctx, gameID)
	if err != nil {
		return nil, err
	}
	return m.Answer(ctx, game, playerID, attemptID, answer)
}

// State reports the player's grade, rank, and in-progress pairing in the
// current generation. A player who never played gets an empty state.
func (s *Service) State(ctx context.Context, gameID, playerID int64) (*models.PlayerState, error) {
	game, err := s.games.GetGame(ctx, gameID)
	if err != nil {
		return nil, err
	}
	scope := game.Scope()
	state := &models.PlayerState{PairingState: models.PairingNone.String()}

	grade, err := s.ledger.GetGrade(ctx, scope, playerID)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}
	if grade != nil {
		state.Grade = grade
		if state.Rank, err = s.ledger.Rank(ctx, grade); err != nil {
			return nil, err
		}
	}

	if game.Model == models.ModelADuel {
		p, err := s.duels.FindResumable(ctx, scope, playerID)
		if err != nil {
			return nil, err
		}
		if p != nil {
			state.Pairing = p
			state.PairingState = p.State().String()
		}
	}
	return state, nil
}

func (s *Service) Leaderboard(ctx context.Context, gameID int64, numGame, limit int) ([]models.LeaderboardEntry, error) {
	game, err := s.games.GetGame(ctx, gameID)
	if err != nil {
		return nil, err
	}
	scope := game.Scope()
	if numGame > 0 {
		scope.NumGame = numGame
	}
	if limit <= 0 {
		limit = DefaultLeaderboardLimit
	}
	if limit > MaxLeaderboardLimit {
		limit = MaxLeaderboardLimit
	}
	return s.ledger.Leaderboard(ctx, scope, limit)
}

func (s *Service) SetNickname(ctx context.Context, gameID, playerID int64, nickname string) (*models.Grade, error) {
	game, err := s.games.GetGame(ctx, gameID)
	if err != nil {
		return nil, err
	}
	grade, err := s.ledger.GetOrCreateGrade(ctx, game.Scope(), playerID)
	if err != nil {
		return nil, err
	}
	nickname = strings.TrimSpace(nickname)
	if err := s.ledger.SetNickname(ctx, grade.ID, nickname); err != nil {
		return nil, err
	}
	grade.Nickname = nickname
	return grade, nil
}

func (s *Service) CreateGame(ctx context.Context, req models.CreateGameRequest) (*models.Game, error) {
	g := &models.Game{
		Name:                strings.TrimSpace(req.Name),
		Model:               req.Model,
		BankKind:            req.BankKind,
		Category:            strings.TrimSpace(req.Category),
		MaxAlone:            req.MaxAlone,
		Scores:              DefaultScores,
		TimeLimit:           req.TimeLimit,
		QuestionsPerPairing: req.QuestionsPerPairing,
		Enabled:             true,
	}
	if !models.ValidModelKinds[g.Model] {
		return nil, fmt.Errorf("%w: game model %q", models.ErrInvalid, g.Model)
	}
	if !models.ValidBankKinds[g.BankKind] {
		return nil, fmt.Errorf("%w: item bank %q", models.ErrInvalid, g.BankKind)
	}
	if req.ScoreWin != nil {
		g.Scores.Win = *req.ScoreWin
	}
	if req.ScoreLose != nil {
		g.Scores.Lose = *req.ScoreLose
	}
	if req.ScoreDraw != nil {
		g.Scores.Draw = *req.ScoreDraw
	}
	if g.QuestionsPerPairing <= 0 {
		g.QuestionsPerPairing = DefaultQuestionsPerPairing
	}

	if err := s.games.CreateGame(ctx, g); err != nil {
		return nil, err
	}
	log.Printf("[game] created %s game %d %q", g.Model, g.ID, g.Name)
	return g, nil
}

// AdvanceGeneration starts a fresh generation. Grades of the new generation
// are seeded lazily from the previous one on first play.
func (s *Service) AdvanceGeneration(ctx context.Context, gameID int64) (*models.Game, error) {
	g, err := s.games.AdvanceGeneration(ctx, gameID)
	if err != nil {
		return nil, err
	}
	log.Printf("[game] game %d advanced to generation %d", g.ID, g.NumGame)
	return g, nil
}

func (s *Service) SetEnabled(ctx context.Context, gameID int64, enabled bool) (*models.Game, error) {
	if err := s.games.SetEnabled(ctx, gameID, enabled); err != nil {
		return nil, err
	}
	return s.games.GetGame(ctx, gameID)
}

func (s *Service) CreateItem(ctx context.Context, req models.CreateItemRequest) (*models.Item, error) {
	item := &models.Item{
		BankKind: req.BankKind,
		Category: strings.TrimSpace(req.Category),
		Prompt:   req.Prompt,
		Choices:  req.Choices,
		Answer:   req.Answer,
	}
	if item.BankKind == models.BankMultiChoice && len(item.Choices) < 2 {
		return nil, fmt.Errorf("%w: multichoice items need at least two choices", models.ErrInvalid)
	}
	if err := s.items.InsertItem(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}
