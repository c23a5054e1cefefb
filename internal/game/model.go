package game

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mmogame/backend/internal/duel"
	"github.com/mmogame/backend/internal/itembank"
	"github.com/mmogame/backend/internal/ledger"
	"github.com/mmogame/backend/internal/models"
	"github.com/mmogame/backend/internal/rasch"
	"github.com/mmogame/backend/internal/selection"
)

// NextOptions carries per-request hints for Model.Next.
type NextOptions struct {
	Opponents []int64
}

// Model is one game type. It serves questions, judges answers, and
// flattens its attempt history for estimation.
type Model interface {
	Kind() models.ModelKind
	Next(ctx context.Context, game *models.Game, playerID int64, opts NextOptions) (*models.Turn, error)
	Answer(ctx context.Context, game *models.Game, playerID, attemptID int64, answer string) (*models.AnswerResponse, error)
	Responses(ctx context.Context, game *models.Game, numGame int) (*rasch.Responses, error)
}

// Deps are the stores and engines shared by the built-in models.
type Deps struct {
	DB       *sql.DB
	Ledger   *ledger.Store
	Attempts *duel.Store
	Engine   *duel.Engine
	Selector *selection.Selector
	Banks    *itembank.Registry
}

// NewDeps builds the stores and engines over one database.
func NewDeps(db *sql.DB) Deps {
	ledgerStore := ledger.NewStore(db)
	attempts := duel.NewStore(db)
	return Deps{
		DB:       db,
		Ledger:   ledgerStore,
		Attempts: attempts,
		Engine:   duel.NewEngine(attempts, ledgerStore),
		Selector: selection.NewSelector(ledgerStore),
		Banks:    itembank.DefaultRegistry(itembank.NewStore(db)),
	}
}

type Registry struct {
	byKind map[models.ModelKind]Model
}

func NewRegistry(ms ...Model) *Registry {
	r := &Registry{byKind: make(map[models.ModelKind]Model, len(ms))}
	for _, m := range ms {
		r.byKind[m.Kind()] = m
	}
	return r
}

// DefaultRegistry wires the alone and aduel models.
func DefaultRegistry(d Deps) *Registry {
	return NewRegistry(NewAlone(d), NewADuel(d))
}

func (r *Registry) Lookup(kind models.ModelKind) (Model, error) {
	m, ok := r.byKind[kind]
	if !ok {
		return nil, fmt.Errorf("unknown game model %q", kind)
	}
	return m, nil
}

// Responses dispatches to the game's model.
func (r *Registry) Responses(ctx context.Context, game *models.Game, numGame int) (*rasch.Responses, error) {
	m, err := r.Lookup(game.Model)
	if err != nil {
		return nil, err
	}
	return m.Responses(ctx, game, numGame)
}

// loadItem fetches the item an attempt refers to from the game's bank.
func loadItem(ctx context.Context, banks *itembank.Registry, game *models.Game, itemID int64) (itembank.Adapter, *models.Item, error) {
	bank, err := banks.Lookup(game.BankKind)
	if err != nil {
		return nil, nil, err
	}
	items, err := bank.Items(ctx, []int64{itemID})
	if err != nil {
		return nil, nil, err
	}
	if len(items) == 0 {
		return nil, nil, fmt.Errorf("item %d: %w", itemID, models.ErrNotFound)
	}
	return bank, &items[0], nil
}

// responsesOf builds the response matrix from the closed attempts of one
// generation that keep matches.
func responsesOf(ctx context.Context, store *duel.Store, scope models.Scope, keep func(*models.Attempt) bool) (*rasch.Responses, error) {
	all, err := store.ClosedAttempts(ctx, scope)
	if err != nil {
		return nil, err
	}
	kept := all[:0]
	for i := range all {
		if keep(&all[i]) {
			kept = append(kept, all[i])
		}
	}
	return rasch.FromAttempts(kept), nil
}

func waiting() *models.Turn {
	return &models.Turn{Status: models.TurnWaiting}
}
