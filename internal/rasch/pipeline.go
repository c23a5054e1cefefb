package rasch

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/mmogame/backend/internal/metrics"
	"github.com/mmogame/backend/internal/models"
)

// ResponseSource flattens the attempt history of a game into a response
// matrix. Each game model provides its own.
type ResponseSource interface {
	Responses(ctx context.Context, game *models.Game, numGame int) (*Responses, error)
}

type GameLookup interface {
	GetGame(ctx context.Context, id int64) (*models.Game, error)
}

// Pipeline reads responses, estimates, and persists the snapshot together
// with each person's ability.
type Pipeline struct {
	games         GameLookup
	source        ResponseSource
	store         *Store
	maxIterations int
}

func NewPipeline(games GameLookup, source ResponseSource, store *Store, maxIterations int) *Pipeline {
	return &Pipeline{games: games, source: source, store: store, maxIterations: maxIterations}
}

// Run estimates one generation of a game on behalf of userID and returns
// the snapshot key id. numGame zero selects the game's current generation.
func (p *Pipeline) Run(ctx context.Context, gameID int64, numGame int, userID int64) (keyID int64, err error) {
	start := time.Now()
	defer func() { metrics.ObserveEstimation(start, err) }()

	game, err := p.games.GetGame(ctx, gameID)
	if err != nil {
		return 0, fmt.Errorf("get game: %w", err)
	}
	if numGame == 0 {
		numGame = game.NumGame
	}
	scope := models.Scope{GameID: gameID, NumGame: numGame}

	responses, err := p.source.Responses(ctx, game, numGame)
	if err != nil {
		return 0, fmt.Errorf("read responses: %w", err)
	}

	res, err := Estimate(responses, p.maxIterations)
	if err != nil {
		return 0, fmt.Errorf("estimate: %w", err)
	}

	keyID, err = p.store.Save(ctx, scope, userID, res)
	if err != nil {
		return 0, fmt.Errorf("save estimation: %w", err)
	}

	log.Printf("[rasch] game %d generation %d: %d persons, %d items, key %d (%s)",
		gameID, numGame, len(res.Persons), len(res.Items), keyID, time.Since(start).Round(time.Millisecond))
	return keyID, nil
}

// FromAttempts builds a response matrix from judged attempts. Persons and
// items are ordered by id; when a person saw an item more than once the
// latest attempt wins. Pending attempts are ignored.
func FromAttempts(attempts []models.Attempt) *Responses {
	personIdx := map[int64]int{}
	itemIdx := map[int64]int{}
	for _, a := range attempts {
		if a.Pending() {
			continue
		}
		personIdx[a.PlayerID] = 0
		itemIdx[a.ItemID] = 0
	}

	r := &Responses{
		Persons: sortedKeys(personIdx),
		Items:   sortedKeys(itemIdx),
	}
	for i, id := range r.Persons {
		personIdx[id] = i
	}
	for j, id := range r.Items {
		itemIdx[id] = j
	}

	r.Cells = make([][]Response, len(r.Persons))
	for i := range r.Cells {
		row := make([]Response, len(r.Items))
		for j := range row {
			row[j] = Missing
		}
		r.Cells[i] = row
	}

	sorted := make([]models.Attempt, 0, len(attempts))
	for _, a := range attempts {
		if !a.Pending() {
			sorted = append(sorted, a)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].TimeAnswered != sorted[j].TimeAnswered {
			return sorted[i].TimeAnswered < sorted[j].TimeAnswered
		}
		return sorted[i].ID < sorted[j].ID
	})
	for _, a := range sorted {
		x := Wrong
		if a.IsCorrect == models.AttemptCorrect {
			x = Correct
		}
		r.Cells[personIdx[a.PlayerID]][itemIdx[a.ItemID]] = x
	}
	return r
}

func sortedKeys(m map[int64]int) []int64 {
	keys := make([]int64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
