package models

// ModelKind selects the game model that drives a game activity.
type ModelKind string

const (
	ModelAlone ModelKind = "alone"
	ModelADuel ModelKind = "aduel"
)

var ValidModelKinds = map[ModelKind]bool{
	ModelAlone: true,
	ModelADuel: true,
}

// BankKind selects the item bank adapter used to fetch and judge questions.
type BankKind string

const (
	BankMultiChoice BankKind = "multichoice"
	BankShortAnswer BankKind = "shortanswer"
)

var ValidBankKinds = map[BankKind]bool{
	BankMultiChoice: true,
	BankShortAnswer: true,
}

// Scope identifies one generation of one game. Every ledger row is scoped by it.
type Scope struct {
	GameID  int64 `json:"game_id"`
	NumGame int   `json:"numgame"`
}

// ScoreRules are the points awarded when a duel question is settled.
type ScoreRules struct {
	Win  float64 `json:"score_win"`
	Lose float64 `json:"score_lose"`
	Draw float64 `json:"score_draw"`
}

type Game struct {
	ID                  int64      `json:"id"`
	Name                string     `json:"name"`
	Model               ModelKind  `json:"model"`
	BankKind            BankKind   `json:"bank_kind"`
	Category            string     `json:"category,omitempty"`
	NumGame             int        `json:"numgame"`
	MaxAlone            int        `json:"max_alone"`
	Scores              ScoreRules `json:"scores"`
	TimeLimit           int        `json:"time_limit"`
	QuestionsPerPairing int        `json:"questions_per_pairing"`
	Enabled             bool       `json:"enabled"`
	TimeCreated         int64      `json:"time_created"`
}

// Scope returns the current generation scope of the game.
func (g *Game) Scope() Scope {
	return Scope{GameID: g.ID, NumGame: g.NumGame}
}
