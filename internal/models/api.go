package models

type ErrorResponse struct {
	Error string `json:"error"`
}

type SessionRequest struct {
	Kind       PlayerKind `json:"kind" validate:"required,oneof=account device joincode"`
	ExternalID string     `json:"external_id" validate:"required,max=255"`
}

type SessionResponse struct {
	Token  string  `json:"token"`
	Player *Player `json:"player"`
}

type NextRequest struct {
	// Opponents optionally restricts which players a duel may be joined with.
	Opponents []int64 `json:"opponents,omitempty" validate:"max=100,dive,gt=0"`
}

// Turn is what a player sees on each poll: either a question to answer or
// an instruction to poll again later.
type Turn struct {
	Status   string   `json:"status"`
	Pairing  *Pairing `json:"pairing,omitempty"`
	Opponent int64    `json:"opponent,omitempty"`
	Attempt  *Attempt `json:"attempt,omitempty"`
	Item     *Item    `json:"item,omitempty"`
}

const (
	TurnPlay    = "play"
	TurnWaiting = "waiting"
)

type AnswerRequest struct {
	Answer string `json:"answer" validate:"max=1000"`
}

type AnswerResponse struct {
	AttemptID     int64   `json:"attempt_id"`
	Correct       bool    `json:"correct"`
	Fraction      float64 `json:"fraction"`
	TimedOut      bool    `json:"timed_out"`
	Settled       bool    `json:"settled"`
	Score         float64 `json:"score"`
	OpponentScore float64 `json:"opponent_score,omitempty"`
	Grade         *Grade  `json:"grade,omitempty"`
}

type PlayerState struct {
	Grade        *Grade   `json:"grade"`
	Rank         int      `json:"rank"`
	Pairing      *Pairing `json:"pairing,omitempty"`
	PairingState string   `json:"pairing_state"`
}

type NicknameRequest struct {
	Nickname string `json:"nickname" validate:"required,min=1,max=50"`
}

type CreateGameRequest struct {
	Name                string    `json:"name" validate:"required,max=255"`
	Model               ModelKind `json:"model" validate:"required,oneof=alone aduel"`
	BankKind            BankKind  `json:"bank_kind" validate:"required,oneof=multichoice shortanswer"`
	Category            string    `json:"category" validate:"max=100"`
	MaxAlone            int       `json:"max_alone" validate:"min=0,max=100"`
	ScoreWin            *float64  `json:"score_win"`
	ScoreLose           *float64  `json:"score_lose"`
	ScoreDraw           *float64  `json:"score_draw"`
	TimeLimit           int       `json:"time_limit" validate:"min=0,max=3600"`
	QuestionsPerPairing int       `json:"questions_per_pairing" validate:"min=0,max=50"`
}

type CreateItemRequest struct {
	BankKind BankKind `json:"bank_kind" validate:"required,oneof=multichoice shortanswer"`
	Category string   `json:"category" validate:"max=100"`
	Prompt   string   `json:"prompt" validate:"required"`
	Choices  []string `json:"choices" validate:"dive,required"`
	Answer   string   `json:"answer" validate:"required"`
}

type EstimationRequest struct {
	// NumGame zero selects the current generation.
	NumGame int `json:"numgame" validate:"min=0"`
}

type EstimationJobStatus string

const (
	JobQueued  EstimationJobStatus = "queued"
	JobRunning EstimationJobStatus = "running"
	JobDone    EstimationJobStatus = "done"
	JobFailed  EstimationJobStatus = "failed"
)

type EstimationJob struct {
	ID       string              `json:"id"`
	GameID   int64               `json:"game_id"`
	NumGame  int                 `json:"numgame"`
	UserID   int64               `json:"user_id"`
	Status   EstimationJobStatus `json:"status"`
	KeyID    int64               `json:"key_id,omitempty"`
	Error    string              `json:"error,omitempty"`
	Queued   int64               `json:"time_queued"`
	Finished int64               `json:"time_finished,omitempty"`
}
