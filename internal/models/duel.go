package models

// PairingState is the derived lifecycle state of a duel pairing.
type PairingState int

const (
	PairingNone PairingState = iota
	PairingOpen
	PairingActive
	PairingPlayer1Closed
	PairingPlayer2Closed
	PairingClosed
)

func (s PairingState) String() string {
	switch s {
	case PairingOpen:
		return "open"
	case PairingActive:
		return "active"
	case PairingPlayer1Closed:
		return "player1_closed"
	case PairingPlayer2Closed:
		return "player2_closed"
	case PairingClosed:
		return "closed"
	default:
		return "none"
	}
}

// Pairing is one ADuel unit. Player2 zero means the pairing still waits for
// an opponent; once set it never changes.
type Pairing struct {
	ID         int64 `json:"id"`
	GameID     int64 `json:"game_id"`
	NumGame    int   `json:"numgame"`
	Player1    int64 `json:"player1"`
	Player2    int64 `json:"player2,omitempty"`
	TimeStart1 int64 `json:"timestart1"`
	TimeStart2 int64 `json:"timestart2,omitempty"`
	TimeClose1 int64 `json:"timeclose1,omitempty"`
	TimeClose2 int64 `json:"timeclose2,omitempty"`
	TimeLimit  int   `json:"time_limit"`
	IsClosed1  bool  `json:"is_closed1"`
	IsClosed2  bool  `json:"is_closed2"`

	// Set only on the request that created or joined the pairing.
	NewPlayer1 bool `json:"new_player1,omitempty"`
	NewPlayer2 bool `json:"new_player2,omitempty"`
}

func (p *Pairing) State() PairingState {
	if p == nil || p.ID == 0 {
		return PairingNone
	}
	if p.Player2 == 0 {
		return PairingOpen
	}
	switch {
	case p.IsClosed1 && p.IsClosed2:
		return PairingClosed
	case p.IsClosed1:
		return PairingPlayer1Closed
	case p.IsClosed2:
		return PairingPlayer2Closed
	default:
		return PairingActive
	}
}

// Side returns 1 or 2 for a participant and 0 for anyone else.
func (p *Pairing) Side(playerID int64) int {
	switch {
	case playerID == 0:
		return 0
	case p.Player1 == playerID:
		return 1
	case p.Player2 == playerID:
		return 2
	default:
		return 0
	}
}

// Opponent returns the other participant, zero while the pairing is open.
func (p *Pairing) Opponent(playerID int64) int64 {
	switch p.Side(playerID) {
	case 1:
		return p.Player2
	case 2:
		return p.Player1
	default:
		return 0
	}
}

// AttemptResult values stored in Attempt.IsCorrect.
const (
	AttemptPending = -1
	AttemptWrong   = 0
	AttemptCorrect = 1
)

// Attempt is one question instance served to a player. PairingID is zero
// for solo games.
type Attempt struct {
	ID           int64   `json:"id"`
	GameID       int64   `json:"game_id"`
	NumGame      int     `json:"numgame"`
	PlayerID     int64   `json:"player_id"`
	PairingID    int64   `json:"pairing_id,omitempty"`
	Num          int     `json:"attempt_num"`
	ItemID       int64   `json:"item_id"`
	TimeStart    int64   `json:"time_start"`
	TimeClose    int64   `json:"time_close,omitempty"`
	TimeAnswered int64   `json:"time_answered,omitempty"`
	UserAnswer   string  `json:"user_answer,omitempty"`
	IsCorrect    int     `json:"is_correct"`
	Fraction     float64 `json:"fraction"`
	Score        float64 `json:"score"`
	TimedOut     bool    `json:"timed_out"`
}

func (a *Attempt) Pending() bool {
	return a.IsCorrect == AttemptPending
}

// Expired reports whether the attempt deadline has passed at now (unix seconds).
func (a *Attempt) Expired(now int64) bool {
	return a.TimeClose != 0 && a.TimeClose < now
}
