package models

// Grade is one player's standing in one game generation.
type Grade struct {
	ID             int64    `json:"id"`
	GameID         int64    `json:"game_id"`
	NumGame        int      `json:"numgame"`
	PlayerID       int64    `json:"player_id"`
	AvatarID       int      `json:"avatar_id"`
	Nickname       string   `json:"nickname"`
	ColorPaletteID int      `json:"color_palette_id"`
	SumScore       float64  `json:"sumscore"`
	CountScore     int      `json:"countscore"`
	Score          float64  `json:"score"`
	SumScore2      float64  `json:"sumscore2"`
	Theta          *float64 `json:"theta,omitempty"`
	CountAlone     int      `json:"count_alone"`
	TimeModified   int64    `json:"time_modified"`
}

// Scope returns the generation scope the grade belongs to.
func (g *Grade) Scope() Scope {
	return Scope{GameID: g.GameID, NumGame: g.NumGame}
}

// Target is the owner dimension of a Stat row. Exactly one of PlayerID and
// TeamID is set; the other stays zero.
type Target struct {
	PlayerID int64 `json:"player_id,omitempty"`
	TeamID   int64 `json:"team_id,omitempty"`
}

func PlayerTarget(playerID int64) Target { return Target{PlayerID: playerID} }

func TeamTarget(teamID int64) Target { return Target{TeamID: teamID} }

// Valid reports whether exactly one owner dimension is set.
func (t Target) Valid() bool {
	return (t.PlayerID != 0) != (t.TeamID != 0)
}

// Stat is a usage/performance ledger row. ItemID zero is the per-target aggregate.
type Stat struct {
	ID            int64    `json:"id"`
	GameID        int64    `json:"game_id"`
	NumGame       int      `json:"numgame"`
	ItemID        int64    `json:"item_id"`
	PlayerID      int64    `json:"player_id,omitempty"`
	TeamID        int64    `json:"team_id,omitempty"`
	CountUsed     int      `json:"count_used"`
	CountCorrect  int      `json:"count_correct"`
	CountError    int      `json:"count_error"`
	TimeError     int64    `json:"time_error"`
	Percent       *float64 `json:"percent"`
	IsLastCorrect bool     `json:"is_last_correct"`
}

type LeaderboardEntry struct {
	Rank     int     `json:"rank"`
	PlayerID int64   `json:"player_id"`
	Nickname string  `json:"nickname"`
	AvatarID int     `json:"avatar_id"`
	Score    float64 `json:"score"`
	Count    int     `json:"countscore"`
}
